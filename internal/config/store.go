package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/settings"
	log "github.com/sirupsen/logrus"
)

// ErrUnknownKey indicates a key that is not part of the schema.
var ErrUnknownKey = errors.New("config: unknown key")

// Store manages configuration values kept in an INI file. Reads see the last
// committed state; writes go through transactions returned by Edit.
type Store struct {
	filename    string
	mainSection string
	schema      Schema
	hidden      map[string]struct{}

	commitMu sync.Mutex // serializes transaction commits

	mu        sync.RWMutex
	values    map[string]string // raw values as found in the file
	converted map[string]any    // parsed value cache
	gen       uint64            // bumped whenever values is replaced
	comments  map[string]string
	exists    bool
	loadTime  time.Time
}

// Load reads filename into a new Store. A missing file is not an error; the
// store then serves defaults and Exists reports false.
func Load(filename, mainSection string, schema Schema, hiddenKeys []string) (*Store, error) {
	s := &Store{
		filename:    filename,
		mainSection: mainSection,
		schema:      schema,
		hidden:      make(map[string]struct{}, len(hiddenKeys)),
		values:      map[string]string{},
		converted:   map[string]any{},
		comments:    map[string]string{},
	}
	for _, key := range hiddenKeys {
		s.hidden[key] = struct{}{}
	}

	info, errStat := os.Stat(filename)
	if errors.Is(errStat, os.ErrNotExist) {
		return s, nil
	}
	if errStat != nil {
		return nil, fmt.Errorf("config: stat %s: %w", filename, errStat)
	}
	f, errOpen := os.Open(filename)
	if errOpen != nil {
		return nil, fmt.Errorf("config: open %s: %w", filename, errOpen)
	}
	defer func() {
		if errClose := f.Close(); errClose != nil {
			log.WithError(errClose).Warn("config: close file")
		}
	}()
	parsed, errParse := parseINI(f, mainSection)
	if errParse != nil {
		return nil, errParse
	}
	s.values = parsed.values
	s.comments = parsed.comments
	s.exists = true
	s.loadTime = info.ModTime()
	return s, nil
}

// Filename returns the path of the backing file.
func (s *Store) Filename() string { return s.filename }

// Exists reports whether the backing file existed at load time or has been written since.
func (s *Store) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists
}

// ChangedExternal reports whether the file was modified after it was loaded or last written.
func (s *Store) ChangedExternal() bool {
	info, errStat := os.Stat(s.filename)
	if errStat != nil || info.IsDir() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return info.ModTime().After(s.loadTime)
}

// Reload re-reads the backing file, replacing the in-memory values. A file
// that disappeared leaves the store untouched.
func (s *Store) Reload() error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	info, errStat := os.Stat(s.filename)
	if errStat != nil {
		return fmt.Errorf("config: stat %s: %w", s.filename, errStat)
	}
	f, errOpen := os.Open(s.filename)
	if errOpen != nil {
		return fmt.Errorf("config: open %s: %w", s.filename, errOpen)
	}
	defer func() {
		if errClose := f.Close(); errClose != nil {
			log.WithError(errClose).Warn("config: close file")
		}
	}()
	parsed, errParse := parseINI(f, s.mainSection)
	if errParse != nil {
		return errParse
	}

	s.mu.Lock()
	s.values = parsed.values
	s.comments = parsed.comments
	s.converted = map[string]any{}
	s.gen++
	s.exists = true
	s.loadTime = info.ModTime()
	s.mu.Unlock()
	return nil
}

// Schema returns the variable definitions.
func (s *Store) Schema() Schema { return s.schema }

// Var returns the definition for key.
func (s *Store) Var(key string) (Var, bool) {
	v, ok := s.schema[s.normalizeKey(key)]
	return v, ok
}

// SetSectionComment sets the comment block written above a section header.
func (s *Store) SetSectionComment(section, comment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[sectionCommentKey(section)] = comment
}

// normalizeKey strips an explicit main section prefix.
func (s *Store) normalizeKey(key string) string {
	return strings.TrimPrefix(key, s.mainSection+"/")
}

// Value returns the typed value for key. Stored values that fail to parse
// fall back to the default.
func (s *Store) Value(key string) (any, error) {
	key = s.normalizeKey(key)
	field, ok := s.schema[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	cached, hit, raw, stored, gen := s.lookup(key)
	if hit {
		return cached, nil
	}

	value := field.DefaultValue()
	if stored {
		if parsed, errParse := field.Parse(raw); errParse == nil {
			value = parsed
		}
	}
	s.cache(key, value, gen)
	return value, nil
}

// lookup returns the cached and raw value of key along with the generation
// they belong to.
func (s *Store) lookup(key string) (cached any, hit bool, raw string, stored bool, gen uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, hit = s.converted[key]
	raw, stored = s.values[key]
	return cached, hit, raw, stored, s.gen
}

// cache stores value unless a commit or reload replaced the values it was
// parsed from.
func (s *Store) cache(key string, value any, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.converted[key] = value
}

// String returns a text or choice value, or "" for unknown keys.
func (s *Store) String(key string) string {
	value, errValue := s.Value(key)
	if errValue != nil {
		return ""
	}
	str, _ := value.(string)
	return str
}

// Bool returns a boolean value, or false for unknown keys.
func (s *Store) Bool(key string) bool {
	value, errValue := s.Value(key)
	if errValue != nil {
		return false
	}
	b, _ := value.(bool)
	return b
}

// Int returns an integer value, or 0 for unknown keys.
func (s *Store) Int(key string) int {
	value, errValue := s.Value(key)
	if errValue != nil {
		return 0
	}
	n, _ := value.(int)
	return n
}

// Strings returns a list value, or nil for unknown keys.
func (s *Store) Strings(key string) []string {
	value, errValue := s.Value(key)
	if errValue != nil {
		return nil
	}
	list, _ := value.([]string)
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// Keys returns all schema keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.schema))
	for key := range s.schema {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Export returns the stored string form of every key, defaults included.
func (s *Store) Export() map[string]string {
	out := make(map[string]string, len(s.schema))
	for key, field := range s.schema {
		value, _ := s.Value(key)
		out[key] = field.mustFormat(value)
	}
	return out
}

// Edit starts a new transaction.
func (s *Store) Edit() *Transaction {
	return &Transaction{
		store:     s,
		values:    map[string]string{},
		converted: map[string]any{},
		remove:    map[string]struct{}{},
	}
}

// ChangeSingle sets and commits a single key.
func (s *Store) ChangeSingle(key string, value any) error {
	t := s.Edit()
	if errSet := t.Set(key, value); errSet != nil {
		return errSet
	}
	return t.Commit(false)
}

// PublicItem is one row of the public configuration listing.
type PublicItem struct {
	Key     string
	Default string
	Value   string
}

// PublicList returns every key with its current and default value. With
// hideInsecure set, hidden keys are masked and database passwords stripped.
func (s *Store) PublicList(hideInsecure bool) []PublicItem {
	out := make([]PublicItem, 0, len(s.schema))
	for key, field := range s.schema {
		value, _ := s.Value(key)
		shown := field.mustFormat(value)
		if hideInsecure {
			if _, hidden := s.hidden[key]; hidden {
				shown = "****"
			} else if key == settings.DatabaseURIKey {
				shown = SecureDatabaseURI(shown)
			}
		}
		out = append(out, PublicItem{
			Key:     key,
			Default: field.mustFormat(field.DefaultValue()),
			Value:   shown,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Key) < strings.ToLower(out[j].Key)
	})
	return out
}

// DetailItem describes one key inside a DetailCategory.
type DetailItem struct {
	Name       string
	Value      string
	UseDefault bool
	Var        Var
}

// DetailCategory groups keys by their section.
type DetailCategory struct {
	Name  string
	Items []DetailItem
}

// DetailList returns keys grouped by section with the main section first.
func (s *Store) DetailList() []DetailCategory {
	s.mu.RLock()
	stored := make(map[string]bool, len(s.values))
	for key := range s.values {
		stored[key] = true
	}
	s.mu.RUnlock()

	byCategory := map[string][]DetailItem{}
	for key, field := range s.schema {
		value, _ := s.Value(key)
		category, name := s.mainSection, key
		if idx := strings.Index(key, "/"); idx >= 0 {
			category, name = key[:idx], key[idx+1:]
		}
		byCategory[category] = append(byCategory[category], DetailItem{
			Name:       name,
			Value:      field.mustFormat(value),
			UseDefault: !stored[key],
			Var:        field,
		})
	}

	out := make([]DetailCategory, 0, len(byCategory))
	for name, items := range byCategory {
		sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
		out = append(out, DetailCategory{Name: name, Items: items})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == s.mainSection {
			return true
		}
		if out[j].Name == s.mainSection {
			return false
		}
		return strings.ToLower(strings.TrimLeft(out[i].Name, "_")) < strings.ToLower(strings.TrimLeft(out[j].Name, "_"))
	})
	return out
}

// SecureDatabaseURI masks the password of a database URI.
func SecureDatabaseURI(uri string) string {
	parsed, errParse := url.Parse(uri)
	if errParse != nil || parsed.User == nil {
		return uri
	}
	if _, hasPassword := parsed.User.Password(); !hasPassword {
		return uri
	}
	parsed.User = url.UserPassword(parsed.User.Username(), "***")
	return strings.Replace(parsed.String(), ":%2A%2A%2A@", ":***@", 1)
}
