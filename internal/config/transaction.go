package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// ErrTransactionCommitted is returned when a transaction is reused after Commit.
var ErrTransactionCommitted = errors.New("config: transaction already committed")

// TransactionError reports a commit that could not be written to disk.
type TransactionError struct {
	Filename string
	Err      error
}

// Error implements error.
func (e *TransactionError) Error() string {
	return fmt.Sprintf("config: transaction could not be saved to %s: %v", e.Filename, e.Err)
}

// Unwrap returns the underlying write error.
func (e *TransactionError) Unwrap() error { return e.Err }

// Transaction collects changes to a Store and applies them on Commit.
type Transaction struct {
	store     *Store
	values    map[string]string
	converted map[string]any
	remove    map[string]struct{}
	committed bool
}

// Get returns the value for key as seen by this transaction.
func (t *Transaction) Get(key string) (any, error) {
	key = t.store.normalizeKey(key)
	if _, removed := t.remove[key]; removed {
		field, ok := t.store.schema[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		return field.DefaultValue(), nil
	}
	if value, ok := t.converted[key]; ok {
		return value, nil
	}
	return t.store.Value(key)
}

// Set records a typed value for key. Values equal to the current one are ignored.
func (t *Transaction) Set(key string, value any) error {
	if t.committed {
		return ErrTransactionCommitted
	}
	key = t.store.normalizeKey(key)
	field, ok := t.store.schema[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	raw, errFormat := field.Format(value)
	if errFormat != nil {
		return errFormat
	}
	parsed, errParse := field.Parse(raw)
	if errParse != nil {
		return fmt.Errorf("config: %s: %w", key, errParse)
	}
	current, _ := t.Get(key)
	if field.mustFormat(current) == raw {
		return nil
	}
	t.values[key] = raw
	t.converted[key] = parsed
	delete(t.remove, key)
	return nil
}

// SetFromString parses raw for key and records it. Without override, keys
// that already carry a stored value are left alone.
func (t *Transaction) SetFromString(key, raw string, override bool) error {
	if t.committed {
		return ErrTransactionCommitted
	}
	key = t.store.normalizeKey(key)
	field, ok := t.store.schema[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if !override {
		t.store.mu.RLock()
		_, stored := t.store.values[key]
		t.store.mu.RUnlock()
		if _, pending := t.values[key]; stored || pending {
			return nil
		}
	}
	parsed, errParse := field.Parse(raw)
	if errParse != nil {
		return fmt.Errorf("config: %s: %w", key, errParse)
	}
	return t.Set(key, parsed)
}

// RevertToDefault removes the stored value of key so the default applies again.
func (t *Transaction) RevertToDefault(key string) error {
	if t.committed {
		return ErrTransactionCommitted
	}
	key = t.store.normalizeKey(key)
	if _, ok := t.store.schema[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	delete(t.values, key)
	delete(t.converted, key)
	t.remove[key] = struct{}{}
	return nil
}

// Update sets several keys. It stops at the first error.
func (t *Transaction) Update(values map[string]any) error {
	for key, value := range values {
		if errSet := t.Set(key, value); errSet != nil {
			return errSet
		}
	}
	return nil
}

// Commit writes the transaction to disk and then applies it to the store.
// A transaction without changes does not touch the file.
func (t *Transaction) Commit(includeDefaults bool) error {
	if t.committed {
		return ErrTransactionCommitted
	}
	s := t.store
	if len(t.values) == 0 && len(t.remove) == 0 && !includeDefaults {
		t.committed = true
		return nil
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.RLock()
	next := make(map[string]string, len(s.values)+len(t.values))
	for key, value := range s.values {
		next[key] = value
	}
	comments := make(map[string]string, len(s.comments))
	for key, value := range s.comments {
		comments[key] = value
	}
	s.mu.RUnlock()

	for key := range t.remove {
		delete(next, key)
	}
	for key, value := range t.values {
		next[key] = value
	}
	if includeDefaults {
		for key, field := range s.schema {
			if _, ok := next[key]; !ok {
				next[key] = field.mustFormat(field.DefaultValue())
			}
		}
	}

	if errWrite := s.writeFile(next, comments); errWrite != nil {
		return &TransactionError{Filename: s.filename, Err: errWrite}
	}

	s.mu.Lock()
	s.values = next
	s.converted = map[string]any{}
	s.gen++
	s.exists = true
	if info, errStat := os.Stat(s.filename); errStat == nil {
		s.loadTime = info.ModTime()
	}
	s.mu.Unlock()

	t.committed = true
	log.WithField("file", s.filename).Debug("config: transaction committed")
	return nil
}

// writeFile replaces the backing file through a temporary file in the same folder.
func (s *Store) writeFile(values, comments map[string]string) error {
	var buf bytes.Buffer
	if errWrite := writeINI(&buf, s.mainSection, values, comments); errWrite != nil {
		return errWrite
	}
	dir := filepath.Dir(s.filename)
	tmp, errTemp := os.CreateTemp(dir, "."+filepath.Base(s.filename)+".*")
	if errTemp != nil {
		return fmt.Errorf("create temp file: %w", errTemp)
	}
	tmpName := tmp.Name()
	if _, errCopy := tmp.Write(buf.Bytes()); errCopy != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", errCopy)
	}
	if errClose := tmp.Close(); errClose != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", errClose)
	}
	if errChmod := os.Chmod(tmpName, 0o600); errChmod != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", errChmod)
	}
	if errRename := os.Rename(tmpName, s.filename); errRename != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", errRename)
	}
	return nil
}
