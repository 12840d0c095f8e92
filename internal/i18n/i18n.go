package i18n

import (
	"sort"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Service resolves locales, translations and timezones. It is built once at
// startup; the location cache fills lazily and is never invalidated.
type Service struct {
	catalog   *catalog.Builder
	tags      []language.Tag
	matcher   language.Matcher
	fallback  language.Tag
	languages []config.Choice
	timezones []config.Choice

	mu        sync.RWMutex
	locations map[string]*time.Location
}

// New builds the service with every bundled catalog. The first tag is the
// fallback when nothing matches.
func New() *Service {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	tags := []language.Tag{language.English}
	for _, bundle := range bundles {
		for key, msg := range bundle.messages {
			if errSet := builder.SetString(bundle.tag, key, msg); errSet != nil {
				log.WithError(errSet).WithField("key", key).Warn("i18n: skip message")
			}
		}
		if bundle.tag != language.English {
			tags = append(tags, bundle.tag)
		}
	}

	s := &Service{
		catalog:   builder,
		tags:      tags,
		matcher:   language.NewMatcher(tags),
		fallback:  language.English,
		locations: make(map[string]*time.Location),
	}
	s.languages = buildLanguageChoices(tags)
	s.timezones = buildTimezoneChoices()
	return s
}

func buildLanguageChoices(tags []language.Tag) []config.Choice {
	out := make([]config.Choice, 0, len(tags))
	for _, tag := range tags {
		out = append(out, config.Choice{Value: tag.String(), Label: display.Self.Name(tag)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
	})
	return out
}

func buildTimezoneChoices() []config.Choice {
	out := make([]config.Choice, 0, len(commonTimezones))
	for _, name := range commonTimezones {
		out = append(out, config.Choice{Value: name, Label: strings.ReplaceAll(name, "_", " ")})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
	})
	return out
}

// Languages lists the bundled languages sorted by display name.
func (s *Service) Languages() []config.Choice {
	return append([]config.Choice(nil), s.languages...)
}

// Timezones lists the selectable timezones sorted by label.
func (s *Service) Timezones() []config.Choice {
	return append([]config.Choice(nil), s.timezones...)
}

// HasLanguage reports whether code names a bundled language.
func (s *Service) HasLanguage(code string) bool {
	for _, choice := range s.languages {
		if choice.Value == code {
			return true
		}
	}
	return false
}

// Match picks the best bundled language for the given preferences, tried in
// order. Each preference may be a tag or an Accept-Language header value.
func (s *Service) Match(preferences ...string) language.Tag {
	for _, pref := range preferences {
		pref = strings.TrimSpace(pref)
		if pref == "" {
			continue
		}
		desired, _, errParse := language.ParseAcceptLanguage(pref)
		if errParse != nil || len(desired) == 0 {
			continue
		}
		_, index, confidence := s.matcher.Match(desired...)
		if confidence != language.No {
			return s.tags[index]
		}
	}
	return s.fallback
}

// Translator returns the message printer for tag.
func (s *Service) Translator(tag language.Tag) Translator {
	return Translator{tag: tag, printer: message.NewPrinter(tag, message.Catalog(s.catalog))}
}

// Location returns the cached location for name, or UTC when name is unknown.
func (s *Service) Location(name string) *time.Location {
	if name == "" || name == settings.DefaultTimezone {
		return time.UTC
	}
	s.mu.RLock()
	loc, ok := s.locations[name]
	s.mu.RUnlock()
	if ok {
		return loc
	}

	loc, errLoad := time.LoadLocation(name)
	if errLoad != nil {
		log.WithError(errLoad).WithField("timezone", name).Debug("i18n: unknown timezone")
		loc = time.UTC
	}
	s.mu.Lock()
	s.locations[name] = loc
	s.mu.Unlock()
	return loc
}

// Translator translates messages for one language.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// Tag returns the translator language.
func (t Translator) Tag() language.Tag { return t.tag }

// T translates key and formats it with args.
func (t Translator) T(key string, args ...any) string {
	if t.printer == nil {
		return key
	}
	return t.printer.Sprintf(key, args...)
}
