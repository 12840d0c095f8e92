package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/UfSoft/ILog-OLD/internal/settings"
	"github.com/UfSoft/ILog-OLD/internal/validate"
)

// Kind identifies the value type of a configuration variable.
type Kind int

const (
	KindText Kind = iota
	KindBool
	KindInt
	KindChoice
	KindList
)

// Choice is a selectable value with a display label.
type Choice struct {
	Value string
	Label string
}

// Var describes one configuration key: its type, default and validation.
type Var struct {
	Kind     Kind
	Label    string
	Help     string
	Default  any                // string, bool, int or []string depending on Kind.
	Choices  []Choice           // Allowed values for KindChoice; empty accepts anything.
	Min      *int               // Lower bound for KindInt.
	Validate func(string) error // Applied to text values and to every list item.
}

// Schema maps configuration keys to their definitions.
type Schema map[string]Var

var (
	// ErrInvalidChoice reports a value outside a choice list.
	ErrInvalidChoice = errors.New("Please enter a valid choice.")
	// ErrInvalidBool reports an unparseable boolean.
	ErrInvalidBool = errors.New("Please enter a yes or no value.")
	// ErrInvalidInt reports an unparseable integer.
	ErrInvalidInt = errors.New("Please enter a whole number.")
)

// DefaultValue returns a copy of the default so callers may mutate list values.
func (v Var) DefaultValue() any {
	if list, ok := v.Default.([]string); ok {
		out := make([]string, len(list))
		copy(out, list)
		return out
	}
	if v.Default == nil {
		switch v.Kind {
		case KindBool:
			return false
		case KindInt:
			return 0
		case KindList:
			return []string{}
		default:
			return ""
		}
	}
	return v.Default
}

// Parse converts a raw string into the typed value for this variable.
func (v Var) Parse(raw string) (any, error) {
	switch v.Kind {
	case KindBool:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "yes", "on":
			return true, nil
		case "", "0", "false", "no", "off":
			return false, nil
		default:
			return nil, ErrInvalidBool
		}
	case KindInt:
		n, errParse := strconv.Atoi(strings.TrimSpace(raw))
		if errParse != nil {
			return nil, ErrInvalidInt
		}
		if v.Min != nil && n < *v.Min {
			return nil, fmt.Errorf("Ensure this value is greater than or equal to %d.", *v.Min)
		}
		return n, nil
	case KindChoice:
		if len(v.Choices) == 0 {
			return raw, nil
		}
		for _, choice := range v.Choices {
			if choice.Value == raw {
				return raw, nil
			}
		}
		return nil, ErrInvalidChoice
	case KindList:
		items := make([]string, 0)
		for _, item := range strings.Split(raw, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if v.Validate != nil {
				if errValidate := v.Validate(item); errValidate != nil {
					return nil, errValidate
				}
			}
			items = append(items, item)
		}
		return items, nil
	default:
		if v.Validate != nil && raw != "" {
			if errValidate := v.Validate(raw); errValidate != nil {
				return nil, errValidate
			}
		}
		return raw, nil
	}
}

// Format turns a typed value into its stored string form.
func (v Var) Format(value any) (string, error) {
	switch v.Kind {
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return "", fmt.Errorf("config: expected bool, got %T", value)
		}
		return strconv.FormatBool(b), nil
	case KindInt:
		n, ok := value.(int)
		if !ok {
			return "", fmt.Errorf("config: expected int, got %T", value)
		}
		return strconv.Itoa(n), nil
	case KindList:
		list, ok := value.([]string)
		if !ok {
			return "", fmt.Errorf("config: expected []string, got %T", value)
		}
		return strings.Join(list, ", "), nil
	default:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("config: expected string, got %T", value)
		}
		return s, nil
	}
}

// mustFormat formats values that already passed through Parse or DefaultValue.
func (v Var) mustFormat(value any) string {
	s, errFormat := v.Format(value)
	if errFormat != nil {
		return ""
	}
	return s
}

// intPtr returns a pointer to n.
func intPtr(n int) *int { return &n }

// DefaultVars returns the instance configuration schema. Language and timezone
// choices come from the i18n service.
func DefaultVars(languages, timezones []Choice) Schema {
	return Schema{
		settings.DatabaseURIKey: {Kind: KindText, Default: "", Label: "Database URI",
			Help: "The database URI."},
		settings.DatabaseDebugKey: {Kind: KindBool, Default: false, Label: "Database Debug",
			Help: "If enabled, every SQL statement is written to the log."},
		settings.CookieNameKey: {Kind: KindText, Default: settings.DefaultCookieName, Label: "Cookie Name",
			Help: "If there are multiple ILog installations on the same host, the cookie name should be different for each one."},
		settings.SecretKeyKey: {Kind: KindText, Default: "", Label: "Secret Key",
			Help: "The secret key signs session cookies and activation keys."},
		settings.URLKey: {Kind: KindText, Default: "", Label: "ILog Base URL",
			Help: "The canonical base URL of this installation, including http or https."},
		settings.EmailKey: {Kind: KindText, Default: "", Label: "ILog E-Mail",
			Help: "Sender address for notification mails.", Validate: validate.Email},
		settings.MaintenanceModeKey: {Kind: KindBool, Default: false, Label: "Maintenance Mode",
			Help: "If enabled, only administrators are able to use ILog."},
		settings.TimezoneKey: {Kind: KindChoice, Default: settings.DefaultTimezone, Label: "Timezone",
			Choices: timezones, Help: "The default timezone used to display dates."},
		settings.LanguageKey: {Kind: KindChoice, Default: settings.DefaultLanguage, Label: "Language",
			Choices: languages, Help: "The default ILog language."},

		settings.RPXAppDomainKey: {Kind: KindText, Default: "", Label: "Application Domain",
			Help: "The RPXNow.com application domain."},
		settings.RPXAPIKeyKey: {Kind: KindText, Default: "", Label: "API Key",
			Help: "The RPXNow.com API key."},

		settings.EagerCachingKey: {Kind: KindBool, Default: false, Label: "Eager Caching"},
		settings.CacheTimeoutKey: {Kind: KindInt, Default: 300, Min: intPtr(10), Label: "Cache Timeout"},
		settings.CacheSystemKey: {Kind: KindChoice, Default: "null", Label: "Cache System", Choices: []Choice{
			{Value: "null", Label: "No Cache"},
			{Value: "simple", Label: "Simple Cache"},
			{Value: "memcached", Label: "memcached"},
			{Value: "filesystem", Label: "Filesystem"},
		}},
		settings.MemcachedServersKey: {Kind: KindList, Default: []string{}, Label: "Memcached Servers",
			Validate: validate.NetAddr},
		settings.FilesystemCachePathKey: {Kind: KindText, Default: "cache", Label: "Filesystem Cache Path"},

		settings.SMTPHostKey:       {Kind: KindText, Default: "localhost", Label: "Host"},
		settings.SMTPPortKey:       {Kind: KindInt, Default: 25, Min: intPtr(1), Label: "Port"},
		settings.SMTPUserKey:       {Kind: KindText, Default: "", Label: "User"},
		settings.SMTPPasswordKey:   {Kind: KindText, Default: "", Label: "Password"},
		settings.SMTPFromNameKey:   {Kind: KindText, Default: "Ilog", Label: "From Name"},
		settings.SMTPUseTLSKey:     {Kind: KindBool, Default: false, Label: "Use TLS"},
		settings.EmailSignatureKey: {Kind: KindText, Default: settings.DefaultEmailSignature, Label: "Email Signature"},
		settings.LogEmailOnlyKey:   {Kind: KindBool, Default: false, Label: "Log Email Only"},

		settings.GravatarURLKey: {Kind: KindText, Default: settings.DefaultGravatarURL, Label: "URL",
			Help: "The URL for gravatars."},
		settings.GravatarFallbackKey: {Kind: KindChoice, Default: "404", Label: "Fallback", Choices: []Choice{
			{Value: "default", Label: "Default"},
			{Value: "identicon", Label: "IdentIcon"},
			{Value: "monsterid", Label: "MonsterId"},
			{Value: "wavatar", Label: "wAvatar"},
			{Value: "404", Label: "No default images."},
		}, Help: "The gravatar fallback to use."},
		settings.GravatarRatingKey: {Kind: KindChoice, Default: "g", Label: "Rating", Choices: []Choice{
			{Value: "g", Label: "G"},
			{Value: "pg", Label: "PG"},
			{Value: "r", Label: "R"},
			{Value: "X", Label: "X - Explicit"},
		}, Help: "The gravatar rating allowed."},

		settings.PassthroughErrorsKey: {Kind: KindBool, Default: false, Label: "Passthrough Errors",
			Help: "If enabled, unexpected errors are not caught so a debugger can inspect them."},
		settings.ForceHTTPSKey: {Kind: KindBool, Default: false, Label: "Force HTTPS",
			Help: "Redirect plain http GET and HEAD requests to https."},

		settings.LoginAttemptsKey: {Kind: KindInt, Default: settings.DefaultLoginAttempts, Min: intPtr(0),
			Label: "Login Attempts", Help: "Login attempts allowed per window for one address and username. 0 disables throttling."},
		settings.LoginWindowKey: {Kind: KindInt, Default: settings.DefaultLoginWindowSeconds, Min: intPtr(1),
			Label: "Login Window", Help: "Login throttling window in seconds."},
		settings.RateLimitRedisEnabledKey:  {Kind: KindBool, Default: false, Label: "Use Redis"},
		settings.RateLimitRedisAddrKey:     {Kind: KindText, Default: "", Label: "Redis Address", Validate: validate.NetAddr},
		settings.RateLimitRedisPasswordKey: {Kind: KindText, Default: "", Label: "Redis Password"},
		settings.RateLimitRedisDBKey:       {Kind: KindInt, Default: 0, Min: intPtr(0), Label: "Redis DB"},
		settings.RateLimitRedisPrefixKey:   {Kind: KindText, Default: settings.DefaultRateLimitRedisPrefix, Label: "Redis Prefix"},
	}
}
