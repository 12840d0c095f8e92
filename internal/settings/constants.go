package settings

// Instance config keys and defaults.
const (
	// MainSection is the INI section holding keys without a "section/" prefix.
	MainSection = "ilog"
	// ConfigFilename is the config file name inside the instance folder.
	ConfigFilename = "ilog.ini"
	// LoggingFilename is the optional logging config inside the instance folder.
	LoggingFilename = "logging.yaml"

	// DatabaseURIKey holds the database DSN.
	DatabaseURIKey = "database_uri"
	// DatabaseDebugKey toggles SQL statement logging.
	DatabaseDebugKey = "database_debug"
	// CookieNameKey is the session cookie name.
	CookieNameKey = "cookie_name"
	// SecretKeyKey signs session cookies and activation keys.
	SecretKeyKey = "secret_key"
	// URLKey is the canonical base URL used for external links.
	URLKey = "ilog_url"
	// EmailKey is the sender address for outgoing mail.
	EmailKey = "ilog_email"
	// MaintenanceModeKey restricts the site to administrators.
	MaintenanceModeKey = "maintenance_mode"
	// TimezoneKey is the default display timezone.
	TimezoneKey = "timezone"
	// LanguageKey is the default language.
	LanguageKey = "language"

	// RPXAppDomainKey is the RPXNow application domain.
	RPXAppDomainKey = "rpxnow/app_domain"
	// RPXAPIKeyKey is the RPXNow API key.
	RPXAPIKeyKey = "rpxnow/api_key"

	// EagerCachingKey toggles eager caching.
	EagerCachingKey = "enable_eager_caching"
	// CacheTimeoutKey is the cache timeout in seconds.
	CacheTimeoutKey = "cache_timeout"
	// CacheSystemKey selects the cache backend.
	CacheSystemKey = "cache_system"
	// MemcachedServersKey lists memcached addresses.
	MemcachedServersKey = "memcached_servers"
	// FilesystemCachePathKey is the filesystem cache folder.
	FilesystemCachePathKey = "filesystem_cache_path"

	SMTPHostKey       = "smtp_host"
	SMTPPortKey       = "smtp_port"
	SMTPUserKey       = "smtp_user"
	SMTPPasswordKey   = "smtp_password"
	SMTPFromNameKey   = "smtp_from_name"
	SMTPUseTLSKey     = "smtp_use_tls"
	EmailSignatureKey = "email_signature"
	// LogEmailOnlyKey logs outgoing mail instead of sending it.
	LogEmailOnlyKey = "log_email_only"

	GravatarURLKey      = "gravatar/url"
	GravatarFallbackKey = "gravatar/fallback"
	GravatarRatingKey   = "gravatar/rating"

	// PassthroughErrorsKey lets unexpected errors reach the hosting process.
	PassthroughErrorsKey = "passthrough_errors"
	// ForceHTTPSKey redirects safe plain-http requests to https.
	ForceHTTPSKey = "force_https"

	// LoginAttemptsKey is the number of login attempts allowed per window (0 disables).
	LoginAttemptsKey = "ratelimit/login_attempts"
	// LoginWindowKey is the login throttling window in seconds.
	LoginWindowKey = "ratelimit/window"
	// RateLimitRedisEnabledKey toggles Redis-backed throttling.
	RateLimitRedisEnabledKey = "ratelimit/redis_enabled"
	// RateLimitRedisAddrKey defines the Redis address for throttling.
	RateLimitRedisAddrKey = "ratelimit/redis_addr"
	// RateLimitRedisPasswordKey defines the Redis password for throttling.
	RateLimitRedisPasswordKey = "ratelimit/redis_password"
	// RateLimitRedisDBKey defines the Redis DB index for throttling.
	RateLimitRedisDBKey = "ratelimit/redis_db"
	// RateLimitRedisPrefixKey defines the Redis key prefix for throttling.
	RateLimitRedisPrefixKey = "ratelimit/redis_prefix"

	// DefaultCookieName is the fallback session cookie name.
	DefaultCookieName = "ilog_session"
	// DefaultTimezone is the fallback display timezone.
	DefaultTimezone = "UTC"
	// DefaultLanguage is the fallback language.
	DefaultLanguage = "en"
	// DefaultEmailSignature closes every outgoing mail.
	DefaultEmailSignature = "ILog - Opt-in IRC channel logging"
	// DefaultGravatarURL is the gravatar service base URL.
	DefaultGravatarURL = "http://www.gravatar.com/avatar/"
	// DefaultLoginAttempts is the fallback login attempts per window.
	DefaultLoginAttempts = 10
	// DefaultLoginWindowSeconds is the fallback login throttling window.
	DefaultLoginWindowSeconds = 60
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "ilog:rl"
)

// HiddenKeys are masked in public config listings.
var HiddenKeys = []string{SecretKeyKey}

// ConfigHeader is written above the main section of a freshly created config file.
const ConfigHeader = `# ILog configuration file
# This file is also updated by the ILog admin interface.
# The charset of this file must be utf-8!

`
