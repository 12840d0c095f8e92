package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/UfSoft/ILog-OLD/internal/settings"
)

const (
	EnvInstancePath = "ILOG_INSTANCE"
	EnvDBConnection = "DB_CONNECTION"
	EnvBehindProxy  = "ILOG_BEHIND_PROXY"
)

// AppConfig holds process level settings resolved from the environment.
type AppConfig struct {
	InstancePath string // Folder holding ilog.ini, logging.yaml and a SQLite database.
	BehindProxy  bool   // Trust X-Forwarded-Proto when checking for https.
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{
		InstancePath: ResolveInstancePath(os.Getenv(EnvInstancePath)),
		BehindProxy:  parseEnvBool(os.Getenv(EnvBehindProxy)),
	}, nil
}

// ConfigPath returns the path of the instance configuration file.
func (c AppConfig) ConfigPath() string {
	return filepath.Join(c.InstancePath, settings.ConfigFilename)
}

// LoggingPath returns the path of the optional logging configuration.
func (c AppConfig) LoggingPath() string {
	return filepath.Join(c.InstancePath, settings.LoggingFilename)
}

// ResolveInstancePath normalizes the instance path and applies defaults.
func ResolveInstancePath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./instance"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is configured.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database_uri` in ilog.ini or DB_CONNECTION)")

// LoadDatabaseDSN returns the database DSN, preferring the DB_CONNECTION variable.
func LoadDatabaseDSN(store *Store) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}
	if store != nil {
		if dsn := strings.TrimSpace(store.String(settings.DatabaseURIKey)); dsn != "" {
			return dsn, nil
		}
	}
	return "", ErrMissingDatabaseDSN
}

// parseEnvBool reads common truthy spellings.
func parseEnvBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
