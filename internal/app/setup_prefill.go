package app

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/UfSoft/ILog-OLD/internal/db"
	"github.com/jackc/pgx/v5/pgconn"
)

// lockedDatabase is what the setup UI may show about a DSN that
// DB_CONNECTION pins. The password itself never leaves the process.
type lockedDatabase struct {
	Type        string `json:"database_type"`
	Host        string `json:"database_host,omitempty"`
	Port        int    `json:"database_port,omitempty"`
	User        string `json:"database_user,omitempty"`
	Name        string `json:"database_name,omitempty"`
	SSLMode     string `json:"database_ssl_mode,omitempty"`
	Path        string `json:"database_path,omitempty"`
	PasswordSet bool   `json:"database_password_set"`
}

// describeDSN accepts the same DSN shapes db.Open does: "file:" or bare
// SQLite paths, postgres URLs and libpq keyword strings.
func describeDSN(dsn string) (lockedDatabase, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return lockedDatabase{}, fmt.Errorf("app: empty dsn")
	}

	isURL := strings.Contains(dsn, "://")
	if !db.IsPostgresDSN(dsn) {
		if isURL {
			scheme, _, _ := strings.Cut(dsn, "://")
			return lockedDatabase{}, fmt.Errorf("app: unsupported dsn scheme %q", scheme)
		}
		path := dsn
		if strings.HasPrefix(strings.ToLower(path), "file:") {
			path = path[len("file:"):]
		}
		path, _, _ = strings.Cut(path, "?")
		return lockedDatabase{Type: "sqlite", Path: strings.TrimSpace(path)}, nil
	}

	parsed, errParse := pgconn.ParseConfig(dsn)
	if errParse != nil {
		return lockedDatabase{}, fmt.Errorf("app: parse dsn: %w", errParse)
	}
	return lockedDatabase{
		Type:        "postgres",
		Host:        parsed.Host,
		Port:        int(parsed.Port),
		User:        parsed.User,
		Name:        parsed.Database,
		SSLMode:     sslModeOf(dsn, isURL),
		PasswordSet: parsed.Password != "",
	}, nil
}

// sslModeOf digs sslmode out of the raw DSN since pgconn folds it into a
// TLS config. libpq's default is "prefer".
func sslModeOf(dsn string, isURL bool) string {
	mode := ""
	if isURL {
		if u, errParse := url.Parse(dsn); errParse == nil {
			mode = u.Query().Get("sslmode")
		}
	} else {
		for _, field := range strings.Fields(dsn) {
			if key, value, ok := strings.Cut(field, "="); ok && key == "sslmode" {
				mode = strings.Trim(value, `'`)
			}
		}
	}
	if mode == "" {
		return "prefer"
	}
	return mode
}
