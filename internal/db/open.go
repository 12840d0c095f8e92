package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tune how a connection is opened.
type Options struct {
	Debug bool // Log every SQL statement.
}

// Open opens a database connection for the DSN. PostgreSQL DSNs, see
// IsPostgresDSN, use the pgx driver and anything else is a SQLite file.
func Open(dsn string, opts ...Options) (*gorm.DB, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	gormCfg := &gorm.Config{
		Logger:  newLogger(opt.Debug),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	if IsPostgresDSN(trimmed) {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(sqliteDSN(trimmed))
	}
	conn, errOpen := gorm.Open(dialector, gormCfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open: %w", errOpen)
	}
	return conn, nil
}

// IsPostgresDSN reports whether dsn addresses a PostgreSQL server, either as
// a postgres:// URL or a libpq keyword string such as "host=db dbname=ilog".
func IsPostgresDSN(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return true
	}
	if strings.HasPrefix(lower, "file:") || strings.Contains(lower, "://") {
		return false
	}
	for _, field := range strings.Fields(lower) {
		if key, _, ok := strings.Cut(field, "="); ok && (key == "host" || key == "dbname") {
			return true
		}
	}
	return false
}

// sqliteDSN adds the pragmas the schema relies on.
func sqliteDSN(dsn string) string {
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") && dsn != ":memory:" {
		dsn = "file:" + dsn
	}
	var params []string
	if !strings.Contains(dsn, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if len(params) == 0 {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join(params, "&")
}

// newLogger routes gorm output through logrus.
func newLogger(debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
