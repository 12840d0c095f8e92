package db

import (
	"fmt"

	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"gorm.io/gorm"
)

// lookupIndex speeds up the case-insensitive searches the admin panel and
// the registration forms run. On PostgreSQL a trigram index is attempted
// first, and the plain lower() index is the fallback when pg_trgm is missing.
type lookupIndex struct {
	table  string
	column string
}

var lookupIndexes = []lookupIndex{
	{table: "users", column: "username"},
	{table: "users", column: "email"},
	{table: "groups", column: "name"},
}

// Migrate brings the schema up to date and seeds the privilege table. It is
// safe to run repeatedly.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	dialect := DialectName(conn)
	if dialect != DialectSQLite && dialect != DialectPostgres && dialect != "" {
		return fmt.Errorf("db: unsupported dialect: %s", dialect)
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Privilege{},
		&models.User{},
		&models.Group{},
		&models.Provider{},
		&models.Network{},
		&models.NetworkServer{},
		&models.Bot{},
		&models.NetworkParticipation{},
		&models.IrcIdentity{},
		&models.Channel{},
		&models.IrcEvent{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := seedPrivileges(conn); errSeed != nil {
		return errSeed
	}

	trigram := false
	if dialect != DialectSQLite {
		trigram = conn.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).Error == nil
	}
	for _, idx := range lookupIndexes {
		if errIdx := idx.create(conn, trigram); errIdx != nil {
			return errIdx
		}
	}
	return nil
}

func (idx lookupIndex) create(conn *gorm.DB, trigram bool) error {
	base := fmt.Sprintf("idx_%s_%s", idx.table, idx.column)
	if trigram {
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_trgm ON %s USING gin (LOWER(%s) gin_trgm_ops)`,
			base, idx.table, idx.column)
		if conn.Exec(stmt).Error == nil {
			return nil
		}
	}
	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_lower ON %s (LOWER(%s))`, base, idx.table, idx.column)
	if errExec := conn.Exec(stmt).Error; errExec != nil {
		return fmt.Errorf("db: create index %s: %w", base, errExec)
	}
	return nil
}

// seedPrivileges inserts any privilege name the code knows about but the
// table does not hold yet.
func seedPrivileges(conn *gorm.DB) error {
	var existing []string
	if errPluck := conn.Model(&models.Privilege{}).Pluck("name", &existing).Error; errPluck != nil {
		return fmt.Errorf("db: list privileges: %w", errPluck)
	}
	known := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		known[name] = struct{}{}
	}
	for _, name := range privileges.Names() {
		if _, ok := known[name]; ok {
			continue
		}
		if errCreate := conn.Create(&models.Privilege{Name: name}).Error; errCreate != nil {
			if IsUniqueViolation(errCreate) {
				continue
			}
			return fmt.Errorf("db: create privilege %s: %w", name, errCreate)
		}
	}
	return nil
}
