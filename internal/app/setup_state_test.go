package app

import (
	"path/filepath"
	"testing"

	"github.com/UfSoft/ILog-OLD/internal/db"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
)

func TestHasAdminInitialized(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "ilog-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	initialized, err := HasAdminInitialized(conn)
	if err != nil {
		t.Fatalf("HasAdminInitialized: %v", err)
	}
	if initialized {
		t.Fatalf("expected initialized=false before migrate")
	}

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	plain := models.NewUser("plain", "plain@example.org")
	if errCreate := conn.Create(plain).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	initialized, err = HasAdminInitialized(conn)
	if err != nil {
		t.Fatalf("HasAdminInitialized after migrate: %v", err)
	}
	if initialized {
		t.Fatalf("expected initialized=false without administrators")
	}

	admin := models.NewUser("admin", "admin@example.org")
	if errCreate := conn.Create(admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	granted, errBind := privileges.Bind(conn, []string{privileges.Admin})
	if errBind != nil {
		t.Fatalf("bind privileges: %v", errBind)
	}
	if errAppend := conn.Model(admin).Association("Privileges").Append(granted); errAppend != nil {
		t.Fatalf("grant admin: %v", errAppend)
	}

	initialized, err = HasAdminInitialized(conn)
	if err != nil {
		t.Fatalf("HasAdminInitialized after seed: %v", err)
	}
	if !initialized {
		t.Fatalf("expected initialized=true after admin created")
	}
}
