package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/UfSoft/ILog-OLD/internal/app"
	"github.com/UfSoft/ILog-OLD/internal/db"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	log "github.com/sirupsen/logrus"
)

func TestValidatePort(t *testing.T) {
	for _, port := range []int{1, 8080, 65535} {
		if err := validatePort(port); err != nil {
			t.Fatalf("validatePort(%d): %v", port, err)
		}
	}
	for _, port := range []int{0, -1, 65536} {
		if err := validatePort(port); err == nil {
			t.Fatalf("expected validatePort(%d) to fail", port)
		}
	}
}

func TestRun_SetupThenMigrate(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	t.Setenv("DB_CONNECTION", "")
	instance := filepath.Join(t.TempDir(), "instance")

	args := []string{"--instance", instance, "setup", "--admin", "root", "--password", "secret-password", "--email", "root@example.org"}
	if errRun := run(context.Background(), args); errRun != nil {
		t.Fatalf("setup: %v", errRun)
	}
	if !app.ConfigExists(filepath.Join(instance, settings.ConfigFilename)) {
		t.Fatalf("expected %s to be written", settings.ConfigFilename)
	}

	if errRun := run(context.Background(), []string{"--instance", instance, "migrate"}); errRun != nil {
		t.Fatalf("migrate: %v", errRun)
	}

	conn, errOpen := db.Open("file:" + filepath.Join(instance, "ilog.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	initialized, errInit := app.HasAdminInitialized(conn)
	if errInit != nil || !initialized {
		t.Fatalf("expected an administrator, got %v (%v)", initialized, errInit)
	}

	if errRun := run(context.Background(), args); errRun == nil {
		t.Fatalf("expected a second setup to fail")
	}
}

func TestRun_ServeRejectsBadPort(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	if errRun := run(context.Background(), []string{"--instance", t.TempDir(), "serve", "--port", "0"}); errRun == nil {
		t.Fatalf("expected invalid port error")
	}
}
