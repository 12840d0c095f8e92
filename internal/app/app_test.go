package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/UfSoft/ILog-OLD/internal/db"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	"github.com/gin-gonic/gin"
)

func TestNewServer_ServesSiteAndStatic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opts := setupOptions(t)
	if errSetup := Setup(opts); errSetup != nil {
		t.Fatalf("Setup: %v", errSetup)
	}
	store, errStore := LoadStore(opts.ConfigPath, nil)
	if errStore != nil {
		t.Fatalf("LoadStore: %v", errStore)
	}
	conn, errOpen := OpenDatabase(store)
	if errOpen != nil {
		t.Fatalf("OpenDatabase: %v", errOpen)
	}
	defer closeDatabase(conn)

	server, errServer := NewServer(conn, store, nil, false)
	if errServer != nil {
		t.Fatalf("NewServer: %v", errServer)
	}
	defer func() {
		if errClose := server.Close(); errClose != nil {
			t.Fatalf("Close: %v", errClose)
		}
	}()

	cases := []struct {
		path   string
		status int
	}{
		{"/", http.StatusOK},
		{"/account/login", http.StatusOK},
		{"/_static/style.css", http.StatusOK},
		{"/no/such/page", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.status {
			t.Fatalf("GET %s: expected %d, got %d", tc.path, tc.status, rec.Code)
		}
	}
}

func TestOpenDatabase_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_CONNECTION", "file:"+filepath.Join(dir, "env.db"))
	store, errStore := LoadStore(filepath.Join(dir, settings.ConfigFilename), nil)
	if errStore != nil {
		t.Fatalf("LoadStore: %v", errStore)
	}
	conn, errOpen := OpenDatabase(store)
	if errOpen != nil {
		t.Fatalf("OpenDatabase: %v", errOpen)
	}
	defer closeDatabase(conn)
	if !db.IsSQLite(conn) {
		t.Fatalf("expected a sqlite connection")
	}
}

func TestOpenDatabase_MissingDSN(t *testing.T) {
	t.Setenv("DB_CONNECTION", "")
	store, errStore := LoadStore(filepath.Join(t.TempDir(), settings.ConfigFilename), nil)
	if errStore != nil {
		t.Fatalf("LoadStore: %v", errStore)
	}
	if _, errOpen := OpenDatabase(store); errOpen == nil || !strings.Contains(errOpen.Error(), "database") {
		t.Fatalf("expected missing dsn error, got %v", errOpen)
	}
}
