package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/db"
	"github.com/UfSoft/ILog-OLD/internal/http/handlers"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/i18n"
	"github.com/UfSoft/ILog-OLD/internal/identity"
	"github.com/UfSoft/ILog-OLD/internal/mail"
	"github.com/UfSoft/ILog-OLD/internal/ratelimit"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	"github.com/UfSoft/ILog-OLD/internal/templates"
	"github.com/UfSoft/ILog-OLD/internal/watcher"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultPort is used when neither the command line nor the caller names one.
const DefaultPort = 8080

const shutdownTimeout = 10 * time.Second

// LoadStore reads the instance configuration file.
func LoadStore(path string, translations *i18n.Service) (*config.Store, error) {
	if translations == nil {
		translations = i18n.New()
	}
	store, errLoad := config.Load(path, settings.MainSection,
		config.DefaultVars(translations.Languages(), translations.Timezones()), settings.HiddenKeys)
	if errLoad != nil {
		return nil, fmt.Errorf("app: load config: %w", errLoad)
	}
	return store, nil
}

// OpenDatabase opens the configured database.
func OpenDatabase(store *config.Store) (*gorm.DB, error) {
	dsn, errDSN := config.LoadDatabaseDSN(store)
	if errDSN != nil {
		return nil, errDSN
	}
	return db.Open(dsn, db.Options{Debug: store.Bool(settings.DatabaseDebugKey)})
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	store, errStore := LoadStore(cfg.ConfigPath(), nil)
	if errStore != nil {
		return errStore
	}
	conn, errOpen := OpenDatabase(store)
	if errOpen != nil {
		return errOpen
	}
	defer closeDatabase(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// Server is the assembled web application.
type Server struct {
	Engine  *gin.Engine
	Site    *site.Site
	limiter *ratelimit.Throttle
}

// Close releases the login throttle backend.
func (s *Server) Close() error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Close()
}

// NewServer wires the site dispatcher, its collaborators and the gin engine.
func NewServer(conn *gorm.DB, store *config.Store, translations *i18n.Service, behindProxy bool) (*Server, error) {
	if translations == nil {
		translations = i18n.New()
	}
	renderer, errRenderer := templates.New()
	if errRenderer != nil {
		return nil, errRenderer
	}
	limiter := ratelimit.NewThrottle(ratelimit.FromStore(store), nil, nil)
	s, errSite := site.New(site.Deps{
		DB:          conn,
		Store:       store,
		I18n:        translations,
		Renderer:    renderer,
		Mailer:      mail.NewSender(func() mail.Settings { return mail.SettingsFromStore(store) }),
		Limiter:     limiter,
		Identity:    identity.NewClient(func() string { return store.String(settings.RPXAPIKeyKey) }),
		BehindProxy: behindProxy,
	})
	if errSite != nil {
		return nil, errSite
	}
	handlers.RegisterRoutes(s)

	engine := gin.New()
	engine.Use(gin.Recovery(), site.RequestLogger())
	engine.StaticFS(site.StaticPrefix, http.FS(templates.Static()))
	engine.NoRoute(s.Handle)
	return &Server{Engine: engine, Site: s, limiter: limiter}, nil
}

// RunServer boots the web application and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	translations := i18n.New()
	store, errStore := LoadStore(cfg.ConfigPath(), translations)
	if errStore != nil {
		return errStore
	}
	conn, errOpen := OpenDatabase(store)
	if errOpen != nil {
		return errOpen
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	if !initialized {
		log.Warn("no administrator exists yet, run `ilog setup` to create one")
	}

	gin.SetMode(gin.ReleaseMode)
	server, errServer := NewServer(conn, store, translations, cfg.BehindProxy)
	if errServer != nil {
		return errServer
	}
	defer func() {
		if errClose := server.Close(); errClose != nil {
			log.WithError(errClose).Warn("app: close rate limiter")
		}
	}()

	configWatcher := watcher.NewConfigWatcher(store, 0)
	configWatcher.Start(ctx)
	defer configWatcher.Stop()

	if port <= 0 {
		port = DefaultPort
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("starting ilog on %s with instance %s", srv.Addr, cfg.InstancePath)
	return serve(ctx, srv, nil)
}

// serve runs srv until ctx is done or stop is closed, then shuts it down.
func serve(ctx context.Context, srv *http.Server, stop <-chan struct{}) error {
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

func closeDatabase(conn *gorm.DB) {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.Errorf("sql db close error: %v", errClose)
	}
}
