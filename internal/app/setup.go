package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/db"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/i18n"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/security"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	"github.com/UfSoft/ILog-OLD/internal/validate"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdministratorsGroup is the group created for the first administrator.
const AdministratorsGroup = "Administrators"

// defaultSQLitePath is the default SQLite database file name, relative to the instance folder.
const defaultSQLitePath = "ilog.db"

const minPasswordLength = 6

var (
	// ErrInitCompleted signals that setup finished and the main server should start.
	ErrInitCompleted = errors.New("setup completed")
	// ErrAlreadyConfigured is returned when ilog.ini already exists.
	ErrAlreadyConfigured = errors.New("app: instance already configured")
)

// SetupRequest contains the parameters of the initial setup.
type SetupRequest struct {
	DatabaseType     string `json:"database_type"`
	DatabaseHost     string `json:"database_host"`
	DatabasePort     int    `json:"database_port"`
	DatabaseUser     string `json:"database_user"`
	DatabasePassword string `json:"database_password"`
	DatabaseName     string `json:"database_name"`
	DatabasePath     string `json:"database_path"`
	DatabaseSSLMode  string `json:"database_ssl_mode"`
	SiteURL          string `json:"site_url"`
	Language         string `json:"language"`
	Timezone         string `json:"timezone"`
	AdminUsername    string `json:"admin_username" binding:"required"`
	AdminPassword    string `json:"admin_password" binding:"required"`
	AdminEmail       string `json:"admin_email" binding:"required"`
}

// SetupOptions is a validated setup request with the DSN resolved.
type SetupOptions struct {
	ConfigPath    string
	DSN           string
	SiteURL       string
	Language      string
	Timezone      string
	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// BuildDSN builds a database DSN from the setup request.
func BuildDSN(req SetupRequest) (string, error) {
	switch strings.ToLower(strings.TrimSpace(req.DatabaseType)) {
	case "", "sqlite":
		return buildSQLiteDSN(req.DatabasePath), nil
	case "postgres":
		sslMode := req.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			req.DatabaseUser,
			req.DatabasePassword,
			req.DatabaseHost,
			req.DatabasePort,
			req.DatabaseName,
			sslMode,
		), nil
	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

// buildSQLiteDSN constructs a SQLite DSN. db.Open adds foreign keys and the busy timeout.
func buildSQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join([]string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
	}, "&")
}

// TestDatabaseConnection validates that the DSN can connect and ping.
func TestDatabaseConnection(dsn string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer closeDatabase(conn)
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.Ping()
}

// validateSetupRequest normalizes and validates setup input. Relative SQLite
// paths are resolved against instancePath.
func validateSetupRequest(req *SetupRequest, instancePath string) error {
	dbType := strings.ToLower(strings.TrimSpace(req.DatabaseType))
	if dbType == "" {
		dbType = "sqlite"
	}
	req.DatabaseType = dbType

	switch dbType {
	case "postgres":
		if strings.TrimSpace(req.DatabaseHost) == "" {
			return fmt.Errorf("Database host is required")
		}
		if req.DatabasePort <= 0 {
			return fmt.Errorf("Invalid database port")
		}
		if strings.TrimSpace(req.DatabaseUser) == "" {
			return fmt.Errorf("Database username is required")
		}
		if strings.TrimSpace(req.DatabaseName) == "" {
			return fmt.Errorf("Database name is required")
		}
	case "sqlite":
		path := strings.TrimSpace(req.DatabasePath)
		if path == "" {
			path = defaultSQLitePath
		}
		if !filepath.IsAbs(path) && !strings.HasPrefix(strings.ToLower(path), "file:") {
			path = filepath.Join(instancePath, path)
		}
		req.DatabasePath = path
	default:
		return fmt.Errorf("Unsupported database type")
	}
	return validateAdmin(req.AdminUsername, req.AdminPassword, req.AdminEmail)
}

func validateAdmin(username, password, email string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("Admin username is required")
	}
	if len(username) > 25 {
		return fmt.Errorf("Admin username must be at most 25 characters")
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("Password must be at least %d characters", minPasswordLength)
	}
	if errEmail := validate.Email(strings.TrimSpace(email)); errEmail != nil {
		return fmt.Errorf("Admin email: %w", errEmail)
	}
	return nil
}

// WriteConfigFile creates ilog.ini with every default plus the given values and
// a generated secret key.
func WriteConfigFile(opts SetupOptions, translations *i18n.Service) error {
	if errMkdir := os.MkdirAll(filepath.Dir(opts.ConfigPath), 0o755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}
	store, errStore := LoadStore(opts.ConfigPath, translations)
	if errStore != nil {
		return errStore
	}
	secret, errSecret := security.GenerateSecretKey()
	if errSecret != nil {
		return errSecret
	}
	store.SetSectionComment(settings.MainSection, settings.ConfigHeader)

	values := map[string]any{
		settings.DatabaseURIKey: opts.DSN,
		settings.SecretKeyKey:   secret,
	}
	optional := map[string]string{
		settings.URLKey:      opts.SiteURL,
		settings.LanguageKey: opts.Language,
		settings.TimezoneKey: opts.Timezone,
	}
	for key, value := range optional {
		if value = strings.TrimSpace(value); value != "" {
			values[key] = value
		}
	}
	tx := store.Edit()
	if errUpdate := tx.Update(values); errUpdate != nil {
		return fmt.Errorf("app: setup config: %w", errUpdate)
	}
	return tx.Commit(true)
}

// CreateAdministrator creates the Administrators group holding ILOG_ADMIN and
// a confirmed, activated first administrator inside it.
func CreateAdministrator(conn *gorm.DB, username, password, email string) error {
	if conn == nil {
		return fmt.Errorf("open database: nil connection")
	}
	if errValidate := validateAdmin(username, password, email); errValidate != nil {
		return errValidate
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("hash password: %w", errHash)
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		adminPrivs, errBind := privileges.Bind(tx, []string{privileges.Admin})
		if errBind != nil {
			return errBind
		}
		var group models.Group
		errGroup := tx.Where(models.Group{Name: AdministratorsGroup}).FirstOrCreate(&group).Error
		if errGroup != nil {
			return fmt.Errorf("app: administrators group: %w", errGroup)
		}
		if errAppend := tx.Model(&group).Association("Privileges").Append(adminPrivs); errAppend != nil {
			return fmt.Errorf("app: grant group privileges: %w", errAppend)
		}

		user := models.NewUser(strings.TrimSpace(username), strings.TrimSpace(email))
		user.PasswordHash = hash
		user.Confirmed = true
		user.ActivationKey = models.Activated
		if errCreate := tx.Omit("Privileges", "Groups").Create(user).Error; errCreate != nil {
			if db.IsUniqueViolation(errCreate) {
				return fmt.Errorf("app: user %q or email %q already exists", user.Username, user.Email)
			}
			return fmt.Errorf("app: create administrator: %w", errCreate)
		}
		if errJoin := tx.Model(user).Association("Groups").Append(&group); errJoin != nil {
			return fmt.Errorf("app: join administrators: %w", errJoin)
		}
		accountPrivs, errAccount := privileges.Bind(tx, []string{privileges.EnterAccountPanel})
		if errAccount != nil {
			return errAccount
		}
		if errGrant := tx.Model(user).Association("Privileges").Append(accountPrivs); errGrant != nil {
			return fmt.Errorf("app: grant account privileges: %w", errGrant)
		}
		return nil
	})
}

// Setup writes the instance configuration, migrates the schema and creates
// the first administrator. The config file is removed again when any later
// step fails.
func Setup(opts SetupOptions) (err error) {
	if ConfigExists(opts.ConfigPath) {
		return ErrAlreadyConfigured
	}
	if errWrite := WriteConfigFile(opts, nil); errWrite != nil {
		return errWrite
	}
	defer func() {
		if err == nil {
			return
		}
		if errRemove := os.Remove(opts.ConfigPath); errRemove != nil {
			log.Errorf("remove config file error: %v", errRemove)
		}
	}()

	conn, errOpen := db.Open(opts.DSN)
	if errOpen != nil {
		return fmt.Errorf("open database: %w", errOpen)
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}
	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	if initialized {
		log.Info("database already holds an administrator, skipping admin creation")
		return nil
	}
	return CreateAdministrator(conn, opts.AdminUsername, opts.AdminPassword, opts.AdminEmail)
}

// RunSetupServer serves the setup API while ilog.ini is missing. It returns
// ErrInitCompleted once setup succeeded.
func RunSetupServer(ctx context.Context, cfg config.AppConfig, port int) error {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), site.RequestLogger())

	configPath := cfg.ConfigPath()
	envDSN := strings.TrimSpace(os.Getenv(config.EnvDBConnection))
	translations := i18n.New()
	initDone := make(chan struct{})

	engine.GET("/_setup/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"configured": ConfigExists(configPath)})
	})

	engine.GET("/_setup/prefill", func(c *gin.Context) {
		payload := gin.H{
			"languages": translations.Languages(),
			"timezones": translations.Timezones(),
		}
		if envDSN == "" {
			payload["locked"] = false
			payload["database_type"] = "sqlite"
			payload["database_path"] = defaultSQLitePath
			c.JSON(http.StatusOK, payload)
			return
		}
		payload["locked"] = true
		if locked, errDescribe := describeDSN(envDSN); errDescribe == nil {
			payload["database"] = locked
		}
		c.JSON(http.StatusOK, payload)
	})

	engine.POST("/_setup", func(c *gin.Context) {
		if ConfigExists(configPath) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ILog is already configured"})
			return
		}

		var req SetupRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
			return
		}
		if errValidate := validateSetupRequest(&req, cfg.InstancePath); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
			return
		}

		dsn := envDSN
		if dsn == "" {
			built, errBuild := BuildDSN(req)
			if errBuild != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": errBuild.Error()})
				return
			}
			dsn = built
		}
		if errTest := TestDatabaseConnection(dsn); errTest != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Database connection failed: %v", errTest)})
			return
		}

		errSetup := Setup(SetupOptions{
			ConfigPath:    configPath,
			DSN:           dsn,
			SiteURL:       req.SiteURL,
			Language:      req.Language,
			Timezone:      req.Timezone,
			AdminUsername: req.AdminUsername,
			AdminPassword: req.AdminPassword,
			AdminEmail:    req.AdminEmail,
		})
		if errSetup != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Setup failed: %v", errSetup)})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Setup successful"})

		go func() {
			time.Sleep(500 * time.Millisecond)
			close(initDone)
		}()
	})

	engine.NoRoute(func(c *gin.Context) {
		if ConfigExists(configPath) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ILog is starting, please retry shortly"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "ILog is not configured yet: POST the setup request to /_setup or run `ilog setup`",
		})
	})

	if port <= 0 {
		port = DefaultPort
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("starting setup server on %s (config not found at %s)", srv.Addr, configPath)

	if errServe := serve(ctx, srv, initDone); errServe != nil {
		return errServe
	}
	select {
	case <-initDone:
		return ErrInitCompleted
	default:
		return nil
	}
}
