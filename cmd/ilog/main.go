package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/UfSoft/ILog-OLD/internal/app"
	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/logging"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	errRun := run(ctx, os.Args[1:])
	stop()
	if errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// run loads .env and executes the command line.
func run(ctx context.Context, args []string) error {
	if errEnv := godotenv.Load(); errEnv != nil && !errors.Is(errEnv, os.ErrNotExist) {
		log.WithError(errEnv).Warn("failed to load .env")
	}
	root := newRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type rootOptions struct {
	instance string
	closeLog func() error
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "ilog",
		Short:         "Opt-in IRC channel logging",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, errCfg := opts.appConfig()
			if errCfg != nil {
				return errCfg
			}
			logCfg, errLoad := logging.Load(cfg.LoggingPath())
			if errLoad != nil {
				return errLoad
			}
			closer, errSetup := logging.Setup(logCfg, cfg.InstancePath)
			if errSetup != nil {
				return errSetup
			}
			opts.closeLog = closer.Close
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog == nil {
				return nil
			}
			return opts.closeLog()
		},
	}
	root.PersistentFlags().StringVar(&opts.instance, "instance", "", "instance folder (or env ILOG_INSTANCE)")
	root.AddCommand(newServeCommand(opts), newSetupCommand(opts), newMigrateCommand(opts))
	return root
}

func (o *rootOptions) appConfig() (config.AppConfig, error) {
	cfg, errLoad := config.LoadFromEnv()
	if errLoad != nil {
		return cfg, errLoad
	}
	if strings.TrimSpace(o.instance) != "" {
		cfg.InstancePath = config.ResolveInstancePath(o.instance)
	}
	return cfg, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web application, or the setup server when ilog.ini is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if errValidate := validatePort(port); errValidate != nil {
				return errValidate
			}
			cfg, errCfg := opts.appConfig()
			if errCfg != nil {
				return errCfg
			}
			ctx := cmd.Context()
			if !app.ConfigExists(cfg.ConfigPath()) {
				log.Infof("%s not found, starting setup server...", cfg.ConfigPath())
				errInit := app.RunSetupServer(ctx, cfg, port)
				if !errors.Is(errInit, app.ErrInitCompleted) {
					return errInit
				}
				log.Info("setup completed, starting main server...")
			}
			return app.RunServer(ctx, cfg, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", app.DefaultPort, "server port")
	return cmd
}

type setupFlags struct {
	dsn      string
	url      string
	language string
	timezone string
	username string
	password string
	email    string
}

func newSetupCommand(opts *rootOptions) *cobra.Command {
	var flags setupFlags
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the instance configuration, the database schema and the first administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errCfg := opts.appConfig()
			if errCfg != nil {
				return errCfg
			}
			dsn := strings.TrimSpace(flags.dsn)
			if dsn == "" {
				dsn = strings.TrimSpace(os.Getenv(config.EnvDBConnection))
			}
			if dsn == "" {
				dsn = "file:" + filepath.Join(cfg.InstancePath, "ilog.db")
			}
			password := flags.password
			if password == "" {
				password = os.Getenv("ILOG_ADMIN_PASSWORD")
			}
			errSetup := app.Setup(app.SetupOptions{
				ConfigPath:    cfg.ConfigPath(),
				DSN:           dsn,
				SiteURL:       flags.url,
				Language:      flags.language,
				Timezone:      flags.timezone,
				AdminUsername: flags.username,
				AdminPassword: password,
				AdminEmail:    flags.email,
			})
			if errSetup != nil {
				return errSetup
			}
			fmt.Fprintf(cmd.OutOrStdout(), "instance created at %s\n", cfg.InstancePath)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.dsn, "dsn", "", "database DSN (default: SQLite inside the instance folder)")
	f.StringVar(&flags.url, "url", "", "canonical site URL")
	f.StringVar(&flags.language, "language", "", "default language")
	f.StringVar(&flags.timezone, "timezone", "", "default timezone")
	f.StringVar(&flags.username, "admin", "admin", "administrator username")
	f.StringVar(&flags.password, "password", "", "administrator password (or env ILOG_ADMIN_PASSWORD)")
	f.StringVar(&flags.email, "email", "", "administrator email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errCfg := opts.appConfig()
			if errCfg != nil {
				return errCfg
			}
			if errMigrate := app.Migrate(cmd.Context(), cfg); errMigrate != nil {
				return errMigrate
			}
			log.Info("database schema is up to date")
			return nil
		},
	}
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
