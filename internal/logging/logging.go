package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// Config is the content of logging.yaml.
type Config struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format"` // "text" or "json".
	File   FileConfig `yaml:"file"`
}

// FileConfig enables a rotating log file next to stderr.
type FileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when logging.yaml is absent.
func Default() Config {
	return Config{Level: "info", Format: "text"}
}

// Load reads path. A missing file yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, errRead := os.ReadFile(path)
	if errors.Is(errRead, os.ErrNotExist) {
		return cfg, nil
	}
	if errRead != nil {
		return cfg, fmt.Errorf("logging: read %s: %w", path, errRead)
	}
	if errParse := yaml.Unmarshal(data, &cfg); errParse != nil {
		return cfg, fmt.Errorf("logging: parse %s: %w", path, errParse)
	}
	return cfg, nil
}

// Setup configures the standard logrus logger and gin's writers. Relative
// file paths are resolved against baseDir. The returned closer releases the
// log file.
func Setup(cfg Config, baseDir string) (io.Closer, error) {
	level, errLevel := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errLevel != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(cfg.File.Path); path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if errMkdir := os.MkdirAll(filepath.Dir(path), 0o755); errMkdir != nil {
			return nil, fmt.Errorf("logging: create log dir: %w", errMkdir)
		}
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    positive(cfg.File.MaxSizeMB, 100),
			MaxBackups: positive(cfg.File.MaxBackups, 3),
			MaxAge:     positive(cfg.File.MaxAgeDays, 28),
			Compress:   cfg.File.Compress,
		}
		out = io.MultiWriter(os.Stderr, rotator)
		closer = rotator
	}
	log.SetOutput(out)
	gin.DefaultWriter = log.StandardLogger().WriterLevel(log.DebugLevel)
	gin.DefaultErrorWriter = log.StandardLogger().WriterLevel(log.ErrorLevel)
	return closer, nil
}

func positive(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
