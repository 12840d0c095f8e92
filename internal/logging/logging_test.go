package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "logging.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: debug\nformat: json\nfile:\n  path: logs/ilog.log\n  max-backups: 5\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "logs/ilog.log", cfg.File.Path)
	assert.Equal(t, 5, cfg.File.MaxBackups)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: [unclosed\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSetupWritesFile(t *testing.T) {
	dir := t.TempDir()
	defer log.SetOutput(os.Stderr)

	closer, err := Setup(Config{Level: "warn", File: FileConfig{Path: "logs/ilog.log"}}, dir)
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	log.Warn("written to the rotating file")
	require.NoError(t, closer.Close())

	data, errRead := os.ReadFile(filepath.Join(dir, "logs", "ilog.log"))
	require.NoError(t, errRead)
	assert.Contains(t, string(data), "written to the rotating file")
}
