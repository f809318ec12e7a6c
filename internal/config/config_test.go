// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Covers env var expansion, defaults, and first-failure validation

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/chatsync-test.db
sync:
  history_limit: 200
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/chatsync-test.db", cfg.Database.Path)
	assert.Equal(t, 200, cfg.Sync.HistoryLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("CHATSYNC_TEST_DB", "/data/expanded.db")

	path := writeConfig(t, `
database:
  path: ${CHATSYNC_TEST_DB}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/expanded.db", cfg.Database.Path)
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ${CHATSYNC_DEFINITELY_UNSET_VAR}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/chatsync-test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Sync.HistoryLimit, "engine picks its own default")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_NegativeHistoryLimitRejected(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/chatsync-test.db
sync:
  history_limit: -5
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history_limit")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "database: [not: a: mapping")
	_, err := Load(path)
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.Database.Path)
}
