package library

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Setenv("LIBRARY_DB_PATH", "")
	t.Setenv("LIBRARY_LOG_LEVEL", "")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  path: /tmp/lib/branch.db
circulation:
  fine_per_day: 2.5
catalog:
  page_size: 25
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/lib/branch.db", cfg.Database.Path)
	assert.Equal(t, 2.5, cfg.Circulation.FinePerDay)
	assert.Equal(t, DefaultLoanPeriodDays, cfg.Circulation.LoanPeriodDays, "unset keys keep defaults")
	assert.Equal(t, 25, cfg.Catalog.PageSize)
	assert.Equal(t, "emp.csv", cfg.Import.EmployeesCSV)
}

func TestLoadConfigEnvWins(t *testing.T) {
	t.Setenv("LIBRARY_DB_PATH", "env.db")
	t.Setenv("LIBRARY_LOG_LEVEL", "debug")
	path := writeConfig(t, "database:\n  path: file.db\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"zero loan period", "circulation:\n  loan_period_days: 0\n"},
		{"negative fine", "circulation:\n  fine_per_day: -1\n"},
		{"malformed yaml", "database: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, LogConfig{Level: name}.SlogLevel(), name)
	}
}
