package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SUPERLISTS_ADDR", "SUPERLISTS_DB", "SUPERLISTS_DB_DRIVER",
		"SUPERLISTS_BASE_URL", "SUPERLISTS_CHROME_BIN", "SUPERLISTS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "superlists", cfg.Name)
	assert.Equal(t, "localhost:8000", cfg.Server.Addr)
	assert.Equal(t, DriverModernc, cfg.Storage.Driver)
	assert.Equal(t, "browser", cfg.Functional.Driver)
	assert.True(t, cfg.Browser.Headless)
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "superlists.yaml")

	cfg := DefaultConfig()
	cfg.Storage.Driver = DriverMattn
	cfg.Storage.Path = "lists.db"
	cfg.Server.Addr = ":9000"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMattn, loaded.Storage.Driver)
	assert.Equal(t, "lists.db", loaded.Storage.Path)
	assert.Equal(t, ":9000", loaded.Server.Addr)
}

func TestLoad_TOML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "superlists.toml")
	content := `
name = "lists"

[server]
addr = "0.0.0.0:8080"
shutdown_timeout = "1s"

[storage]
driver = "sqlite3"
path = "/tmp/lists.db"

[functional]
driver = "html"
parallel = 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lists", cfg.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.GetShutdownTimeout())
	assert.Equal(t, DriverMattn, cfg.Storage.Driver)
	assert.Equal(t, "html", cfg.Functional.Driver)
	assert.Equal(t, 4, cfg.Functional.Parallel)
	// Untouched sections keep their defaults.
	assert.Equal(t, "10s", cfg.Server.ReadTimeout)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "superlists.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SUPERLISTS_ADDR", ":7000")
	t.Setenv("SUPERLISTS_DB", "env.db")
	t.Setenv("SUPERLISTS_DB_DRIVER", "sqlite3")
	t.Setenv("SUPERLISTS_BASE_URL", "http://staging:8000")
	t.Setenv("SUPERLISTS_CHROME_BIN", "/usr/bin/chromium")
	t.Setenv("SUPERLISTS_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "env.db", cfg.Storage.Path)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, "http://staging:8000", cfg.Functional.BaseURL)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Bin)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 10*time.Second, cfg.GetReadTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetWriteTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetShutdownTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetScenarioTimeout())
	assert.Equal(t, 3*time.Second, cfg.GetNavigationTimeout())

	cfg.Browser.NavigationTimeout = "bogus"
	assert.Equal(t, 3*time.Second, cfg.GetNavigationTimeout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"empty db path", func(c *Config) { c.Storage.Path = "" }},
		{"unknown functional driver", func(c *Config) { c.Functional.Driver = "selenium" }},
		{"zero parallel", func(c *Config) { c.Functional.Parallel = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{Level: "warn", Categories: map[string]bool{"http": false}}
	assert.Equal(t, "warn", lc.Options(false).Level)
	assert.Equal(t, map[string]bool{"http": false}, lc.Options(false).Categories)
	assert.Equal(t, "debug", lc.Options(true).Level)
}
