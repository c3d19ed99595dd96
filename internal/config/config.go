package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all superlists configuration.
type Config struct {
	Name string `yaml:"name" toml:"name"`

	// HTTP server
	Server ServerConfig `yaml:"server" toml:"server"`

	// List/Item persistence
	Storage StorageConfig `yaml:"storage" toml:"storage"`

	// Page rendering
	Web WebConfig `yaml:"web" toml:"web"`

	// Acceptance harness
	Functional FunctionalConfig `yaml:"functional" toml:"functional"`

	// Chrome used by the browser driver
	Browser BrowserConfig `yaml:"browser" toml:"browser"`

	// Logging
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string `yaml:"addr" toml:"addr"`
	ReadTimeout     string `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout" toml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// StorageConfig configures the SQLite database.
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite (modernc), sqlite3 (mattn)
	Path   string `yaml:"path" toml:"path"`     // file path or :memory:
}

// WebConfig configures template loading.
type WebConfig struct {
	// TemplatesDir loads templates from disk and reloads them on change.
	// Empty means the embedded templates are used.
	TemplatesDir string `yaml:"templates_dir" toml:"templates_dir"`
}

// FunctionalConfig configures the acceptance scenarios.
type FunctionalConfig struct {
	BaseURL  string `yaml:"base_url" toml:"base_url"`
	Driver   string `yaml:"driver" toml:"driver"`   // browser, html
	Fixture  string `yaml:"fixture" toml:"fixture"` // JSON file; empty = built-in sample items
	Parallel int    `yaml:"parallel" toml:"parallel"`
	Timeout  string `yaml:"timeout" toml:"timeout"` // per scenario
}

// BrowserConfig configures the rod-controlled Chrome.
type BrowserConfig struct {
	Bin               string   `yaml:"bin" toml:"bin"`
	Flags             []string `yaml:"flags" toml:"flags"`
	Headless          bool     `yaml:"headless" toml:"headless"`
	ViewportWidth     int      `yaml:"viewport_width" toml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height" toml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout" toml:"navigation_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "superlists",

		Server: ServerConfig{
			Addr:            "localhost:8000",
			ReadTimeout:     "10s",
			WriteTimeout:    "10s",
			ShutdownTimeout: "5s",
		},

		Storage: StorageConfig{
			Driver: DriverModernc,
			Path:   "db.sqlite3",
		},

		Functional: FunctionalConfig{
			BaseURL:  "http://localhost:8000",
			Driver:   "browser",
			Parallel: 2,
			Timeout:  "30s",
		},

		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1280,
			ViewportHeight:    800,
			NavigationTimeout: "3s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Storage drivers registered with database/sql.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// ValidDrivers lists the supported storage drivers.
var ValidDrivers = []string{DriverModernc, DriverMattn}

// ValidFunctionalDrivers lists the supported acceptance drivers.
var ValidFunctionalDrivers = []string{"browser", "html"}

// Load loads configuration from a YAML or TOML file, chosen by extension.
// A missing file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SUPERLISTS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SUPERLISTS_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SUPERLISTS_DB_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("SUPERLISTS_BASE_URL"); v != "" {
		c.Functional.BaseURL = v
	}
	if v := os.Getenv("SUPERLISTS_CHROME_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("SUPERLISTS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetReadTimeout returns the server read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 10*time.Second)
}

// GetWriteTimeout returns the server write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 10*time.Second)
}

// GetShutdownTimeout returns how long serve waits for in-flight requests.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 5*time.Second)
}

// GetScenarioTimeout returns the per-scenario timeout of the acceptance suite.
func (c *Config) GetScenarioTimeout() time.Duration {
	return parseDuration(c.Functional.Timeout, 30*time.Second)
}

// GetNavigationTimeout returns the browser navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 3*time.Second)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if !contains(ValidDrivers, c.Storage.Driver) {
		return fmt.Errorf("invalid storage driver: %s (valid: %v)", c.Storage.Driver, ValidDrivers)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if !contains(ValidFunctionalDrivers, c.Functional.Driver) {
		return fmt.Errorf("invalid functional driver: %s (valid: %v)", c.Functional.Driver, ValidFunctionalDrivers)
	}
	if c.Functional.Parallel < 1 {
		return fmt.Errorf("functional.parallel must be >= 1")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
