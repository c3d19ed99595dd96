package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"superlists/internal/logging"
	"superlists/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// execute runs the CLI with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Flag variables outlive a single Execute; start every run clean.
	verbose = false
	configPath = "superlists.yaml"
	serveAddr = ""
	migrateStatus = false
	functionalBaseURL = ""
	functionalDriver = ""
	functionalFixture = ""
	functionalEmbedded = false
	functionalParallel = 0
	functionalScenarios = nil
	functionalScreenshots = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "superlists.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func quietConfig(t *testing.T, dbPath string) string {
	t.Helper()
	return writeConfig(t, "storage:\n  path: "+dbPath+"\nlogging:\n  level: error\n")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "-c", quietConfig(t, filepath.Join(t.TempDir(), "db.sqlite3")))
	require.NoError(t, err)
	assert.Contains(t, out, "superlists dev")
}

func TestMigrateStatus(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db.sqlite3")
	out, err := execute(t, "migrate", "--status", "-c", quietConfig(t, db))
	require.NoError(t, err)

	assert.Contains(t, out, "schema version 3")
	assert.Contains(t, out, "create_lists")
	assert.Contains(t, out, "create_items")
	assert.Contains(t, out, "Lists: 0")
	assert.Contains(t, out, "Items: 0")
	assert.FileExists(t, db)
}

func TestInvalidConfig(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: postgres\n")
	_, err := execute(t, "version", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestFunctional_EmbeddedHTML(t *testing.T) {
	cfgPath := quietConfig(t, filepath.Join(t.TempDir(), "unused.sqlite3"))
	out, err := execute(t, "functional", "--embedded", "--driver", "html", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "6/6 passed")
}

func TestFunctional_SelectedScenario(t *testing.T) {
	cfgPath := quietConfig(t, filepath.Join(t.TempDir(), "unused.sqlite3"))
	out, err := execute(t, "functional", "--embedded", "--driver", "html", "--scenario", "list_url", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "list_url")
	assert.Contains(t, out, "1/1 passed")
}

func TestFunctional_UnknownScenario(t *testing.T) {
	cfgPath := quietConfig(t, filepath.Join(t.TempDir(), "unused.sqlite3"))
	_, err := execute(t, "functional", "--driver", "html", "--scenario", "nope", "-c", cfgPath)
	assert.Error(t, err)
}

func TestFunctional_BadFixture(t *testing.T) {
	fixture := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(fixture, []byte(`{"items": ["only one"]}`), 0o644))

	cfgPath := quietConfig(t, filepath.Join(t.TempDir(), "unused.sqlite3"))
	_, err := execute(t, "functional", "--embedded", "--driver", "html", "--fixture", fixture, "-c", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid fixture")
}

func TestWarnMemoryStore(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.Use(zap.New(core))
	t.Cleanup(func() { logging.Use(zap.NewNop()) })

	warnMemoryStore(filepath.Join(t.TempDir(), "db.sqlite3"))
	assert.Zero(t, logs.Len())

	warnMemoryStore(store.MemoryPath)
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "boot", entries[0].LoggerName)
}
