// Package logging provides categorized zap loggers for superlists.
// Every subsystem asks for a logger by category; all of them share one zap core
// configured once at startup by Initialize.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup, config, shutdown
	CategoryHTTP       Category = "http"       // Request handling, access log
	CategoryStore      Category = "store"      // SQLite repository, migrations
	CategoryTemplates  Category = "templates"  // Template parsing and reload
	CategoryBrowser    Category = "browser"    // Rod browser sessions
	CategoryFunctional Category = "functional" // Acceptance scenarios
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, text
	Categories map[string]bool // category -> enabled; missing means enabled
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	categories map[string]bool
)

// Initialize builds the shared zap logger. It may be called again to reconfigure.
func Initialize(opts Options) error {
	var cfg zap.Config
	if strings.EqualFold(opts.Format, "text") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mu.Lock()
	old := root
	root = l
	categories = opts.Categories
	mu.Unlock()

	_ = old.Sync()
	return nil
}

// Use installs an existing logger, e.g. zaptest or zap.NewNop in tests.
func Use(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l
	categories = nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// IsCategoryEnabled reports whether a category is enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, ok := categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns a named logger for the category, or a no-op logger if the category
// is disabled.
func Get(category Category) *zap.Logger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop()
	}
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(string(category))
}

// Root returns the shared logger without a category name.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
}

// Boot logs a startup message.
func Boot(msg string, fields ...zap.Field) {
	Get(CategoryBoot).Info(msg, fields...)
}

// BootWarn logs a startup warning.
func BootWarn(msg string, fields ...zap.Field) {
	Get(CategoryBoot).Warn(msg, fields...)
}

// Store logs a storage message.
func Store(msg string, fields ...zap.Field) {
	Get(CategoryStore).Info(msg, fields...)
}

// StoreDebug logs a storage debug message.
func StoreDebug(msg string, fields ...zap.Field) {
	Get(CategoryStore).Debug(msg, fields...)
}

// Timer measures how long an operation takes.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer starts timing op under category.
func StartTimer(category Category, op string) *Timer {
	return &Timer{category: category, op: op, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("operation finished",
		zap.String("op", t.op),
		zap.Duration("elapsed", elapsed))
	return elapsed
}
