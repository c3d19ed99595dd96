// Package store persists lists and items in SQLite.
// Two drivers are supported: modernc.org/sqlite ("sqlite", pure Go) and
// github.com/mattn/go-sqlite3 ("sqlite3", cgo).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"superlists/internal/lists"
	"superlists/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store implements lists.Repository on SQLite.
type Store struct {
	db     *sql.DB
	driver string
	path   string
}

var _ lists.Repository = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, driver, path string) (*Store, error) {
	dsn, err := dataSourceName(driver, path)
	if err != nil {
		return nil, err
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logging.Store("database opened", zap.String("driver", driver), zap.String("path", path))
	return &Store{db: db, driver: driver, path: path}, nil
}

// dataSourceName adds foreign-key enforcement and a busy timeout in the
// syntax each driver understands.
func dataSourceName(driver, path string) (string, error) {
	if path == "" {
		return "", errors.New("database path required")
	}
	switch driver {
	case "sqlite":
		return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	case "sqlite3":
		return path + "?_foreign_keys=on&_busy_timeout=5000", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ========== Lists ==========

// CreateList inserts an empty list.
func (s *Store) CreateList(ctx context.Context) (lists.List, error) {
	list, err := insertList(ctx, s.db)
	if err != nil {
		return lists.List{}, err
	}
	logging.StoreDebug("list created", zap.Int64("list_id", list.ID))
	return list, nil
}

// CreateListWithItem inserts a list and its first item in one transaction.
func (s *Store) CreateListWithItem(ctx context.Context, text string) (lists.List, lists.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lists.List{}, lists.Item{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	list, err := insertList(ctx, tx)
	if err != nil {
		return lists.List{}, lists.Item{}, err
	}
	item, err := insertItem(ctx, tx, list.ID, text)
	if err != nil {
		return lists.List{}, lists.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return lists.List{}, lists.Item{}, fmt.Errorf("commit: %w", err)
	}

	logging.StoreDebug("list created", zap.Int64("list_id", list.ID), zap.Int64("item_id", item.ID))
	return list, item, nil
}

// GetList returns lists.ErrNotFound for unknown ids.
func (s *Store) GetList(ctx context.Context, id int64) (lists.List, error) {
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM lists WHERE id = ?`, id).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return lists.List{}, lists.ErrNotFound
	}
	if err != nil {
		return lists.List{}, fmt.Errorf("failed to load list %d: %w", id, err)
	}
	return lists.List{ID: id, CreatedAt: time.Unix(created, 0)}, nil
}

// ========== Items ==========

// CreateItem appends an item to an existing list.
func (s *Store) CreateItem(ctx context.Context, listID int64, text string) (lists.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lists.Item{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM lists WHERE id = ?`, listID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return lists.Item{}, lists.ErrNotFound
	}
	if err != nil {
		return lists.Item{}, fmt.Errorf("failed to load list %d: %w", listID, err)
	}

	item, err := insertItem(ctx, tx, listID, text)
	if err != nil {
		return lists.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return lists.Item{}, fmt.Errorf("commit: %w", err)
	}

	logging.StoreDebug("item created", zap.Int64("list_id", listID), zap.Int64("item_id", item.ID))
	return item, nil
}

// Items returns the items of one list in creation order.
func (s *Store) Items(ctx context.Context, listID int64) ([]lists.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, list_id, text FROM items WHERE list_id = ? ORDER BY id`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []lists.Item{}
	for rows.Next() {
		var it lists.Item
		if err := rows.Scan(&it.ID, &it.ListID, &it.Text); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Stats counts lists and items.
func (s *Store) Stats(ctx context.Context) (lists.Stats, error) {
	var st lists.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM lists), (SELECT COUNT(*) FROM items)`).Scan(&st.Lists, &st.Items)
	if err != nil {
		return lists.Stats{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return st, nil
}

// Migrations lists the applied schema migrations.
func (s *Store) Migrations(ctx context.Context) ([]MigrationRecord, error) {
	return AppliedMigrations(ctx, s.db)
}

// SchemaVersion returns the highest migration recorded in the database, or 0
// when none has been applied.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	applied, err := s.Migrations(ctx)
	if err != nil {
		return 0, err
	}
	if len(applied) == 0 {
		return 0, nil
	}
	return applied[len(applied)-1].Version, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertList(ctx context.Context, db execer) (lists.List, error) {
	now := time.Now()
	res, err := db.ExecContext(ctx, `INSERT INTO lists (created_at) VALUES (?)`, now.Unix())
	if err != nil {
		return lists.List{}, fmt.Errorf("failed to insert list: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return lists.List{}, fmt.Errorf("failed to read list id: %w", err)
	}
	return lists.List{ID: id, CreatedAt: time.Unix(now.Unix(), 0)}, nil
}

func insertItem(ctx context.Context, db execer, listID int64, text string) (lists.Item, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO items (list_id, text) VALUES (?, ?)`, listID, text)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
			return lists.Item{}, lists.ErrNotFound
		}
		return lists.Item{}, fmt.Errorf("failed to insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return lists.Item{}, fmt.Errorf("failed to read item id: %w", err)
	}
	return lists.Item{ID: id, ListID: listID, Text: text}, nil
}
