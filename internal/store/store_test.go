package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"superlists/internal/lists"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain ensures closed stores do not leave connection goroutines behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func texts(items []lists.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

// =============================================================================
// STORE CREATION AND LIFECYCLE TESTS
// =============================================================================

func TestOpen_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.sqlite3")
	s, err := Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, path, s.Path())
	assert.Equal(t, "sqlite", s.Driver())
	require.NoError(t, s.Ping(context.Background()))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", MemoryPath)
	assert.Error(t, err)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "sqlite", "")
	assert.Error(t, err)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.sqlite3")

	s, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	list, _, err := s.CreateListWithItem(ctx, "persisted")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer s.Close()

	items, err := s.Items(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"persisted"}, texts(items))

	applied, err := s.Migrations(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, CurrentSchemaVersion, "migrations must not be re-applied")
}

func TestSchemaVersion_ReadsRecordedMigrations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)

	_, err = s.db.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, CurrentSchemaVersion)
	require.NoError(t, err)
	v, err = s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion-1, v)

	_, err = s.db.ExecContext(ctx, `DELETE FROM schema_migrations`)
	require.NoError(t, err)
	v, err = s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestMattnDriver(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "sqlite3", filepath.Join(t.TempDir(), "mattn.db"))
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skip("go-sqlite3 requires cgo")
	}
	require.NoError(t, err)
	defer s.Close()

	list, _, err := s.CreateListWithItem(ctx, "Buy milk")
	require.NoError(t, err)
	_, err = s.CreateItem(ctx, list.ID, "Buy eggs")
	require.NoError(t, err)

	items, err := s.Items(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Buy milk", "Buy eggs"}, texts(items))
}

// =============================================================================
// LIST / ITEM TESTS
// =============================================================================

func TestSavingAndRetrievingItems(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	list, err := s.CreateList(ctx)
	require.NoError(t, err)

	want := []string{"Absolutely first element from the list", "Second element from the list"}
	for _, text := range want {
		_, err := s.CreateItem(ctx, list.ID, text)
		require.NoError(t, err)
	}

	items, err := s.Items(ctx, list.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, texts(items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	for _, it := range items {
		assert.Equal(t, list.ID, it.ListID)
	}
}

func TestItemsAreScopedToTheirList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, _, err := s.CreateListWithItem(ctx, "first list item")
	require.NoError(t, err)
	second, _, err := s.CreateListWithItem(ctx, "second list item")
	require.NoError(t, err)
	_, err = s.CreateItem(ctx, first.ID, "another first")
	require.NoError(t, err)

	firstItems, err := s.Items(ctx, first.ID)
	require.NoError(t, err)
	secondItems, err := s.Items(ctx, second.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"first list item", "another first"}, texts(firstItems))
	assert.Equal(t, []string{"second list item"}, texts(secondItems))
}

func TestListsGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.CreateList(ctx)
	require.NoError(t, err)
	b, err := s.CreateList(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.URL(), b.URL())
	assert.Greater(t, b.ID, a.ID)
}

func TestGetList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.CreateList(ctx)
	require.NoError(t, err)

	got, err := s.GetList(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetList(ctx, created.ID+100)
	assert.ErrorIs(t, err, lists.ErrNotFound)
}

func TestCreateItem_UnknownList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateItem(ctx, 999, "orphan")
	assert.ErrorIs(t, err, lists.ErrNotFound)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, lists.Stats{}, st)
}

func TestItems_EmptyListReturnsEmptySlice(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	list, err := s.CreateList(ctx)
	require.NoError(t, err)

	items, err := s.Items(ctx, list.ID)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	list, _, err := s.CreateListWithItem(ctx, "one")
	require.NoError(t, err)
	_, err = s.CreateItem(ctx, list.ID, "two")
	require.NoError(t, err)
	_, err = s.CreateList(ctx)
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, lists.Stats{Lists: 2, Items: 2}, st)
}

func TestStoreStoresTextVerbatim(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	text := `<script>alert("x")</script> ünïcode '; DROP TABLE items; --`
	list, _, err := s.CreateListWithItem(ctx, text)
	require.NoError(t, err)

	items, err := s.Items(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, text, items[0].Text)
}
