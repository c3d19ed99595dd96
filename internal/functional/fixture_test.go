package functional

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFixture(t *testing.T) {
	f, err := DefaultFixture()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(f.Items), 2)
	assert.Equal(t, "Buy peacock feathers", f.Items[0])
	assert.Equal(t, "Buy Milk", f.SecondUserItem)
}

func TestParseFixture(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "valid", data: `{"items": ["a", "b"]}`},
		{name: "not json", data: `{`, wantErr: "invalid fixture json"},
		{name: "missing items", data: `{"name": "x"}`, wantErr: "invalid fixture"},
		{name: "too few items", data: `{"items": ["only"]}`, wantErr: "/items"},
		{name: "duplicate items", data: `{"items": ["a", "a"]}`, wantErr: "/items"},
		{name: "blank item", data: `{"items": ["a", "   "]}`, wantErr: "/items/1"},
		{name: "unknown field", data: `{"items": ["a", "b"], "extra": 1}`, wantErr: "invalid fixture"},
		{name: "item inside default second item", data: `{"items": ["Milk", "Eggs"]}`, wantErr: "overlaps second_user_item"},
		{name: "second item inside item", data: `{"items": ["a", "Buy Milk today"]}`, wantErr: "overlaps second_user_item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFixture([]byte(tt.data))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, f.Items)
			assert.Equal(t, DefaultSecondUserItem, f.SecondUserItem)
		})
	}
}

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture("")
	require.NoError(t, err)
	assert.NotEmpty(t, f.Items)

	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items": ["x", "y"], "second_user_item": "z"}`), 0o644))
	f, err = LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, f.Items)
	assert.Equal(t, "z", f.SecondUserItem)

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
