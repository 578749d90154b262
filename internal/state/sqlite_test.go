package state

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	handle, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { handle.Close() }) //nolint:errcheck

	_, err = handle.Exec(`
		CREATE TABLE engine_state (
			tenant TEXT NOT NULL,
			kind TEXT NOT NULL,
			doc TEXT NOT NULL,
			version INTEGER NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (tenant, kind)
		)`)
	require.NoError(t, err)
	return handle
}

func TestSQLite_DiscoveryRoundTrip(t *testing.T) {
	store := NewSQLite(newTestDB(t))
	ctx := context.Background()

	st, err := store.LoadDiscovery(ctx, "lenilani")
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Version)

	st.Seen["name:maui dive shop"] = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	st.Filtered["site:example.com"] = time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)
	st.Day("2025-07-02").LeadsAdded = 9

	require.NoError(t, store.SaveDiscovery(ctx, "lenilani", st))
	assert.Equal(t, int64(1), st.Version)

	loaded, err := store.LoadDiscovery(ctx, "lenilani")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.Contains(t, loaded.Seen, "name:maui dive shop")
	assert.Contains(t, loaded.Filtered, "site:example.com")
	assert.Equal(t, 9, loaded.Day("2025-07-02").LeadsAdded)
}

func TestSQLite_DiscoveryVersionConflict(t *testing.T) {
	store := NewSQLite(newTestDB(t))
	ctx := context.Background()

	first, err := store.LoadDiscovery(ctx, "lenilani")
	require.NoError(t, err)
	second, err := store.LoadDiscovery(ctx, "lenilani")
	require.NoError(t, err)

	require.NoError(t, store.SaveDiscovery(ctx, "lenilani", first))
	err = store.SaveDiscovery(ctx, "lenilani", second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionConflict))
}

func TestSQLite_DiscoveryStaleUpdateConflict(t *testing.T) {
	store := NewSQLite(newTestDB(t))
	ctx := context.Background()

	st, err := store.LoadDiscovery(ctx, "lenilani")
	require.NoError(t, err)
	require.NoError(t, store.SaveDiscovery(ctx, "lenilani", st))

	first, err := store.LoadDiscovery(ctx, "lenilani")
	require.NoError(t, err)
	second, err := store.LoadDiscovery(ctx, "lenilani")
	require.NoError(t, err)

	require.NoError(t, store.SaveDiscovery(ctx, "lenilani", first))
	err = store.SaveDiscovery(ctx, "lenilani", second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.Equal(t, int64(1), second.Version)
}

func TestSQLite_CorruptDocIsFatal(t *testing.T) {
	handle := newTestDB(t)
	_, err := handle.Exec(
		`INSERT INTO engine_state (tenant, kind, doc, version, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"lenilani", "discovery", "{broken", 4, time.Now().UTC(),
	)
	require.NoError(t, err)

	_, err = NewSQLite(handle).LoadDiscovery(context.Background(), "lenilani")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal discovery doc")
}

func TestSQLite_RotationRoundTrip(t *testing.T) {
	store := NewSQLite(newTestDB(t))
	ctx := context.Background()

	st, err := store.LoadRotation(ctx, "lenilani")
	require.NoError(t, err)
	st.Log = append(st.Log, QueryUse{Query: "Kailua HI restaurant", UsedAt: time.Now().UTC()})
	st.Source("google_maps").Gauge = 0.45
	st.LocationCursor = 3

	require.NoError(t, store.SaveRotation(ctx, "lenilani", st))

	loaded, err := store.LoadRotation(ctx, "lenilani")
	require.NoError(t, err)
	require.Len(t, loaded.Log, 1)
	assert.Equal(t, "Kailua HI restaurant", loaded.Log[0].Query)
	assert.Equal(t, 0.45, loaded.Source("google_maps").Gauge)
	assert.Equal(t, 3, loaded.LocationCursor)
}

func TestSQLite_TenantsIsolated(t *testing.T) {
	store := NewSQLite(newTestDB(t))
	ctx := context.Background()

	a, err := store.LoadDiscovery(ctx, "alpha")
	require.NoError(t, err)
	a.Seen["name:alpha surf"] = time.Now().UTC()
	require.NoError(t, store.SaveDiscovery(ctx, "alpha", a))

	b, err := store.LoadDiscovery(ctx, "bravo")
	require.NoError(t, err)
	assert.Empty(t, b.Seen)
	assert.Equal(t, int64(0), b.Version)
}

func TestSQLite_Reset(t *testing.T) {
	store := NewSQLite(newTestDB(t))
	ctx := context.Background()

	st, err := store.LoadDiscovery(ctx, "lenilani")
	require.NoError(t, err)
	st.Seen["name:old lead"] = time.Now().UTC()
	require.NoError(t, store.SaveDiscovery(ctx, "lenilani", st))

	require.NoError(t, store.Reset(ctx, "lenilani"))

	fresh, err := store.LoadDiscovery(ctx, "lenilani")
	require.NoError(t, err)
	assert.Empty(t, fresh.Seen)
	assert.Equal(t, int64(0), fresh.Version)
}
