package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteBulkBackend(t *testing.T) {
	ctx := context.Background()
	b := NewSQLiteBulkBackend(newSQLite(t))
	require.NoError(t, b.Probe(ctx))
	require.NoError(t, b.Probe(ctx), "probe is idempotent")

	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, "k", []byte(`{"a":1}`)))
	require.NoError(t, b.Set(ctx, "k", []byte(`{"a":2}`)))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got))

	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteBulkBackend_ThroughStore(t *testing.T) {
	ctx := context.Background()
	db := newSQLite(t)
	s := openStore(t, Options{Namespace: "drill"}, NewMemoryBackend(0), NewSQLiteBulkBackend(db))

	results := []snapshot{{Index: 0}, {Index: 1, Flags: []bool{true}}}
	require.NoError(t, s.Save(ctx, "history", results, SaveOptions{Large: true}))
	require.NoError(t, s.Flush(ctx))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bulk_records WHERE key = 'drill-history'`).Scan(&n))
	assert.Equal(t, 1, n)

	assert.Equal(t, results, LoadAs(ctx, s, "history", []snapshot(nil), LoadOptions{Large: true}))
	assert.Nil(t, LoadAs(ctx, s, "history", []snapshot(nil), LoadOptions{Temporary: true}))
}
