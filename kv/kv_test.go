package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()

	f, err := NewFile(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	s, err := NewSQLite(filepath.Join(dir, "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	out := map[string]Store{
		"memory": NewMemory(),
		"file":   f,
		"sqlite": s,
	}

	if addr := os.Getenv("PAPERTRADE_TEST_REDIS_ADDR"); addr != "" {
		r, err := NewRedis(context.Background(), RedisConfig{Addr: addr, Prefix: "papertrade-test:" + t.Name() + ":"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close() })
		out["redis"] = r
	}
	return out
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, st := range backends(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			_, err := st.Get(ctx, "quantumTradePortfolio")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.Put(ctx, "quantumTradePortfolio", []byte(`[{"id":"a"}]`)))
			got, err := st.Get(ctx, "quantumTradePortfolio")
			require.NoError(t, err)
			assert.Equal(t, `[{"id":"a"}]`, string(got))

			// whole-value overwrite
			require.NoError(t, st.Put(ctx, "quantumTradePortfolio", []byte(`[]`)))
			got, err = st.Get(ctx, "quantumTradePortfolio")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			_, err = st.Get(ctx, "other")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	buf := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", buf))
	buf[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestFileRejectsBadKeys(t *testing.T) {
	t.Parallel()

	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, f.Put(context.Background(), key, []byte("x")), "key %q", key)
	}
}

func TestFileLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.Put(context.Background(), "snap", []byte("1")))
	require.NoError(t, f.Put(context.Background(), "snap", []byte("2")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snap.json", entries[0].Name())
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("v1")))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}
