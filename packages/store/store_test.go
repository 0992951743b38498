package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_SQLitePrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefixed.db")

	s, err := Open("sqlite://" + path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, path, s.Path())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &Record{Name: "shop", Cookie: "sid=abc", Encoding: "GBK", LastURL: "http://example.test/cart"}
	require.NoError(t, s.Save(ctx, rec))
	assert.False(t, rec.UpdatedAt.IsZero())

	loaded, err := s.Load(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, "sid=abc", loaded.Cookie)
	assert.Equal(t, "GBK", loaded.Encoding)
	assert.Equal(t, "http://example.test/cart", loaded.LastURL)
	assert.WithinDuration(t, rec.UpdatedAt, loaded.UpdatedAt, time.Millisecond)
}

func TestSave_Overwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Record{Name: "a", Cookie: "old"}))
	require.NoError(t, s.Save(ctx, &Record{Name: "a", Cookie: ""}))

	loaded, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "", loaded.Cookie)
}

func TestSave_RequiresName(t *testing.T) {
	s := openTestStore(t)

	assert.Error(t, s.Save(context.Background(), &Record{Cookie: "x"}))
}

func TestLoad_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load(context.Background(), "ghost")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &Record{Name: "gone"}))

	require.NoError(t, s.Delete(ctx, "gone"))
	assert.ErrorIs(t, s.Delete(ctx, "gone"), ErrNotFound)

	_, err := s.Load(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, s.Save(ctx, &Record{Name: "b"}))
	require.NoError(t, s.Save(ctx, &Record{Name: "a"}))

	records, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Name)
	assert.Equal(t, "b", records[1].Name)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, &Record{Name: "keep", Cookie: "c=1"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.Load(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "c=1", loaded.Cookie)
}
