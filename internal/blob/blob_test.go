package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "calendar/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "calendar/school.json", []byte(`{"source":"school"}`)))
	got, err := s.Get(ctx, "calendar/school.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"school"}`, string(got))

	// last write wins
	require.NoError(t, s.Put(ctx, "calendar/school.json", []byte(`{"source":"school","n":2}`)))
	got, err = s.Get(ctx, "calendar/school.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"school","n":2}`, string(got))

	for _, bad := range []string{"", "/abs", "calendar/../escape", "a//b"} {
		assert.ErrorIs(t, s.Put(ctx, bad, []byte("x")), ErrInvalidKey, bad)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)

	_, err = os.Stat(filepath.Join(dir, "calendar", "school.json"))
	assert.NoError(t, err)
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewBoltStore(path)
	require.NoError(t, err)

	exerciseStore(t, s)
	require.NoError(t, s.Close())

	reopened, err := NewBoltStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), "calendar/school.json")
	require.NoError(t, err)
	assert.Contains(t, string(got), `"n":2`)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("HOMEDASH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis tests: HOMEDASH_TEST_REDIS_URL not set")
	}
	s, err := NewRedisStore(url, "homedash-test:")
	require.NoError(t, err)
	defer s.Close()

	_ = s.client.Del(context.Background(), "homedash-test:calendar/school.json", "homedash-test:calendar/missing.json").Err()
	exerciseStore(t, s)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "s3"})
	assert.Error(t, err)

	s, err := Open(Options{Backend: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
}
