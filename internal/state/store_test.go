package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opener func(t *testing.T, path string) Store

var backends = map[string]struct {
	file string
	open opener
}{
	BackendJSON: {"state.json", func(t *testing.T, path string) Store {
		s, err := OpenFile(path)
		require.NoError(t, err)
		return s
	}},
	BackendSQLite: {"state.db", func(t *testing.T, path string) Store {
		s, err := OpenSQLite(path)
		require.NoError(t, err)
		return s
	}},
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("mark is idempotent", func(t *testing.T) {
				s := b.open(t, filepath.Join(t.TempDir(), b.file))
				defer s.Close()

				isNew, err := s.IsNew(ctx, "a")
				require.NoError(t, err)
				assert.True(t, isNew)

				require.NoError(t, s.MarkProcessed(ctx, "a"))
				require.NoError(t, s.MarkProcessed(ctx, "a"))

				isNew, err = s.IsNew(ctx, "a")
				require.NoError(t, err)
				assert.False(t, isNew)
			})

			t.Run("survives reopen", func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "nested", b.file)
				s := b.open(t, path)
				require.NoError(t, s.MarkProcessed(ctx, "a"))
				require.NoError(t, s.Close())

				reopened := b.open(t, path)
				defer reopened.Close()
				isNew, err := reopened.IsNew(ctx, "a")
				require.NoError(t, err)
				assert.False(t, isNew)
			})

			t.Run("extend", func(t *testing.T) {
				s := b.open(t, filepath.Join(t.TempDir(), b.file))
				defer s.Close()

				require.NoError(t, s.Extend(ctx, []string{"x", "y", "x"}))
				require.NoError(t, s.Extend(ctx, nil))
				for _, id := range []string{"x", "y"} {
					isNew, err := s.IsNew(ctx, id)
					require.NoError(t, err)
					assert.False(t, isNew, id)
				}
				isNew, err := s.IsNew(ctx, "z")
				require.NoError(t, err)
				assert.True(t, isNew)
			})

			t.Run("concurrent marks", func(t *testing.T) {
				s := b.open(t, filepath.Join(t.TempDir(), b.file))
				defer s.Close()

				ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
				var wg sync.WaitGroup
				for _, id := range ids {
					wg.Add(1)
					go func() {
						defer wg.Done()
						assert.NoError(t, s.MarkProcessed(ctx, id))
					}()
				}
				wg.Wait()

				for _, id := range ids {
					isNew, err := s.IsNew(ctx, id)
					require.NoError(t, err)
					assert.False(t, isNew, id)
				}
			})
		})
	}
}

func TestFileStore_SnapshotFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, s.Extend(context.Background(), []string{"b", "a", "c"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"alerts\": [\n    \"a\",\n    \"b\",\n    \"c\"\n  ]\n}", string(data))
	assert.Equal(t, 3, s.Len())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenFile(path)
	require.Error(t, err)
}

func TestFileStore_ReadsExistingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	data, err := json.Marshal(map[string][]string{"alerts": {"old-1", "old-2"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := OpenFile(path)
	require.NoError(t, err)
	isNew, err := s.IsNew(context.Background(), "old-2")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestFileStore_FailedWriteKeepsIDNew(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "sub")
	s, err := OpenFile(filepath.Join(parent, "state.json"))
	require.NoError(t, err)

	// The parent path becomes a regular file, so creating the directory must fail.
	require.NoError(t, os.WriteFile(parent, nil, 0o600))

	require.Error(t, s.MarkProcessed(context.Background(), "a"))
	isNew, err := s.IsNew(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(BackendJSON, filepath.Join(dir, "s.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(BackendSQLite, filepath.Join(dir, "s.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", filepath.Join(dir, "s"))
	require.Error(t, err)
}
