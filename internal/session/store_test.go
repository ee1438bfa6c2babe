package session

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// storesUnderTest builds each Store implementation against temporary state.
func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err, "NewSQLite error")
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestSessionMapping(t *testing.T) {
	t.Parallel()

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.SessionID(ctx, "alice/a.txt")
			require.ErrorIs(t, err, ErrNotFound, "unknown path")

			require.NoError(t, store.SetSessionID(ctx, "alice/a.txt", "upload-1"))

			id, err := store.SessionID(ctx, "alice/a.txt")
			require.NoError(t, err)
			require.Equal(t, "upload-1", id)

			// A new session for the same path replaces the mapping.
			require.NoError(t, store.SetSessionID(ctx, "alice/a.txt", "upload-2"))
			id, err = store.SessionID(ctx, "alice/a.txt")
			require.NoError(t, err)
			require.Equal(t, "upload-2", id)
		})
	}
}

func TestChunkResultsAccumulate(t *testing.T) {
	t.Parallel()

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			results, err := store.ChunkResults(ctx, "upload-1")
			require.NoError(t, err)
			require.Empty(t, results, "fresh session has no chunks")

			for part := 1; part <= 3; part++ {
				require.NoError(t, store.AppendChunk(ctx, "upload-1", ChunkResult{
					PartNumber: part,
					Handle:     fmt.Sprintf("etag-%d", part),
				}))
			}

			results, err = store.ChunkResults(ctx, "upload-1")
			require.NoError(t, err)
			require.Len(t, results, 3)

			seen := map[int]string{}
			for _, r := range results {
				seen[r.PartNumber] = r.Handle
			}
			for part := 1; part <= 3; part++ {
				require.Equal(t, fmt.Sprintf("etag-%d", part), seen[part])
			}
		})
	}
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	t.Parallel()

	const parts = 32

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var eg errgroup.Group
			for part := 1; part <= parts; part++ {
				eg.Go(func() error {
					return store.AppendChunk(ctx, "upload-1", ChunkResult{
						PartNumber: part,
						Handle:     fmt.Sprintf("etag-%d", part),
					})
				})
			}
			require.NoError(t, eg.Wait())

			results, err := store.ChunkResults(ctx, "upload-1")
			require.NoError(t, err)
			require.Len(t, results, parts, "every concurrent append must be recorded")
		})
	}
}

func TestClearIsScopedToSession(t *testing.T) {
	t.Parallel()

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.SetSessionID(ctx, "alice/a.txt", "upload-1"))
			require.NoError(t, store.AppendChunk(ctx, "upload-1", ChunkResult{PartNumber: 1, Handle: "etag-1"}))

			// Clearing a stale session id leaves the current mapping alone.
			require.NoError(t, store.Clear(ctx, "alice/a.txt", "upload-0"))
			id, err := store.SessionID(ctx, "alice/a.txt")
			require.NoError(t, err)
			require.Equal(t, "upload-1", id)

			require.NoError(t, store.Clear(ctx, "alice/a.txt", "upload-1"))
			_, err = store.SessionID(ctx, "alice/a.txt")
			require.ErrorIs(t, err, ErrNotFound)

			results, err := store.ChunkResults(ctx, "upload-1")
			require.NoError(t, err)
			require.Empty(t, results, "chunk results go away with their session")
		})
	}
}
