package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalMultipartLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewLocal(t.TempDir())

	uploadID, err := store.CreateMultipartUpload(ctx, "alice/report.pdf")
	require.NoError(t, err, "CreateMultipartUpload error")
	require.NotEmpty(t, uploadID)

	partData := [][]byte{
		bytes.Repeat([]byte("A"), 1024),
		bytes.Repeat([]byte("B"), 2048),
		bytes.Repeat([]byte("C"), 512),
	}

	var parts []Part
	for i, data := range partData {
		handle, err := store.UploadPart(ctx, "alice/report.pdf", uploadID, i+1, data)
		require.NoErrorf(t, err, "UploadPart %d error", i+1)
		parts = append(parts, Part{Number: i + 1, Handle: handle})
	}

	require.NoError(t, store.CompleteMultipartUpload(ctx, "alice/report.pdf", uploadID, parts))

	size, err := store.ObjectSize(ctx, "alice/report.pdf")
	require.NoError(t, err)
	require.Equal(t, int64(1024+2048+512), size)

	rc, err := store.ReadRange(ctx, "alice/report.pdf", 0, size-1)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, bytes.Join(partData, nil), got, "assembled object must concatenate parts in order")
}

func TestLocalCompleteRejectsBadInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewLocal(t.TempDir())

	uploadID, err := store.CreateMultipartUpload(ctx, "alice/a.bin")
	require.NoError(t, err)

	h1, err := store.UploadPart(ctx, "alice/a.bin", uploadID, 1, []byte("first"))
	require.NoError(t, err)
	h2, err := store.UploadPart(ctx, "alice/a.bin", uploadID, 2, []byte("second"))
	require.NoError(t, err)

	err = store.CompleteMultipartUpload(ctx, "alice/a.bin", uploadID, nil)
	require.Error(t, err, "no parts")

	err = store.CompleteMultipartUpload(ctx, "alice/a.bin", uploadID, []Part{
		{Number: 2, Handle: h2},
		{Number: 1, Handle: h1},
	})
	require.Error(t, err, "parts out of order")

	err = store.CompleteMultipartUpload(ctx, "alice/a.bin", uploadID, []Part{
		{Number: 1, Handle: "bogus"},
		{Number: 2, Handle: h2},
	})
	require.Error(t, err, "handle mismatch")

	// The object must not exist after failed completions.
	_, err = store.ObjectSize(ctx, "alice/a.bin")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalReadRangeWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewLocal(t.TempDir())

	uploadID, err := store.CreateMultipartUpload(ctx, "alice/window.txt")
	require.NoError(t, err)
	handle, err := store.UploadPart(ctx, "alice/window.txt", uploadID, 1, []byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, store.CompleteMultipartUpload(ctx, "alice/window.txt", uploadID, []Part{{Number: 1, Handle: handle}}))

	tests := []struct {
		name       string
		start, end int64
		want       string
	}{
		{name: "prefix", start: 0, end: 3, want: "0123"},
		{name: "middle", start: 4, end: 6, want: "456"},
		{name: "suffix", start: 7, end: 9, want: "789"},
		{name: "single byte", start: 5, end: 5, want: "5"},
		{name: "end past size", start: 8, end: 100, want: "89"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := store.ReadRange(ctx, "alice/window.txt", tt.start, tt.end)
			require.NoError(t, err)
			defer rc.Close()

			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.Equal(t, tt.want, string(got))
		})
	}
}

func TestLocalAbortDiscardsStaging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dataDir := t.TempDir()
	store := NewLocal(dataDir)

	uploadID, err := store.CreateMultipartUpload(ctx, "alice/abort.bin")
	require.NoError(t, err)
	_, err = store.UploadPart(ctx, "alice/abort.bin", uploadID, 1, []byte("data"))
	require.NoError(t, err)

	require.NoError(t, store.AbortMultipartUpload(ctx, "alice/abort.bin", uploadID))

	_, err = os.Stat(filepath.Join(dataDir, "uploads", uploadID))
	require.True(t, os.IsNotExist(err), "staging dir must be gone")

	// Uploading into an aborted session fails.
	_, err = store.UploadPart(ctx, "alice/abort.bin", uploadID, 2, []byte("more"))
	require.Error(t, err)
}

func TestLocalRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewLocal(t.TempDir())

	uploadID, err := store.CreateMultipartUpload(ctx, "alice/gone.txt")
	require.NoError(t, err)
	handle, err := store.UploadPart(ctx, "alice/gone.txt", uploadID, 1, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, store.CompleteMultipartUpload(ctx, "alice/gone.txt", uploadID, []Part{{Number: 1, Handle: handle}}))

	require.NoError(t, store.Remove(ctx, "alice/gone.txt"))

	_, err = store.ObjectSize(ctx, "alice/gone.txt")
	require.ErrorIs(t, err, ErrNotFound)

	// Removing a missing object is not an error.
	require.NoError(t, store.Remove(ctx, "alice/gone.txt"))
}
