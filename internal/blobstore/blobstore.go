package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("blobstore: object not found")

// Part identifies one completed part of a multipart upload: its position in
// the assembled object and the opaque handle the store returned for it.
type Part struct {
	Number int
	Handle string
}

// ObjectStore is the backing binary store the gateway mediates access to.
// Implementations wrap a real object store's multipart-upload and
// range-read primitives.
type ObjectStore interface {
	// CreateMultipartUpload begins a multipart upload for the object at
	// path and returns the store's opaque upload-session ID.
	CreateMultipartUpload(ctx context.Context, path string) (string, error)

	// UploadPart stores one numbered part and returns its handle.
	UploadPart(ctx context.Context, path string, uploadID string, partNumber int, data []byte) (string, error)

	// CompleteMultipartUpload assembles the object from parts, which must be
	// supplied in ascending part-number order.
	CompleteMultipartUpload(ctx context.Context, path string, uploadID string, parts []Part) error

	// AbortMultipartUpload discards an in-progress upload and its parts.
	AbortMultipartUpload(ctx context.Context, path string, uploadID string) error

	// ObjectSize returns the byte length of the object at path.
	ObjectSize(ctx context.Context, path string) (int64, error)

	// ReadRange opens a stream over the inclusive byte range [start, end].
	ReadRange(ctx context.Context, path string, start, end int64) (io.ReadCloser, error)

	// Remove deletes the object at path. Removing a missing object is not
	// an error.
	Remove(ctx context.Context, path string) error
}
