package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Local is an ObjectStore backed by the local filesystem. Finished objects
// live under <dataDir>/objects mirroring their logical paths; in-progress
// multipart uploads stage their parts under <dataDir>/uploads/<uploadID>,
// one file per part, and completion concatenates them into place via a
// temp-file-then-rename. Part handles are the SHA-256 of the part payload,
// which lets completion verify it is assembling exactly the bytes that were
// recorded.
//
// Local is used by tests and single-node deployments; production setups use
// the MinIO store.
type Local struct {
	dataDir string
}

var _ ObjectStore = (*Local)(nil)

// NewLocal creates a Local store rooted at dataDir.
func NewLocal(dataDir string) *Local {
	return &Local{dataDir: dataDir}
}

func (s *Local) objectPath(path string) string {
	return filepath.Join(s.dataDir, "objects", filepath.FromSlash(path))
}

func (s *Local) uploadDir(uploadID string) string {
	return filepath.Join(s.dataDir, "uploads", uploadID)
}

func (s *Local) partPath(uploadID string, partNumber int) string {
	return filepath.Join(s.uploadDir(uploadID), strconv.Itoa(partNumber)+".part")
}

func (s *Local) CreateMultipartUpload(_ context.Context, path string) (string, error) {
	uploadID := uuid.NewString()
	dir := s.uploadDir(uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload staging dir: %w", err)
	}

	// Remember the target path so an orphaned staging dir can be attributed
	// during cleanup.
	if err := os.WriteFile(filepath.Join(dir, "target"), []byte(path), 0o644); err != nil {
		return "", fmt.Errorf("record upload target: %w", err)
	}
	return uploadID, nil
}

func (s *Local) UploadPart(_ context.Context, _ string, uploadID string, partNumber int, data []byte) (string, error) {
	if _, err := os.Stat(s.uploadDir(uploadID)); err != nil {
		return "", fmt.Errorf("unknown upload %q: %w", uploadID, err)
	}

	sum := sha256.Sum256(data)
	handle := hex.EncodeToString(sum[:])

	if err := os.WriteFile(s.partPath(uploadID, partNumber), data, 0o644); err != nil {
		return "", fmt.Errorf("write part %d: %w", partNumber, err)
	}
	return handle, nil
}

func (s *Local) CompleteMultipartUpload(_ context.Context, path string, uploadID string, parts []Part) error {
	if len(parts) == 0 {
		return fmt.Errorf("multipart upload %q has no parts", uploadID)
	}
	if !sort.SliceIsSorted(parts, func(i, j int) bool { return parts[i].Number < parts[j].Number }) {
		return fmt.Errorf("parts for upload %q are not in ascending order", uploadID)
	}

	objPath := s.objectPath(path)
	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(objPath), ".assemble-*")
	if err != nil {
		return fmt.Errorf("create assembly temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		// If the rename went through this fails with ENOENT, which is fine.
		_ = os.Remove(tmp.Name())
	}()

	for _, p := range parts {
		data, err := os.ReadFile(s.partPath(uploadID, p.Number))
		if err != nil {
			return fmt.Errorf("read part %d: %w", p.Number, err)
		}

		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != p.Handle {
			return fmt.Errorf("part %d does not match its recorded handle", p.Number)
		}

		if _, err := tmp.Write(data); err != nil {
			return fmt.Errorf("assemble part %d: %w", p.Number, err)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush assembled object: %w", err)
	}
	if err := os.Rename(tmp.Name(), objPath); err != nil {
		return fmt.Errorf("move assembled object into place: %w", err)
	}

	return os.RemoveAll(s.uploadDir(uploadID))
}

func (s *Local) AbortMultipartUpload(_ context.Context, _ string, uploadID string) error {
	if err := os.RemoveAll(s.uploadDir(uploadID)); err != nil {
		return fmt.Errorf("discard upload staging dir: %w", err)
	}
	return nil
}

func (s *Local) ObjectSize(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(s.objectPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, fmt.Errorf("stat object: %w", err)
	}
	return info.Size(), nil
}

func (s *Local) ReadRange(_ context.Context, path string, start, end int64) (io.ReadCloser, error) {
	f, err := os.Open(s.objectPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open object: %w", err)
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek to range start: %w", err)
	}

	return &rangeReader{
		Reader: io.LimitReader(f, end-start+1),
		file:   f,
	}, nil
}

func (s *Local) Remove(_ context.Context, path string) error {
	err := os.Remove(s.objectPath(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// rangeReader bounds reads to the requested window while keeping the
// underlying file closable.
type rangeReader struct {
	io.Reader
	file *os.File
}

func (r *rangeReader) Close() error {
	return r.file.Close()
}
