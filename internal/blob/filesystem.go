package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore stores blobs as plain files under a root directory.
type FilesystemStore struct {
	root string
}

var _ Store = (*FilesystemStore)(nil)

// NewFilesystemStore creates the root directory if needed and returns a
// store rooted there.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &FilesystemStore{root: abs}, nil
}

// resolve maps a relative blob path to an absolute file path, rejecting
// anything that would escape the root.
func (s *FilesystemStore) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty blob path")
	}
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("blob path %q escapes storage root", path)
	}
	return full, nil
}

func (s *FilesystemStore) Put(ctx context.Context, path string, r io.Reader) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("creating blob file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return fmt.Errorf("writing blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing blob file: %w", err)
	}
	return nil
}

func (s *FilesystemStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	return os.Remove(full)
}
