// Package blob abstracts attachment content storage. Metadata lives in the
// relational store; the bytes live behind this interface.
package blob

import (
	"context"
	"io"
)

// Store reads and writes attachment content addressed by a relative path.
// Implementations return fs.ErrNotExist (or an error wrapping it) when the
// path has no content.
type Store interface {
	// Put writes the reader's content at path, creating parent directories
	// as needed. An existing blob at the same path is overwritten.
	Put(ctx context.Context, path string, r io.Reader) error

	// Open returns a reader over the blob's content. The caller closes it.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the blob.
	Delete(ctx context.Context, path string) error
}
