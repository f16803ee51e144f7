// Package blobstore stores report photos.
package blobstore

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = os.ErrNotExist

// Object locates a stored blob.
type Object struct {
	Key string // storage id used for deletion
	URL string // public locator
}

// Store is implemented by every blob backend.
type Store interface {
	// Put writes a blob atomically, replacing any existing blob with the same key.
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	// Get reads a whole blob.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error
}

// NewReportKey returns a fresh key for a report photo, e.g. "reports/<uuid>.jpg".
func NewReportKey(ext string) string {
	return path.Join("reports", uuid.NewString()+ext)
}

// validKey rejects keys that could escape the store root.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
