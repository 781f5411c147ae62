package media

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store archives the original uploaded documents so a card's source can be
// re-inspected later. Implementations must tolerate repeated Remove calls.
type Store interface {
	// Save stores the content of r under the given object name.
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	// Remove deletes an object. Removing a missing object is not an error.
	Remove(ctx context.Context, name string) error
	// URI returns the stable identifier for an object in this store.
	URI(name string) string
	// Backend names the storage backend, for health and stats output.
	Backend() string
}

// ObjectName builds a collision-free object name for an upload.
// Format: <uuid>.<original_extension>
func ObjectName(originalName string) string {
	return uuid.New().String() + strings.ToLower(filepath.Ext(originalName))
}
