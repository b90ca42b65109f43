// Package blob holds staged guest uploads between the staging request and finalization.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	// ErrNotFound reports that no object exists at the requested path.
	ErrNotFound = errors.New("blob: object not found")
	// ErrInvalidPath reports an empty path or one that escapes the store root.
	ErrInvalidPath = errors.New("blob: invalid path")
)

// Store is the temp blob store used by the staged upload variant.
type Store interface {
	// Put writes the reader's bytes at path, overwriting any previous object.
	Put(ctx context.Context, objectPath string, content io.Reader) error
	// Get opens the object at path. The caller closes the returned reader.
	Get(ctx context.Context, objectPath string) (io.ReadCloser, error)
	// Delete removes the object at path. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error
}

// CleanPath normalizes a slash-separated object path and rejects traversal.
func CleanPath(objectPath string) (string, error) {
	trimmed := strings.TrimSpace(objectPath)
	if trimmed == "" {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean("/" + trimmed)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", ErrInvalidPath
		}
	}
	return cleaned, nil
}
