package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps staged objects on local disk below a root directory.
type LocalStore struct {
	rootDir string
}

// NewLocalStore creates the root directory when missing.
func NewLocalStore(rootDir string) (*LocalStore, error) {
	if rootDir == "" {
		rootDir = filepath.Join(os.TempDir(), "vinculo-staging")
	}
	if err := os.MkdirAll(rootDir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalStore{rootDir: rootDir}, nil
}

// RootDir returns the directory holding staged objects.
func (s *LocalStore) RootDir() string {
	return s.rootDir
}

func (s *LocalStore) resolve(objectPath string) (string, error) {
	cleaned, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.rootDir, filepath.FromSlash(cleaned)), nil
}

// Put writes content to a temporary sibling file and renames it into place.
func (s *LocalStore) Put(ctx context.Context, objectPath string, content io.Reader) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	target, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	file, err := os.CreateTemp(filepath.Dir(target), ".put_*")
	if err != nil {
		return fmt.Errorf("create blob file: %w", err)
	}
	tempName := file.Name()
	if _, err := io.Copy(file, content); err != nil {
		_ = file.Close()
		_ = os.Remove(tempName)
		return fmt.Errorf("write blob file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("close blob file: %w", err)
	}
	if err := os.Rename(tempName, target); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("commit blob file: %w", err)
	}
	return nil
}

// Get opens the stored object for reading.
func (s *LocalStore) Get(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	target, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target) // #nosec G304 - path is confined to rootDir by CleanPath
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
		}
		return nil, fmt.Errorf("open blob file: %w", err)
	}
	return file, nil
}

// Delete removes the stored object.
func (s *LocalStore) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	target, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove blob file %s: %w", objectPath, err)
	}
	return nil
}
