package images

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BlobStore stores image objects and returns the URL they are served from
type BlobStore interface {
	Put(ctx context.Context, objectPath string, data []byte) (string, error)
	// Delete removes every object under prefix
	Delete(ctx context.Context, prefix string) error
}

// FileBlobStore writes objects below a root directory. URLs are the public
// base URL joined with the object path.
type FileBlobStore struct {
	root    string
	baseURL string
}

// NewFileBlobStore creates the root directory if needed
func NewFileBlobStore(root, baseURL string) (*FileBlobStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", root, err)
	}
	return &FileBlobStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Root returns the directory objects are written to
func (s *FileBlobStore) Root() string {
	return s.root
}

func (s *FileBlobStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes data at objectPath
func (s *FileBlobStore) Put(ctx context.Context, objectPath string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	// Write to a temp file and rename so readers never see partial images
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}

	return s.baseURL + "/" + strings.TrimPrefix(path.Clean("/"+objectPath), "/"), nil
}

// Delete removes the directory or object at prefix
func (s *FileBlobStore) Delete(ctx context.Context, prefix string) error {
	full, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("failed to delete blobs under %s: %w", prefix, err)
	}
	return nil
}
