package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes attachment content to a local directory, one file per key.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment directory %s: %w", root, err)
	}
	return &DiskStore{root: root}, nil
}

// path maps a key to a file under root. Keys are attachment UUIDs, but
// path separators are stripped regardless so a key can never escape root.
func (s *DiskStore) path(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	clean := filepath.Base(strings.ReplaceAll(key, "\\", "/"))
	if clean == "." || clean == ".." {
		return "", ErrEmptyKey
	}
	return filepath.Join(s.root, clean), nil
}

func (s *DiskStore) Save(_ context.Context, key string, content io.Reader, maxBytes int64) (int64, string, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, "", err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return 0, "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(content, maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, "", fmt.Errorf("write content: %w", err)
	}
	if n > maxBytes {
		return 0, "", ErrFileTooLarge
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		return 0, "", fmt.Errorf("store attachment: %w", err)
	}

	return n, fmt.Sprintf("%x", h.Sum(nil)), nil
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}
