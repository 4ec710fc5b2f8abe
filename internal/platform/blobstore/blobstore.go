// Package blobstore holds the file content behind sample and project
// attachments. Attachment metadata lives in Postgres; this package only
// stores and serves the bytes, keyed by the attachment id.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrNotFound     = errors.New("attachment content not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrEmptyKey     = errors.New("attachment key is required")
)

// Store is the contract for attachment content backends.
type Store interface {
	// Save reads content up to maxBytes and stores it under key, returning
	// the byte count and SHA-256 hex digest.
	Save(ctx context.Context, key string, content io.Reader, maxBytes int64) (int64, string, error)
	// Open returns a reader over the stored content.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the stored content.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a thread-safe, in-memory Store for testing and development.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, key string, content io.Reader, maxBytes int64) (int64, string, error) {
	if key == "" {
		return 0, "", ErrEmptyKey
	}

	data, err := io.ReadAll(io.LimitReader(content, maxBytes+1))
	if err != nil {
		return 0, "", fmt.Errorf("read content: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return 0, "", ErrFileTooLarge
	}

	sum := sha256.Sum256(data)

	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()

	return int64(len(data)), fmt.Sprintf("%x", sum), nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, key)
	return nil
}
