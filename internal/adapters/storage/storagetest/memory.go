// Package storagetest provides an in-memory storage.ObjectStore for tests.
package storagetest

import (
	"context"
	"sync"
	"time"

	"agency_portal_backend/internal/adapters/storage"
)

type Memory struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
}

func NewMemory() *Memory {
	return &Memory{Objects: make(map[string][]byte), Types: make(map[string]string)}
}

func (m *Memory) Put(_ context.Context, key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = append([]byte(nil), data...)
	m.Types[key] = contentType
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (m *Memory) PresignedGetURL(_ context.Context, key string) (storage.PresignedURL, error) {
	return storage.PresignedURL{URL: "https://storage.test/" + key, FileKey: key, ExpiresAt: time.Now().Add(storage.PresignedURLTTL)}, nil
}

var _ storage.ObjectStore = (*Memory)(nil)
