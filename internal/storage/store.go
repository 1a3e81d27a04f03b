// Package storage persists designs and their previews in a key-value store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned for missing keys
var ErrNotFound = errors.New("not found")

// Drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Store is a byte-oriented key-value store
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Open returns the store for driver. When the SQLite database cannot be
// opened the in-memory store is used instead so the editor keeps working.
func Open(logger zerolog.Logger, driver, path string) (Store, error) {
	logger = logger.With().Str("component", "storage").Logger()

	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, "":
		s, err := OpenSQLite(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("sqlite unavailable, falling back to memory store")
			return NewMemoryStore(), nil
		}
		logger.Debug().Str("path", path).Msg("sqlite store opened")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// MemoryStore keeps values in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Close() error { return nil }
