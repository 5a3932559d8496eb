package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// ErrKeyNotFound is returned when a key doesn't exist in the store
var ErrKeyNotFound = errors.New("key not found")

// ErrInvalidValue is returned when a value is not a JSON document
var ErrInvalidValue = errors.New("value is not valid JSON")

// Store defines the interface for the replicated key-value state.
// Values are JSON documents so the whole store can travel as a
// synchronization payload.
// All implementations must be thread-safe for concurrent access
type Store interface {
	// Get retrieves the JSON value stored under key
	// Returns ErrKeyNotFound if the key doesn't exist
	Get(key string) ([]byte, error)

	// Put stores a JSON value with the given key
	// Overwrites any existing value for the key
	Put(key string, value []byte) error

	// Delete removes a key-value pair
	// No error if key doesn't exist
	Delete(key string) error

	// List returns all keys in sorted order
	List() []string

	// Snapshot returns the whole store as decoded JSON values
	Snapshot() (map[string]any, error)

	// Replace swaps the whole content for data
	Replace(data map[string]any) error

	// Stats returns storage statistics
	Stats() StoreStats
}

// StoreStats contains statistics about the store
type StoreStats struct {
	Keys  int `json:"keys"`  // Number of keys
	Bytes int `json:"bytes"` // Total size of all values in bytes
}

// MemoryStore implements Store interface with in-memory storage
// Uses sync.RWMutex for thread-safe concurrent access
type MemoryStore struct {
	mu   sync.RWMutex      // Protects concurrent access
	data map[string][]byte // Key to encoded JSON value
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key
// Returns a copy of the value to prevent external modification
func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.data[key]
	if !exists {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(value), nil
}

// Put stores a value with the given key
// Makes a copy of the value to prevent external modification
func (m *MemoryStore) Put(key string, value []byte) error {
	if !json.Valid(value) {
		return ErrInvalidValue
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
	return nil
}

// Delete removes a key-value pair
// No error if key doesn't exist (idempotent)
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// List returns all keys in the store, sorted
func (m *MemoryStore) List() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	m.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Snapshot decodes every value. The result shares nothing with the store.
func (m *MemoryStore) Snapshot() (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]any, len(m.data))
	for key, raw := range m.data {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// Replace encodes data and swaps it in atomically. On error the store is
// left untouched.
func (m *MemoryStore) Replace(data map[string]any) error {
	encoded := make(map[string][]byte, len(data))
	for key, v := range data {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}
		encoded[key] = raw
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = encoded
	return nil
}

// Stats returns storage statistics
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totalBytes := 0
	for _, value := range m.data {
		totalBytes += len(value)
	}

	return StoreStats{
		Keys:  len(m.data),
		Bytes: totalBytes,
	}
}
