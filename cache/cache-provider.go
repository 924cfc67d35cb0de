package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
)

var (
	// ErrUnavailable is returned when the persistent storage cannot be opened.
	ErrUnavailable = errors.New("cache storage unavailable")
	// ErrRead is returned when a stored entry cannot be read.
	ErrRead = errors.New("cache read failed")
	// ErrWrite is returned when an entry cannot be written.
	ErrWrite = errors.New("cache write failed")
)

// Storage is a provider of named cache buckets.
//
// Implementations must be thread-safe!
type Storage interface {
	// Open returns the bucket with the given name, creating it if needed.
	// Opening the same name again returns the same bucket.
	// If the underlying storage cannot be opened, the error wraps ErrUnavailable.
	Open(ctx context.Context, name string) (Bucket, error)
	// Close releases the underlying storage.
	Close() error
}

// Bucket stores []byte values, which represent HTTP responses, keyed by absolute URL.
// Entries are never expired or purged by the bucket; a Put simply overwrites.
//
// Implementations must be thread-safe!
type Bucket interface {
	// Get returns the stored bytes for the given key, if they exist.
	// It also returns a boolean indicating whether the key was found.
	// Keys are matched exactly. The returned slice is owned by the caller.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores the given bytes under the given key, replacing any previous entry.
	Put(ctx context.Context, key string, value []byte) error
}

// MemoryStorage keeps buckets in process memory.
// Its buckets do not survive a restart, so it is mostly useful for tests.
type MemoryStorage struct {
	mutex   *sync.Mutex
	buckets map[string]*MemoryBucket
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		mutex:   &sync.Mutex{},
		buckets: make(map[string]*MemoryBucket),
	}
}

func (m *MemoryStorage) Open(ctx context.Context, name string) (Bucket, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if b, ok := m.buckets[name]; ok {
		return b, nil
	}
	b := &MemoryBucket{
		mutex: &sync.RWMutex{},
		db:    make(map[string][]byte),
	}
	m.buckets[name] = b
	return b, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

type MemoryBucket struct {
	mutex *sync.RWMutex
	db    map[string][]byte
}

func (m *MemoryBucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok := m.db[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(value), true, nil
}

func (m *MemoryBucket) Put(ctx context.Context, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = bytes.Clone(value)
	return nil
}
