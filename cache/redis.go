package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// RedisStorage keeps buckets in Redis, namespacing keys by bucket name.
// Entries are stored without TTL.
type RedisStorage struct {
	r       redis.UniversalClient
	mutex   *sync.Mutex
	buckets map[string]*RedisBucket
}

// NewRedisStorage creates a new Redis-backed storage.
// The connection is verified when the first bucket is opened.
func NewRedisStorage(r redis.UniversalClient) *RedisStorage {
	return &RedisStorage{
		r:       r,
		mutex:   &sync.Mutex{},
		buckets: make(map[string]*RedisBucket),
	}
}

func (s *RedisStorage) Open(ctx context.Context, name string) (Bucket, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if b, ok := s.buckets[name]; ok {
		return b, nil
	}
	if err := s.r.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	b := &RedisBucket{r: s.r, prefix: name}
	s.buckets[name] = b
	return b, nil
}

func (s *RedisStorage) Close() error {
	return s.r.Close()
}

// RedisBucket is a named bucket inside a RedisStorage.
type RedisBucket struct {
	r      redis.Cmdable
	prefix string
}

func (b *RedisBucket) namespaced(key string) string {
	return b.prefix + ":" + key
}

func (b *RedisBucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.r.Get(ctx, b.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return val, true, nil
}

func (b *RedisBucket) Put(ctx context.Context, key string, value []byte) error {
	if err := b.r.Set(ctx, b.namespaced(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
