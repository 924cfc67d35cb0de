package switcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ericselin/switcher/cache"
	"github.com/ericselin/switcher/metrics"
	cachekey "github.com/ericselin/switcher/pkg/cache-key"
	"github.com/ericselin/switcher/pkg/freshness"
	serializer "github.com/ericselin/switcher/pkg/response-serializer"
)

// DefaultBucket is the name of the cache bucket used when none is configured.
const DefaultBucket = "switcher-cache"

// Store is the timestamped response store: a cache bucket whose entries
// carry the time they were captured.
type Store struct {
	storage cache.Storage
	name    string
	log     zerolog.Logger
	now     func() time.Time
	metrics *metrics.Metrics
}

// Open opens the bucket of the store. Opening is idempotent.
// The error wraps cache.ErrUnavailable if the storage cannot be opened.
func (s *Store) Open(ctx context.Context) (cache.Bucket, error) {
	b, err := s.storage.Open(ctx, s.name)
	if err != nil {
		s.log.Error().Err(err).Str("bucket", s.name).Msg("Could not open cache bucket")
		return nil, err
	}
	return b, nil
}

// Lookup returns the entry stored for url, or nil if there is none.
// Whether the entry is still fresh is up to the caller.
func (s *Store) Lookup(ctx context.Context, url string) (*serializer.StoredResponse, error) {
	key, err := cachekey.Key(url)
	if err != nil {
		return nil, err
	}
	b, err := s.Open(ctx)
	if err != nil {
		s.metrics.Lookup(metrics.Error)
		return nil, err
	}
	value, found, err := b.Get(ctx, key)
	if err != nil {
		s.metrics.Lookup(metrics.Error)
		return nil, err
	}
	if !found {
		s.log.Trace().Str("key", key).Msg("Not in cache")
		s.metrics.Lookup(metrics.Miss)
		return nil, nil
	}
	sRes, err := serializer.BytesToStoredResponse(value)
	if err != nil {
		s.metrics.Lookup(metrics.Error)
		return nil, fmt.Errorf("%w: %w", cache.ErrRead, err)
	}
	if isExpired(&sRes, s.now()) {
		s.metrics.Lookup(metrics.Stale)
	} else {
		s.metrics.Lookup(metrics.Hit)
	}
	return &sRes, nil
}

// Put stores a new snapshot of res under url, stamped with the current time.
// Any capture marker the response already carries is replaced.
// The body of res is consumed.
func (s *Store) Put(ctx context.Context, url string, res *http.Response) error {
	err := s.put(ctx, url, res)
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("Could not store response")
		s.metrics.Write(metrics.WriteError)
		return err
	}
	s.metrics.Write(metrics.WriteOK)
	return nil
}

func (s *Store) put(ctx context.Context, url string, res *http.Response) error {
	sRes, err := serializer.FromResponse(res, s.now())
	if err != nil {
		return fmt.Errorf("%w: %w", cache.ErrWrite, err)
	}
	key, err := cachekey.Key(url)
	if err != nil {
		return err
	}
	value, err := serializer.StoredResponseToBytes(sRes)
	if err != nil {
		return fmt.Errorf("%w: %w", cache.ErrWrite, err)
	}
	b, err := s.Open(ctx)
	if err != nil {
		return err
	}
	s.log.Debug().Str("key", key).Msg("++ storing url in cache")
	return b.Put(ctx, key, value)
}

// isExpired reports whether the entry must be re-fetched.
// A missing entry is always expired.
func isExpired(entry *serializer.StoredResponse, now time.Time) bool {
	if entry == nil {
		return true
	}
	return freshness.IsExpired(entry.CapturedAt, now)
}
