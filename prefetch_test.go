package switcher

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericselin/switcher/cache"
	"github.com/ericselin/switcher/metrics"
)

func TestPrefetchOnlyMissingOrExpired(t *testing.T) {
	ctx := context.Background()
	s := newSite(t)
	s.handle("/links", http.StatusOK, page("Links", `<a href="/x">X</a><a href="/y">Y</a><a href="/z">Z</a>`))
	for _, p := range []string{"/x", "/y", "/z"} {
		s.handle(p, http.StatusOK, page(p, "<p>content</p>"))
	}
	f := newFixture(t, s, Config{})

	store := f.sw.Store()
	require.NoError(t, store.Put(ctx, s.url("/z"), htmlResponse("old z")))
	f.clock.Advance(3 * 24 * time.Hour)
	require.NoError(t, store.Put(ctx, s.url("/x"), htmlResponse("x")))
	require.NoError(t, store.Put(ctx, s.url("/y"), htmlResponse("y")))

	f.open(t, "/links")

	assert.Equal(t, 0, s.fetchCount("/x"))
	assert.Equal(t, 0, s.fetchCount("/y"))
	assert.Equal(t, 1, s.fetchCount("/z"))

	entry, err := store.Lookup(ctx, s.url("/z"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Contains(t, string(entry.Body), "<p>content</p>")
	assert.True(t, entry.CapturedAt.Equal(f.clock.Now()))
}

func TestPrefetchFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newSite(t)
	s.handle("/links", http.StatusOK, page("Links", `<a href="/one">1</a><a href="/broken">!</a><a href="/two">2</a><a href="/down">?</a>`))
	s.handle("/one", http.StatusOK, page("One", "1"))
	s.handle("/broken", http.StatusInternalServerError, page("Error", "oops"))
	s.handle("/two", http.StatusOK, page("Two", "2"))
	f := newFixture(t, s, Config{
		Client: &http.Client{Transport: failingTransport{path: "/down"}},
	})

	f.open(t, "/links")

	store := f.sw.Store()
	for _, p := range []string{"/one", "/two"} {
		entry, err := store.Lookup(ctx, s.url(p))
		require.NoError(t, err)
		assert.NotNil(t, entry, "%s should be cached", p)
	}
	for _, p := range []string{"/broken", "/down"} {
		entry, err := store.Lookup(ctx, s.url(p))
		require.NoError(t, err)
		assert.Nil(t, entry, "%s should not be cached", p)
	}
	assert.Equal(t, 1, s.fetchCount("/broken"))
	m := f.sw.store.metrics
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.OriginPrefetch, metrics.FetchOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.OriginPrefetch, metrics.FetchStatus)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.OriginPrefetch, metrics.FetchTransport)))
}

func TestPrefetchWholePageOnEveryActivation(t *testing.T) {
	s := newSite(t)
	s.handle("/links", http.StatusOK, page("Links", `<a href="/x">X</a>`))
	s.handle("/x", http.StatusOK, page("X", "x"))
	f := newFixture(t, s, Config{})

	f.open(t, "/links")
	assert.Equal(t, 1, s.fetchCount("/x"))

	// a fresh entry is not fetched again
	f.sw.Activate(nil)
	f.sw.Wait()
	assert.Equal(t, 1, s.fetchCount("/x"))

	f.clock.Advance(3 * 24 * time.Hour)
	f.sw.Activate(f.window.Page().Main())
	f.sw.Wait()
	assert.Equal(t, 2, s.fetchCount("/x"))
}

func TestPrefetchStoreUnavailable(t *testing.T) {
	s := newSite(t)
	s.handle("/links", http.StatusOK, page("Links", `<a href="/x">X</a>`))
	s.handle("/x", http.StatusOK, page("X", "x"))
	f := newFixture(t, s, Config{
		Storage: cache.NewSQLiteStorage(filepath.Join(t.TempDir(), "missing", "cache.db")),
	})

	f.open(t, "/links")
	assert.Equal(t, 0, s.fetchCount("/x"))
}

// unreadableStorage fails every Get of its buckets with cache.ErrRead.
type unreadableStorage struct {
	cache.Storage
}

func (u unreadableStorage) Open(ctx context.Context, name string) (cache.Bucket, error) {
	b, err := u.Storage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return unreadableBucket{Bucket: b}, nil
}

type unreadableBucket struct {
	cache.Bucket
}

func (unreadableBucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("%w: disk", cache.ErrRead)
}

func TestPrefetchReadErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	s := newSite(t)
	s.handle("/links", http.StatusOK, page("Links", `<a href="/x">X</a>`))
	s.handle("/x", http.StatusOK, page("X", "x"))
	memory := cache.NewMemoryStorage()
	f := newFixture(t, s, Config{Storage: unreadableStorage{Storage: memory}})

	f.open(t, "/links")

	assert.Equal(t, 1, s.fetchCount("/x"))
	b, err := memory.Open(ctx, DefaultBucket)
	require.NoError(t, err)
	_, found, err := b.Get(ctx, s.url("/x"))
	require.NoError(t, err)
	assert.True(t, found, "fetched page is stored")
	m := f.sw.store.metrics
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Lookups.WithLabelValues(metrics.Error)))
}
