// Package switcher performs soft navigation over a multi-page site:
// clicks on internal links swap the main content region of the page in place,
// using a freshness-bounded response cache that is kept warm by prefetching
// every internal link on the page.
package switcher

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/ericselin/switcher/cache"
	"github.com/ericselin/switcher/dom"
	"github.com/ericselin/switcher/metrics"
)

type Config struct {
	// Storage for the cache bucket. An in-memory storage is used if nil.
	Storage cache.Storage
	// Name of the cache bucket. Defaults to DefaultBucket.
	Bucket string
	// Client for fetching pages. http.DefaultClient is used if nil.
	Client *http.Client
	// Window hosting the page. Required.
	Window Window
	// Page to operate on. If nil, the page of the window is used,
	// provided the window has a Page method (like dom.Window).
	Page *dom.Page
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Registerer for the metrics. Metrics are not registered if nil.
	Registerer prometheus.Registerer
	// Clock. time.Now is used if nil.
	Now func() time.Time
	// Optional function called with the outcome of every intercepted click.
	OnNavigate func(Outcome)
}

// Switcher wires the store, the prefetcher and the interceptor to a page and its window.
type Switcher struct {
	page        *dom.Page
	window      Window
	store       *Store
	prefetcher  *Prefetcher
	interceptor *Interceptor
	background  *background
	log         zerolog.Logger
	ctx         context.Context
}

// New creates a switcher and registers it with the window:
// the whole page is activated on every load,
// and history traversal (back/forward) always reloads the page natively.
func New(config Config) *Switcher {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	storage := config.Storage
	if storage == nil {
		storage = cache.NewMemoryStorage()
	}
	bucket := config.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	client := config.Client
	if client == nil {
		client = http.DefaultClient
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	page := config.Page
	if page == nil {
		if w, ok := config.Window.(interface{ Page() *dom.Page }); ok {
			page = w.Page()
		}
	}

	m := metrics.New(config.Registerer)
	bg := &background{log: logger}
	ctx := context.Background()

	s := &Switcher{
		page:       page,
		window:     config.Window,
		background: bg,
		log:        logger,
		ctx:        ctx,
	}
	s.store = &Store{
		storage: storage,
		name:    bucket,
		log:     logger.With().Str("bucket", bucket).Logger(),
		now:     now,
		metrics: m,
	}
	s.prefetcher = &Prefetcher{
		store:      s.store,
		client:     client,
		location:   config.Window.Location,
		log:        logger.With().Str("component", "prefetch").Logger(),
		metrics:    m,
		background: bg,
	}
	s.interceptor = &Interceptor{
		bound:      make(map[*html.Node]struct{}),
		page:       page,
		window:     config.Window,
		store:      s.store,
		client:     client,
		log:        logger.With().Str("component", "interceptor").Logger(),
		metrics:    m,
		background: bg,
		ctx:        ctx,
		activate:   s.Activate,
		outcomes:   config.OnNavigate,
	}

	config.Window.AddEventListener(dom.EventLoad, func() {
		s.Activate(nil)
	})
	config.Window.AddEventListener(dom.EventPopState, func() {
		location := s.window.Location()
		s.log.Debug().Str("url", location).Msg("History traversal, reloading")
		s.window.Assign(s.ctx, location)
	})
	return s
}

// Activate binds the links inside scope (the whole page if nil)
// and prefetches the links of the whole page.
func (s *Switcher) Activate(scope *html.Node) {
	s.interceptor.Bind(scope)
	s.prefetcher.PrefetchAll(s.ctx, s.page)
}

// Navigate performs a soft navigation to target, as if an internal link to it was clicked.
func (s *Switcher) Navigate(ctx context.Context, target string) Outcome {
	return s.interceptor.Navigate(ctx, target)
}

// Store returns the timestamped store used by the switcher.
func (s *Switcher) Store() *Store {
	return s.store
}

// Wait blocks until all background work (prefetches, cache writes and click resolutions) has finished.
func (s *Switcher) Wait() {
	s.background.Wait()
}

// Close waits for background work and closes the storage.
func (s *Switcher) Close() error {
	s.Wait()
	return s.store.storage.Close()
}
