package switcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/ericselin/switcher/cache"
	"github.com/ericselin/switcher/dom"
)

// site is a test origin counting requests per path.
// Native navigations (from the window) are counted separately from fetches.
type site struct {
	srv         *httptest.Server
	mutex       sync.Mutex
	responses   map[string]siteResponse
	fetches     map[string]int
	navigations map[string]int
}

type siteResponse struct {
	status int
	body   string
}

func newSite(t *testing.T) *site {
	s := &site{
		responses:   make(map[string]siteResponse),
		fetches:     make(map[string]int),
		navigations: make(map[string]int),
	}
	r := chi.NewRouter()
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
			s.navigations[r.URL.Path]++
		} else {
			s.fetches[r.URL.Path]++
		}
		res, ok := s.responses[r.URL.Path]
		s.mutex.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(res.status)
		io.WriteString(w, res.body)
	})
	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

// page returns a document with a header outside the main content region.
func page(title, main string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<header><span id="site">Site</span></header>
<main>%s</main>
</body>
</html>`, title, main)
}

func (s *site) handle(path string, status int, body string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.responses[path] = siteResponse{status: status, body: body}
}

func (s *site) url(path string) string {
	return s.srv.URL + path
}

func (s *site) fetchCount(path string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.fetches[path]
}

func (s *site) navigationCount(path string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.navigations[path]
}

// navigateTransport marks requests as native navigations.
type navigateTransport struct{}

func (navigateTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Sec-Fetch-Mode", "navigate")
	return http.DefaultTransport.RoundTrip(r)
}

// failingTransport fails every request for the given path.
type failingTransport struct {
	path string
}

func (f failingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.URL.Path == f.path {
		return nil, fmt.Errorf("connection refused")
	}
	return http.DefaultTransport.RoundTrip(r)
}

type clock struct {
	mutex sync.Mutex
	t     time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	site     *site
	window   *dom.Window
	sw       *Switcher
	clock    *clock
	mutex    sync.Mutex
	outcomes []Outcome
}

// newFixture creates a window and a switcher for the site.
// Unset fields of config get test defaults.
func newFixture(t *testing.T, s *site, config Config) *fixture {
	logger := zerolog.Nop()
	f := &fixture{
		site:   s,
		window: dom.NewWindow(&http.Client{Transport: navigateTransport{}}, &logger),
		clock:  newClock(),
	}
	config.Window = f.window
	if config.Logger == nil {
		config.Logger = &logger
	}
	if config.Now == nil {
		config.Now = f.clock.Now
	}
	config.OnNavigate = func(o Outcome) {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		f.outcomes = append(f.outcomes, o)
	}
	f.sw = New(config)
	t.Cleanup(func() { f.sw.Close() })
	return f
}

func (f *fixture) open(t *testing.T, path string) {
	require.NoError(t, f.window.Open(context.Background(), f.site.url(path)))
	f.sw.Wait()
}

func (f *fixture) click(t *testing.T, href string) *dom.Event {
	evt := f.window.Click(context.Background(), link(t, f.window.Page(), href))
	f.sw.Wait()
	return evt
}

func (f *fixture) recorded() []Outcome {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]Outcome{}, f.outcomes...)
}

func link(t *testing.T, p *dom.Page, href string) *html.Node {
	for _, a := range p.Links(nil) {
		if a.Href == href {
			return a.Node
		}
	}
	t.Fatalf("No link to %s on page", href)
	return nil
}

func htmlResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// countingStorage counts the writes per key of the buckets it opens.
type countingStorage struct {
	cache.Storage
	mutex  sync.Mutex
	writes map[string]int
}

func newCountingStorage() *countingStorage {
	return &countingStorage{
		Storage: cache.NewMemoryStorage(),
		writes:  make(map[string]int),
	}
}

func (c *countingStorage) Open(ctx context.Context, name string) (cache.Bucket, error) {
	b, err := c.Storage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBucket{Bucket: b, storage: c}, nil
}

func (c *countingStorage) writeCount(key string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.writes[key]
}

type countingBucket struct {
	cache.Bucket
	storage *countingStorage
}

func (b *countingBucket) Put(ctx context.Context, key string, value []byte) error {
	b.storage.mutex.Lock()
	b.storage.writes[key]++
	b.storage.mutex.Unlock()
	return b.Bucket.Put(ctx, key, value)
}
