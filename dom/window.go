package dom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

const (
	// EventLoad fires after a native navigation has loaded a new document.
	EventLoad = "DOMContentLoaded"
	// EventPopState fires when the active history entry changes through Back or Forward.
	EventPopState = "popstate"
)

// Window hosts a Page: it keeps track of the location, the session history
// and the scroll position, and performs native (full document) navigations.
type Window struct {
	mutex       sync.Mutex
	page        *Page
	client      *http.Client
	log         zerolog.Logger
	history     []*url.URL
	index       int
	scrollX     int
	scrollY     int
	handlers    map[string][]func()
	navigations int
}

// NewWindow creates a window with an empty page.
// The client is used for native navigations; http.DefaultClient is used if nil.
// A console logger is used if logger is nil.
func NewWindow(client *http.Client, logger *zerolog.Logger) *Window {
	if client == nil {
		client = http.DefaultClient
	}
	page, err := NewPage(bytes.NewReader(nil))
	if err != nil {
		panic(err)
	}
	w := &Window{
		page:     page,
		client:   client,
		index:    -1,
		handlers: make(map[string][]func()),
	}
	if logger == nil {
		w.log = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		w.log = *logger
	}
	return w
}

// Page returns the document of the window.
// The same Page is reused (reloaded) across native navigations.
func (w *Window) Page() *Page {
	return w.page
}

// AddEventListener registers a handler for a window event (EventLoad or EventPopState).
func (w *Window) AddEventListener(event string, fn func()) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.handlers[event] = append(w.handlers[event], fn)
}

func (w *Window) dispatch(event string) {
	w.mutex.Lock()
	handlers := append([]func(){}, w.handlers[event]...)
	w.mutex.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// Location returns the URL of the active history entry.
func (w *Window) Location() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.index < 0 {
		return ""
	}
	return w.history[w.index].String()
}

func (w *Window) location() *url.URL {
	if w.index < 0 {
		return nil
	}
	return w.history[w.index]
}

// History returns the URLs of all session history entries.
func (w *Window) History() []string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	entries := make([]string, 0, len(w.history))
	for _, u := range w.history {
		entries = append(entries, u.String())
	}
	return entries
}

// Navigations returns the number of native navigations performed by the window.
func (w *Window) Navigations() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.navigations
}

// Scroll returns the current scroll position.
func (w *Window) Scroll() (int, int) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.scrollX, w.scrollY
}

// ScrollTo sets the scroll position.
func (w *Window) ScrollTo(x, y int) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.scrollX, w.scrollY = x, y
}

// PushState adds a history entry for rawURL without loading anything.
// Relative URLs are resolved against the current location.
func (w *Window) PushState(rawURL string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	u, err := w.resolve(rawURL)
	if err != nil {
		w.log.Error().Err(err).Str("url", rawURL).Msg("Could not push history state")
		return
	}
	w.push(u)
}

func (w *Window) push(u *url.URL) {
	w.history = append(w.history[:w.index+1], u)
	w.index = len(w.history) - 1
}

func (w *Window) resolve(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if loc := w.location(); loc != nil {
		u = loc.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("Cannot navigate to relative url without location: %s", rawURL)
	}
	return u, nil
}

// Open performs a native navigation to rawURL: the document is fetched and loaded,
// a history entry is added (or replaced, if the URL is the current location)
// and the load event fires.
func (w *Window) Open(ctx context.Context, rawURL string) error {
	w.mutex.Lock()
	u, err := w.resolve(rawURL)
	w.mutex.Unlock()
	if err != nil {
		return err
	}

	w.log.Debug().Str("url", u.String()).Msg("Native navigation")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	res, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if err := w.page.Load(bytes.NewReader(body)); err != nil {
		return err
	}

	w.mutex.Lock()
	if loc := w.location(); loc != nil && loc.String() == u.String() {
		w.history[w.index] = u
	} else {
		w.push(u)
	}
	w.scrollX, w.scrollY = 0, 0
	w.navigations++
	w.mutex.Unlock()

	w.dispatch(EventLoad)
	return nil
}

// Assign is the equivalent of setting location.href: a native navigation whose failure is only logged.
func (w *Window) Assign(ctx context.Context, rawURL string) {
	if err := w.Open(ctx, rawURL); err != nil {
		w.log.Error().Err(err).Str("url", rawURL).Msg("Native navigation failed")
	}
}

// Back moves to the previous history entry and fires the popstate event.
// The document is not reloaded by the window itself.
func (w *Window) Back() {
	w.traverse(-1)
}

// Forward moves to the next history entry and fires the popstate event.
func (w *Window) Forward() {
	w.traverse(1)
}

func (w *Window) traverse(delta int) {
	w.mutex.Lock()
	next := w.index + delta
	if next < 0 || next >= len(w.history) {
		w.mutex.Unlock()
		return
	}
	w.index = next
	w.mutex.Unlock()
	w.dispatch(EventPopState)
}

// Click dispatches a click on the node. If no listener prevents the default action
// and the node is (inside) a link, the window navigates natively to the link target.
func (w *Window) Click(ctx context.Context, n *html.Node) *Event {
	evt := w.page.Click(n)
	if evt.DefaultPrevented() {
		return evt
	}
	w.mutex.Lock()
	target, ok := Href(w.location(), n)
	w.mutex.Unlock()
	if ok {
		w.Assign(ctx, target.String())
	}
	return evt
}
