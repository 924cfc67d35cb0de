package switcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/ericselin/switcher/dom"
	"github.com/ericselin/switcher/metrics"
	cachekey "github.com/ericselin/switcher/pkg/cache-key"
	tee "github.com/ericselin/switcher/pkg/response-tee"
)

// State is the state of a single intercepted navigation.
type State int

const (
	Idle State = iota
	Resolving
	Swapped
	FallbackNavigated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Swapped:
		return "swapped"
	case FallbackNavigated:
		return "fallback"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is the result of resolving one navigation.
type Outcome struct {
	URL   string
	State State
	// FromCache is true if the content came from a fresh cache entry.
	FromCache bool
	// Err is the reason for a fallback navigation.
	Err error
}

// Interceptor turns clicks on internal links into soft navigations:
// the main content region is swapped in place instead of loading a new document.
type Interceptor struct {
	mutex      sync.Mutex
	bound      map[*html.Node]struct{}
	page       *dom.Page
	window     Window
	store      *Store
	client     *http.Client
	log        zerolog.Logger
	metrics    *metrics.Metrics
	background *background
	// ctx is used for the resolutions started by clicks
	ctx context.Context
	// activate is called with the new main content region after a swap
	activate func(*html.Node)
	// outcomes, if set, receives the outcome of every click resolution
	outcomes func(Outcome)
}

// Bind attaches the click listener to every internal link inside scope
// (the whole page if nil) and returns the number of newly bound links.
// Links that are already bound are skipped.
func (i *Interceptor) Bind(scope *html.Node) int {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	for n := range i.bound {
		if !i.page.Attached(n) {
			delete(i.bound, n)
		}
	}
	count := 0
	for _, a := range i.page.Links(scope) {
		if _, ok := i.bound[a.Node]; ok {
			continue
		}
		i.bound[a.Node] = struct{}{}
		i.page.AddEventListener(a.Node, i.listener(a.Href))
		count++
	}
	i.log.Trace().Msgf("Bound %d links", count)
	return count
}

func (i *Interceptor) listener(href string) dom.Listener {
	return func(evt *dom.Event) {
		evt.PreventDefault()
		target, err := i.resolveLink(href)
		if err != nil {
			log := i.log.With().Str("href", href).Logger()
			i.background.Go(func() {
				i.report(i.fallback(i.ctx, log, Outcome{URL: href}, err))
			})
			return
		}
		i.background.Go(func() {
			i.report(i.Navigate(i.ctx, target))
		})
	}
}

// resolveLink returns the absolute URL of href, resolved against the current location.
func (i *Interceptor) resolveLink(href string) (string, error) {
	base, err := url.Parse(i.window.Location())
	if err != nil {
		return "", fmt.Errorf("%w: location: %w", ErrInvalidLink, err)
	}
	target, err := cachekey.Resolve(base, href)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLink, err)
	}
	return target.String(), nil
}

func (i *Interceptor) report(outcome Outcome) {
	if i.outcomes != nil {
		i.outcomes(outcome)
	}
}

// Navigate resolves the content for target and either swaps it into the page
// or, if that is not possible, falls back to a native navigation.
func (i *Interceptor) Navigate(ctx context.Context, target string) Outcome {
	log := i.log.With().
		Str("navigation", uuid.NewString()).
		Str("url", target).
		Logger()
	outcome := Outcome{URL: target, State: Resolving}
	log.Trace().Stringer("state", outcome.State).Msg("Resolving navigation")

	main, fromCache, err := i.swap(ctx, log, target)
	outcome.FromCache = fromCache
	if err != nil {
		return i.fallback(ctx, log, outcome, err)
	}

	i.window.PushState(target)
	i.window.ScrollTo(0, 0)
	outcome.State = Swapped
	log.Info().Bool("cached", fromCache).Stringer("state", outcome.State).Msg("Swapped main content")
	i.metrics.Navigation(metrics.Swapped)
	i.activate(main)
	return outcome
}

// fallback abandons the soft navigation and lets the window navigate natively to outcome.URL.
func (i *Interceptor) fallback(ctx context.Context, log zerolog.Logger, outcome Outcome, err error) Outcome {
	outcome.State = FallbackNavigated
	outcome.Err = err
	log.Warn().Err(err).Stringer("state", outcome.State).Msg("Falling back to native navigation")
	i.metrics.Navigation(metrics.Fallback)
	i.window.Assign(ctx, outcome.URL)
	return outcome
}

// swap gets the page body and replaces the main content region with the one from the body.
func (i *Interceptor) swap(ctx context.Context, log zerolog.Logger, target string) (*html.Node, bool, error) {
	body, fromCache, err := i.resolve(ctx, log, target)
	if err != nil {
		return nil, fromCache, err
	}
	inner, err := dom.ExtractMain(body)
	if err != nil {
		return nil, fromCache, fmt.Errorf("%w: %w", ErrContentShape, err)
	}
	main, err := i.page.ReplaceMain(inner)
	if err != nil {
		return nil, fromCache, fmt.Errorf("%w: current page: %w", ErrContentShape, err)
	}
	return main, fromCache, nil
}

// resolve returns the body of target, from a fresh cache entry if there is one.
// Fetched responses are stored in the background.
func (i *Interceptor) resolve(ctx context.Context, log zerolog.Logger, target string) ([]byte, bool, error) {
	entry, err := i.store.Lookup(ctx, target)
	if err != nil {
		log.Warn().Err(err).Msg("Cache lookup failed, using network")
		entry = nil
	}
	if !isExpired(entry, i.store.now()) {
		log.Debug().Msg("Using cached response")
		return entry.Body, true, nil
	}

	res, err := fetch(ctx, i.client, i.metrics, metrics.OriginNavigation, target)
	if err != nil {
		return nil, false, err
	}
	// the body of res is rewound by Clone
	clone, err := tee.Clone(res)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrFetchTransport, err)
	}
	i.background.Go(func() {
		i.store.Put(ctx, target, clone)
	})
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrFetchTransport, err)
	}
	return body, false, nil
}
