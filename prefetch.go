package switcher

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/ericselin/switcher/dom"
	"github.com/ericselin/switcher/metrics"
	cachekey "github.com/ericselin/switcher/pkg/cache-key"
)

// Prefetcher warms the store with the pages linked from the current page.
type Prefetcher struct {
	store      *Store
	client     *http.Client
	location   func() string
	log        zerolog.Logger
	metrics    *metrics.Metrics
	background *background
}

// PrefetchAll starts a prefetch for every internal link of the whole page and returns immediately.
// Links whose entry is missing or expired are fetched and, if successful, stored.
// Errors are only logged.
func (p *Prefetcher) PrefetchAll(ctx context.Context, page *dom.Page) {
	if _, err := p.store.Open(ctx); err != nil {
		// nothing could be stored anyway
		return
	}
	base, err := url.Parse(p.location())
	if err != nil {
		p.log.Error().Err(err).Msg("Could not parse location")
		return
	}
	for _, a := range page.Links(nil) {
		target, err := cachekey.Resolve(base, a.Href)
		if err != nil {
			p.log.Warn().Err(err).Str("href", a.Href).Msg("Could not resolve link")
			continue
		}
		u := target.String()
		p.background.Go(func() {
			p.prefetch(ctx, u)
		})
	}
}

func (p *Prefetcher) prefetch(ctx context.Context, url string) {
	log := p.log.With().Str("url", url).Logger()
	entry, err := p.store.Lookup(ctx, url)
	if err != nil {
		log.Warn().Err(err).Msg("Cache match error, treating as miss")
		entry = nil
	}
	if !isExpired(entry, p.store.now()) {
		log.Debug().Msg("Already cached")
		return
	}
	res, err := fetch(ctx, p.client, p.metrics, metrics.OriginPrefetch, url)
	if err != nil {
		log.Error().Err(err).Msg("Failed to prefetch")
		return
	}
	if err := p.store.Put(ctx, url, res); err != nil {
		return
	}
	log.Debug().Msg("Prefetched and cached")
}
