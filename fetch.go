package switcher

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ericselin/switcher/metrics"
)

// fetch GETs url. Transport failures wrap ErrFetchTransport
// and non-2xx responses wrap ErrFetchStatus (their body is closed).
func fetch(ctx context.Context, client *http.Client, m *metrics.Metrics, origin, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		m.Fetch(origin, metrics.FetchTransport)
		return nil, fmt.Errorf("%w: %w", ErrFetchTransport, err)
	}
	res, err := client.Do(req)
	if err != nil {
		m.Fetch(origin, metrics.FetchTransport)
		return nil, fmt.Errorf("%w: %w", ErrFetchTransport, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		res.Body.Close()
		m.Fetch(origin, metrics.FetchStatus)
		return nil, fmt.Errorf("%w: %s", ErrFetchStatus, res.Status)
	}
	m.Fetch(origin, metrics.FetchOK)
	return res, nil
}
