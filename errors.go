package switcher

import "errors"

var (
	// ErrFetchTransport is returned when a page could not be fetched at all.
	ErrFetchTransport = errors.New("fetch failed")
	// ErrFetchStatus is returned when a fetched page has a non-2xx status.
	ErrFetchStatus = errors.New("fetch returned unsuccessful status")
	// ErrContentShape is returned when a page has no main content region to swap.
	ErrContentShape = errors.New("page has no main content region")
	// ErrInvalidLink is returned when a clicked link cannot be resolved to a URL.
	ErrInvalidLink = errors.New("link cannot be resolved")
)
