package cachekey

import (
	"fmt"
	"net/url"
	"strings"
)

// ErrorNotInternal is returned when a link does not point into the current site.
var ErrorNotInternal = fmt.Errorf("Link is not internal")

// IsInternal reports whether href is root-relative, i.e. a path starting at the site root.
// Protocol-relative references (`//host/path`) point to other origins and are not internal.
func IsInternal(href string) bool {
	return strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//")
}

// Resolve returns the absolute URL of an internal link, resolved against the
// location of the page it appears on.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	if !IsInternal(href) {
		return nil, ErrorNotInternal
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

// Key returns the cache key for an absolute URL.
// Keys are matched exactly, and the fragment is never part of the key.
func Key(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("Cache key must be an absolute URL: %s", rawURL)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
