package tee

import (
	"bytes"
	"io"
	"net/http"
)

// Clone buffers the body of res and returns a copy of the response with its own body.
// When it returns, the body of res will be rewound to the beginning,
// so both responses can be read (and closed) independently.
func Clone(res *http.Response) (*http.Response, error) {
	clone := new(http.Response)
	*clone = *res
	clone.Header = res.Header.Clone()
	if res.Body == nil || res.Body == http.NoBody {
		return clone, nil
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	// set response body back
	res.Body = io.NopCloser(bytes.NewReader(b))
	clone.Body = io.NopCloser(bytes.NewReader(bytes.Clone(b)))
	return clone, nil
}
