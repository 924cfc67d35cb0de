package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericselin/switcher/pkg/freshness"
)

// StoredResponse is a snapshot of an HTTP response as kept in the cache bucket.
type StoredResponse struct {
	StatusCode int
	StatusText string
	Header     http.Header
	Body       []byte
	// The value of the clock when the response was captured.
	// Zero if the stored bytes carried no (valid) capture marker.
	CapturedAt time.Time
}

// Response returns a new http.Response with its own copy of the body.
func (s StoredResponse) Response() *http.Response {
	body := bytes.Clone(s.Body)
	header := s.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        statusLine(s.StatusCode, s.StatusText),
		StatusCode:    s.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// FromResponse reads the whole body of res and returns a snapshot captured at capturedAt.
// The body of res is consumed and closed.
func FromResponse(res *http.Response, capturedAt time.Time) (StoredResponse, error) {
	sRes := StoredResponse{
		StatusCode: res.StatusCode,
		StatusText: statusText(res),
		Header:     res.Header.Clone(),
		CapturedAt: capturedAt,
	}
	if sRes.Header == nil {
		sRes.Header = http.Header{}
	}
	if res.Body == nil {
		return sRes, nil
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return sRes, err
	}
	sRes.Body = body
	return sRes, nil
}

// StoredResponseToBytes returns the HTTP/1.1 representation of the stored response.
// The capture time is written as the capture marker header, replacing any marker
// already present in the headers.
func StoredResponseToBytes(sRes StoredResponse) ([]byte, error) {
	res := sRes.Response()
	res.Header.Del(freshness.Header)
	if !sRes.CapturedAt.IsZero() {
		res.Header.Set(freshness.Header, freshness.FormatMarker(sRes.CapturedAt))
	}
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BytesToStoredResponse parses bytes written by StoredResponseToBytes
// (or by any other writer producing an HTTP/1.1 response).
// The capture marker is moved from the headers to CapturedAt.
func BytesToStoredResponse(b []byte) (StoredResponse, error) {
	sRes := StoredResponse{}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return sRes, fmt.Errorf("could not read stored response: %w", err)
	}
	sRes, err = FromResponse(res, freshness.ParseMarker(res.Header.Get(freshness.Header)))
	if err != nil {
		return sRes, fmt.Errorf("could not read stored response body: %w", err)
	}
	// delete extra headers
	sRes.Header.Del(freshness.Header)
	return sRes, nil
}

// statusText gets the reason phrase from e.g. "404 Not Found".
func statusText(res *http.Response) string {
	if text, found := strings.CutPrefix(res.Status, strconv.Itoa(res.StatusCode)+" "); found {
		return text
	}
	if res.Status != "" && res.Status != strconv.Itoa(res.StatusCode) {
		return res.Status
	}
	return http.StatusText(res.StatusCode)
}

func statusLine(code int, text string) string {
	if text == "" {
		text = http.StatusText(code)
	}
	if text == "" {
		// let http.Response.Write pick the status text
		return ""
	}
	return strconv.Itoa(code) + " " + text
}
