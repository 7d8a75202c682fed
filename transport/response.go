package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/builtwitharvadai/autoselect-querycache/apierr"
)

// Response is a fully read API response. The body is buffered so the
// caller never touches the network connection.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// IsSuccess reports whether the status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v. A failed decode is a parse failure, not
// a transport failure.
func (r *Response) JSON(v any) error {
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apierr.Parse(err)
	}
	return nil
}

// String returns the body as a string.
func (r *Response) String() string {
	return string(r.Body)
}
