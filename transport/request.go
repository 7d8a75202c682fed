package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request is one outbound API call description.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   url.Values

	bodyBytes []byte
	buildErr  error
}

// NewRequest creates a Request for the given method and resource path.
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(map[string]string),
		Query:   make(url.Values),
	}
}

// Get creates a GET request.
func Get(path string) *Request {
	return NewRequest(http.MethodGet, path)
}

// Post creates a POST request.
func Post(path string) *Request {
	return NewRequest(http.MethodPost, path)
}

// Put creates a PUT request.
func Put(path string) *Request {
	return NewRequest(http.MethodPut, path)
}

// Delete creates a DELETE request.
func Delete(path string) *Request {
	return NewRequest(http.MethodDelete, path)
}

// WithHeader sets a header.
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithQuery adds one query parameter.
func (r *Request) WithQuery(key, value string) *Request {
	r.Query.Set(key, value)
	return r
}

// WithQueryValues merges a set of query parameters.
func (r *Request) WithQueryValues(values url.Values) *Request {
	for k, vs := range values {
		for _, v := range vs {
			r.Query.Add(k, v)
		}
	}
	return r
}

// WithJSON marshals data as the JSON request body.
func (r *Request) WithJSON(data any) *Request {
	raw, err := json.Marshal(data)
	if err != nil {
		// Surfaced when the request is built.
		r.buildErr = err
		return r
	}
	r.bodyBytes = raw
	r.Headers["Content-Type"] = "application/json"
	return r
}

// build assembles the http.Request against the adapter's base URL.
func (r *Request) build(baseURL string) (*http.Request, error) {
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	full := r.Path
	if baseURL != "" && !strings.HasPrefix(r.Path, "http://") && !strings.HasPrefix(r.Path, "https://") {
		full = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(r.Path, "/")
	}

	var body io.Reader
	if r.bodyBytes != nil {
		body = bytes.NewReader(r.bodyBytes)
	}

	httpReq, err := http.NewRequest(r.Method, full, body)
	if err != nil {
		return nil, err
	}

	if len(r.Query) > 0 {
		q := httpReq.URL.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	for k, v := range r.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}
