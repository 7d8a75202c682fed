// Package transport performs single outbound API calls with a bounded
// timeout and converts failures into the typed apierr taxonomy. The
// adapter is stateless and never retries: retry policy belongs to the
// fetch coordinator.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/builtwitharvadai/autoselect-querycache/apierr"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
)

// DefaultTimeout bounds one network call when no per-adapter timeout is
// configured.
const DefaultTimeout = 30 * time.Second

// Adapter executes API requests against one backend base URL.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	headers    map[string]string
	log        *logger.CtxZapLogger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client (tests, custom
// transports).
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.httpClient = c
		}
	}
}

// WithDefaultHeader sets a header applied to every request unless the
// request overrides it.
func WithDefaultHeader(key, value string) Option {
	return func(a *Adapter) {
		a.headers[key] = value
	}
}

// WithLogger attaches a logger.
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(a *Adapter) {
		a.log = log
	}
}

// NewAdapter creates a transport adapter for the given base URL.
func NewAdapter(baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		timeout:    DefaultTimeout,
		headers:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute performs exactly one network call. A non-2xx status becomes a
// typed apierr carrying the HTTP status and any machine code/message
// found in the body. Timeouts are reported distinctly from connectivity
// failures.
func (a *Adapter) Execute(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	for k, v := range a.headers {
		if _, exists := req.Headers[k]; !exists {
			req.Headers[k] = v
		}
	}

	httpReq, err := req.build(a.baseURL)
	if err != nil {
		return nil, apierr.Parse(err).WithMsgf("Invalid request")
	}
	httpReq = httpReq.WithContext(ctx)

	start := time.Now()
	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, a.classify(ctx, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, a.classify(ctx, err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}

	if !resp.IsSuccess() {
		apiErr := apierr.FromResponse(resp.StatusCode, resp.Body)
		if a.log != nil {
			a.log.DebugCtx(ctx, "request failed",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Int("status", resp.StatusCode),
				zap.String("code", apiErr.Code()),
			)
		}
		return resp, apiErr
	}

	return resp, nil
}

// ExecuteJSON performs the call and decodes a successful body into out.
func (a *Adapter) ExecuteJSON(ctx context.Context, req *Request, out any) error {
	resp, err := a.Execute(ctx, req)
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

// classify maps a client-level error onto the apierr taxonomy. Deadline
// expiry (ours or the request's own) is a timeout; everything else at
// this layer is a connectivity failure.
func (a *Adapter) classify(ctx context.Context, err error) *apierr.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apierr.Timeout().Wrap(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apierr.Timeout().Wrap(err)
	}
	return apierr.Network(err)
}
