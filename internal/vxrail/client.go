package vxrail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// APIPrefix is the path prefix of the VxRail Manager REST API.
	APIPrefix = "/rest/vxm"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit caps requests per second against one manager.
	DefaultRateLimit = 10.0

	// maxBodyBytes bounds how much of a response body is read.
	maxBodyBytes = 32 << 20

	// maxExcerpt bounds the body excerpt carried in error messages.
	maxExcerpt = 200
)

// Observer is notified after every call. Used for metrics.
type Observer interface {
	ObserveCall(call Call, err error, elapsed time.Duration)
}

// Client is a rate-limited, Basic-authenticated client for one VxRail Manager.
// It is safe for concurrent use and never retries on its own.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	creds      Credentials
	baseURL    string
	timeout    time.Duration
	verifyTLS  bool
	logger     *zap.Logger
	observer   Observer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithVerifyTLS enables or disables certificate verification. Verification
// is off by default because managers commonly present self-signed certificates.
func WithVerifyTLS(verify bool) ClientOption {
	return func(c *Client) {
		c.verifyTLS = verify
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRateLimit sets the maximum requests per second. Zero or less disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithHTTPClient sets a custom HTTP client (for testing). WithVerifyTLS has
// no effect on a custom client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the URL derived from the credentials' host (for testing).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a call observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a client for the manager named in creds.
func NewClient(creds Credentials, opts ...ClientOption) (*Client, error) {
	c := &Client{
		creds:   creds,
		timeout: DefaultTimeout,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == "" {
		base, err := BaseURL(creds.Host)
		if err != nil {
			return nil, err
		}
		c.baseURL = base
	}

	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		// Certificate checks follow the verify_tls setting.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !c.verifyTLS}
		c.httpClient = &http.Client{Transport: transport}
	}

	return c, nil
}

// BaseURL derives the API base URL from a host, IP or URL.
func BaseURL(host string) (string, error) {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return "", errors.New("VxRail Manager host is required")
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid VxRail Manager host %q: %w", host, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid VxRail Manager host %q", host)
	}

	path := strings.TrimSuffix(parsed.Path, "/")
	if !strings.HasSuffix(path, APIPrefix) {
		path += APIPrefix
	}

	return parsed.Scheme + "://" + parsed.Host + path, nil
}

// Host returns the manager host the client talks to.
func (c *Client) Host() string {
	return c.creds.Host
}

// Do performs one call and returns the raw JSON body.
func (c *Client) Do(ctx context.Context, call Call) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	body, status, err := c.do(ctx, call)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer.ObserveCall(call, err, elapsed)
	}

	if err != nil {
		c.logger.Debug("call failed",
			zap.String("call", call.String()),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("class", Class(err)),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("call ok",
		zap.String("call", call.String()),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
		zap.Int("bytes", len(body)))
	return body, nil
}

// GetJSON performs a GET and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.Do(ctx, Get(path))
	if err != nil {
		return err
	}
	return Decode(body, out)
}

func (c *Client) do(ctx context.Context, call Call) (json.RawMessage, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding %s body: %w", call, err)
		}
		reader = bytes.NewReader(data)
	}

	path := call.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(reqCtx, call.Method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request %s: %w", call, err)
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Secret)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError(ctx, reqCtx, call, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, classifyTransportError(ctx, reqCtx, call, err)
	}

	if resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Method:     call.Method,
			Path:       path,
			Message:    excerpt(data),
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s: empty body", ErrMalformed, call)
	}
	if !json.Valid(trimmed) {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s: %q", ErrMalformed, call, excerpt(trimmed))
	}

	return json.RawMessage(trimmed), resp.StatusCode, nil
}

// classifyTransportError maps a failed round trip to an error class. A
// cancelled or expired caller context is returned as-is.
func classifyTransportError(parent, reqCtx context.Context, call Call, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}

	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimedOut, call)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimedOut, call)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return fmt.Errorf("%w: %s: %v", ErrUnreachable, call, err)
}

// Decode unmarshals a response body, reporting failures as ErrMalformed.
func Decode(body json.RawMessage, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func excerpt(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxExcerpt {
		return s[:maxExcerpt-3] + "..."
	}
	return s
}
