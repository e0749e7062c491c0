// Package client queries a gglsbl-rest service: the status endpoint and the
// URL lookup endpoint.
//
// # Usage Example
//
//	c := client.New("scanner.local", "5000", client.WithTimeout(5*time.Second))
//	res, err := c.Lookup(ctx, "http://example.com/")
//	if err != nil {
//	    // transport failure (DNS, connection refused, ...)
//	}
//	switch res.Outcome {
//	case client.Found:
//	    fmt.Println(res.Payload.JSON)
//	case client.Timeout:
//	    // the service did not answer in time
//	}
//
// A Client is safe for concurrent use. Every call returns its own Result;
// LastResponse only mirrors the most recent one for diagnostics.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"evalgo.org/gglsbl/internal/version"
)

const (
	// DefaultTimeout bounds every request when no WithTimeout option is given.
	DefaultTimeout = 10 * time.Second

	statusPath = "/gglsbl/status"
	lookupPath = "/gglsbl/lookup/"

	// maxBodySize is the largest response body accepted.
	maxBodySize = 4 << 20
)

var (
	// ErrNoEndpoint is returned when the client was built without a host or port.
	ErrNoEndpoint = errors.New("gglsbl client has no endpoint configured")

	// ErrMalformedBody is returned when a 200 response does not carry JSON.
	ErrMalformedBody = errors.New("malformed response body")

	// ErrBodyTooLarge is returned when a response body exceeds maxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")
)

// Client talks to a single gglsbl-rest service.
type Client struct {
	lookupURL  string
	statusURL  string
	tls        bool
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	mu   sync.Mutex
	last *Response
}

// Response is the raw status code and body of an HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

type options struct {
	tls         bool
	timeout     time.Duration
	ignoreProxy bool
	logger      *slog.Logger
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*options)

// WithTLS selects https and enables certificate verification.
func WithTLS(enabled bool) Option {
	return func(o *options) { o.tls = enabled }
}

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithIgnoreProxy makes the client connect directly, ignoring proxy
// environment variables.
func WithIgnoreProxy(ignore bool) Option {
	return func(o *options) { o.ignoreProxy = ignore }
}

// WithLogger sets the logger used for warnings and diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient replaces the HTTP client. Its Timeout is overwritten with
// the configured timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New creates a client for the service listening on host:port.
//
// host may already carry an http:// or https:// prefix, in which case it is
// used as the base URL as-is and port is ignored. When host or port is empty
// the client has no endpoints and every operation returns ErrNoEndpoint.
func New(host, port string, opts ...Option) *Client {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		tls:     o.tls,
		timeout: o.timeout,
		logger:  o.logger.With("component", "gglsbl-client"),
	}

	if base := buildBaseURL(host, port, o.tls); base != "" {
		c.lookupURL = base + lookupPath
		c.statusURL = base + statusPath
	}

	c.httpClient = o.httpClient
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: newTransport(o.tls, o.ignoreProxy)}
	}
	c.httpClient.Timeout = o.timeout

	c.logger.Debug("client configured", "lookup_url", c.lookupURL, "status_url", c.statusURL)
	return c
}

func buildBaseURL(host, port string, useTLS bool) string {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	if host == "" || port == "" {
		return ""
	}
	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	return scheme + "://" + host + ":" + port
}

// newTransport ties certificate verification to the TLS flag.
func newTransport(useTLS, ignoreProxy bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: !useTLS} //nolint:gosec
	if ignoreProxy {
		t.Proxy = nil
	}
	return t
}

// LookupURL returns the lookup endpoint prefix, or "" when unset.
func (c *Client) LookupURL() string { return c.lookupURL }

// StatusURL returns the status endpoint, or "" when unset.
func (c *Client) StatusURL() string { return c.statusURL }

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// LastResponse returns the most recent HTTP response, or nil if no request
// has received one yet.
func (c *Client) LastResponse() *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Lookup asks the service to classify rawURL.
//
// A timeout is reported as a Timeout outcome with a nil error. Any other
// transport failure is returned as an error.
func (c *Client) Lookup(ctx context.Context, rawURL string) (*Result, error) {
	if c.lookupURL == "" {
		return nil, ErrNoEndpoint
	}
	if !IsValidURL(rawURL) {
		c.logger.Warn("provided URL does not appear valid", "url", rawURL)
	}

	encoded := EncodeURL(rawURL)
	c.logger.Debug("looking up url", "url", rawURL, "encoded", encoded)

	resp, err := c.query(ctx, c.lookupURL+encoded)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &Result{Outcome: Timeout}, nil
	}

	switch resp.StatusCode {
	case http.StatusOK:
		payload, err := decodeJSON(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", rawURL, err)
		}
		return newResult(Found, resp, payload), nil
	case http.StatusNotFound:
		payload, err := decodeJSON(resp.Body)
		if err != nil {
			payload = TextPayload(string(resp.Body))
		}
		return newResult(NotFound, resp, payload), nil
	default:
		c.logger.Error("unexpected result from server", "status", resp.StatusCode, "body", string(resp.Body))
		return newResult(Error, resp, Payload{}), nil
	}
}

// ServiceStatus fetches the service status document. Timeouts are handled
// the same way as in Lookup.
func (c *Client) ServiceStatus(ctx context.Context) (*Result, error) {
	if c.statusURL == "" {
		return nil, ErrNoEndpoint
	}

	resp, err := c.query(ctx, c.statusURL)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &Result{Outcome: Timeout}, nil
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("unexpected result from server", "status", resp.StatusCode, "body", string(resp.Body))
		return newResult(Error, resp, Payload{}), nil
	}

	payload, err := decodeJSON(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("service status: %w", err)
	}
	return newResult(Found, resp, payload), nil
}

// query performs a GET and records the response. It returns (nil, nil) when
// the request timed out.
func (c *Client) query(ctx context.Context, target string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", requestID)

	log := c.logger.With("request_id", requestID)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.Error("service took too long to respond", "timeout", c.timeout)
			return nil, nil
		}
		log.Error("problem connecting to service", "error", err)
		return nil, fmt.Errorf("failed to connect to service: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize+1))
	if err != nil {
		if isTimeout(err) {
			log.Error("service took too long to respond", "timeout", c.timeout)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxBodySize {
		log.Error("response body too large", "status", httpResp.StatusCode, "limit", maxBodySize)
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBodySize)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Body: body}
	c.mu.Lock()
	c.last = resp
	c.mu.Unlock()

	log.Debug("got response from server", "status", resp.StatusCode)
	return resp, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// String describes the client's endpoints.
func (c *Client) String() string {
	var b strings.Builder
	b.WriteString("GGLSBL Rest Service Client\n")
	fmt.Fprintf(&b, "\tLookup URL: %s\n", c.lookupURL)
	fmt.Fprintf(&b, "\tStatus URL: %s\n", c.statusURL)
	fmt.Fprintf(&b, "\tTLS:        %t\n", c.tls)
	fmt.Fprintf(&b, "\tTimeout:    %s\n", c.timeout)
	return b.String()
}
