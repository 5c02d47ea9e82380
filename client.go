package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/romanperesypkin/http-client/codec"
)

const (
	// DefaultLogName is the logger channel the client writes to.
	DefaultLogName = "http_client"

	// DefaultConnectionLimit matches the usual pooled-session default.
	DefaultConnectionLimit = 100

	// DefaultRequestTimeout applies when no timeout is configured.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxLoggedBody caps the failed response text attached to logs.
	DefaultMaxLoggedBody = 512

	// RequestIDHeader carries the generated request ID.
	RequestIDHeader = "X-Request-ID"

	contentTypeJSON = "application/json"
)

// Client issues HTTP requests through a bounded connection pool and reports
// every non-successful outcome to a named logger and one of three counters.
// It is safe for concurrent use.
type Client struct {
	appName            string
	httpClient         *http.Client
	transport          *http.Transport
	customHTTPClient   bool
	connectionLimit    int
	timeout            time.Duration
	keepAlive          bool
	insecureSkipVerify bool
	errorMode          ErrorMode
	slots              *semaphore.Weighted
	middleware         []Middleware
	serialize          func(v any) ([]byte, error)
	deserialize        func(data []byte, v any) error
	registerer         prometheus.Registerer
	metrics            *MetricsCollector
	logger             *zap.Logger
	logName            string
	maxLoggedBody      int
	requestIDGen       func() string
	closed             atomic.Bool
}

// New builds a client for appName. Counters are registered when New
// returns, on the registerer given by WithRegisterer or the default one.
func New(appName string, options ...Option) (*Client, error) {
	client := &Client{
		appName:         appName,
		connectionLimit: DefaultConnectionLimit,
		timeout:         DefaultRequestTimeout,
		errorMode:       ErrorModeSwallow,
		middleware:      []Middleware{},
		serialize:       codec.Default.Marshal,
		deserialize:     codec.Default.Unmarshal,
		logger:          zap.NewNop(),
		logName:         DefaultLogName,
		maxLoggedBody:   DefaultMaxLoggedBody,
		requestIDGen:    generateRequestID,
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		return nil, err
	}

	if !client.customHTTPClient {
		client.transport = newTransport(client.connectionLimit, client.keepAlive, client.insecureSkipVerify)
		client.httpClient = &http.Client{Transport: client.transport}
	}
	client.slots = semaphore.NewWeighted(int64(client.connectionLimit))
	client.logger = client.logger.Named(client.logName)

	if client.metrics == nil {
		metrics, err := NewMetricsCollectorWithRegistry(client.appName, client.registerer)
		if err != nil {
			return nil, &ClientError{
				Type:    ErrorTypeValidation,
				Message: "metrics registration failed",
				Cause:   err,
			}
		}
		client.metrics = metrics
	}

	return client, nil
}

func newTransport(limit int, keepAlive, insecureSkipVerify bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxConnsPerHost = limit
	t.MaxIdleConns = limit
	t.MaxIdleConnsPerHost = limit
	t.DisableKeepAlives = !keepAlive
	if insecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}
	return t
}

// Get performs an HTTP GET. A nil response with a nil error means the
// request failed or timed out; the outcome has been logged and counted.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodGet, url, opts...)
}

// Post serializes body and performs an HTTP POST. The absent-result rules
// of Get apply.
func (c *Client) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPost, url, append([]RequestOption{WithBody(body)}, opts...)...)
}

// Request performs a single attempt of method against url.
//
//   - 2xx: the response is returned with its body fully read.
//   - other status: failed counter +1, (nil, nil).
//   - timeout: timeout counter +1, (nil, nil).
//   - transport or codec exception: exceptions counter +1, then (nil, nil)
//     or a *ClientError depending on ErrorMode.
//   - caller cancellation: nothing counted, a Canceled *ClientError.
func (c *Client) Request(ctx context.Context, method, url string, opts ...RequestOption) (*Response, error) {
	ro := requestOptions{timeout: c.timeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&ro)
		}
	}
	return c.do(ctx, method, url, &ro)
}

func (c *Client) do(ctx context.Context, method, rawURL string, ro *requestOptions) (*Response, error) {
	cl := &call{
		requestID: c.requestIDGen(),
		method:    method,
		url:       rawURL,
		endpoint:  endpointFromURL(rawURL),
		start:     time.Now(),
	}
	log := c.logger.With(
		zap.String("request_id", cl.requestID),
		zap.String("method", method),
		zap.String("url", rawURL),
	)

	if c.closed.Load() {
		return c.exception(log, cl, ErrorTypeException, "request exception", ErrClientClosed)
	}

	reqCtx, cancel := context.WithTimeout(ctx, ro.timeout)
	defer cancel()

	req, errType, err := c.newRequest(reqCtx, method, rawURL, ro, cl.requestID)
	if err != nil {
		return c.exception(log, cl, errType, "request exception", err)
	}

	if err := c.slots.Acquire(reqCtx, 1); err != nil {
		return c.transportFailure(ctx, reqCtx, log, cl, err)
	}
	defer c.slots.Release(1)

	resp, err := c.executeMiddleware(req)
	if err != nil {
		return c.transportFailure(ctx, reqCtx, log, cl, err)
	}
	defer resp.Body.Close()

	cl.statusCode = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportFailure(ctx, reqCtx, log, cl, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.Record(OutcomeFailed, cl.method, cl.endpoint)
		log.Warn("Request failed",
			zap.Stringer("outcome", OutcomeFailed),
			zap.Int("status", resp.StatusCode),
			zap.String("text", truncate(body, c.maxLoggedBody)),
			zap.Duration("duration", time.Since(cl.start)),
		)
		return nil, nil
	}

	if ro.decodeTo != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := c.deserialize(body, ro.decodeTo); err != nil {
			return c.exception(log, cl, ErrorTypeDecode, "response decode failed", err)
		}
	}

	c.metrics.Record(OutcomeSuccess, cl.method, cl.endpoint)
	log.Debug("Request succeeded",
		zap.Stringer("outcome", OutcomeSuccess),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(cl.start)),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		RequestID:  cl.requestID,
		decode:     c.deserialize,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, ro *requestOptions, requestID string) (*http.Request, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrorTypeException, err
	}
	if len(ro.params) > 0 {
		q := u.Query()
		for k, vv := range ro.params {
			for _, v := range vv {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if ro.hasBody {
		payload, err := c.encodePayload(ro.payload)
		if err != nil {
			return nil, ErrorTypeEncode, err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, ErrorTypeException, err
	}

	headers := ro.headers
	if headers == nil {
		headers = defaultHeaders(ro.hasBody)
	}
	for k, vv := range headers {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	for k, vv := range ro.extra {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if ro.userAgent != "" {
		req.Header.Set("User-Agent", ro.userAgent)
	} else if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent())
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	return req, "", nil
}

func (c *Client) encodePayload(payload any) ([]byte, error) {
	if p, ok := payload.([]byte); ok {
		return p, nil
	}
	return c.serialize(payload)
}

func defaultHeaders(hasBody bool) http.Header {
	h := http.Header{}
	h.Set("Accept", contentTypeJSON)
	if hasBody {
		h.Set("Content-Type", contentTypeJSON)
	}
	return h
}

// transportFailure classifies an error raised while waiting for a slot,
// sending the request or reading the body.
func (c *Client) transportFailure(parent, reqCtx context.Context, log *zap.Logger, cl *call, err error) (*Response, error) {
	switch outcome := classifyError(parent, reqCtx, err); outcome {
	case OutcomeCanceled:
		c.metrics.Record(outcome, cl.method, cl.endpoint)
		log.Info("Request canceled",
			zap.Stringer("outcome", outcome),
			zap.Error(err),
			zap.Duration("duration", time.Since(cl.start)),
		)
		cause := parent.Err()
		if cause == nil {
			cause = err
		}
		return nil, c.createClientError(ErrorTypeCanceled, outcome, "request canceled by caller", cause, cl)
	case OutcomeTimeout:
		c.metrics.Record(outcome, cl.method, cl.endpoint)
		log.Error("Request timed out",
			zap.Stringer("outcome", outcome),
			zap.Error(err),
			zap.Duration("duration", time.Since(cl.start)),
		)
		return nil, nil
	default:
		return c.exception(log, cl, ErrorTypeException, "request exception", err)
	}
}

func (c *Client) exception(log *zap.Logger, cl *call, errType, message string, err error) (*Response, error) {
	c.metrics.Record(OutcomeException, cl.method, cl.endpoint)
	log.Error("Request exception",
		zap.Stringer("outcome", OutcomeException),
		zap.String("type", errType),
		zap.Error(err),
		zap.Duration("duration", time.Since(cl.start)),
	)
	if c.errorMode == ErrorModePropagate {
		return nil, c.createClientError(errType, OutcomeException, message, err, cl)
	}
	return nil, nil
}

// classifyError maps a transport error to an outcome. The caller's own
// deadline counts as a timeout, its cancellation does not count at all.
func classifyError(parent, reqCtx context.Context, err error) Outcome {
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return OutcomeTimeout
		}
		return OutcomeCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeException
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// Start implements Service.
func (c *Client) Start(context.Context) error {
	return nil
}

// Stop implements Service by closing the client.
func (c *Client) Stop(context.Context) error {
	c.Close()
	return nil
}

// Close releases idle connections. Requests issued afterwards are exceptions.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	c.logger.Debug("Client closed")
}

// AppName returns the application name the counters are scoped to.
func (c *Client) AppName() string {
	return c.appName
}

// Config returns the connection limit and default timeout in effect.
func (c *Client) Config() ClientConfig {
	return ClientConfig{ConnectionLimit: c.connectionLimit, RequestTimeout: c.timeout}
}

// Metrics returns the collector holding the client's counters.
func (c *Client) Metrics() *MetricsCollector {
	return c.metrics
}

func endpointFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)

	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}

func truncate(body []byte, limit int) string {
	if limit <= 0 || len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
