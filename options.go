package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/romanperesypkin/http-client/codec"
)

// WithConfig applies both connection limit and request timeout
func WithConfig(cfg ClientConfig) Option {
	return func(c *Client) {
		c.connectionLimit = cfg.ConnectionLimit
		c.timeout = cfg.RequestTimeout
	}
}

// WithConnectionLimit sets the maximum number of concurrent connections
func WithConnectionLimit(n int) Option {
	return func(c *Client) {
		c.connectionLimit = n
	}
}

// WithRequestTimeout sets the default per-request timeout
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithKeepAlive reuses connections between requests instead of closing them
func WithKeepAlive(enabled bool) Option {
	return func(c *Client) {
		c.keepAlive = enabled
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		c.insecureSkipVerify = skip
	}
}

// WithErrorMode selects how transport exceptions reach the caller
func WithErrorMode(mode ErrorMode) Option {
	return func(c *Client) {
		c.errorMode = mode
	}
}

// WithHTTPClient sets a custom HTTP client. The connection limit is still
// enforced by the client's slot pool, but transport settings are left alone.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
		c.customHTTPClient = true
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithCodec sets both JSON serializer and deserializer
func WithCodec(cd codec.Codec) Option {
	return func(c *Client) {
		if cd == nil {
			c.serialize, c.deserialize = nil, nil
			return
		}
		c.serialize = cd.Marshal
		c.deserialize = cd.Unmarshal
	}
}

// WithJSONSerializer replaces the request payload serializer
func WithJSONSerializer(fn func(v any) ([]byte, error)) Option {
	return func(c *Client) {
		c.serialize = fn
	}
}

// WithJSONDeserializer replaces the response body deserializer
func WithJSONDeserializer(fn func(data []byte, v any) error) Option {
	return func(c *Client) {
		c.deserialize = fn
	}
}

// WithRegisterer sets the Prometheus registerer the counters are created on
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = registerer
	}
}

// WithMetricsCollector sets a prebuilt metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the parent logger; the client logs on a child named by WithLogName
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithLogName sets the logger name (default "http_client")
func WithLogName(name string) Option {
	return func(c *Client) {
		c.logName = name
	}
}

// WithMaxLoggedBody caps how much of a failed response body is logged
func WithMaxLoggedBody(n int) Option {
	return func(c *Client) {
		c.maxLoggedBody = n
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

// WithTimeout overrides the client timeout for one request
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHeaders replaces the default headers of one request
func WithHeaders(h http.Header) RequestOption {
	return func(o *requestOptions) {
		o.headers = h.Clone()
		if o.headers == nil {
			o.headers = http.Header{}
		}
	}
}

// WithHeader adds a header on top of the defaults
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.extra == nil {
			o.extra = http.Header{}
		}
		o.extra.Add(key, value)
	}
}

// WithParams appends query string parameters
func WithParams(params url.Values) RequestOption {
	return func(o *requestOptions) {
		if o.params == nil {
			o.params = url.Values{}
		}
		for k, vv := range params {
			for _, v := range vv {
				o.params.Add(k, v)
			}
		}
	}
}

// WithParam appends a single query string parameter
func WithParam(key string, value any) RequestOption {
	return func(o *requestOptions) {
		if o.params == nil {
			o.params = url.Values{}
		}
		o.params.Add(key, fmt.Sprint(value))
	}
}

// WithBody sets the request payload. []byte is sent verbatim, anything
// else (strings and nil included) goes through the JSON serializer.
func WithBody(body any) RequestOption {
	return func(o *requestOptions) {
		o.payload = body
		o.hasBody = true
	}
}

// WithUserAgent sets the User-Agent header of one request
func WithUserAgent(ua string) RequestOption {
	return func(o *requestOptions) {
		o.userAgent = ua
	}
}

func decodeInto(out any) RequestOption {
	return func(o *requestOptions) {
		o.decodeTo = out
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateIdentity()...)
	errors = append(errors, c.validatePoolConfig()...)
	errors = append(errors, c.validateCodecConfig()...)
	errors = append(errors, c.validateMiddlewareConfig()...)
	errors = append(errors, c.validateHTTPClientConfig()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errors, "; ")),
		}
	}

	return nil
}

func (c *Client) validateIdentity() []string {
	var errors []string

	if strings.TrimSpace(c.appName) == "" {
		errors = append(errors, "app name must not be empty")
	}
	if strings.TrimSpace(c.logName) == "" {
		errors = append(errors, "log name must not be empty")
	}
	if c.requestIDGen == nil {
		errors = append(errors, "request ID generator cannot be nil")
	}

	return errors
}

func (c *Client) validatePoolConfig() []string {
	var errors []string

	if c.connectionLimit <= 0 {
		errors = append(errors, "connection limit must be positive")
	}
	if c.timeout <= 0 {
		errors = append(errors, "request timeout must be positive")
	}
	if c.errorMode != ErrorModeSwallow && c.errorMode != ErrorModePropagate {
		errors = append(errors, fmt.Sprintf("unknown error mode %d", int(c.errorMode)))
	}

	return errors
}

func (c *Client) validateCodecConfig() []string {
	var errors []string

	if c.serialize == nil {
		errors = append(errors, "JSON serializer cannot be nil")
	}
	if c.deserialize == nil {
		errors = append(errors, "JSON deserializer cannot be nil")
	}

	return errors
}

func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errors
}

func (c *Client) validateHTTPClientConfig() []string {
	var errors []string

	if c.httpClient == nil && c.customHTTPClient {
		errors = append(errors, "HTTP client cannot be nil")
	}
	if c.logger == nil {
		errors = append(errors, "logger cannot be nil")
	}

	return errors
}
