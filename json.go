package httpclient

import (
	"context"
	"errors"
	"net/http"
)

// Response is a successful (2xx) response with its body already read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string

	decode func(data []byte, v any) error
}

// Decode unmarshals the body into v with the client's JSON deserializer.
// An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil {
		return errors.New("httpclient: decode of absent response")
	}
	if len(r.Body) == 0 {
		return nil
	}
	return r.decode(r.Body, v)
}

// GetJSON performs a GET and decodes a 2xx body into out. It reports false
// when the result is absent.
func (c *Client) GetJSON(ctx context.Context, url string, out any, opts ...RequestOption) (bool, error) {
	resp, err := c.Get(ctx, url, append(opts, decodeInto(out))...)
	return resp != nil, err
}

// PostJSON serializes body, performs a POST and decodes a 2xx body into out.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any, opts ...RequestOption) (bool, error) {
	resp, err := c.Post(ctx, url, body, append(opts, decodeInto(out))...)
	return resp != nil, err
}

// Fetch is a generic GetJSON.
func Fetch[T any](ctx context.Context, c *Client, url string, opts ...RequestOption) (T, bool, error) {
	var out T
	ok, err := c.GetJSON(ctx, url, &out, opts...)
	if !ok || err != nil {
		var zero T
		return zero, ok, err
	}
	return out, true, nil
}
