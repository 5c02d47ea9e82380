// Package httpclient provides an instrumented HTTP client for services that
// call JSON APIs:
//
//   - A bounded connection pool (callers wait for a free slot)
//   - A per-request timeout with an optional per-call override
//   - JSON payloads through a substitutable codec (goccy/go-json by default)
//   - A zap logger named "http_client"
//   - Three Prometheus counters per application:
//     {app}_http_requests_failed, {app}_http_requests_timeout, {app}_http_exceptions
//
// Every call is a single best-effort attempt. There are no retries. A
// failed or timed-out request produces an absent result, a nil *Response
// with a nil error, after being logged and counted:
//
//	client, err := httpclient.New("svc",
//	    httpclient.WithConnectionLimit(10),
//	    httpclient.WithRequestTimeout(2*time.Second),
//	    httpclient.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	var user User
//	ok, err := client.GetJSON(ctx, "https://api.example.com/users/1", &user)
//
// Transport exceptions are absent results too unless the client is built
// with WithErrorMode(ErrorModePropagate).
package httpclient
