package couchreq

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/couchreq/couchreq/resource"
)

type dummyTransport struct {
	response *http.Response
	err      error
}

var _ http.RoundTripper = &dummyTransport{}

func (t *dummyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		defer req.Body.Close() // nolint: errcheck
		if _, err := io.ReadAll(req.Body); err != nil {
			return nil, err
		}
	}
	if t.err != nil {
		return nil, t.err
	}
	response := t.response
	response.Request = req
	return response, nil
}

type customTransport func(*http.Request) (*http.Response, error)

var _ http.RoundTripper = customTransport(nil)

func (c customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return c(req)
}

// Test servers disable retries so that transport errors fail fast.
func newTestServer(response *http.Response, err error) *Server {
	server, e := NewWithConfig(context.Background(), "http://example.com/", resource.Config{MaxRetries: -1})
	if e != nil {
		panic(e)
	}
	server.Transport = &dummyTransport{response: response, err: err}
	return server
}

func newCustomServer(fn func(*http.Request) (*http.Response, error)) *Server {
	server, err := NewWithConfig(context.Background(), "http://example.com/", resource.Config{MaxRetries: -1})
	if err != nil {
		panic(err)
	}
	server.Transport = customTransport(fn)
	return server
}

func newTestDB(response *http.Response, err error) *Database {
	return newTestServer(response, err).DB("testdb")
}

func newCustomDB(fn func(*http.Request) (*http.Response, error)) *Database {
	return newCustomServer(fn).DB("testdb")
}

func Body(str string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(str))
}

type closeTracker struct {
	io.ReadCloser
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return c.ReadCloser.Close()
}
