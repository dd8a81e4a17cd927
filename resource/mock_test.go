package resource

import (
	"context"
	"io"
	"net/http"
	"strings"
)

type dummyTransport struct {
	response *http.Response
	err      error
}

var _ http.RoundTripper = &dummyTransport{}

func (t *dummyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
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

func newTestClient(response *http.Response, err error) *Client {
	client, e := NewWithConfig(context.Background(), "http://example.com/", Config{MaxRetries: -1})
	if e != nil {
		panic(e)
	}
	client.Transport = &dummyTransport{response: response, err: err}
	return client
}

func newCustomClient(fn func(*http.Request) (*http.Response, error)) *Client {
	client, err := NewWithConfig(context.Background(), "http://example.com/", Config{MaxRetries: -1})
	if err != nil {
		panic(err)
	}
	client.Transport = customTransport(fn)
	return client
}

func Body(str string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(str))
}
