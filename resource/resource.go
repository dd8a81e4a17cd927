// Package resource provides a thin wrapper around CouchDB's HTTP interface.
// It handles DSN parsing, connection pooling, authentication, request
// retries, and translation of CouchDB error responses into errors.
//
// Most users will want the couchreq package, which builds the full client
// API on top of this one. Use this package directly when you need an escape
// hatch to arbitrary endpoints.
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Version of this library, reported in the User-Agent header.
const Version = "1.0.0"

// UserAgent is the default User-Agent header sent with every request.
const UserAgent = "couchreq/" + Version

// Defaults applied by NewWithConfig for zero-valued Config fields.
const (
	DefaultPoolSize   = 10
	DefaultTimeout    = time.Minute
	DefaultMaxRetries = 2
)

// retryDelay is the pause between retries of a failed request.
const retryDelay = 250 * time.Millisecond

const typeJSON = "application/json"

// Config controls the HTTP behavior of a Client. The zero value of each
// field selects the corresponding default; a negative value disables the
// feature where that is meaningful.
type Config struct {
	// PoolSize caps the number of connections, idle or active, kept open
	// to the server host. Zero means DefaultPoolSize.
	PoolSize int

	// Timeout is the limit for a complete request, including reading the
	// response body. Zero means DefaultTimeout; a negative value means no
	// timeout. Streaming consumers, such as attachment downloads, should
	// set a negative value.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts made when a request
	// fails without receiving any server response. Only idempotent methods
	// with replayable bodies are retried. Zero means DefaultMaxRetries; a
	// negative value disables retries.
	MaxRetries int
}

// Client is a CouchDB connection handle. It is a wrapper around the standard
// http.Client, and is safe for concurrent use to the same extent.
type Client struct {
	// Client is the underlying http.Client.
	*http.Client

	rawDSN     string
	dsn        *url.URL
	auth       Authenticator
	maxRetries int

	// authMU protects authentication state shared with the Authenticator.
	authMU sync.Mutex
}

// New returns a client connected to the server root identified by dsn, with
// default configuration. If dsn contains credentials, they are removed from
// the stored URL and used for Basic authentication. No request is sent; the
// server is contacted lazily.
func New(ctx context.Context, dsn string) (*Client, error) {
	return NewWithConfig(ctx, dsn, Config{})
}

// NewWithConfig is New with explicit pool, timeout, and retry settings.
func NewWithConfig(ctx context.Context, dsn string, conf Config) (*Client, error) {
	dsnURL, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	user := dsnURL.User
	dsnURL.User = nil
	c := &Client{
		Client: &http.Client{
			Transport: poolTransport(conf.PoolSize),
			Timeout:   timeout(conf.Timeout),
		},
		dsn:        dsnURL,
		rawDSN:     dsn,
		maxRetries: maxRetries(conf.MaxRetries),
	}
	if user != nil {
		password, _ := user.Password()
		auth := &BasicAuth{
			Username: user.Username(),
			Password: password,
		}
		if err := c.Auth(ctx, auth); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func poolTransport(size int) *http.Transport {
	if size == 0 {
		size = DefaultPoolSize
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxConnsPerHost = size
	t.MaxIdleConnsPerHost = size
	return t
}

func timeout(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultTimeout
	}
	if d < 0 {
		return 0
	}
	return d
}

func maxRetries(n int) int {
	if n == 0 {
		return DefaultMaxRetries
	}
	if n < 0 {
		return 0
	}
	return n
}

func parseDSN(dsn string) (*url.URL, error) {
	if dsn == "" {
		return nil, &HTTPError{Status: http.StatusBadRequest, Reason: "no URL specified"}
	}
	if !strings.HasPrefix(dsn, "http://") && !strings.HasPrefix(dsn, "https://") {
		dsn = "http://" + dsn
	}
	dsnURL, err := url.Parse(dsn)
	if err != nil {
		return nil, &HTTPError{Status: http.StatusBadRequest, Reason: err.Error()}
	}
	if dsnURL.Path == "" {
		dsnURL.Path = "/"
	}
	return dsnURL, nil
}

// DSN returns the unparsed DSN used to connect, including any credentials.
func (c *Client) DSN() string {
	return c.rawDSN
}

// URL returns the parsed server root URL, with credentials removed.
func (c *Client) URL() *url.URL {
	u := *c.dsn
	return &u
}

// Auth authenticates the client using the provided Authenticator. Auth may
// be called at most once per client.
func (c *Client) Auth(ctx context.Context, a Authenticator) error {
	if c.auth != nil {
		return errors.New("couchreq: auth already set")
	}
	if err := a.Authenticate(ctx, c); err != nil {
		return err
	}
	c.auth = a
	return nil
}

// DoReq builds and executes a request against the client's server. path is
// taken relative to the server root, and may contain percent-encoded
// segments. The caller is responsible for closing the response body.
func (c *Client) DoReq(ctx context.Context, method, path string, opts *Options) (*http.Response, error) {
	if method == "" {
		return nil, &HTTPError{Status: http.StatusBadRequest, Reason: "method required"}
	}
	var body io.Reader
	if opts != nil {
		switch {
		case opts.GetBody != nil:
			var err error
			body, err = opts.GetBody()
			if err != nil {
				return nil, err
			}
		case opts.Body != nil:
			body = opts.Body
			defer func() { _ = opts.Body.Close() }()
		case opts.JSON != nil:
			buf, err := json.Marshal(opts.JSON)
			if err != nil {
				return nil, errors.Wrap(err, "couchreq: failed to encode request body")
			}
			body = bytes.NewReader(buf)
		}
	}
	reqURL := *c.dsn
	req, err := http.NewRequest(method, reqURL.String(), body)
	if err != nil {
		return nil, &HTTPError{Status: http.StatusBadRequest, Reason: err.Error()}
	}
	req = req.WithContext(ctx)
	c.fixPath(req, path)
	setHeaders(req, opts)
	setQuery(req, opts)
	if opts != nil {
		if opts.GetBody != nil {
			req.GetBody = opts.GetBody
		}
		if opts.ContentLength != 0 {
			req.ContentLength = opts.ContentLength
		}
	}
	return c.do(req)
}

// do executes the request, retrying when the failure and the request method
// permit. Only requests that never received a response are retried: an HTTP
// error status is a response, and is never retried here.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	trace := ContextClientTrace(req.Context())
	if trace != nil {
		trace.httpRequest(req)
	}
	res, err := c.Do(req)
	for attempt := 0; err != nil && attempt < c.maxRetries && retryable(req); attempt++ {
		select {
		case <-req.Context().Done():
			return nil, err
		case <-time.After(retryDelay):
		}
		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			retry.Body = body
		}
		res, err = c.Do(retry)
	}
	if err != nil {
		return res, err
	}
	if trace != nil {
		trace.httpResponse(res)
		trace.httpResponseBody(res)
	}
	return res, nil
}

// retryable reports whether req may be safely re-sent: only idempotent
// methods, and only when the body can be replayed.
func retryable(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
	default:
		return false
	}
	if req.Body != nil && req.GetBody == nil {
		return false
	}
	return req.Context().Err() == nil
}

// DoError is DoReq followed by an error-status check. The response body is
// consumed. This is meant for cases where nothing beyond the status code
// and headers is needed from the response.
func (c *Client) DoError(ctx context.Context, method, path string, opts *Options) (*http.Response, error) {
	res, err := c.DoReq(ctx, method, path, opts)
	if err != nil {
		return res, err
	}
	err = ResponseError(res)
	if err == nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
	return res, err
}

// DoJSON is DoReq followed by an error-status check and decoding of the
// response body into i. The response body is closed.
func (c *Client) DoJSON(ctx context.Context, method, path string, opts *Options, i interface{}) (*http.Response, error) {
	res, err := c.DoReq(ctx, method, path, opts)
	if err != nil {
		return res, err
	}
	if err = ResponseError(res); err != nil {
		return res, err
	}
	defer func() { _ = res.Body.Close() }()
	if err = json.NewDecoder(res.Body).Decode(i); err != nil {
		return res, &HTTPError{Status: http.StatusBadGateway, Reason: err.Error()}
	}
	return res, nil
}

// fixPath joins path to any path prefix on the client DSN, preserving
// percent-encoded segments, which would otherwise be re-escaped by the URL
// parser. A query string embedded in path is moved to the request URL.
func (c *Client) fixPath(req *http.Request, path string) {
	parts := strings.SplitN(path, "?", 2)
	prefix := strings.TrimSuffix(c.dsn.EscapedPath(), "/")
	raw := prefix + "/" + strings.TrimPrefix(parts[0], "/")
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		unescaped = raw
	}
	req.URL.RawPath = raw
	req.URL.Path = unescaped
	if len(parts) == 2 {
		req.URL.RawQuery = parts[1]
	} else {
		req.URL.RawQuery = ""
	}
}

// setHeaders applies the default and option headers to the request.
func setHeaders(req *http.Request, opts *Options) {
	accept := typeJSON
	contentType := typeJSON
	if opts != nil {
		if opts.Accept != "" {
			accept = opts.Accept
		}
		if opts.ContentType != "" {
			contentType = opts.ContentType
		}
		if opts.FullCommit {
			req.Header.Add("X-Couch-Full-Commit", "true")
		}
		if opts.Destination != "" {
			req.Header.Add("Destination", opts.Destination)
		}
		if opts.IfNoneMatch != "" {
			req.Header.Set("If-None-Match", `"`+strings.Trim(opts.IfNoneMatch, `"`)+`"`)
		}
	}
	req.Header.Add("Accept", accept)
	req.Header.Add("Content-Type", contentType)
	if opts != nil {
		for k, v := range opts.Header {
			if _, ok := req.Header[k]; !ok {
				req.Header[k] = v
			}
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
}

// setQuery appends the option query values to any query already present on
// the request. No merging takes place.
func setQuery(req *http.Request, opts *Options) {
	if opts == nil || len(opts.Query) == 0 {
		return
	}
	if req.URL.RawQuery == "" {
		req.URL.RawQuery = opts.Query.Encode()
		return
	}
	req.URL.RawQuery += "&" + opts.Query.Encode()
}

// ETag returns the unquoted ETag header value, and a bool indicating
// whether it was found.
func ETag(resp *http.Response) (string, bool) {
	etag, ok := resp.Header["Etag"]
	if !ok {
		etag, ok = resp.Header["ETag"]
	}
	if !ok {
		return "", false
	}
	return strings.Trim(etag[0], `"`), ok
}

// GetRev extracts the document revision from the response's ETag header.
func GetRev(resp *http.Response) (string, error) {
	if rev, ok := ETag(resp); ok {
		return rev, nil
	}
	return "", errors.New("couchreq: unable to determine document revision")
}
