package resource

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"
)

// ProxyAuth provides CouchDB proxy authentication, for servers sitting
// behind an authenticating reverse proxy. Header names may be overridden
// with Headers for servers configured with non-default header names.
type ProxyAuth struct {
	Username string
	Secret   string
	Roles    []string
	Headers  http.Header

	transport http.RoundTripper
}

var _ Authenticator = &ProxyAuth{}

func (a *ProxyAuth) header(header string) string {
	if h := a.Headers.Get(header); h != "" {
		return http.CanonicalHeaderKey(h)
	}
	return header
}

// RoundTrip fulfills the http.RoundTripper interface. It sets the proxy
// authentication headers on outbound requests.
func (a *ProxyAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	// If the secret is an empty string, do not calculate the token
	if a.Secret != "" {
		// https://docs.couchdb.org/en/stable/config/auth.html#couch_httpd_auth/x_auth_token
		h := hmac.New(sha1.New, []byte(a.Secret))
		_, _ = h.Write([]byte(a.Username))
		token := hex.EncodeToString(h.Sum(nil))
		req.Header.Set(a.header("X-Auth-CouchDB-Token"), token)
	}

	req.Header.Set(a.header("X-Auth-CouchDB-UserName"), a.Username)
	req.Header.Set(a.header("X-Auth-CouchDB-Roles"), strings.Join(a.Roles, ","))

	return a.transport.RoundTrip(req)
}

// Authenticate configures proxy authentication on the client.
func (a *ProxyAuth) Authenticate(_ context.Context, c *Client) error {
	a.transport = c.Transport
	if a.transport == nil {
		a.transport = http.DefaultTransport
	}
	c.Transport = a
	return nil
}
