package resource

import (
	"context"
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"
)

// SessionCookieName is the name of the CouchDB session cookie.
const SessionCookieName = "AuthSession"

// Authenticator is an interface that provides authentication to a server.
type Authenticator interface {
	Authenticate(context.Context, *Client) error
}

// ValidateAuth confirms with the server that the requested username is
// authenticated. Cookies may be filtered by a proxy, or a misconfigured
// client, so checking the session endpoint is the only reliable test.
func ValidateAuth(ctx context.Context, username string, client *Client) error {
	result := struct {
		Ctx struct {
			Name string `json:"name"`
		} `json:"userCtx"`
	}{}
	if _, err := client.DoJSON(ctx, http.MethodGet, "/_session", nil, &result); err != nil {
		return err
	}
	if result.Ctx.Name != username {
		return &HTTPError{
			Status: http.StatusBadGateway,
			Reason: "auth response for unexpected user",
		}
	}
	return nil
}

func (a *CookieAuth) setCookieJar(c *Client) {
	// If a jar is already set, just use it
	if c.Jar != nil {
		return
	}
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	c.Jar = jar
}
