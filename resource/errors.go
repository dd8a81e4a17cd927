package resource

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
)

// HTTPError is an error returned by a CouchDB server, or produced locally
// when a request cannot be built or its response cannot be decoded.
type HTTPError struct {
	Status int
	Reason string `json:"reason"`
}

func (e *HTTPError) Error() string {
	if e.Reason == "" {
		return http.StatusText(e.Status)
	}
	if statusText := http.StatusText(e.Status); statusText != "" {
		return fmt.Sprintf("%s: %s", statusText, e.Reason)
	}
	return e.Reason
}

// StatusCode returns the embedded status code.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// ResponseError converts an error-status response into an *HTTPError,
// consuming the response body. It returns nil for statuses below 400.
func ResponseError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	httpErr := &HTTPError{}
	if resp.Request.Method != http.MethodHead && resp.ContentLength != 0 {
		if ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); ct == typeJSON {
			_ = json.NewDecoder(resp.Body).Decode(httpErr)
		}
	}
	httpErr.Status = resp.StatusCode
	return httpErr
}
