package resource

import (
	"io"
	"net/http"
	"net/url"
)

// Options are optional parameters which may be sent with a request.
type Options struct {
	// Accept sets the request's Accept header. Defaults to "application/json".
	// To specify any, use "*/*".
	Accept string

	// ContentType sets the request's Content-Type header. Defaults to
	// "application/json".
	ContentType string

	// ContentLength, if set, sets the ContentLength of the request.
	ContentLength int64

	// Body sets the body of the request. It is closed when the request
	// completes. A request with a Body and no GetBody is never retried.
	Body io.ReadCloser

	// GetBody is a function to produce the body, and is re-invoked on
	// retries. If set, Body is ignored.
	GetBody func() (io.ReadCloser, error)

	// JSON is an arbitrary data type which is marshaled to the request's
	// body. It is an error to set both Body and JSON on the same request.
	// The marshaled body is replayable, so such requests may be retried.
	// For large payloads, prefer streaming through Body with EncodeBody.
	JSON interface{}

	// FullCommit adds the X-Couch-Full-Commit: true header to the request.
	FullCommit bool

	// IfNoneMatch adds the If-None-Match header. The value will be quoted
	// if it is not already.
	IfNoneMatch string

	// Destination sets the Destination header, used by the COPY method.
	Destination string

	// Query is appended to any query already present on the request path.
	// No merging takes place.
	Query url.Values

	// Header is a list of default headers to be set on the request.
	// Headers already set take precedence.
	Header http.Header
}
