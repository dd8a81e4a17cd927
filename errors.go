package couchreq

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/couchreq/couchreq/resource"
)

// Sentinel errors returned by the single-row view accessors.
var (
	// ErrNoResult is returned by First and One when a view yields no rows.
	ErrNoResult = errors.New("couchreq: no result found")

	// ErrMultipleResults is returned by One when a view yields more than
	// one row.
	ErrMultipleResults = errors.New("couchreq: multiple results found")
)

// RequestError means a request could not be completed, or the server
// answered it with an error status. Err holds the underlying cause: a
// *resource.HTTPError for server-reported errors, or the transport error
// for requests that never received a response.
type RequestError struct {
	// Status is the HTTP status reported by the server, or zero when no
	// response was received.
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusCode returns the server-reported status, or 500 for requests that
// failed without a response.
func (e *RequestError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// DecodeError means the server answered with a payload that could not be
// decoded as the expected JSON shape. The request itself succeeded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "couchreq: invalid response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusCode returns 502, the conventional status for a gateway that
// produced an unintelligible response.
func (e *DecodeError) StatusCode() int {
	return http.StatusBadGateway
}

// StatusCode returns the HTTP status code embedded in err, 500 when err
// carries no status, or zero when err is nil.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// IsNotFound reports whether err was caused by a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err was caused by a 409 document update
// conflict.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// IsPreconditionFailed reports whether err was caused by a 412 response,
// returned among others when creating a database that already exists.
func IsPreconditionFailed(err error) bool {
	return StatusCode(err) == http.StatusPreconditionFailed
}

func missingArg(arg string) error {
	return &RequestError{Status: http.StatusBadRequest, Err: fmt.Errorf("couchreq: %s required", arg)}
}

// reqError wraps a resource-layer failure, preserving any server-reported
// status.
func reqError(err error) error {
	if err == nil {
		return nil
	}
	var httpErr *resource.HTTPError
	if errors.As(err, &httpErr) {
		return &RequestError{Status: httpErr.Status, Err: err}
	}
	return &RequestError{Err: err}
}
