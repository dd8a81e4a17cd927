package couchreq

import (
	"context"
	"sync"

	"github.com/couchreq/couchreq/resource"
)

// Server represents a CouchDB server instance.
//
// A Server is safe for concurrent use. All methods are synchronous: each
// sends at most one request and returns once the response has been read.
type Server struct {
	*resource.Client

	uuids   []string
	uuidsMU sync.Mutex
}

// New establishes a connection handle to the CouchDB server at dsn. If
// auth credentials are included in the URL, they are used to authenticate
// using HTTP Basic Auth. To use a different mechanism, omit the
// credentials and call Auth instead.
//
// No request is sent: the server is contacted lazily, and an unreachable
// server surfaces as a *RequestError from the first operation.
func New(ctx context.Context, dsn string) (*Server, error) {
	return NewWithConfig(ctx, dsn, resource.Config{})
}

// NewWithConfig is New with explicit connection pool, timeout, and retry
// settings.
func NewWithConfig(ctx context.Context, dsn string, conf resource.Config) (*Server, error) {
	client, err := resource.NewWithConfig(ctx, dsn, conf)
	if err != nil {
		return nil, reqError(err)
	}
	return &Server{Client: client}, nil
}

// DB returns a handle to the named database. No existence check is
// performed; use GetDB for that.
func (s *Server) DB(name string) *Database {
	return &Database{server: s, name: name}
}
