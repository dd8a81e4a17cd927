package couchreq

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/couchreq/couchreq/resource"
)

// View is a lazy handle to one view query: an endpoint plus a fixed set
// of query parameters. Constructing a View, with Database.AllDocs,
// Database.View, or Filter, performs no I/O.
//
// The first accessor to need data sends exactly one request and caches
// the decoded rows; every later access on the same View is served from
// that cache, and the View never re-queries. Derive a fresh View, with
// Filter for instance, to observe later changes. A failed query caches
// nothing, so the next access simply tries again.
//
// A View is safe for concurrent use. The cached rows are shared between
// accessors: callers must not modify the slices they are handed.
type View struct {
	db     *Database
	path   string
	params params

	mu   sync.Mutex
	done bool
	rows []Row
	meta viewMeta
}

// Filter derives a new View with extra query parameters merged over the
// receiver's. A later value for the same parameter wins, so filters
// compose: v.Filter(a).Filter(b) queries the same as v.Filter(a, b). The
// receiver is unchanged, and the derived View starts without a cached
// result.
func (v *View) Filter(options ...Param) *View {
	return &View{
		db:     v.db,
		path:   v.path,
		params: v.params.merge(options),
	}
}

// load sends the query unless a cached result already exists. It is the
// only writer of v.rows. Failures leave the View unmaterialized.
func (v *View) load(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done {
		return nil
	}
	rows, meta, err := v.query(ctx)
	if err != nil {
		return err
	}
	v.rows, v.meta, v.done = rows, meta, true
	return nil
}

func (v *View) query(ctx context.Context) ([]Row, viewMeta, error) {
	query, err := v.params.query()
	if err != nil {
		return nil, viewMeta{}, err
	}
	method := http.MethodGet
	opts := &resource.Options{Query: query}
	if keys, ok := v.params.keys(); ok {
		method = http.MethodPost
		opts.GetBody = resource.BodyEncoder(struct {
			Keys json.RawMessage `json:"keys"`
		}{Keys: keys})
	}
	res, err := v.db.server.DoReq(ctx, method, v.db.path(v.path), opts)
	if err != nil {
		return nil, viewMeta{}, reqError(err)
	}
	if err := resource.ResponseError(res); err != nil {
		return nil, viewMeta{}, reqError(err)
	}
	defer func() { _ = res.Body.Close() }()
	return decodeView(res.Body)
}

// cached returns the cached rows; nil if the View has not materialized.
func (v *View) cached() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rows
}

// Rows materializes the view if needed and returns all of its rows. The
// returned slice is the View's cache: treat it as read-only.
func (v *View) Rows(ctx context.Context) ([]Row, error) {
	if err := v.load(ctx); err != nil {
		return nil, err
	}
	return v.cached(), nil
}

// Count materializes the view if needed and returns its number of rows.
// For the total across the whole index regardless of parameters, see
// TotalRows.
func (v *View) Count(ctx context.Context) (int, error) {
	if err := v.load(ctx); err != nil {
		return 0, err
	}
	return len(v.cached()), nil
}

// First returns the first row of the view. It queries through a derived
// View with a limit of one, so only a single row crosses the wire
// regardless of the view's size. It returns ErrNoResult when the view is
// empty.
func (v *View) First(ctx context.Context) (*Row, error) {
	rows, err := v.Filter(Limit(1)).Rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoResult
	}
	return &rows[0], nil
}

// One returns the only row of the view. It queries through a derived View
// with a limit of two: enough to distinguish one row from several without
// fetching everything. It returns ErrNoResult when the view is empty and
// ErrMultipleResults when it holds more than one row.
func (v *View) One(ctx context.Context) (*Row, error) {
	rows, err := v.Filter(Limit(2)).Rows(ctx)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, ErrNoResult
	case 1:
		return &rows[0], nil
	}
	return nil, ErrMultipleResults
}

// TotalRows returns the total number of rows in the underlying index, as
// reported by the last materialized result, or zero if the View has not
// materialized. Unlike Count, it is unaffected by Limit and Skip.
func (v *View) TotalRows() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.meta.totalRows
}

// Offset returns the index offset of the first row of the materialized
// result, or zero if the View has not materialized.
func (v *View) Offset() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.meta.offset
}

// UpdateSeq returns the update sequence the materialized result reflects.
// The server reports it only when the view was queried with
// UpdateSeq(true).
func (v *View) UpdateSeq() SequenceID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.meta.updateSeq
}
