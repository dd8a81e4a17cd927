package couchreq

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// Param is a single view query parameter, created by one of the
// constructors below. The parameter set is deliberately closed: arbitrary
// query options cannot be injected, so every parameter a view can be
// given has a known wire encoding.
//
// Values are encoded when the Param is constructed. An encoding failure
// is carried inside the Param and surfaces, as a 400-status error, from
// the access that would have sent it.
type Param struct {
	name string
	val  string
	err  error
}

// jsonParam encodes key-typed values, which CouchDB expects as JSON even
// inside the query string.
func jsonParam(name string, value interface{}) Param {
	enc, err := json.Marshal(value)
	if err != nil {
		return Param{name: name, err: err}
	}
	return Param{name: name, val: string(enc)}
}

func stringParam(name, value string) Param {
	return Param{name: name, val: value}
}

func boolParam(name string, value bool) Param {
	return Param{name: name, val: strconv.FormatBool(value)}
}

func intParam(name string, value int) Param {
	return Param{name: name, val: strconv.Itoa(value)}
}

// Key restricts a view to rows with exactly the given key.
func Key(key interface{}) Param {
	return jsonParam("key", key)
}

// Keys restricts a view to rows matching any of the given keys. A view
// queried with Keys sends a POST carrying the key list in the request
// body, so the number of keys is not limited by URL length.
func Keys(keys ...interface{}) Param {
	return jsonParam("keys", keys)
}

// StartKey sets the key at which the view traversal begins.
func StartKey(key interface{}) Param {
	return jsonParam("startkey", key)
}

// EndKey sets the key at which the view traversal ends.
func EndKey(key interface{}) Param {
	return jsonParam("endkey", key)
}

// StartKeyDocID breaks ties between rows sharing the start key.
func StartKeyDocID(docID string) Param {
	return stringParam("startkey_docid", docID)
}

// EndKeyDocID breaks ties between rows sharing the end key.
func EndKeyDocID(docID string) Param {
	return stringParam("endkey_docid", docID)
}

// Skip omits the first n rows from the result.
func Skip(n int) Param {
	return intParam("skip", n)
}

// Limit caps the number of rows returned.
func Limit(n int) Param {
	return intParam("limit", n)
}

// Descending reverses the traversal order. Note that StartKey and EndKey
// are interpreted in traversal order, so they swap roles under
// Descending(true).
func Descending(descending bool) Param {
	return boolParam("descending", descending)
}

// IncludeDocs attaches the full document to each row.
func IncludeDocs(include bool) Param {
	return boolParam("include_docs", include)
}

// InclusiveEnd controls whether a row matching EndKey exactly is included.
// The server default is true.
func InclusiveEnd(inclusive bool) Param {
	return boolParam("inclusive_end", inclusive)
}

// Reduce controls whether the view's reduce function is applied. The
// server default is true for views that define one.
func Reduce(reduce bool) Param {
	return boolParam("reduce", reduce)
}

// Group reduces the view by exact key rather than to a single row.
func Group(group bool) Param {
	return boolParam("group", group)
}

// GroupLevel reduces the view grouped on the first n elements of its
// array keys.
func GroupLevel(n int) Param {
	return intParam("group_level", n)
}

// UpdateSeq asks the server to report the update sequence the view result
// reflects, readable afterwards with View.UpdateSeq.
func UpdateSeq(include bool) Param {
	return boolParam("update_seq", include)
}

// StaleMode is accepted by Stale.
type StaleMode string

const (
	// StaleOK serves the view as indexed, without waiting for an update.
	StaleOK StaleMode = "ok"
	// StaleUpdateAfter serves the view as indexed, then triggers an
	// index update.
	StaleUpdateAfter StaleMode = "update_after"
)

// Stale serves results from the present index without building it first,
// trading freshness for latency.
func Stale(mode StaleMode) Param {
	return stringParam("stale", string(mode))
}

// params is an immutable set of encoded view parameters. The zero value
// is an empty set.
type params struct {
	values map[string]Param
}

func newParams(options []Param) params {
	if len(options) == 0 {
		return params{}
	}
	return params{}.merge(options)
}

// merge returns a copy of p with options applied over it. A later value
// for the same parameter wins; p itself is never modified.
func (p params) merge(options []Param) params {
	merged := make(map[string]Param, len(p.values)+len(options))
	for k, v := range p.values {
		merged[k] = v
	}
	for _, o := range options {
		if o.name == "" {
			continue
		}
		merged[o.name] = o
	}
	return params{values: merged}
}

// query renders the parameters as URL query values. The keys parameter is
// excluded: it travels in a request body.
func (p params) query() (url.Values, error) {
	if len(p.values) == 0 {
		return nil, nil
	}
	q := make(url.Values, len(p.values))
	for name, o := range p.values {
		if o.err != nil {
			return nil, &RequestError{Status: http.StatusBadRequest, Err: errors.Wrapf(o.err, "couchreq: invalid %s parameter", name)}
		}
		if name == "keys" {
			continue
		}
		q.Set(name, o.val)
	}
	return q, nil
}

// keys returns the encoded key list for POST queries, and whether one was
// set.
func (p params) keys() (json.RawMessage, bool) {
	o, ok := p.values["keys"]
	if !ok || o.err != nil {
		return nil, false
	}
	return json.RawMessage(o.val), true
}
