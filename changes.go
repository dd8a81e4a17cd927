package couchreq

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/couchreq/couchreq/resource"
)

// SequenceID is a CouchDB update sequence. Old servers report sequences
// as numbers, newer ones as opaque strings; both decode into a
// SequenceID.
type SequenceID string

// UnmarshalJSON satisfies the json.Unmarshaler interface.
func (s *SequenceID) UnmarshalJSON(data []byte) error {
	*s = SequenceID(bytes.Trim(data, `"`))
	return nil
}

// ChangedRevs is the list of leaf revisions a change touches, flattened
// from the server's list of objects.
type ChangedRevs []string

// UnmarshalJSON satisfies the json.Unmarshaler interface.
func (c *ChangedRevs) UnmarshalJSON(data []byte) error {
	var raw []struct {
		Rev string `json:"rev"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	revs := make([]string, 0, len(raw))
	for _, r := range raw {
		revs = append(revs, r.Rev)
	}
	*c = revs
	return nil
}

// Change is a single entry in a database's changes feed.
type Change struct {
	// ID is the changed document's ID.
	ID string `json:"id"`
	// Seq is the update sequence of the change.
	Seq SequenceID `json:"seq"`
	// Deleted is true when the change is a deletion.
	Deleted bool `json:"deleted"`
	// Changes lists the document's leaf revisions after the change.
	Changes ChangedRevs `json:"changes"`
	// Doc is the changed document, present only when the feed was
	// requested with IncludeDocs.
	Doc json.RawMessage `json:"doc"`
}

// Changes is one complete read of a database's changes feed.
type Changes struct {
	// Results are the individual changes, in feed order.
	Results []Change `json:"results"`
	// LastSeq is the sequence of the last change in the feed.
	LastSeq SequenceID `json:"last_seq"`
	// Pending counts changes beyond Limit, when the server reports it.
	Pending int64 `json:"pending"`
}

// ChangesOptions controls a Changes request. The zero value reads the
// whole feed.
type ChangesOptions struct {
	// Since starts the feed after the given update sequence. Use "now"
	// to read an empty feed and learn the current sequence.
	Since SequenceID
	// Limit caps the number of results. Zero means no limit.
	Limit int
	// Descending returns the changes in reverse sequence order.
	Descending bool
	// Filter names a filter function, as "ddoc/filtername".
	Filter string
	// IncludeDocs attaches each changed document to its entry.
	IncludeDocs bool
	// Style selects how much revision information to report: "main_only"
	// (the server default) or "all_docs".
	Style string
}

// Changes reads the database's changes feed in one request. Only the
// normal feed is supported: the response is complete once returned, and
// polling with Since is the way to follow later activity.
func (d *Database) Changes(ctx context.Context, opts *ChangesOptions) (*Changes, error) {
	query := url.Values{}
	if opts != nil {
		if opts.Since != "" {
			query.Set("since", string(opts.Since))
		}
		if opts.Limit > 0 {
			query.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Descending {
			query.Set("descending", "true")
		}
		if opts.Filter != "" {
			query.Set("filter", opts.Filter)
		}
		if opts.IncludeDocs {
			query.Set("include_docs", "true")
		}
		if opts.Style != "" {
			query.Set("style", opts.Style)
		}
	}
	changes := &Changes{}
	if err := doJSON(ctx, d.server.Client, http.MethodGet, d.path("_changes"), &resource.Options{Query: query}, changes); err != nil {
		return nil, err
	}
	return changes, nil
}
