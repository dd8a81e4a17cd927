package couchreq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/couchreq/couchreq/resource"
)

// Database is a handle to a single database on a Server. Handles are
// cheap: they carry no connection state of their own.
type Database struct {
	server *Server
	name   string
}

// Name returns the database name.
func (d *Database) Name() string {
	return d.name
}

// Server returns the server this database belongs to.
func (d *Database) Server() *Server {
	return d.server
}

// path assembles a request path under this database. Document IDs must
// already be encoded with resource.EncodeDocID.
func (d *Database) path(parts ...string) string {
	elems := make([]string, 0, len(parts)+1)
	elems = append(elems, url.PathEscape(d.name))
	elems = append(elems, parts...)
	return strings.Join(elems, "/")
}

// DatabaseInfo describes a database's state as reported by the server.
type DatabaseInfo struct {
	Name           string     `json:"db_name"`
	DocCount       int64      `json:"doc_count"`
	DeletedCount   int64      `json:"doc_del_count"`
	CompactRunning bool       `json:"compact_running"`
	DiskSize       int64      `json:"disk_size"`
	ActiveSize     int64      `json:"active_size"`
	UpdateSeq      SequenceID `json:"update_seq"`
}

// Info fetches the database's state: document counts, sizes, and the
// current update sequence.
func (d *Database) Info(ctx context.Context) (*DatabaseInfo, error) {
	result := struct {
		DatabaseInfo
		Sizes struct {
			File   int64 `json:"file"`
			Active int64 `json:"active"`
		} `json:"sizes"`
		UpdateSeq json.RawMessage `json:"update_seq"`
	}{}
	if err := doJSON(ctx, d.server.Client, http.MethodGet, d.path(), nil, &result); err != nil {
		return nil, err
	}
	info := result.DatabaseInfo
	// Modern servers report sizes in a sub-object.
	if result.Sizes.File > 0 {
		info.DiskSize = result.Sizes.File
	}
	if result.Sizes.Active > 0 {
		info.ActiveSize = result.Sizes.Active
	}
	info.UpdateSeq = SequenceID(bytes.Trim(result.UpdateSeq, `"`))
	return &info, nil
}

// Len returns the number of documents in the database.
func (d *Database) Len(ctx context.Context) (int64, error) {
	info, err := d.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.DocCount, nil
}

// SaveDoc creates or updates a document. The document may be any
// JSON-encodable value; its _id and _rev fields, when present, identify
// the document and revision to update.
//
// A map document without an _id is assigned a server-generated UUID, so
// that the save is a PUT to a known location: a request repeated by an
// intermediary then cannot create a second document. Map documents have
// their _id and _rev updated in place from the save result.
func (d *Database) SaveDoc(ctx context.Context, doc interface{}) (id, rev string, err error) {
	return d.saveDoc(ctx, doc, nil)
}

// SaveDocBatch saves doc in batch mode: the server acknowledges receipt
// without waiting for the write to reach storage, and reports no
// revision. Use SaveDoc where durability matters.
func (d *Database) SaveDocBatch(ctx context.Context, doc interface{}) (id string, err error) {
	id, _, err = d.saveDoc(ctx, doc, url.Values{"batch": {"ok"}})
	return id, err
}

func (d *Database) saveDoc(ctx context.Context, doc interface{}, query url.Values) (string, string, error) {
	docID, _, m, err := docIdentity(doc)
	if err != nil {
		return "", "", err
	}
	if docID == "" {
		if m == nil {
			return "", "", missingArg("_id")
		}
		docID, err = d.server.UUID(ctx)
		if err != nil {
			return "", "", err
		}
		m["_id"] = docID
	}
	opts := &resource.Options{
		GetBody: resource.BodyEncoder(doc),
		Query:   query,
	}
	var result struct {
		ID  string `json:"id"`
		Rev string `json:"rev"`
	}
	if err := doJSON(ctx, d.server.Client, http.MethodPut, d.path(resource.EncodeDocID(docID)), opts, &result); err != nil {
		return "", "", err
	}
	if m != nil {
		m["_id"] = result.ID
		if result.Rev != "" {
			m["_rev"] = result.Rev
		}
	}
	return result.ID, result.Rev, nil
}

// GetDoc fetches a document into dest, which may be any JSON-decodable
// value; use a *json.RawMessage to capture the document verbatim. Pass
// rev to fetch a specific revision instead of the current one.
func (d *Database) GetDoc(ctx context.Context, docID, rev string, dest interface{}) error {
	if docID == "" {
		return missingArg("docID")
	}
	opts := &resource.Options{}
	if rev != "" {
		opts.Query = url.Values{"rev": {rev}}
	}
	return doJSON(ctx, d.server.Client, http.MethodGet, d.path(resource.EncodeDocID(docID)), opts, dest)
}

// GetRev returns the current revision of a document without fetching its
// body.
func (d *Database) GetRev(ctx context.Context, docID string) (string, error) {
	if docID == "" {
		return "", missingArg("docID")
	}
	res, err := d.server.DoReq(ctx, http.MethodHead, d.path(resource.EncodeDocID(docID)), nil)
	if err != nil {
		return "", reqError(err)
	}
	_ = res.Body.Close()
	if err := resource.ResponseError(res); err != nil {
		return "", reqError(err)
	}
	rev, err := resource.GetRev(res)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	return rev, nil
}

// DocExists reports whether a document exists in the database.
func (d *Database) DocExists(ctx context.Context, docID string) (bool, error) {
	if docID == "" {
		return false, missingArg("docID")
	}
	res, err := d.server.DoReq(ctx, http.MethodHead, d.path(resource.EncodeDocID(docID)), nil)
	if err != nil {
		return false, reqError(err)
	}
	_ = res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, reqError(resource.ResponseError(res))
}

// DeleteDoc marks a document deleted. The current revision must be
// supplied; the revision of the deletion stub is returned.
func (d *Database) DeleteDoc(ctx context.Context, docID, rev string) (string, error) {
	if docID == "" {
		return "", missingArg("docID")
	}
	if rev == "" {
		return "", missingArg("rev")
	}
	opts := &resource.Options{Query: url.Values{"rev": {rev}}}
	var result struct {
		Rev string `json:"rev"`
	}
	if err := doJSON(ctx, d.server.Client, http.MethodDelete, d.path(resource.EncodeDocID(docID)), opts, &result); err != nil {
		return "", err
	}
	return result.Rev, nil
}

// CopyDoc copies a document server-side to targetID. If the target
// document already exists, its current revision must be passed in
// targetRev so the copy overwrites it. The new revision of the target is
// returned.
func (d *Database) CopyDoc(ctx context.Context, sourceID, targetID, targetRev string) (string, error) {
	if sourceID == "" {
		return "", missingArg("sourceID")
	}
	if targetID == "" {
		return "", missingArg("targetID")
	}
	dest := targetID
	if targetRev != "" {
		dest += "?rev=" + targetRev
	}
	opts := &resource.Options{Destination: dest}
	res, err := d.server.DoReq(ctx, "COPY", d.path(resource.EncodeDocID(sourceID)), opts)
	if err != nil {
		return "", reqError(err)
	}
	if err := resource.ResponseError(res); err != nil {
		return "", reqError(err)
	}
	defer func() { _ = res.Body.Close() }()
	rev, err := resource.GetRev(res)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	return rev, nil
}

// BulkResult is the server's verdict on one document of a bulk request.
type BulkResult struct {
	ID     string `json:"id"`
	Rev    string `json:"rev"`
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// BulkSaveError reports documents rejected in a bulk request. The
// remaining documents were saved.
type BulkSaveError struct {
	// Failures holds one entry per rejected document.
	Failures []BulkResult
}

func (e *BulkSaveError) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("couchreq: bulk save rejected document %q: %s", f.ID, f.Error)
	}
	return fmt.Sprintf("couchreq: bulk save rejected %d documents", len(e.Failures))
}

// SaveDocs stores docs in a single bulk request. Map documents without an
// _id are assigned server-generated UUIDs first, and have their _id and
// _rev updated in place as results arrive; other document types are sent
// as given.
//
// Acceptance is per document: when the server rejects some, on conflict
// for instance, the returned error is a *BulkSaveError naming them, and
// the full per-document results are still returned.
func (d *Database) SaveDocs(ctx context.Context, docs []interface{}) ([]BulkResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	maps := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		id, _, m, err := docIdentity(doc)
		if err != nil {
			return nil, err
		}
		if m != nil && id == "" {
			uuid, err := d.server.UUID(ctx)
			if err != nil {
				return nil, err
			}
			m["_id"] = uuid
		}
		maps[i] = m
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(ctx)
	defer cancel()
	body, errFunc := resource.EncodeBody(struct {
		Docs []interface{} `json:"docs"`
	}{Docs: docs}, cancel)
	var results []BulkResult
	err := doJSON(ctx, d.server.Client, http.MethodPost, d.path("_bulk_docs"), &resource.Options{Body: body}, &results)
	if jsonErr := errFunc(); jsonErr != nil {
		return nil, &RequestError{Status: http.StatusBadRequest, Err: jsonErr}
	}
	if err != nil {
		return nil, err
	}
	var failures []BulkResult
	for i, r := range results {
		if r.Error != "" {
			failures = append(failures, r)
			continue
		}
		if i < len(maps) && maps[i] != nil {
			maps[i]["_id"] = r.ID
			maps[i]["_rev"] = r.Rev
		}
	}
	if len(failures) > 0 {
		return results, &BulkSaveError{Failures: failures}
	}
	return results, nil
}

// DeleteDocs marks all docs deleted in a single bulk request. Every doc
// must carry its _id and _rev. Map documents gain a _deleted marker and
// their new revision in place; acceptance is per document, as with
// SaveDocs.
func (d *Database) DeleteDocs(ctx context.Context, docs []interface{}) ([]BulkResult, error) {
	payload := make([]interface{}, len(docs))
	for i, doc := range docs {
		id, rev, m, err := docIdentity(doc)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, missingArg("_id")
		}
		if rev == "" {
			return nil, missingArg("_rev")
		}
		if m != nil {
			m["_deleted"] = true
			payload[i] = m
			continue
		}
		payload[i] = map[string]interface{}{"_id": id, "_rev": rev, "_deleted": true}
	}
	return d.SaveDocs(ctx, payload)
}

// Compact schedules compaction of the database. The server acknowledges
// the request and compacts in the background; watch ActiveTasks for
// progress.
func (d *Database) Compact(ctx context.Context) error {
	return doError(ctx, d.server.Client, http.MethodPost, d.path("_compact"), nil)
}

// CompactView schedules compaction of the named design document's view
// indexes.
func (d *Database) CompactView(ctx context.Context, ddoc string) error {
	if ddoc == "" {
		return missingArg("ddoc")
	}
	ddoc = strings.TrimPrefix(ddoc, "_design/")
	return doError(ctx, d.server.Client, http.MethodPost, d.path("_compact", url.PathEscape(ddoc)), nil)
}

// ViewCleanup removes index files left behind by deleted views.
func (d *Database) ViewCleanup(ctx context.Context) error {
	return doError(ctx, d.server.Client, http.MethodPost, d.path("_view_cleanup"), nil)
}

// EnsureFullCommit asks the server to flush delayed commits to storage.
func (d *Database) EnsureFullCommit(ctx context.Context) error {
	return doError(ctx, d.server.Client, http.MethodPost, d.path("_ensure_full_commit"), nil)
}

// Security describes the database's member and admin lists.
type Security struct {
	Admins  SecurityGroup `json:"admins,omitempty"`
	Members SecurityGroup `json:"members,omitempty"`
}

// SecurityGroup is one named set of users and roles.
type SecurityGroup struct {
	Names []string `json:"names,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Security fetches the database's security object.
func (d *Database) Security(ctx context.Context) (*Security, error) {
	sec := &Security{}
	if err := doJSON(ctx, d.server.Client, http.MethodGet, d.path("_security"), nil, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

// SetSecurity replaces the database's security object.
func (d *Database) SetSecurity(ctx context.Context, security *Security) error {
	if security == nil {
		return missingArg("security")
	}
	opts := &resource.Options{JSON: security}
	return doError(ctx, d.server.Client, http.MethodPut, d.path("_security"), opts)
}

// AllDocs returns a View over the database's primary index, which maps
// document IDs to revisions.
func (d *Database) AllDocs(options ...Param) *View {
	return d.newView("_all_docs", options)
}

// View returns a View over one view of a design document. The design
// document may be named with or without the "_design/" prefix.
func (d *Database) View(ddoc, view string, options ...Param) *View {
	ddoc = strings.TrimPrefix(ddoc, "_design/")
	return d.newView("_design/"+url.PathEscape(ddoc)+"/_view/"+url.PathEscape(view), options)
}

func (d *Database) newView(path string, options []Param) *View {
	return &View{
		db:     d,
		path:   path,
		params: newParams(options),
	}
}
