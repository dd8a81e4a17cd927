package couchreq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"gitlab.com/flimzy/testy"
)

// uuidHandler serves the /_uuids endpoint, delegating every other request
// to next.
func uuidHandler(uuids []string, next func(*http.Request) (*http.Response, error)) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/_uuids" {
			return next(req)
		}
		body, _ := json.Marshal(map[string][]string{"uuids": uuids})
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       Body(string(body)),
			Request:    req,
		}, nil
	}
}

func TestDBPath(t *testing.T) {
	db := newTestDB(nil, nil)
	if p := db.path(); p != "testdb" {
		t.Errorf("Unexpected path: %s", p)
	}
	if p := db.path("_bulk_docs"); p != "testdb/_bulk_docs" {
		t.Errorf("Unexpected path: %s", p)
	}
}

func TestDBInfo(t *testing.T) {
	tests := []struct {
		name     string
		db       *Database
		expected *DatabaseInfo
		status   int
		err      string
	}{
		{
			name:   "network error",
			db:     newTestDB(nil, errors.New("net error")),
			status: 500,
			err:    `Get "http://example.com/testdb": net error`,
		},
		{
			name: "1.6.1",
			db: newTestDB(&http.Response{
				StatusCode: 200,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"db_name":"testdb","doc_count":5,"doc_del_count":1,"update_seq":78,"compact_running":false,"disk_size":16473}`),
			}, nil),
			expected: &DatabaseInfo{
				Name:         "testdb",
				DocCount:     5,
				DeletedCount: 1,
				DiskSize:     16473,
				UpdateSeq:    "78",
			},
		},
		{
			name: "2.3.1",
			db: newTestDB(&http.Response{
				StatusCode: 200,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"db_name":"testdb","doc_count":5,"doc_del_count":0,"update_seq":"78-g1AAAA","sizes":{"file":33153,"active":2316}}`),
			}, nil),
			expected: &DatabaseInfo{
				Name:       "testdb",
				DocCount:   5,
				DiskSize:   33153,
				ActiveSize: 2316,
				UpdateSeq:  "78-g1AAAA",
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, err := test.db.Info(context.Background())
			testy.StatusError(t, test.err, test.status, err)
			if d := testy.DiffInterface(test.expected, result); d != nil {
				t.Error(d)
			}
		})
	}
}

func TestLen(t *testing.T) {
	db := newTestDB(&http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       Body(`{"db_name":"testdb","doc_count":42}`),
	}, nil)
	count, err := db.Len(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 42 {
		t.Errorf("Unexpected count: %d", count)
	}
}

func TestSaveDoc(t *testing.T) {
	t.Run("map with id", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			if req.Method != http.MethodPut {
				t.Errorf("Unexpected method: %s", req.Method)
			}
			if req.URL.Path != "/testdb/bob" {
				t.Errorf("Unexpected path: %s", req.URL.Path)
			}
			return &http.Response{
				StatusCode: 201,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"ok":true,"id":"bob","rev":"1-4c6114"}`),
				Request:    req,
			}, nil
		})
		doc := map[string]interface{}{"_id": "bob", "name": "Bob"}
		id, rev, err := db.SaveDoc(context.Background(), doc)
		if err != nil {
			t.Fatal(err)
		}
		if id != "bob" || rev != "1-4c6114" {
			t.Errorf("Unexpected result: %s / %s", id, rev)
		}
		expected := map[string]interface{}{"_id": "bob", "_rev": "1-4c6114", "name": "Bob"}
		if d := testy.DiffInterface(expected, doc); d != nil {
			t.Error(d)
		}
	})
	t.Run("map without id", func(t *testing.T) {
		db := newCustomServer(uuidHandler([]string{"uuid1"}, func(req *http.Request) (*http.Response, error) {
			if req.Method != http.MethodPut {
				t.Errorf("Unexpected method: %s", req.Method)
			}
			if req.URL.Path != "/testdb/uuid1" {
				t.Errorf("Unexpected path: %s", req.URL.Path)
			}
			var body map[string]interface{}
			defer req.Body.Close() // nolint: errcheck
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["_id"] != "uuid1" {
				t.Errorf("Body lacks assigned _id: %v", body)
			}
			return &http.Response{
				StatusCode: 201,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"ok":true,"id":"uuid1","rev":"1-9c65"}`),
				Request:    req,
			}, nil
		})).DB("testdb")
		doc := map[string]interface{}{"name": "Alice"}
		id, rev, err := db.SaveDoc(context.Background(), doc)
		if err != nil {
			t.Fatal(err)
		}
		if id != "uuid1" || rev != "1-9c65" {
			t.Errorf("Unexpected result: %s / %s", id, rev)
		}
		if doc["_id"] != "uuid1" || doc["_rev"] != "1-9c65" {
			t.Errorf("Doc not updated in place: %v", doc)
		}
	})
	t.Run("update bumps rev", func(t *testing.T) {
		rev := 0
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			rev++
			body, _ := json.Marshal(map[string]interface{}{"ok": true, "id": "bob", "rev": []string{"1-a", "2-b"}[rev-1]})
			return &http.Response{
				StatusCode: 201,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(string(body)),
				Request:    req,
			}, nil
		})
		doc := map[string]interface{}{"_id": "bob", "name": "Bob"}
		ctx := context.Background()
		if _, _, err := db.SaveDoc(ctx, doc); err != nil {
			t.Fatal(err)
		}
		if doc["_rev"] != "1-a" {
			t.Fatalf("Unexpected rev: %v", doc["_rev"])
		}
		if _, _, err := db.SaveDoc(ctx, doc); err != nil {
			t.Fatal(err)
		}
		if doc["_id"] != "bob" || doc["_rev"] != "2-b" {
			t.Errorf("Unexpected identity after update: %v / %v", doc["_id"], doc["_rev"])
		}
	})
	t.Run("struct doc", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/testdb/carl" {
				t.Errorf("Unexpected path: %s", req.URL.Path)
			}
			return &http.Response{
				StatusCode: 201,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"ok":true,"id":"carl","rev":"1-0abc"}`),
				Request:    req,
			}, nil
		})
		doc := struct {
			ID   string `json:"_id"`
			Name string `json:"name"`
		}{ID: "carl", Name: "Carl"}
		id, rev, err := db.SaveDoc(context.Background(), doc)
		if err != nil {
			t.Fatal(err)
		}
		if id != "carl" || rev != "1-0abc" {
			t.Errorf("Unexpected result: %s / %s", id, rev)
		}
	})
	t.Run("struct doc without id", func(t *testing.T) {
		// Only map documents can be assigned an ID in place.
		db := newTestDB(nil, nil)
		_, _, err := db.SaveDoc(context.Background(), struct{}{})
		testy.StatusError(t, "couchreq: _id required", http.StatusBadRequest, err)
	})
	t.Run("nil doc", func(t *testing.T) {
		db := newTestDB(nil, nil)
		_, _, err := db.SaveDoc(context.Background(), nil)
		testy.StatusError(t, "couchreq: doc required", http.StatusBadRequest, err)
	})
	t.Run("conflict", func(t *testing.T) {
		db := newTestDB(&http.Response{
			StatusCode:    409,
			Header:        http.Header{"Content-Type": {"application/json"}},
			ContentLength: 58,
			Body:          Body(`{"error":"conflict","reason":"Document update conflict."}`),
		}, nil)
		doc := map[string]interface{}{"_id": "bob", "_rev": "1-stale"}
		_, _, err := db.SaveDoc(context.Background(), doc)
		testy.StatusError(t, "Conflict: Document update conflict.", http.StatusConflict, err)
		if !IsConflict(err) {
			t.Error("Expected a conflict error")
		}
	})
	t.Run("id with slash", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			if req.URL.RawPath != "/testdb/foo%2Fbar" {
				t.Errorf("Unexpected path: %s", req.URL.RawPath)
			}
			return &http.Response{
				StatusCode: 201,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"ok":true,"id":"foo/bar","rev":"1-77cd"}`),
				Request:    req,
			}, nil
		})
		doc := map[string]interface{}{"_id": "foo/bar"}
		id, _, err := db.SaveDoc(context.Background(), doc)
		if err != nil {
			t.Fatal(err)
		}
		if id != "foo/bar" {
			t.Errorf("Unexpected id: %s", id)
		}
	})
}

func TestSaveDocBatch(t *testing.T) {
	db := newCustomDB(func(req *http.Request) (*http.Response, error) {
		if batch := req.URL.Query().Get("batch"); batch != "ok" {
			t.Errorf("Unexpected batch param: %q", batch)
		}
		return &http.Response{
			StatusCode: 202,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       Body(`{"ok":true,"id":"bob"}`),
			Request:    req,
		}, nil
	})
	doc := map[string]interface{}{"_id": "bob"}
	id, err := db.SaveDocBatch(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if id != "bob" {
		t.Errorf("Unexpected id: %s", id)
	}
	if _, ok := doc["_rev"]; ok {
		t.Error("Batch save must not invent a revision")
	}
}

func TestGetDoc(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		db := newTestDB(nil, nil)
		err := db.GetDoc(context.Background(), "", "", nil)
		testy.StatusError(t, "couchreq: docID required", http.StatusBadRequest, err)
	})
	t.Run("decode into struct", func(t *testing.T) {
		db := newTestDB(&http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       Body(`{"_id":"bob","_rev":"1-4c61","name":"Bob"}`),
		}, nil)
		var doc struct {
			ID   string `json:"_id"`
			Rev  string `json:"_rev"`
			Name string `json:"name"`
		}
		if err := db.GetDoc(context.Background(), "bob", "", &doc); err != nil {
			t.Fatal(err)
		}
		if doc.Name != "Bob" || doc.Rev != "1-4c61" {
			t.Errorf("Unexpected doc: %+v", doc)
		}
	})
	t.Run("specific rev", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			if rev := req.URL.Query().Get("rev"); rev != "1-old" {
				t.Errorf("Unexpected rev: %q", rev)
			}
			return &http.Response{
				StatusCode: 200,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"_id":"bob","_rev":"1-old"}`),
				Request:    req,
			}, nil
		})
		var doc json.RawMessage
		if err := db.GetDoc(context.Background(), "bob", "1-old", &doc); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("not found", func(t *testing.T) {
		db := newTestDB(&http.Response{
			StatusCode:    404,
			Header:        http.Header{"Content-Type": {"application/json"}},
			ContentLength: 41,
			Body:          Body(`{"error":"not_found","reason":"missing"}`),
		}, nil)
		var doc json.RawMessage
		err := db.GetDoc(context.Background(), "bob", "", &doc)
		testy.StatusError(t, "Not Found: missing", http.StatusNotFound, err)
	})
}

func TestGetRev(t *testing.T) {
	tests := []struct {
		name     string
		db       *Database
		docID    string
		expected string
		status   int
		err      string
	}{
		{
			name:   "missing id",
			db:     newTestDB(nil, nil),
			status: http.StatusBadRequest,
			err:    "couchreq: docID required",
		},
		{
			name: "found",
			db: newTestDB(&http.Response{
				StatusCode: 200,
				Header:     http.Header{"ETag": {`"1-4c6114c65e295552ab1019e2b046b10e"`}},
				Body:       Body(""),
			}, nil),
			docID:    "bob",
			expected: "1-4c6114c65e295552ab1019e2b046b10e",
		},
		{
			name: "no etag",
			db: newTestDB(&http.Response{
				StatusCode: 200,
				Body:       Body(""),
			}, nil),
			docID:  "bob",
			status: http.StatusBadGateway,
			err:    "couchreq: invalid response: couchreq: unable to determine document revision",
		},
		{
			name: "not found",
			db: newTestDB(&http.Response{
				StatusCode: 404,
				Body:       Body(""),
			}, nil),
			docID:  "bob",
			status: http.StatusNotFound,
			err:    "Not Found",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rev, err := test.db.GetRev(context.Background(), test.docID)
			testy.StatusError(t, test.err, test.status, err)
			if rev != test.expected {
				t.Errorf("Unexpected rev: %s", rev)
			}
		})
	}
}

func TestDocExists(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		db := newTestDB(&http.Response{StatusCode: 200, Body: Body("")}, nil)
		exists, err := db.DocExists(context.Background(), "bob")
		if err != nil {
			t.Fatal(err)
		}
		if !exists {
			t.Error("Expected doc to exist")
		}
	})
	t.Run("not found", func(t *testing.T) {
		db := newTestDB(&http.Response{StatusCode: 404, Body: Body("")}, nil)
		exists, err := db.DocExists(context.Background(), "bob")
		if err != nil {
			t.Fatal(err)
		}
		if exists {
			t.Error("Expected doc to be missing")
		}
	})
	t.Run("server error", func(t *testing.T) {
		db := newTestDB(&http.Response{StatusCode: 500, Body: Body("")}, nil)
		_, err := db.DocExists(context.Background(), "bob")
		testy.StatusError(t, "Internal Server Error", 500, err)
	})
}

func TestDeleteDoc(t *testing.T) {
	tests := []struct {
		name       string
		docID, rev string
		db         *Database
		expected   string
		status     int
		err        string
	}{
		{
			name:   "missing id",
			db:     newTestDB(nil, nil),
			status: http.StatusBadRequest,
			err:    "couchreq: docID required",
		},
		{
			name:   "missing rev",
			docID:  "bob",
			db:     newTestDB(nil, nil),
			status: http.StatusBadRequest,
			err:    "couchreq: rev required",
		},
		{
			name:  "success",
			docID: "bob",
			rev:   "1-4c61",
			db: newTestDB(&http.Response{
				StatusCode: 200,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"ok":true,"id":"bob","rev":"2-9d58"}`),
			}, nil),
			expected: "2-9d58",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rev, err := test.db.DeleteDoc(context.Background(), test.docID, test.rev)
			testy.StatusError(t, test.err, test.status, err)
			if rev != test.expected {
				t.Errorf("Unexpected rev: %s", rev)
			}
		})
	}
	t.Run("rev in query", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			if req.Method != http.MethodDelete {
				t.Errorf("Unexpected method: %s", req.Method)
			}
			if rev := req.URL.Query().Get("rev"); rev != "1-4c61" {
				t.Errorf("Unexpected rev: %q", rev)
			}
			return &http.Response{
				StatusCode: 200,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"ok":true,"id":"bob","rev":"2-9d58"}`),
				Request:    req,
			}, nil
		})
		if _, err := db.DeleteDoc(context.Background(), "bob", "1-4c61"); err != nil {
			t.Fatal(err)
		}
	})
}

func TestCopyDoc(t *testing.T) {
	t.Run("new target", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			if req.Method != "COPY" {
				t.Errorf("Unexpected method: %s", req.Method)
			}
			if dest := req.Header.Get("Destination"); dest != "bar" {
				t.Errorf("Unexpected destination: %s", dest)
			}
			return &http.Response{
				StatusCode: 201,
				Header: http.Header{
					"Content-Type": {"application/json"},
					"ETag":         {`"1-f3x"`},
				},
				Body:    Body(`{"ok":true,"id":"bar","rev":"1-f3x"}`),
				Request: req,
			}, nil
		})
		rev, err := db.CopyDoc(context.Background(), "foo", "bar", "")
		if err != nil {
			t.Fatal(err)
		}
		if rev != "1-f3x" {
			t.Errorf("Unexpected rev: %s", rev)
		}
	})
	t.Run("overwrite", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			if dest := req.Header.Get("Destination"); dest != "bar?rev=3-old" {
				t.Errorf("Unexpected destination: %s", dest)
			}
			return &http.Response{
				StatusCode: 201,
				Header: http.Header{
					"Content-Type": {"application/json"},
					"ETag":         {`"4-new"`},
				},
				Body:    Body(`{"ok":true,"id":"bar","rev":"4-new"}`),
				Request: req,
			}, nil
		})
		rev, err := db.CopyDoc(context.Background(), "foo", "bar", "3-old")
		if err != nil {
			t.Fatal(err)
		}
		if rev != "4-new" {
			t.Errorf("Unexpected rev: %s", rev)
		}
	})
	t.Run("missing target", func(t *testing.T) {
		db := newTestDB(nil, nil)
		_, err := db.CopyDoc(context.Background(), "foo", "", "")
		testy.StatusError(t, "couchreq: targetID required", http.StatusBadRequest, err)
	})
}

func TestSaveDocs(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		db := newTestDB(nil, nil)
		results, err := db.SaveDocs(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if results != nil {
			t.Errorf("Unexpected results: %v", results)
		}
	})
	t.Run("all accepted", func(t *testing.T) {
		db := newCustomServer(uuidHandler([]string{"uuid1"}, func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/testdb/_bulk_docs" {
				t.Errorf("Unexpected path: %s", req.URL.Path)
			}
			var body struct {
				Docs []map[string]interface{} `json:"docs"`
			}
			defer req.Body.Close() // nolint: errcheck
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if len(body.Docs) != 2 || body.Docs[1]["_id"] != "uuid1" {
				t.Errorf("Unexpected body: %v", body.Docs)
			}
			return &http.Response{
				StatusCode: 201,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`[{"ok":true,"id":"bob","rev":"1-a"},{"ok":true,"id":"uuid1","rev":"1-b"}]`),
				Request:    req,
			}, nil
		})).DB("testdb")
		bob := map[string]interface{}{"_id": "bob"}
		anon := map[string]interface{}{"name": "Anon"}
		results, err := db.SaveDocs(context.Background(), []interface{}{bob, anon})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Fatalf("Unexpected result count: %d", len(results))
		}
		if bob["_rev"] != "1-a" {
			t.Errorf("bob not updated: %v", bob)
		}
		if anon["_id"] != "uuid1" || anon["_rev"] != "1-b" {
			t.Errorf("anon not updated: %v", anon)
		}
	})
	t.Run("partial rejection", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			defer req.Body.Close() // nolint: errcheck
			_, _ = io.Copy(io.Discard, req.Body)
			return &http.Response{
				StatusCode: 201,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`[{"ok":true,"id":"a","rev":"2-x"},{"id":"b","error":"conflict","reason":"Document update conflict."}]`),
				Request:    req,
			}, nil
		})
		a := map[string]interface{}{"_id": "a", "_rev": "1-x"}
		b := map[string]interface{}{"_id": "b", "_rev": "1-stale"}
		results, err := db.SaveDocs(context.Background(), []interface{}{a, b})
		var bulkErr *BulkSaveError
		if !errors.As(err, &bulkErr) {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(bulkErr.Failures) != 1 || bulkErr.Failures[0].ID != "b" {
			t.Errorf("Unexpected failures: %v", bulkErr.Failures)
		}
		if bulkErr.Error() != `couchreq: bulk save rejected document "b": conflict` {
			t.Errorf("Unexpected error string: %s", bulkErr)
		}
		if len(results) != 2 {
			t.Fatalf("Unexpected result count: %d", len(results))
		}
		// The accepted doc still gets its new revision; the rejected one
		// keeps its stale one.
		if a["_rev"] != "2-x" {
			t.Errorf("a not updated: %v", a)
		}
		if b["_rev"] != "1-stale" {
			t.Errorf("b unexpectedly updated: %v", b)
		}
	})
}

func TestDeleteDocs(t *testing.T) {
	t.Run("marks deleted", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			var body struct {
				Docs []map[string]interface{} `json:"docs"`
			}
			defer req.Body.Close() // nolint: errcheck
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			for _, doc := range body.Docs {
				if doc["_deleted"] != true {
					t.Errorf("Doc not marked deleted: %v", doc)
				}
			}
			return &http.Response{
				StatusCode: 201,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`[{"ok":true,"id":"a","rev":"2-x"}]`),
				Request:    req,
			}, nil
		})
		doc := map[string]interface{}{"_id": "a", "_rev": "1-x"}
		if _, err := db.DeleteDocs(context.Background(), []interface{}{doc}); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("missing rev", func(t *testing.T) {
		db := newTestDB(nil, nil)
		doc := map[string]interface{}{"_id": "a"}
		_, err := db.DeleteDocs(context.Background(), []interface{}{doc})
		testy.StatusError(t, "couchreq: _rev required", http.StatusBadRequest, err)
	})
}

func TestMaintenance(t *testing.T) {
	tests := []struct {
		name   string
		call   func(context.Context, *Database) error
		method string
		path   string
	}{
		{
			name:   "compact",
			call:   func(ctx context.Context, db *Database) error { return db.Compact(ctx) },
			method: "POST",
			path:   "/testdb/_compact",
		},
		{
			name: "compact view",
			call: func(ctx context.Context, db *Database) error {
				return db.CompactView(ctx, "_design/people")
			},
			method: "POST",
			path:   "/testdb/_compact/people",
		},
		{
			name:   "view cleanup",
			call:   func(ctx context.Context, db *Database) error { return db.ViewCleanup(ctx) },
			method: "POST",
			path:   "/testdb/_view_cleanup",
		},
		{
			name:   "ensure full commit",
			call:   func(ctx context.Context, db *Database) error { return db.EnsureFullCommit(ctx) },
			method: "POST",
			path:   "/testdb/_ensure_full_commit",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			db := newCustomDB(func(req *http.Request) (*http.Response, error) {
				if req.Method != test.method {
					t.Errorf("Unexpected method: %s", req.Method)
				}
				if req.URL.Path != test.path {
					t.Errorf("Unexpected path: %s", req.URL.Path)
				}
				return &http.Response{
					StatusCode: 202,
					Header:     http.Header{"Content-Type": {"application/json"}},
					Body:       Body(`{"ok":true}`),
					Request:    req,
				}, nil
			})
			if err := test.call(context.Background(), db); err != nil {
				t.Fatal(err)
			}
		})
	}
	t.Run("compact view missing ddoc", func(t *testing.T) {
		db := newTestDB(nil, nil)
		err := db.CompactView(context.Background(), "")
		testy.StatusError(t, "couchreq: ddoc required", http.StatusBadRequest, err)
	})
}

func TestSecurity(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		db := newTestDB(&http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       Body(`{"admins":{"names":["bob"]},"members":{"roles":["developers"]}}`),
		}, nil)
		sec, err := db.Security(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		expected := &Security{
			Admins:  SecurityGroup{Names: []string{"bob"}},
			Members: SecurityGroup{Roles: []string{"developers"}},
		}
		if d := testy.DiffInterface(expected, sec); d != nil {
			t.Error(d)
		}
	})
	t.Run("set", func(t *testing.T) {
		db := newCustomDB(func(req *http.Request) (*http.Response, error) {
			if req.Method != http.MethodPut {
				t.Errorf("Unexpected method: %s", req.Method)
			}
			if req.URL.Path != "/testdb/_security" {
				t.Errorf("Unexpected path: %s", req.URL.Path)
			}
			return &http.Response{
				StatusCode: 200,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       Body(`{"ok":true}`),
				Request:    req,
			}, nil
		})
		err := db.SetSecurity(context.Background(), &Security{
			Admins: SecurityGroup{Names: []string{"bob"}},
		})
		if err != nil {
			t.Fatal(err)
		}
	})
	t.Run("set nil", func(t *testing.T) {
		db := newTestDB(nil, nil)
		err := db.SetSecurity(context.Background(), nil)
		testy.StatusError(t, "couchreq: security required", http.StatusBadRequest, err)
	})
}

func TestDatabaseWithSlash(t *testing.T) {
	server := newCustomServer(func(req *http.Request) (*http.Response, error) {
		if req.URL.RawPath != "/foo%2Fbar" {
			t.Errorf("Unexpected path: %s", req.URL.RawPath)
		}
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       Body(`{"db_name":"foo/bar","doc_count":0}`),
			Request:    req,
		}, nil
	})
	if _, err := server.DB("foo/bar").Info(context.Background()); err != nil {
		t.Fatal(err)
	}
}
