package ddoc

import (
	"context"
	"reflect"
	"sort"

	"github.com/pkg/errors"

	"github.com/couchreq/couchreq"
)

// DefaultSuffix is appended to staged document names when Stage or
// Promote is called with an empty suffix.
const DefaultSuffix = "tmp"

// Result reports the outcome of pushing one design document.
type Result struct {
	// ID is the document ID that was written.
	ID string
	// Rev is the document's revision after the push.
	Rev string
	// Updated is false when the stored document already matched and no
	// write was issued.
	Updated bool
}

// Sync pushes each design document to the database, creating or
// updating as needed. Documents whose stored content already matches
// are left untouched.
func Sync(ctx context.Context, db *couchreq.Database, docs ...*DesignDoc) ([]Result, error) {
	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		res, err := push(ctx, db, doc, doc.ID(), false)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Stage pushes each design document under a suffixed document ID and
// queries one of its views with a zero limit, so the server builds the
// new index without disturbing the live design document. An empty
// suffix means DefaultSuffix.
func Stage(ctx context.Context, db *couchreq.Database, suffix string, docs ...*DesignDoc) ([]Result, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		res, err := push(ctx, db, doc, doc.ID()+"-"+suffix, true)
		if err != nil {
			return results, err
		}
		if name := firstView(doc); name != "" {
			// All views in a design document share one index, so
			// querying any of them builds the whole group.
			if _, err := db.View(doc.Name+"-"+suffix, name, couchreq.Limit(0)).Rows(ctx); err != nil {
				return results, err
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// Promote copies each staged design document over its live counterpart
// and deletes the staged copy. An empty suffix means DefaultSuffix.
func Promote(ctx context.Context, db *couchreq.Database, suffix string, docs ...*DesignDoc) ([]Result, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		stagedID := doc.ID() + "-" + suffix
		stagedRev, err := db.GetRev(ctx, stagedID)
		if err != nil {
			if couchreq.IsNotFound(err) {
				return results, errors.Errorf("ddoc: staged document %s not found", stagedID)
			}
			return results, err
		}
		liveRev, err := db.GetRev(ctx, doc.ID())
		if err != nil && !couchreq.IsNotFound(err) {
			return results, err
		}
		newRev, err := db.CopyDoc(ctx, stagedID, doc.ID(), liveRev)
		if err != nil {
			return results, err
		}
		if _, err := db.DeleteDoc(ctx, stagedID, stagedRev); err != nil {
			return results, err
		}
		results = append(results, Result{ID: doc.ID(), Rev: newRev, Updated: true})
	}
	return results, nil
}

func push(ctx context.Context, db *couchreq.Database, doc *DesignDoc, docID string, force bool) (Result, error) {
	next, err := doc.toMap()
	if err != nil {
		return Result{}, err
	}
	var existing map[string]interface{}
	err = db.GetDoc(ctx, docID, "", &existing)
	switch {
	case couchreq.IsNotFound(err):
	case err != nil:
		return Result{}, err
	default:
		rev, _ := existing["_rev"].(string)
		if !force && unchanged(existing, next) {
			return Result{ID: docID, Rev: rev, Updated: false}, nil
		}
		if rev != "" {
			next["_rev"] = rev
		}
	}
	next["_id"] = docID
	_, rev, err := db.SaveDoc(ctx, next)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: docID, Rev: rev, Updated: true}, nil
}

func unchanged(existing, next map[string]interface{}) bool {
	stripped := make(map[string]interface{}, len(existing))
	for k, v := range existing {
		if k == "_id" || k == "_rev" {
			continue
		}
		stripped[k] = v
	}
	return reflect.DeepEqual(stripped, next)
}

func firstView(doc *DesignDoc) string {
	if len(doc.Views) == 0 {
		return ""
	}
	names := make([]string, 0, len(doc.Views))
	for name := range doc.Views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0]
}
