package couchreq

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/couchreq/couchreq/resource"
)

// ServerInfo is the server's welcome message.
type ServerInfo struct {
	CouchDB string `json:"couchdb"`
	Version string `json:"version"`
	Vendor  struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"vendor"`
}

// Info returns the server's welcome message, which reports the server
// version and vendor.
func (s *Server) Info(ctx context.Context) (*ServerInfo, error) {
	info := &ServerInfo{}
	if err := doJSON(ctx, s.Client, http.MethodGet, "/", nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

// Ping reports whether the server is up and answering requests.
func (s *Server) Ping(ctx context.Context) (bool, error) {
	res, err := s.DoReq(ctx, http.MethodHead, "/_up", nil)
	if err != nil {
		return false, reqError(err)
	}
	_ = res.Body.Close()
	return res.StatusCode == http.StatusOK, nil
}

// AllDBs returns the names of every database on the server.
func (s *Server) AllDBs(ctx context.Context) ([]string, error) {
	var dbs []string
	if err := doJSON(ctx, s.Client, http.MethodGet, "/_all_dbs", nil, &dbs); err != nil {
		return nil, err
	}
	return dbs, nil
}

// validDBName matches the names CouchDB accepts for new databases.
var validDBName = regexp.MustCompile(`^[a-z][a-z0-9_$()+/-]*$`)

func validateDBName(name string) error {
	if name == "" {
		return missingArg("dbName")
	}
	if name == UsersDB || name == ReplicatorDB {
		return nil
	}
	if !validDBName.MatchString(name) {
		return &RequestError{Status: http.StatusBadRequest, Err: fmt.Errorf("couchreq: invalid database name %q", name)}
	}
	return nil
}

// DBExists reports whether the named database exists on the server.
func (s *Server) DBExists(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, missingArg("dbName")
	}
	res, err := s.DoReq(ctx, http.MethodHead, url.PathEscape(name), nil)
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

// CreateDB creates a new database and returns a handle to it. The name is
// validated before the request is sent: a lowercase letter followed by
// lowercase letters, digits, or any of _$()+-/ . Creating a database that
// already exists fails with a 412 status; see IsPreconditionFailed.
func (s *Server) CreateDB(ctx context.Context, name string) (*Database, error) {
	if err := validateDBName(name); err != nil {
		return nil, err
	}
	if err := doError(ctx, s.Client, http.MethodPut, url.PathEscape(name), nil); err != nil {
		return nil, err
	}
	return s.DB(name), nil
}

// GetDB returns a handle to the named database, failing if it does not
// exist.
func (s *Server) GetDB(ctx context.Context, name string) (*Database, error) {
	exists, err := s.DBExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &RequestError{Status: http.StatusNotFound, Err: fmt.Errorf("couchreq: database %q not found", name)}
	}
	return s.DB(name), nil
}

// GetOrCreateDB returns a handle to the named database, creating it first
// if it does not exist.
func (s *Server) GetOrCreateDB(ctx context.Context, name string) (*Database, error) {
	exists, err := s.DBExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.DB(name), nil
	}
	db, err := s.CreateDB(ctx, name)
	if err != nil {
		// Someone else may have created it since the existence check.
		if IsPreconditionFailed(err) {
			return s.DB(name), nil
		}
		return nil, err
	}
	return db, nil
}

// DeleteDB deletes the named database and all of its documents.
func (s *Server) DeleteDB(ctx context.Context, name string) error {
	if name == "" {
		return missingArg("dbName")
	}
	return doError(ctx, s.Client, http.MethodDelete, url.PathEscape(name), nil)
}

// ReplicationOptions controls a replication request.
type ReplicationOptions struct {
	// Cancel requests cancellation of a matching running replication.
	Cancel bool
	// Continuous requests a replication that keeps running as the source
	// changes.
	Continuous bool
	// CreateTarget creates the target database if it does not exist.
	CreateTarget bool
	// DocIDs restricts replication to the listed documents.
	DocIDs []string
	// Filter names a filter function, as "ddoc/filtername".
	Filter string
}

// ReplicationResult reports the outcome of a replication request. For a
// continuous replication only OK and LocalID are set.
type ReplicationResult struct {
	OK            bool       `json:"ok"`
	LocalID       string     `json:"_local_id"`
	SessionID     string     `json:"session_id"`
	SourceLastSeq SequenceID `json:"source_last_seq"`
}

// Replicate requests a replication from source to target, each a local
// database name or a remote database URL. The call returns once the
// replication completes, or, for a continuous replication, once it has
// started.
func (s *Server) Replicate(ctx context.Context, source, target string, opts *ReplicationOptions) (*ReplicationResult, error) {
	if source == "" {
		return nil, missingArg("source")
	}
	if target == "" {
		return nil, missingArg("target")
	}
	body := map[string]interface{}{
		"source": source,
		"target": target,
	}
	if opts != nil {
		if opts.Cancel {
			body["cancel"] = true
		}
		if opts.Continuous {
			body["continuous"] = true
		}
		if opts.CreateTarget {
			body["create_target"] = true
		}
		if len(opts.DocIDs) > 0 {
			body["doc_ids"] = opts.DocIDs
		}
		if opts.Filter != "" {
			body["filter"] = opts.Filter
		}
	}
	result := &ReplicationResult{}
	if err := doJSON(ctx, s.Client, http.MethodPost, "/_replicate", &resource.Options{JSON: body}, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Task is an entry in the server's active task list. Fields beyond Type
// and the timestamps are populated only where they apply to the task type.
type Task struct {
	Type      string `json:"type"`
	Database  string `json:"database"`
	Node      string `json:"node"`
	PID       string `json:"pid"`
	Progress  int    `json:"progress"`
	StartedOn int64  `json:"started_on"`
	UpdatedOn int64  `json:"updated_on"`
}

// ActiveTasks lists the tasks currently running on the server, such as
// compactions, indexer runs, and replications.
func (s *Server) ActiveTasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := doJSON(ctx, s.Client, http.MethodGet, "/_active_tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UUID returns a fresh server-generated UUID, suitable for use as a
// document ID. UUIDs are fetched in batches and handed out from a local
// cache, so most calls complete without a request.
func (s *Server) UUID(ctx context.Context) (string, error) {
	s.uuidsMU.Lock()
	defer s.uuidsMU.Unlock()
	if len(s.uuids) == 0 {
		var result struct {
			UUIDs []string `json:"uuids"`
		}
		query := url.Values{"count": {strconv.Itoa(uuidBatchSize)}}
		if err := doJSON(ctx, s.Client, http.MethodGet, "/_uuids", &resource.Options{Query: query}, &result); err != nil {
			return "", err
		}
		if len(result.UUIDs) == 0 {
			return "", &DecodeError{Err: errors.New("server returned no uuids")}
		}
		s.uuids = result.UUIDs
	}
	uuid := s.uuids[len(s.uuids)-1]
	s.uuids = s.uuids[:len(s.uuids)-1]
	return uuid, nil
}
