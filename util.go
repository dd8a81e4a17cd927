package couchreq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/couchreq/couchreq/resource"
)

// doJSON performs a request, checks it for an error status, and decodes
// the JSON response body into i.
func doJSON(ctx context.Context, c *resource.Client, method, path string, opts *resource.Options, i interface{}) error {
	res, err := c.DoReq(ctx, method, path, opts)
	if err != nil {
		return reqError(err)
	}
	if err := resource.ResponseError(res); err != nil {
		return reqError(err)
	}
	defer func() { _ = res.Body.Close() }()
	if err := json.NewDecoder(res.Body).Decode(i); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// doError performs a request where only the status outcome matters. The
// response body is consumed.
func doError(ctx context.Context, c *resource.Client, method, path string, opts *resource.Options) error {
	res, err := c.DoReq(ctx, method, path, opts)
	if err != nil {
		return reqError(err)
	}
	if err := resource.ResponseError(res); err != nil {
		return reqError(err)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
	return nil
}

// docIdentity extracts the _id and _rev of doc. For map documents the map
// itself is also returned, so identity fields can be written back after a
// save. Other document types go through a marshal round-trip.
func docIdentity(doc interface{}) (id, rev string, m map[string]interface{}, err error) {
	switch t := doc.(type) {
	case nil:
		return "", "", nil, missingArg("doc")
	case map[string]interface{}:
		if id, err = stringField(t, "_id"); err != nil {
			return "", "", nil, err
		}
		rev, err = stringField(t, "_rev")
		return id, rev, t, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", "", nil, &RequestError{Status: http.StatusBadRequest, Err: errors.Wrap(err, "couchreq: invalid document")}
	}
	var fields struct {
		ID  string `json:"_id"`
		Rev string `json:"_rev"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", "", nil, &RequestError{Status: http.StatusBadRequest, Err: errors.Wrap(err, "couchreq: invalid document")}
	}
	return fields.ID, fields.Rev, nil, nil
}

func stringField(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &RequestError{Status: http.StatusBadRequest, Err: fmt.Errorf("couchreq: %s must be a string", key)}
	}
	return s, nil
}
