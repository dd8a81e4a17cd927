package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"
)

const (
	prefixDesign = "_design/"
	prefixLocal  = "_local/"
)

// EncodeDocID encodes a document ID according to CouchDB's path encoding
// rules.
//
// In particular:
// - '_design/' and '_local/' prefixes are unaltered.
// - The rest of the docID is Query-URL encoded, despite being part of the
//   path.
func EncodeDocID(docID string) string {
	for _, prefix := range []string{prefixDesign, prefixLocal} {
		if strings.HasPrefix(docID, prefix) {
			return prefix + url.QueryEscape(strings.TrimPrefix(docID, prefix))
		}
	}
	return url.QueryEscape(docID)
}

// EncodeBody JSON-encodes i through a pipe, so the request can be live on
// the wire during encoding. The returned function reports any encoding
// error once the request has completed; cancel is called on encoding
// failure to abort the in-flight request.
//
// A piped body cannot be replayed, so requests sent this way are never
// retried. Use BodyEncoder where retries matter.
func EncodeBody(i interface{}, cancel context.CancelFunc) (io.ReadCloser, func() error) {
	done := make(chan struct{})
	var err error
	r, w := io.Pipe()
	go func() {
		defer close(done)
		err = json.NewEncoder(w).Encode(i)
		if err != nil {
			cancel()
		}
		_ = w.Close()
	}()
	return r, func() error {
		<-done
		return err
	}
}

// BodyEncoder returns a function which JSON-encodes i into a fresh body on
// each call. It is meant to be used as an Options.GetBody value, making the
// request replayable on retry.
func BodyEncoder(i interface{}) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		buf, err := json.Marshal(i)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
}
