package couchreq

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/couchreq/couchreq/resource"
)

// Attachment is a document attachment fetched from the server. Content
// streams the attachment body and must be closed by the caller.
type Attachment struct {
	Filename    string
	ContentType string
	// Size is the attachment size in bytes, or -1 when the server does
	// not report it.
	Size int64
	// Digest is the content hash reported by the server's ETag.
	Digest  string
	Content io.ReadCloser
}

// PutAttachment uploads content as an attachment to the document. When
// contentType is empty, it is guessed from the filename's extension,
// falling back to application/octet-stream. The new document revision
// is returned.
func (d *Database) PutAttachment(ctx context.Context, docID, rev, filename, contentType string, content io.Reader) (string, error) {
	if docID == "" {
		return "", missingArg("docID")
	}
	if filename == "" {
		return "", missingArg("filename")
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}
	body, ok := content.(io.ReadCloser)
	if !ok && content != nil {
		body = io.NopCloser(content)
	}
	opts := &resource.Options{
		Body:        body,
		ContentType: contentType,
		Query:       revQuery(rev),
	}
	var result struct {
		Rev string `json:"rev"`
	}
	err := doJSON(ctx, d.server.Client, http.MethodPut, d.path(resource.EncodeDocID(docID), url.PathEscape(filename)), opts, &result)
	if err != nil {
		return "", err
	}
	return result.Rev, nil
}

// FetchAttachment retrieves an attachment from the document. rev may be
// empty to fetch from the winning revision.
func (d *Database) FetchAttachment(ctx context.Context, docID, rev, filename string) (*Attachment, error) {
	if docID == "" {
		return nil, missingArg("docID")
	}
	if filename == "" {
		return nil, missingArg("filename")
	}
	opts := &resource.Options{
		Accept: "*/*",
		Query:  revQuery(rev),
	}
	res, err := d.server.DoReq(ctx, http.MethodGet, d.path(resource.EncodeDocID(docID), url.PathEscape(filename)), opts)
	if err != nil {
		return nil, reqError(err)
	}
	if err := resource.ResponseError(res); err != nil {
		return nil, reqError(err)
	}
	cType := res.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(cType); err == nil {
		cType = mt
	}
	digest, _ := resource.ETag(res)
	return &Attachment{
		Filename:    filename,
		ContentType: cType,
		Size:        res.ContentLength,
		Digest:      digest,
		Content:     res.Body,
	}, nil
}

// DeleteAttachment removes an attachment from the document. rev is
// required. The new document revision is returned.
func (d *Database) DeleteAttachment(ctx context.Context, docID, rev, filename string) (string, error) {
	if docID == "" {
		return "", missingArg("docID")
	}
	if rev == "" {
		return "", missingArg("rev")
	}
	if filename == "" {
		return "", missingArg("filename")
	}
	var result struct {
		Rev string `json:"rev"`
	}
	opts := &resource.Options{Query: revQuery(rev)}
	err := doJSON(ctx, d.server.Client, http.MethodDelete, d.path(resource.EncodeDocID(docID), url.PathEscape(filename)), opts, &result)
	if err != nil {
		return "", err
	}
	return result.Rev, nil
}

func revQuery(rev string) url.Values {
	if rev == "" {
		return nil
	}
	return url.Values{"rev": {rev}}
}
