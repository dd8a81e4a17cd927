package couchreq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Row is a single row of a view result.
type Row struct {
	// ID is the document ID the row came from. Reduced views have no
	// backing document, so ID is empty there.
	ID string `json:"id"`
	// Key is the row's key, as raw JSON.
	Key json.RawMessage `json:"key"`
	// Value is the row's value, as raw JSON.
	Value json.RawMessage `json:"value"`
	// Doc is the full document, present only when the view was queried
	// with IncludeDocs.
	Doc json.RawMessage `json:"doc"`
	// Error is set on rows the server could not produce, such as those
	// requested by a key that matches no document.
	Error string `json:"error"`
}

// ScanKey unmarshals the row's key into dest.
func (r *Row) ScanKey(dest interface{}) error {
	return scanRaw(r.Key, dest)
}

// ScanValue unmarshals the row's value into dest.
func (r *Row) ScanValue(dest interface{}) error {
	return scanRaw(r.Value, dest)
}

// ScanDoc unmarshals the row's document into dest. It fails unless the
// view was queried with IncludeDocs.
func (r *Row) ScanDoc(dest interface{}) error {
	if r.Doc == nil {
		return errors.New("couchreq: row has no doc; query with IncludeDocs")
	}
	return scanRaw(r.Doc, dest)
}

func scanRaw(raw json.RawMessage, dest interface{}) error {
	if raw == nil {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// viewMeta is the metadata CouchDB reports alongside a view's rows.
type viewMeta struct {
	offset    int64
	totalRows int64
	updateSeq SequenceID
}

// decodeView decodes a view response body: leading metadata, the rows
// array, then trailing metadata. The decoder is strict about the response
// shape, so truncated or proxied-in-error bodies are caught here rather
// than read as an empty result.
func decodeView(body io.Reader) ([]Row, viewMeta, error) {
	d := &viewDecoder{dec: json.NewDecoder(body)}
	rows, err := d.decode()
	if err != nil {
		return nil, viewMeta{}, &DecodeError{Err: err}
	}
	return rows, d.meta, nil
}

type viewDecoder struct {
	dec  *json.Decoder
	meta viewMeta
}

func (d *viewDecoder) decode() ([]Row, error) {
	if err := consumeDelim(d.dec, json.Delim('{')); err != nil {
		return nil, err
	}
	for {
		t, err := d.dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := t.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token (%T) %v", t, t)
		}
		if key == "rows" {
			break
		}
		if err := d.parseMeta(key); err != nil {
			return nil, err
		}
	}
	rows, err := d.decodeRows()
	if err != nil {
		return nil, err
	}
	// Trailing metadata, then the closing brace and EOF.
	for {
		t, err := d.dec.Token()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		switch v := t.(type) {
		case json.Delim:
			if v != json.Delim('}') {
				return nil, fmt.Errorf("unexpected JSON delimiter: %c", v)
			}
		case string:
			if err := d.parseMeta(v); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unexpected JSON token: (%T) '%v'", t, t)
		}
	}
}

func (d *viewDecoder) decodeRows() ([]Row, error) {
	if err := consumeDelim(d.dec, json.Delim('[')); err != nil {
		return nil, err
	}
	rows := []Row{}
	for d.dec.More() {
		var row Row
		if err := d.dec.Decode(&row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, consumeDelim(d.dec, json.Delim(']'))
}

// parseMeta parses one result metadata entry.
func (d *viewDecoder) parseMeta(key string) error {
	switch key {
	case "offset":
		return d.dec.Decode(&d.meta.offset)
	case "total_rows":
		return d.dec.Decode(&d.meta.totalRows)
	case "update_seq":
		return readSeq(d.dec, &d.meta.updateSeq)
	case "warning":
		var warning string
		return d.dec.Decode(&warning)
	}
	return fmt.Errorf("unexpected key: %s", key)
}

// readSeq reads an update sequence, which old servers report as a number
// and newer ones as a string.
func readSeq(dec *json.Decoder, seq *SequenceID) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*seq = SequenceID(bytes.Trim(raw, `"`))
	return nil
}

// consumeDelim consumes the expected delimiter from the stream, or
// returns an error describing the unexpected token found instead.
func consumeDelim(dec *json.Decoder, expected json.Delim) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := t.(json.Delim)
	if !ok {
		return fmt.Errorf("unexpected token %T: %v", t, t)
	}
	if d != expected {
		return fmt.Errorf("unexpected JSON delimiter: %c", d)
	}
	return nil
}
