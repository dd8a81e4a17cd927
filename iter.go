package couchreq

import (
	"context"
	"io"
)

// Iter is an iterator over a view result. Each Iter walks the view's
// cached rows from the beginning, so iterating a view twice yields the
// same rows without a second request.
type Iter struct {
	view *View
	next int
}

// Iter materializes the view if needed and returns an iterator over its
// rows.
func (v *View) Iter(ctx context.Context) (*Iter, error) {
	if err := v.load(ctx); err != nil {
		return nil, err
	}
	return &Iter{view: v}, nil
}

// Next copies the next row into row. It returns io.EOF after the last
// row.
func (i *Iter) Next(row *Row) error {
	rows := i.view.cached()
	if i.next >= len(rows) {
		return io.EOF
	}
	*row = rows[i.next]
	i.next++
	return nil
}
