// Package dataset provides streaming, forward-only access to ntuple
// files and a recompressing writer for producing new ones. Files are
// Parquet containers holding one event table each.
package dataset

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// sharedAllocator is the process-wide Arrow allocator. memory.GoAllocator
// is safe for concurrent use, so one instance serves every cursor and
// writer in the process.
var sharedAllocator = memory.NewGoAllocator()

// DefaultBatchRows bounds how many rows a cursor delivers per batch,
// which in turn bounds pipeline memory.
const DefaultBatchRows = 122880

// CursorOptions controls how a cursor reads its file.
type CursorOptions struct {
	// BatchRows is the maximum rows per batch. Zero means DefaultBatchRows.
	BatchRows int64
}

// Cursor is sequential, forward-only access to one file's events.
// It is not restartable; reopen the file to iterate again.
type Cursor struct {
	path   string
	ctx    context.Context
	pf     *file.Reader
	fr     *pqarrow.FileReader
	rr     pqarrow.RecordReader
	schema *arrow.Schema
	pos    int64
	closed bool
}

// OpenCursor opens path for reading. ctx governs all reads made
// through the returned cursor.
func OpenCursor(ctx context.Context, path string, opts CursorOptions) (*Cursor, error) {
	if err := Validate(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}

	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}

	batchRows := opts.BatchRows
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: batchRows}, sharedAllocator)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}

	sc, err := fr.Schema()
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}

	return &Cursor{
		path:   path,
		ctx:    ctx,
		pf:     pf,
		fr:     fr,
		schema: sc,
	}, nil
}

// Path returns the file this cursor reads.
func (c *Cursor) Path() string { return c.path }

// Schema returns the file's Arrow schema.
func (c *Cursor) Schema() *arrow.Schema { return c.schema }

// Pos returns the number of rows delivered so far.
func (c *Cursor) Pos() int64 { return c.pos }

// CountHint returns the row count declared in the file footer.
// Reading it does not decode any event data.
func (c *Cursor) CountHint() (int64, bool) {
	if c.pf == nil {
		return 0, false
	}
	return c.pf.NumRows(), true
}

// Next returns the next batch of events. It returns io.EOF at end of
// stream and a *CorruptError on a mid-stream decode failure. The caller
// must Release the returned record.
func (c *Cursor) Next() (arrow.Record, error) {
	if c.closed {
		return nil, fmt.Errorf("cursor for %s is closed", c.path)
	}

	// The record reader is created lazily so that count-hint-only
	// callers never pay for decoder setup.
	if c.rr == nil {
		rr, err := c.fr.GetRecordReader(c.ctx, nil, nil)
		if err != nil {
			return nil, &CorruptError{Path: c.path, Row: c.pos, Err: err}
		}
		c.rr = rr
	}

	rec, err := c.rr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &CorruptError{Path: c.path, Row: c.pos, Err: err}
	}

	rec.Retain()
	c.pos += rec.NumRows()
	return rec, nil
}

// Close releases the cursor. The position is destroyed; subsequent
// Next calls fail.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.rr != nil {
		c.rr.Release()
		c.rr = nil
	}
	return c.pf.Close()
}
