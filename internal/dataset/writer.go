package dataset

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Writer appends event batches to a new file, buffering them into row
// groups bounded by the configured basket size and compressing each
// group with the configured codec at flush time.
//
// Writes go to a temporary sibling of the target path. Only a
// successful Finalize renames it into place, so a crashed or aborted
// run never leaves a readable-looking truncated file behind.
type Writer struct {
	path      string
	tmp       string
	f         *os.File
	fw        *pqarrow.FileWriter
	schema    *arrow.Schema
	comp      Compression
	rows      int64
	finalized bool
	aborted   bool
}

// Create opens path for writing with the given target schema and
// compression configuration.
func Create(path string, schema *arrow.Schema, comp Compression) (*Writer, error) {
	codec, err := comp.codec()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCreate, path, err)
	}
	if comp.BasketRows <= 0 {
		comp.BasketRows = DefaultBatchRows
	}

	writerOpts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(comp.UseDictionary),
		parquet.WithStats(comp.WriteStatistics),
		parquet.WithMaxRowGroupLength(comp.BasketRows),
	}
	// Snappy and uncompressed have no level knob.
	if codec == compress.Codecs.Zstd || codec == compress.Codecs.Gzip {
		writerOpts = append(writerOpts, parquet.WithCompressionLevel(comp.Level))
	}
	writerProps := parquet.NewWriterProperties(writerOpts...)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCreate, tmp, err)
	}

	fw, err := pqarrow.NewFileWriter(schema, f, writerProps, arrowProps)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("%w: %s: %v", ErrCreate, path, err)
	}

	return &Writer{
		path:   path,
		tmp:    tmp,
		f:      f,
		fw:     fw,
		schema: schema,
		comp:   comp,
	}, nil
}

// Schema returns the writer's target schema.
func (w *Writer) Schema() *arrow.Schema { return w.schema }

// Compression returns the configuration the writer was created with.
func (w *Writer) Compression() Compression { return w.comp }

// Rows returns the number of rows appended so far.
func (w *Writer) Rows() int64 { return w.rows }

// Append writes one batch. The batch's column set must match the
// writer's schema; a mismatch is an orchestration bug, not a data
// error, since schemas are validated before any write.
func (w *Writer) Append(rec arrow.Record) error {
	if w.finalized || w.aborted {
		return fmt.Errorf("%w: writer for %s is closed", ErrWrite, w.path)
	}

	conformed, err := w.conform(rec)
	if err != nil {
		return err
	}
	if conformed != rec {
		defer conformed.Release()
	}

	if err := w.fw.Write(conformed); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, w.path, err)
	}
	w.rows += rec.NumRows()
	return nil
}

// conform returns rec if its column order already matches the target
// schema, or a permuted view of it otherwise. Inputs with compatible
// schemas may still order columns differently; the output always
// follows the first source's order.
func (w *Writer) conform(rec arrow.Record) (arrow.Record, error) {
	rs := rec.Schema()
	if rs.NumFields() != w.schema.NumFields() {
		return nil, fmt.Errorf("%w: batch has %d columns, writer wants %d",
			ErrSchemaViolation, rs.NumFields(), w.schema.NumFields())
	}

	samePosition := true
	for i := 0; i < w.schema.NumFields(); i++ {
		if rs.Field(i).Name != w.schema.Field(i).Name {
			samePosition = false
			break
		}
	}
	if samePosition {
		for i := 0; i < w.schema.NumFields(); i++ {
			if !arrow.TypeEqual(rs.Field(i).Type, w.schema.Field(i).Type) {
				return nil, fmt.Errorf("%w: column %q has type %s, writer wants %s",
					ErrSchemaViolation, rs.Field(i).Name, rs.Field(i).Type, w.schema.Field(i).Type)
			}
		}
		return rec, nil
	}

	cols := make([]arrow.Array, w.schema.NumFields())
	for i, want := range w.schema.Fields() {
		idxs := rs.FieldIndices(want.Name)
		if len(idxs) != 1 {
			return nil, fmt.Errorf("%w: column %q not present exactly once in batch",
				ErrSchemaViolation, want.Name)
		}
		got := rs.Field(idxs[0])
		if !arrow.TypeEqual(got.Type, want.Type) {
			return nil, fmt.Errorf("%w: column %q has type %s, writer wants %s",
				ErrSchemaViolation, want.Name, got.Type, want.Type)
		}
		cols[i] = rec.Column(idxs[0])
	}
	return array.NewRecord(w.schema, cols, rec.NumRows()), nil
}

// Finalize flushes the last basket, seals the container and renames it
// into place. On any failure the temporary file is removed so no
// partially written output survives.
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	if w.aborted {
		return fmt.Errorf("%w: writer for %s was aborted", ErrFinalize, w.path)
	}
	w.finalized = true

	if err := w.fw.Close(); err != nil {
		w.discard()
		return fmt.Errorf("%w: %s: %v", ErrFinalize, w.path, err)
	}
	// The Parquet writer closes its sink; tolerate the double close.
	if err := w.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		w.discard()
		return fmt.Errorf("%w: %s: %v", ErrFinalize, w.path, err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		w.discard()
		return fmt.Errorf("%w: %s: %v", ErrFinalize, w.path, err)
	}
	return nil
}

// Abort discards the writer and removes the temporary file. Safe to
// call multiple times and after a successful Finalize, where it does
// nothing.
func (w *Writer) Abort() {
	if w.finalized || w.aborted {
		return
	}
	w.aborted = true
	w.fw.Close()
	w.f.Close()
	w.discard()
}

func (w *Writer) discard() {
	os.Remove(w.tmp)
}
