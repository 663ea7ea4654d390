package dataset

import (
	"errors"
	"fmt"
)

// Error classes for the read and write sides of the pipeline.
// Callers match with errors.Is; CorruptError additionally carries the
// file path and row offset for diagnostics.
var (
	ErrOpen            = errors.New("open failed")
	ErrCreate          = errors.New("create failed")
	ErrCorrupt         = errors.New("corrupt record")
	ErrSchemaViolation = errors.New("schema violation")
	ErrWrite           = errors.New("write failed")
	ErrFinalize        = errors.New("finalize failed")
)

// CorruptError reports a mid-stream decode failure. Row is the number
// of rows successfully delivered before the failure.
type CorruptError struct {
	Path string
	Row  int64
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt record in %s at row %d: %v", e.Path, e.Row, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }
