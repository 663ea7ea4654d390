// Package count counts events in ntuple files, either from the file
// footer (fast) or by exhausting a cursor (exact), optionally applying
// a selection over column values.
package count

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/UHH2/UHH2-utils/internal/dataset"
)

// Options controls how a file is counted.
type Options struct {
	// Exact forces full iteration even when the footer declares a
	// count, mirroring the slow mode of the original counting tool.
	Exact bool
	// Selection counts only events passing the predicate. Setting it
	// implies iteration.
	Selection *Predicate
	// BatchRows bounds cursor batch sizes; zero uses the default.
	BatchRows int64
}

// FileCount is the result for one file.
type FileCount struct {
	Path string
	Rows int64
	// Partial is set when a corrupt record stopped the count early;
	// Rows then holds the count up to the failing position.
	Partial bool
}

// Counter counts events across files. Files are counted independently;
// no cross-file schema compatibility is required.
type Counter struct {
	logger zerolog.Logger
}

// NewCounter creates a Counter.
func NewCounter(logger zerolog.Logger) *Counter {
	return &Counter{logger: logger.With().Str("component", "counter").Logger()}
}

// CountFile counts one file. A corrupt record mid-file downgrades the
// result to a partial count rather than an error, since counting is
// read-only; open failures are returned as errors.
func (c *Counter) CountFile(ctx context.Context, path string, opts Options) (FileCount, error) {
	result := FileCount{Path: path}

	cur, err := dataset.OpenCursor(ctx, path, dataset.CursorOptions{BatchRows: opts.BatchRows})
	if err != nil {
		return result, err
	}
	defer cur.Close()

	if !opts.Exact && opts.Selection == nil {
		if n, ok := cur.CountHint(); ok {
			result.Rows = n
			return result, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		rec, err := cur.Next()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			if errors.Is(err, dataset.ErrCorrupt) {
				c.logger.Warn().
					Str("file", path).
					Int64("row", cur.Pos()).
					Msg("Corrupt record, reporting partial count")
				result.Partial = true
				return result, nil
			}
			return result, err
		}

		if opts.Selection != nil {
			n, selErr := opts.Selection.CountMatches(rec)
			rec.Release()
			if selErr != nil {
				return result, selErr
			}
			result.Rows += n
		} else {
			result.Rows += rec.NumRows()
			rec.Release()
		}
	}
}

// CountFiles counts every path in order and returns per-file results
// plus the grand total. Files that fail to open are returned with a
// zero count and the first such error is reported alongside.
func (c *Counter) CountFiles(ctx context.Context, paths []string, opts Options) ([]FileCount, int64, error) {
	var firstErr error
	var total int64
	results := make([]FileCount, 0, len(paths))

	for _, path := range paths {
		fc, err := c.CountFile(ctx, path, opts)
		if err != nil {
			if ctx.Err() != nil {
				return results, total, err
			}
			c.logger.Error().Err(err).Str("file", path).Msg("Failed to count file")
			if firstErr == nil {
				firstErr = err
			}
		}
		results = append(results, fc)
		total += fc.Rows
	}

	return results, total, firstErr
}
