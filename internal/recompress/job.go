// Package recompress drives the copy pipeline: it streams events from
// one or more source files into a single destination file under a new
// compression configuration, preserving every event in order.
package recompress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/UHH2/UHH2-utils/internal/dataset"
	"github.com/UHH2/UHH2-utils/internal/schema"
)

// JobStatus represents the status of a copy job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// FileCount is the per-source outcome of a run.
type FileCount struct {
	Path string
	Rows int64
	// Partial is set when a corrupt record cut the file short in
	// best-effort mode.
	Partial bool
}

// Result summarizes a completed run.
type Result struct {
	TotalRows   int64
	PerFile     []FileCount
	Partial     bool
	Compression dataset.Compression
	BytesBefore int64
	BytesAfter  int64
}

// Job copies the events of Inputs, in order, into Output.
type Job struct {
	// Configuration
	Inputs      []string
	Output      string
	Compression dataset.Compression
	// BestEffort abandons the remainder of a file after a corrupt
	// record instead of failing the run. The result is flagged partial.
	BestEffort bool
	// BatchRows bounds cursor batch sizes; zero uses the basket size.
	BatchRows int64

	// Job metadata
	JobID       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Status      JobStatus
	Error       error

	result Result
	logger zerolog.Logger
	mu     sync.Mutex
}

// JobConfig holds configuration for creating a copy job
type JobConfig struct {
	Inputs      []string
	Output      string
	Compression dataset.Compression
	BestEffort  bool
	BatchRows   int64
	Logger      zerolog.Logger
}

// NewJob creates a new copy job
func NewJob(cfg *JobConfig) *Job {
	jobID := uuid.NewString()
	return &Job{
		Inputs:      cfg.Inputs,
		Output:      cfg.Output,
		Compression: cfg.Compression,
		BestEffort:  cfg.BestEffort,
		BatchRows:   cfg.BatchRows,
		JobID:       jobID,
		Status:      JobStatusPending,
		logger:      cfg.Logger.With().Str("job_id", jobID).Logger(),
	}
}

// Run executes the copy job. It opens every source, validates that
// their schemas agree, then drains each source into the destination
// writer in input order. Cancellation is checked between batches; a
// cancelled or failed run discards the unfinalized destination.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	j.mu.Lock()
	now := time.Now()
	j.StartedAt = &now
	j.Status = JobStatusRunning
	j.mu.Unlock()

	j.logger.Info().
		Int("file_count", len(j.Inputs)).
		Str("output", j.Output).
		Str("compression", j.Compression.String()).
		Msg("Starting copy job")

	if len(j.Inputs) == 0 {
		return nil, j.fail(fmt.Errorf("no input files"))
	}

	batchRows := j.BatchRows
	if batchRows <= 0 {
		batchRows = j.Compression.BasketRows
	}

	// Open all sources up front so schema validation happens before
	// any write.
	cursors := make([]*dataset.Cursor, 0, len(j.Inputs))
	defer func() {
		for _, c := range cursors {
			c.Close()
		}
	}()

	descs := make([]*schema.Descriptor, 0, len(j.Inputs))
	for _, path := range j.Inputs {
		cur, err := dataset.OpenCursor(ctx, path, dataset.CursorOptions{BatchRows: batchRows})
		if err != nil {
			return nil, j.fail(err)
		}
		cursors = append(cursors, cur)

		desc, err := schema.Describe(path, cur.Schema())
		if err != nil {
			return nil, j.fail(err)
		}
		descs = append(descs, desc)
		j.result.BytesBefore += fileSize(path)
	}

	if _, err := schema.Merge(descs); err != nil {
		return nil, j.fail(err)
	}

	// Column order in the output follows the first source.
	writer, err := dataset.Create(j.Output, cursors[0].Schema(), j.Compression)
	if err != nil {
		return nil, j.fail(err)
	}

	for _, cur := range cursors {
		count, err := j.copyFile(ctx, cur, writer)
		j.result.PerFile = append(j.result.PerFile, count)
		j.result.TotalRows += count.Rows
		if count.Partial {
			j.result.Partial = true
		}
		if err != nil {
			writer.Abort()
			return nil, j.fail(err)
		}
	}

	if err := writer.Finalize(); err != nil {
		return nil, j.fail(err)
	}

	j.result.Compression = writer.Compression()
	j.result.BytesAfter = fileSize(j.Output)
	return j.complete()
}

// copyFile drains one cursor into the writer. The returned FileCount
// is valid even when err is non-nil.
func (j *Job) copyFile(ctx context.Context, cur *dataset.Cursor, writer *dataset.Writer) (FileCount, error) {
	count := FileCount{Path: cur.Path()}
	for {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		rec, err := cur.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			var corrupt *dataset.CorruptError
			if errors.As(err, &corrupt) && j.BestEffort {
				j.logger.Warn().
					Str("file", corrupt.Path).
					Int64("row", corrupt.Row).
					Msg("Corrupt record, abandoning remainder of file")
				count.Partial = true
				return count, nil
			}
			return count, err
		}

		appendErr := writer.Append(rec)
		rec.Release()
		if appendErr != nil {
			return count, appendErr
		}
		count.Rows = cur.Pos()
	}
}

// complete marks the job as completed
func (j *Job) complete() (*Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	j.CompletedAt = &now
	j.Status = JobStatusCompleted

	compressionRatio := float64(0)
	if j.result.BytesBefore > 0 {
		compressionRatio = (1 - float64(j.result.BytesAfter)/float64(j.result.BytesBefore)) * 100
	}

	j.logger.Info().
		Int64("rows", j.result.TotalRows).
		Int("files", len(j.result.PerFile)).
		Bool("partial", j.result.Partial).
		Int64("bytes_before", j.result.BytesBefore).
		Int64("bytes_after", j.result.BytesAfter).
		Float64("compression_ratio", compressionRatio).
		Float64("duration_seconds", now.Sub(*j.StartedAt).Seconds()).
		Msg("Copy job completed")

	return &j.result, nil
}

// fail marks the job as failed
func (j *Job) fail(err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	j.CompletedAt = &now
	j.Status = JobStatusFailed
	j.Error = err

	j.logger.Error().Err(err).Msg("Copy job failed")

	return err
}

// Stats returns job statistics
func (j *Job) Stats() map[string]interface{} {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := map[string]interface{}{
		"job_id":       j.JobID,
		"output":       j.Output,
		"inputs":       len(j.Inputs),
		"status":       string(j.Status),
		"rows":         j.result.TotalRows,
		"partial":      j.result.Partial,
		"bytes_before": j.result.BytesBefore,
		"bytes_after":  j.result.BytesAfter,
		"compression":  j.Compression.String(),
	}

	if j.result.BytesBefore > 0 {
		stats["compression_ratio"] = 1 - float64(j.result.BytesAfter)/float64(j.result.BytesBefore)
	}
	if j.StartedAt != nil {
		stats["started_at"] = j.StartedAt.Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		stats["completed_at"] = j.CompletedAt.Format(time.RFC3339)
	}
	if j.Error != nil {
		stats["error"] = j.Error.Error()
	}

	return stats
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
