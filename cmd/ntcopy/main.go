// ntcopy copies one or more ntuple files into a single output file,
// re-encoding the events under a different compression configuration.
//
//	ntcopy [flags] -o OUTPUT INPUT...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/UHH2/UHH2-utils/internal/config"
	"github.com/UHH2/UHH2-utils/internal/dataset"
	"github.com/UHH2/UHH2-utils/internal/logger"
	"github.com/UHH2/UHH2-utils/internal/recompress"
	"github.com/UHH2/UHH2-utils/internal/schema"
)

// Version is set at build time
var Version = "dev"

// Exit codes. Stable; scripts depend on them.
const (
	exitOK          = 0
	exitOpenFailed  = 1 // usage error, or a source/destination could not be opened
	exitMismatch    = 2 // incompatible schemas across sources
	exitCorrupt     = 3 // corrupt record outside best-effort mode, or cancellation
	exitWriteFailed = 4 // append or finalize failure, destination discarded
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitOpenFailed
	}

	fs := flag.NewFlagSet("ntcopy", flag.ExitOnError)
	output := fs.String("o", "", "Output file path (required)")
	compression := fs.String("compression", cfg.Copy.Compression, "Compression codec: zstd, gzip, snappy, uncompressed")
	level := fs.Int("level", cfg.Copy.Level, "Compression level")
	basketRows := fs.Int64("basket-rows", int64(cfg.Copy.BasketRows), "Rows per output basket (row group)")
	bestEffort := fs.Bool("best-effort", cfg.Copy.BestEffort, "On a corrupt record, skip the rest of that file and continue")
	logLevel := fs.String("log-level", cfg.Log.Level, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", cfg.Log.Format, "Log format: console or json")
	version := fs.Bool("version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ntcopy [flags] -o OUTPUT INPUT...\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return exitOpenFailed
	}

	if *version {
		fmt.Println("ntcopy", Version)
		return exitOK
	}

	inputs := fs.Args()
	if *output == "" || len(inputs) == 0 {
		fs.Usage()
		return exitOpenFailed
	}

	logger.Setup(*logLevel, *logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comp := dataset.Compression{
		Codec:           *compression,
		Level:           *level,
		BasketRows:      *basketRows,
		UseDictionary:   cfg.Copy.UseDictionary,
		WriteStatistics: cfg.Copy.WriteStatistics,
	}

	job := recompress.NewJob(&recompress.JobConfig{
		Inputs:      inputs,
		Output:      *output,
		Compression: comp,
		BestEffort:  *bestEffort,
		Logger:      logger.Get("ntcopy"),
	})

	result, err := job.Run(ctx)
	if err != nil {
		return exitCode(err)
	}

	for _, fc := range result.PerFile {
		suffix := ""
		if fc.Partial {
			suffix = "\t(partial)"
		}
		fmt.Printf("%s\t%d%s\n", fc.Path, fc.Rows, suffix)
	}
	fmt.Printf("total\t%d\t%s\n", result.TotalRows, result.Compression)

	if result.Partial {
		return exitCorrupt
	}
	return exitOK
}

func exitCode(err error) int {
	var mismatch *schema.MismatchError
	switch {
	case errors.As(err, &mismatch):
		return exitMismatch
	case errors.Is(err, dataset.ErrCorrupt), errors.Is(err, context.Canceled):
		return exitCorrupt
	case errors.Is(err, dataset.ErrWrite),
		errors.Is(err, dataset.ErrFinalize),
		errors.Is(err, dataset.ErrSchemaViolation):
		return exitWriteFailed
	default:
		return exitOpenFailed
	}
}
