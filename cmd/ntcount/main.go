// ntcount counts events in one or more ntuple files. By default it
// trusts the row count declared in each file's footer; -exact iterates
// every event instead, and -select counts only events passing a
// selection.
//
//	ntcount [flags] INPUT...
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/UHH2/UHH2-utils/internal/config"
	"github.com/UHH2/UHH2-utils/internal/count"
	"github.com/UHH2/UHH2-utils/internal/logger"
)

// Version is set at build time
var Version = "dev"

// Exit codes. Stable; scripts depend on them.
const (
	exitOK         = 0
	exitOpenFailed = 1 // usage error, or a file could not be opened
	exitPartial    = 3 // one or more files only partially counted
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

	fs := flag.NewFlagSet("ntcount", flag.ExitOnError)
	exact := fs.Bool("exact", cfg.Count.Exact, "Iterate every event instead of trusting the footer count")
	selection := fs.String("select", "", "Count only events passing a selection, e.g. 'N_jets >= 2'")
	logLevel := fs.String("log-level", cfg.Log.Level, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", cfg.Log.Format, "Log format: console or json")
	version := fs.Bool("version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ntcount [flags] INPUT...\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return exitOpenFailed
	}

	if *version {
		fmt.Println("ntcount", Version)
		return exitOK
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		fs.Usage()
		return exitOpenFailed
	}

	logger.Setup(*logLevel, *logFormat)

	opts := count.Options{Exact: *exact}
	if *selection != "" {
		pred, err := count.ParsePredicate(*selection)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid selection: %v\n", err)
			return exitOpenFailed
		}
		opts.Selection = pred
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counter := count.NewCounter(logger.Get("ntcount"))
	results, total, err := counter.CountFiles(ctx, inputs, opts)

	partial := false
	for _, fc := range results {
		suffix := ""
		if fc.Partial {
			suffix = "\t(partial)"
			partial = true
		}
		fmt.Printf("%s\t%d%s\n", fc.Path, fc.Rows, suffix)
	}
	fmt.Printf("total\t%d\n", total)

	switch {
	case err != nil:
		return exitOpenFailed
	case partial:
		return exitPartial
	default:
		return exitOK
	}
}
