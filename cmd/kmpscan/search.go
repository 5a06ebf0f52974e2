package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/Veraticus/kmpscan/pkg/kmp"
	"github.com/Veraticus/kmpscan/pkg/scan"
)

const searchSynopsis = "kmpscan [OPTIONS] search [-e PATTERN]... [-c] [-j N] [-C N] [--summary] [FILE...]"

// searchOptions are the flags of the search command
type searchOptions struct {
	patterns []string
	count    bool
	workers  int
	context  int
	summary  bool
}

func runSearch(global globalOptions, args []string, stdout, stderr io.Writer) int {
	var opts searchOptions

	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringArrayVarP(&opts.patterns, "pattern", "e", nil, "Pattern to search for (repeatable)")
	fs.BoolVarP(&opts.count, "count", "c", false, "Print the number of matches per file")
	fs.IntVarP(&opts.workers, "workers", "j", 0, "Files scanned in parallel (default from config)")
	fs.IntVarP(&opts.context, "context", "C", -1, "Bytes of context around each match (default from config)")
	fs.BoolVar(&opts.summary, "summary", false, "Print totals to stderr")

	if code, ok := parseFlags(fs, args, searchSynopsis, stdout, stderr); !ok {
		return code
	}

	cfg, _, err := loadConfig(global, opts.patterns)
	if err != nil {
		fmt.Fprintf(stderr, "kmpscan: %v\n", err)
		return exitError
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.context >= 0 {
		cfg.ContextWidth = opts.context
	}

	cache, err := kmp.NewCache(cfg.CacheSize)
	if err != nil {
		fmt.Fprintf(stderr, "kmpscan: %v\n", err)
		return exitError
	}

	scanner := scan.NewScanner(cfg.Patterns, cache, scan.Options{
		Workers:      cfg.Workers,
		MaxFileSize:  uint64(cfg.MaxFileSize),
		ContextWidth: cfg.ContextWidth,
	})

	files := fs.Args()
	if len(files) == 0 {
		files = []string{scan.Stdin}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debugf("searching %d inputs for %d patterns with %d workers", len(files), len(cfg.EnabledPatterns()), cfg.Workers)

	results, err := scanner.ScanFiles(ctx, files)
	if err != nil {
		fmt.Fprintf(stderr, "kmpscan: %v\n", err)
		return exitError
	}

	out := outputOptions{
		count:     opts.count,
		quiet:     cfg.Quiet,
		withNames: len(files) > 1,
	}
	matched, failed := writeResults(stdout, stderr, results, out)

	if opts.summary {
		fmt.Fprintf(stderr, "kmpscan: %s\n", scan.Summarize(results))
	}

	switch {
	case failed:
		return exitError
	case matched:
		return exitMatch
	default:
		return exitNoMatch
	}
}

// outputOptions control how search results are printed
type outputOptions struct {
	count     bool
	quiet     bool
	withNames bool
}

// writeResults prints results in grep style and reports whether anything
// matched and whether any input failed.
func writeResults(stdout, stderr io.Writer, results []scan.FileResult, opts outputOptions) (matched, failed bool) {
	for _, r := range results {
		if r.Err != nil {
			failed = true
			fmt.Fprintf(stderr, "kmpscan: %v\n", r.Err)
			continue
		}
		if len(r.Matches) > 0 {
			matched = true
		}
		if opts.quiet {
			continue
		}

		name := displayName(r.Path)
		if opts.count {
			if opts.withNames {
				fmt.Fprintf(stdout, "%s:%d\n", name, len(r.Matches))
			} else {
				fmt.Fprintf(stdout, "%d\n", len(r.Matches))
			}
			continue
		}

		for _, m := range r.Matches {
			if opts.withNames {
				fmt.Fprintf(stdout, "%s:", name)
			}
			fmt.Fprintf(stdout, "%d:%d: [%s] %s\n", m.Line, m.Column, m.Pattern, m.Context)
		}
	}
	return matched, failed
}

func displayName(path string) string {
	if path == scan.Stdin {
		return "(standard input)"
	}
	return path
}
