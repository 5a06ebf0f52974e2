package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/Veraticus/kmpscan/pkg/config"
)

// Exit codes
const (
	exitMatch   = 0
	exitNoMatch = 1
	exitError   = 2
)

// globalOptions are the flags accepted before the subcommand
type globalOptions struct {
	configPath string
	quiet      bool
}

func main() {
	// Match GOMAXPROCS, and so the default worker count, to the container CPU quota
	if _, err := maxprocs.Set(maxprocs.Logger(debugf)); err != nil {
		debugf("failed to set GOMAXPROCS: %v", err)
	}

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	var (
		opts globalOptions
		help bool
	)

	global := flag.NewFlagSet("kmpscan", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.StringVar(&opts.configPath, "config", "", "Path to config file")
	global.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress match output and notifications")
	global.BoolVarP(&help, "help", "h", false, "Show help message")
	global.Usage = func() { printUsage(stderr, global) }

	if err := global.Parse(args); err != nil {
		fmt.Fprintf(stderr, "kmpscan: %v\n", err)
		printUsage(stderr, global)
		return exitError
	}

	rest := global.Args()
	if help || len(rest) == 0 {
		if help {
			printUsage(stdout, global)
			return exitMatch
		}
		printUsage(stderr, global)
		return exitError
	}

	switch rest[0] {
	case "search":
		return runSearch(opts, rest[1:], stdout, stderr)
	case "watch":
		return runWatch(opts, rest[1:], stdout, stderr)
	case "help":
		printUsage(stdout, global)
		return exitMatch
	default:
		fmt.Fprintf(stderr, "kmpscan: unknown command %q\n", rest[0])
		printUsage(stderr, global)
		return exitError
	}
}

// parseFlags parses the flags of a subcommand. When ok is false the
// subcommand must return code without running.
func parseFlags(fs *flag.FlagSet, args []string, synopsis string, stdout, stderr io.Writer) (code int, ok bool) {
	fs.Usage = func() {}

	err := fs.Parse(args)
	switch {
	case err == nil:
		return 0, true
	case errors.Is(err, flag.ErrHelp):
		printCommandUsage(stdout, fs, synopsis)
		return exitMatch, false
	default:
		fmt.Fprintf(stderr, "kmpscan: %v\n", err)
		printCommandUsage(stderr, fs, synopsis)
		return exitError, false
	}
}

func printCommandUsage(w io.Writer, fs *flag.FlagSet, synopsis string) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s\n", synopsis)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, fs.FlagUsages())
}

// loadConfig loads the configuration and adds the patterns given with -e.
// It returns the config file path so watch mode can reload it.
func loadConfig(opts globalOptions, patterns []string) (*config.Config, string, error) {
	path := opts.configPath
	if path == "" {
		path = config.Path()
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, "", err
	}

	if opts.quiet {
		cfg.Quiet = true
	}

	for _, p := range patterns {
		if _, err := cfg.AddLiteral(p); err != nil {
			return nil, "", err
		}
	}

	if len(cfg.EnabledPatterns()) == 0 {
		return nil, "", errors.New("no patterns: pass -e PATTERN or add patterns to the config file")
	}

	return cfg, path, nil
}

// debugf logs to stderr when KMPSCAN_DEBUG=1
func debugf(format string, args ...interface{}) {
	if os.Getenv("KMPSCAN_DEBUG") == "1" {
		fmt.Fprintf(os.Stderr, "kmpscan: "+format+"\n", args...)
	}
}

func printUsage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "kmpscan - literal pattern search for files and command output")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  "+searchSynopsis)
	fmt.Fprintln(w, "  "+watchSynopsis)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, global.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "search reads standard input when no FILE is given or FILE is \"-\".")
	fmt.Fprintln(w, "gzip, zstd and snappy/s2 inputs are decompressed automatically.")
	fmt.Fprintln(w, "Exit status is 0 if a match was found, 1 if not, 2 on error.")
	fmt.Fprintln(w, "watch exits with the status of COMMAND.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  KMPSCAN_CONFIG          Path to config file")
	fmt.Fprintln(w, "  KMPSCAN_PATTERNS        Extra patterns (comma-separated)")
	fmt.Fprintln(w, "  KMPSCAN_QUIET           Suppress output (true/false)")
	fmt.Fprintln(w, "  KMPSCAN_WORKERS         Files scanned in parallel")
	fmt.Fprintln(w, "  KMPSCAN_CACHE_SIZE      Compiled patterns kept in memory")
	fmt.Fprintln(w, "  KMPSCAN_MAX_FILE_SIZE   Largest decoded input, e.g. 64MB")
	fmt.Fprintln(w, "  KMPSCAN_BATCH_WINDOW    Batch watch notifications, e.g. 2s")
	fmt.Fprintln(w, "  KMPSCAN_STATUS_LINE     Show a watch status line (true/false)")
	fmt.Fprintln(w, "  KMPSCAN_DEBUG           Set to 1 for debug logging")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration file: ~/.config/kmpscan/config.yaml")
}
