package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Veraticus/kmpscan/pkg/config"
	"github.com/Veraticus/kmpscan/pkg/interfaces"
	"github.com/Veraticus/kmpscan/pkg/monitor"
	"github.com/Veraticus/kmpscan/pkg/notification"
	"github.com/Veraticus/kmpscan/pkg/process"
	"github.com/Veraticus/kmpscan/pkg/reload"
	"github.com/Veraticus/kmpscan/pkg/status"
)

// Dependencies holds all the dependencies of watch mode
type Dependencies struct {
	Config              *config.Config
	Notifier            notification.Notifier
	RateLimiter         interfaces.RateLimiter
	PatternMatcher      monitor.PatternMatcher
	NotificationManager *notification.Manager
	OutputMonitor       *monitor.OutputMonitor
	ProcessManager      *process.Manager
	StatusIndicator     *status.Indicator
	StatusReporter      *status.Reporter
	Reloader            *reload.Watcher
	stopChan            chan struct{}
}

// NewDependencies creates all dependencies with the given configuration.
// Matches are reported on w; source names the watched command.
func NewDependencies(cfg *config.Config, w io.Writer, source string) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		stopChan: make(chan struct{}),
	}

	// Create notification components. The watched command runs with the
	// terminal in raw mode, so terminal output ends lines with CRLF.
	interactive := isTerminal(w)
	if interactive {
		deps.Notifier = notification.NewTerminalNotifier(w)
	} else {
		deps.Notifier = notification.NewWriterNotifier(w)
	}
	if limiter := notification.NewWindowRateLimiter(cfg.RateLimit.MaxMessages, cfg.RateLimit.Window); limiter != nil {
		deps.RateLimiter = limiter
	}
	deps.NotificationManager = notification.NewManager(cfg, deps.Notifier, deps.RateLimiter)

	// The status line is drawn only for an interactive terminal
	statusEnabled := cfg.StatusLine && !cfg.Quiet && interactive
	deps.StatusIndicator = status.NewIndicator(w, statusEnabled)
	deps.StatusReporter = status.NewReporter(deps.StatusIndicator)
	deps.NotificationManager.SetStatusReporter(deps.StatusReporter)
	if statusEnabled {
		deps.StatusIndicator.StartAutoRefresh(deps.stopChan)
	}

	// Create pattern matcher and output monitor
	deps.PatternMatcher = monitor.NewPatternMatcher(cfg.EnabledPatterns())
	deps.OutputMonitor = monitor.NewOutputMonitor(cfg, deps.PatternMatcher, deps.NotificationManager, source)

	// Create process manager
	deps.ProcessManager = process.NewManager(deps.OutputMonitor)

	return deps, nil
}

// WatchConfig reloads patterns from path whenever it changes. Patterns in
// extra, given on the command line, are kept across reloads.
func (d *Dependencies) WatchConfig(path string, extra []string) error {
	w, err := reload.NewWatcher(path, d.Config.ReloadDebounce, func(next *config.Config) {
		d.applyConfig(next, extra)
	})
	if err != nil {
		return err
	}
	d.Reloader = w
	return nil
}

// applyConfig swaps in the patterns of a reloaded configuration
func (d *Dependencies) applyConfig(next *config.Config, extra []string) {
	for _, p := range extra {
		if _, err := next.AddLiteral(p); err != nil {
			fmt.Fprintf(os.Stderr, "kmpscan: keeping previous patterns: %v\n", err)
			return
		}
	}

	patterns := next.EnabledPatterns()
	if len(patterns) == 0 {
		fmt.Fprintf(os.Stderr, "kmpscan: reloaded config has no patterns, keeping previous patterns\n")
		return
	}

	d.OutputMonitor.SetPatternMatcher(monitor.NewPatternMatcher(patterns))
	debugf("now matching %d patterns", len(patterns))
}

// Close cleans up all dependencies
func (d *Dependencies) Close() {
	// Stop status indicator refresh
	if d.stopChan != nil {
		select {
		case <-d.stopChan:
			// Already closed
		default:
			close(d.stopChan)
		}
		d.stopChan = nil
	}

	if d.StatusIndicator != nil {
		_ = d.StatusIndicator.Clear() // Best effort
	}

	if d.Reloader != nil {
		_ = d.Reloader.Close()
		d.Reloader = nil
	}

	if d.NotificationManager != nil {
		_ = d.NotificationManager.Close()
	}
}

// Application represents watch mode
type Application struct {
	deps *Dependencies
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return &Application{
		deps: deps,
	}
}

// Run starts the command with the given arguments and waits for it to exit
func (a *Application) Run(command string, args []string) error {
	if err := a.deps.ProcessManager.Start(command, args); err != nil {
		return err
	}

	return a.deps.ProcessManager.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop() error {
	return a.deps.ProcessManager.Stop()
}

// ExitCode returns the exit code of the watched process
func (a *Application) ExitCode() int {
	return a.deps.ProcessManager.ExitCode()
}

const watchSynopsis = "kmpscan [OPTIONS] watch [-e PATTERN]... [--no-reload] [--] COMMAND [ARGS...]"

func runWatch(global globalOptions, args []string, stdout, stderr io.Writer) int {
	var (
		patterns []string
		noReload bool
	)

	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringArrayVarP(&patterns, "pattern", "e", nil, "Pattern to watch for (repeatable)")
	fs.BoolVar(&noReload, "no-reload", false, "Do not reload patterns when the config file changes")

	if code, ok := parseFlags(fs, args, watchSynopsis, stdout, stderr); !ok {
		return code
	}

	command := fs.Args()
	if len(command) == 0 {
		fmt.Fprintln(stderr, "kmpscan: watch needs a command to run")
		return exitError
	}

	cfg, path, err := loadConfig(global, patterns)
	if err != nil {
		fmt.Fprintf(stderr, "kmpscan: %v\n", err)
		return exitError
	}

	deps, err := NewDependencies(cfg, stderr, filepath.Base(command[0]))
	if err != nil {
		fmt.Fprintf(stderr, "kmpscan: %v\n", err)
		return exitError
	}
	defer deps.Close()

	if !noReload && path != "" {
		if err := deps.WatchConfig(path, patterns); err != nil {
			debugf("config reload disabled: %v", err)
		}
	}

	app := NewApplication(deps)

	// Ensure terminal restoration on panic
	defer func() {
		if r := recover(); r != nil {
			_ = app.Stop() // Best effort terminal restoration
			panic(r)       // Re-panic
		}
	}()

	debugf("watching %v for %d patterns", command, len(cfg.EnabledPatterns()))

	if err := app.Run(command[0], command[1:]); err != nil {
		fmt.Fprintf(stderr, "kmpscan: %v\n", err)
		return exitError
	}

	debugf("%s", matchReport(deps.OutputMonitor.Lines(), deps.OutputMonitor.Counts()))
	if dropped := deps.NotificationManager.Dropped(); dropped > 0 {
		debugf("rate limit dropped %d notifications", dropped)
	}

	return app.ExitCode()
}

// matchReport summarizes a watch: lines read and matches per pattern, by name
func matchReport(lines int, counts map[string]int) string {
	names := make([]string, 0, len(counts))
	total := 0
	for name, n := range counts {
		names = append(names, name)
		total += n
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%d lines, %d matches", lines, total)
	for _, name := range names {
		fmt.Fprintf(&b, ", %s=%d", name, counts[name])
	}
	return b.String()
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
