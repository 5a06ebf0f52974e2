package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/Veraticus/kmpscan/pkg/config"
	"github.com/Veraticus/kmpscan/pkg/monitor"
	"github.com/Veraticus/kmpscan/pkg/notification"
	"github.com/Veraticus/kmpscan/pkg/testutil"
)

// lockedBuffer is a bytes.Buffer shared with notification goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T, patterns ...string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	for _, p := range patterns {
		if _, err := cfg.AddLiteral(p); err != nil {
			t.Fatalf("AddLiteral(%q) error = %v", p, err)
		}
	}
	return cfg
}

func TestNewDependencies(t *testing.T) {
	cfg := testConfig(t, "test")

	deps, err := NewDependencies(cfg, &bytes.Buffer{}, "make")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	if deps.Config != cfg {
		t.Error("expected config to be set")
	}
	if deps.Notifier == nil {
		t.Error("expected notifier to be created")
	}
	if deps.RateLimiter == nil {
		t.Error("expected rate limiter to be created")
	}
	if deps.NotificationManager == nil {
		t.Error("expected notification manager to be created")
	}
	if deps.PatternMatcher == nil || deps.OutputMonitor == nil {
		t.Error("expected pattern matcher and output monitor to be created")
	}
	if deps.ProcessManager == nil {
		t.Error("expected process manager to be created")
	}
	if deps.StatusIndicator == nil || deps.StatusReporter == nil {
		t.Error("expected status indicator and reporter to be created")
	}
}

func TestNewDependencies_NoRateLimit(t *testing.T) {
	cfg := testConfig(t, "test")
	cfg.RateLimit.MaxMessages = 0

	deps, err := NewDependencies(cfg, &bytes.Buffer{}, "make")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	// A nil *TokenBucketRateLimiter must not end up inside the interface
	if deps.RateLimiter != nil {
		t.Errorf("expected no rate limiter, got %#v", deps.RateLimiter)
	}

	for i := 0; i < 100; i++ {
		deps.OutputMonitor.HandleLine("test")
	}
	if deps.NotificationManager.Dropped() != 0 {
		t.Errorf("Dropped() = %d without a rate limit", deps.NotificationManager.Dropped())
	}
}

func TestDependenciesClose(t *testing.T) {
	deps, err := NewDependencies(testConfig(t, "test"), &bytes.Buffer{}, "make")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Close should not panic
	deps.Close()

	// Double close should not panic
	deps.Close()
}

func TestDependencies_MatchesReachWriter(t *testing.T) {
	out := &lockedBuffer{}
	deps, err := NewDependencies(testConfig(t, "FAIL"), out, "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	deps.OutputMonitor.HandleData([]byte("ok  \tpkg/a\nFAIL\tpkg/b\n"))

	want := "[MATCH] go: FAIL\tpkg/b (Pattern: FAIL, Position: 0)\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestDependencies_RawTerminalLineEndings(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getenv("CI") == "true" {
		t.Skip("PTY tests require Unix environment")
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	defer func() { _ = ptmx.Close() }()
	defer func() { _ = tty.Close() }()

	// Same terminal state the watched command runs under
	if _, err := term.MakeRaw(int(tty.Fd())); err != nil {
		t.Fatalf("MakeRaw() error = %v", err)
	}

	deps, err := NewDependencies(testConfig(t, "FAIL"), tty, "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	deps.OutputMonitor.HandleData([]byte("FAIL a\nFAIL b\n"))

	want := "[MATCH] go: FAIL a (Pattern: FAIL, Position: 0)\r\n" +
		"[MATCH] go: FAIL b (Pattern: FAIL, Position: 0)\r\n"

	got := make(chan string, 1)
	go func() {
		var buf []byte
		chunk := make([]byte, 256)
		for len(buf) < len(want) {
			n, err := ptmx.Read(chunk)
			buf = append(buf, chunk[:n]...)
			if err != nil {
				break
			}
		}
		got <- string(buf)
	}()

	select {
	case out := <-got:
		if out != want {
			t.Errorf("terminal received %q, want %q", out, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no output reached the terminal")
	}
}

func TestDependencies_RateLimitedMatches(t *testing.T) {
	cfg := testConfig(t, "retry")
	notifier := testutil.NewMockNotifier()

	// Same wiring as NewDependencies, with a limiter that admits two sends
	deps := &Dependencies{
		Config:         cfg,
		Notifier:       notifier,
		RateLimiter:    testutil.NewCountingRateLimiter(2),
		PatternMatcher: monitor.NewPatternMatcher(cfg.EnabledPatterns()),
		stopChan:       make(chan struct{}),
	}
	deps.NotificationManager = notification.NewManager(cfg, deps.Notifier, deps.RateLimiter)
	deps.OutputMonitor = monitor.NewOutputMonitor(cfg, deps.PatternMatcher, deps.NotificationManager, "svc")
	defer deps.Close()

	deps.OutputMonitor.HandleData([]byte("retry 1\nretry 2\nretry 3 retry 4\n"))

	if got := len(notifier.GetNotifications()); got != 2 {
		t.Errorf("sent %d notifications, want 2", got)
	}
	if got := deps.NotificationManager.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if got := deps.OutputMonitor.Counts()["retry"]; got != 4 {
		t.Errorf("matched %d times, want 4", got)
	}
}

func TestDependencies_ApplyConfig(t *testing.T) {
	tests := []struct {
		name        string
		reloaded    []string
		extra       []string
		line        string
		wantPattern string
	}{
		{
			name:        "new patterns replace old",
			reloaded:    []string{"timeout"},
			line:        "request timeout after panic",
			wantPattern: "timeout",
		},
		{
			name:        "command line patterns survive reload",
			reloaded:    []string{"timeout"},
			extra:       []string{"panic"},
			line:        "panic: nil map",
			wantPattern: "panic",
		},
		{
			name:        "empty reload keeps previous",
			reloaded:    nil,
			line:        "panic: nil map",
			wantPattern: "panic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &lockedBuffer{}
			deps, err := NewDependencies(testConfig(t, "panic"), out, "svc")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer deps.Close()

			deps.applyConfig(testConfig(t, tt.reloaded...), tt.extra)
			deps.OutputMonitor.HandleLine(tt.line)

			counts := deps.OutputMonitor.Counts()
			if counts[tt.wantPattern] != 1 {
				t.Errorf("counts = %v, want one %q match", counts, tt.wantPattern)
			}
			if len(counts) != 1 {
				t.Errorf("counts = %v, want only %q", counts, tt.wantPattern)
			}
		})
	}
}

func TestDependencies_ApplyConfigEnablesConfiguredLiteral(t *testing.T) {
	deps, err := NewDependencies(testConfig(t, "panic"), &lockedBuffer{}, "svc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	next := config.DefaultConfig()
	next.Patterns = []config.Pattern{
		{Name: "panic", Text: "fatal"},
		{Name: "timeout", Text: "timeout"},
	}
	deps.applyConfig(next, []string{"panic", "timeout"})
	deps.OutputMonitor.HandleLine("panic: timeout")

	counts := deps.OutputMonitor.Counts()
	if counts["-e:panic"] != 1 || counts["timeout"] != 1 || len(counts) != 2 {
		t.Errorf("counts = %v, want -e:panic=1 timeout=1", counts)
	}
}

func TestDependencies_WatchConfig(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	path := writeTestFile(t, dir, "config.yaml", "patterns:\n  - name: old\n    text: alpha\n    enabled: true\n")

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	cfg.ReloadDebounce = 20 * time.Millisecond

	deps, err := NewDependencies(cfg, &lockedBuffer{}, "svc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	if err := deps.WatchConfig(path, nil); err != nil {
		t.Fatalf("WatchConfig() error = %v", err)
	}

	writeTestFile(t, dir, "config.yaml", "patterns:\n  - name: new\n    text: beta\n    enabled: true\n")

	deadline := time.Now().Add(3 * time.Second)
	for {
		deps.OutputMonitor.HandleLine("beta")
		if deps.OutputMonitor.Counts()["new"] > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("patterns were not reloaded")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestApplicationRun(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getenv("CI") == "true" {
		t.Skip("PTY tests require Unix environment")
	}
	t.Setenv("KMPSCAN_WATCHED", "")

	out := &lockedBuffer{}
	deps, err := NewDependencies(testConfig(t, "boom"), out, "sh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	app := NewApplication(deps)
	if err := app.Run("sh", []string{"-c", "echo it went boom; exit 4"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if app.ExitCode() != 4 {
		t.Errorf("ExitCode() = %d, want 4", app.ExitCode())
	}
	if !strings.Contains(out.String(), "Pattern: boom") {
		t.Errorf("no match reported, output %q", out.String())
	}
}

func TestRunWatch_MissingDirectoryDisablesReload(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getenv("CI") == "true" {
		t.Skip("PTY tests require Unix environment")
	}
	isolate(t)
	t.Setenv("KMPSCAN_WATCHED", "")
	t.Setenv("KMPSCAN_CONFIG", filepath.Join(t.TempDir(), "absent", "config.yaml"))

	var stdout, stderr bytes.Buffer
	code := run([]string{"watch", "-e", "hello", "--", "sh", "-c", "echo hello; exit 3"}, &stdout, &stderr)

	if code != 3 {
		t.Errorf("run() = %d, want the child's exit code 3 (stderr %q)", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "Pattern: hello") {
		t.Errorf("stderr %q missing the match", stderr.String())
	}
}

func TestMatchReport(t *testing.T) {
	tests := []struct {
		name   string
		lines  int
		counts map[string]int
		want   string
	}{
		{name: "nothing matched", lines: 12, counts: map[string]int{}, want: "12 lines, 0 matches"},
		{name: "sorted by pattern", lines: 3, counts: map[string]int{"panic": 1, "-e:foo": 2, "error": 4}, want: "3 lines, 7 matches, -e:foo=2, error=4, panic=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchReport(tt.lines, tt.counts); got != tt.want {
				t.Errorf("matchReport() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMatchReport_FromMonitor(t *testing.T) {
	deps, err := NewDependencies(testConfig(t, "ERROR", "WARN"), &lockedBuffer{}, "svc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	deps.OutputMonitor.HandleData([]byte("WARN slow\nok\nERROR boom ERROR\n"))

	got := matchReport(deps.OutputMonitor.Lines(), deps.OutputMonitor.Counts())
	if want := "3 lines, 3 matches, ERROR=2, WARN=1"; got != want {
		t.Errorf("matchReport() = %q, want %q", got, want)
	}
}
