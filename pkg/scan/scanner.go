// Package scan searches files for literal patterns.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/kmpscan/pkg/kmp"
	"github.com/Veraticus/kmpscan/pkg/types"
)

// Stdin is the path that names standard input
const Stdin = "-"

// ErrTooLarge is returned for inputs whose decoded size exceeds the limit
var ErrTooLarge = errors.New("input exceeds maximum size")

// Match is a single occurrence of a pattern in an input
type Match struct {
	Pattern string
	Offset  int
	Line    int
	Column  int
	Context string
}

// FileResult holds the outcome of scanning one input
type FileResult struct {
	Path        string
	Size        int64
	Compression Compression
	Matches     []Match
	Err         error
}

// Options configure a Scanner
type Options struct {
	Workers      int
	MaxFileSize  uint64
	ContextWidth int
}

type namedMatcher struct {
	name    string
	matcher *kmp.Matcher[byte]
}

// Scanner runs a fixed set of patterns over files
type Scanner struct {
	patterns []namedMatcher
	opts     Options
	stdin    io.Reader
}

// NewScanner creates a scanner for the enabled patterns. Matchers come from
// cache when it is non-nil, so identical texts share one compiled table.
func NewScanner(patterns []types.Pattern, cache *kmp.Cache, opts Options) *Scanner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	s := &Scanner{opts: opts, stdin: os.Stdin}
	for i := range patterns {
		p := &patterns[i]
		if !p.Enabled {
			continue
		}

		var m *kmp.Matcher[byte]
		switch {
		case cache != nil:
			m = cache.GetString(p.Text)
		case p.Matcher() != nil:
			m = p.Matcher()
		default:
			m = kmp.CompileString(p.Text)
		}
		s.patterns = append(s.patterns, namedMatcher{name: p.Name, matcher: m})
	}
	return s
}

// ScanFiles scans every path, at most opts.Workers at a time. Results are
// in the order of paths. Per-file failures are reported in FileResult.Err;
// the returned error is non-nil only when ctx is done. Standard input is
// read once however often Stdin appears in paths.
func (s *Scanner) ScanFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	stdinAt := -1
	for i, path := range paths {
		if path == Stdin {
			if stdinAt >= 0 {
				continue
			}
			stdinAt = i
		}
		if err := gctx.Err(); err != nil {
			results[i] = FileResult{Path: path, Err: err}
			continue
		}
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = FileResult{Path: path, Err: err}
				return err
			}
			results[i] = s.scanFile(path)
			return nil
		})
	}

	err := g.Wait()
	for i, path := range paths {
		if path == Stdin && i != stdinAt {
			results[i] = results[stdinAt]
		}
	}

	if err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (s *Scanner) scanFile(path string) FileResult {
	result := FileResult{Path: path}

	var r io.Reader
	if path == Stdin {
		r = s.stdin
	} else {
		// #nosec G304 - scanning user-named files is the point
		f, err := os.Open(path)
		if err != nil {
			result.Err = err
			return result
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	data, alg, err := s.read(r)
	result.Compression = alg
	if err != nil {
		result.Err = fmt.Errorf("%s: %w", path, err)
		return result
	}

	result.Size = int64(len(data))
	result.Matches = s.ScanBytes(data)

	if os.Getenv("KMPSCAN_DEBUG") == "1" {
		fmt.Fprintf(os.Stderr, "kmpscan: %s: %s (%s), %d matches\n",
			path, humanize.Bytes(uint64(len(data))), alg, len(result.Matches))
	}
	return result
}

// read decodes r fully, enforcing the size limit on the decoded content
func (s *Scanner) read(r io.Reader) ([]byte, Compression, error) {
	rc, alg, err := decode(r)
	if err != nil {
		return nil, alg, err
	}
	defer func() { _ = rc.Close() }()

	var src io.Reader = rc
	if s.opts.MaxFileSize > 0 {
		src = io.LimitReader(rc, int64(s.opts.MaxFileSize)+1)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, alg, fmt.Errorf("error reading %s input: %w", alg, err)
	}
	if s.opts.MaxFileSize > 0 && uint64(len(data)) > s.opts.MaxFileSize {
		return nil, alg, fmt.Errorf("%w (%s)", ErrTooLarge, humanize.Bytes(s.opts.MaxFileSize))
	}
	return data, alg, nil
}

// ScanBytes runs every pattern over data. Matches are ordered by offset,
// then by pattern name.
func (s *Scanner) ScanBytes(data []byte) []Match {
	var matches []Match
	var lines []int

	for _, p := range s.patterns {
		offsets := p.matcher.FindAll(data)
		if len(offsets) == 0 {
			continue
		}
		if lines == nil {
			lines = lineStarts(data)
		}
		for _, off := range offsets {
			line, col := position(lines, off)
			matches = append(matches, Match{
				Pattern: p.name,
				Offset:  off,
				Line:    line,
				Column:  col,
				Context: snippet(data, lines, line, off, p.matcher.Len(), s.opts.ContextWidth),
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Offset != matches[j].Offset {
			return matches[i].Offset < matches[j].Offset
		}
		return matches[i].Pattern < matches[j].Pattern
	})
	return matches
}

// lineStarts returns the offset of the first byte of every line
func lineStarts(data []byte) []int {
	starts := []int{0}
	for i, b := range data {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// position converts a byte offset into a 1-based line and column
func position(starts []int, off int) (int, int) {
	line := sort.Search(len(starts), func(i int) bool { return starts[i] > off }) - 1
	return line + 1, off - starts[line] + 1
}

// snippet returns up to width bytes either side of a match, clipped to
// the line the match starts on.
func snippet(data []byte, starts []int, line, off, length, width int) string {
	lineStart := starts[line-1]
	lineEnd := len(data)
	if line < len(starts) {
		lineEnd = starts[line] - 1
	}

	from := max(lineStart, off-width)
	to := min(lineEnd, off+length+width)
	if to < from {
		to = from
	}
	return strings.TrimRight(string(bytes.ToValidUTF8(data[from:to], []byte("?"))), "\r")
}

// Summary aggregates the results of a scan
type Summary struct {
	Files   int
	Errors  int
	Bytes   uint64
	Matches int
}

// Summarize totals a set of results
func Summarize(results []FileResult) Summary {
	var sum Summary
	for _, r := range results {
		sum.Files++
		if r.Err != nil {
			sum.Errors++
			continue
		}
		sum.Bytes += uint64(r.Size)
		sum.Matches += len(r.Matches)
	}
	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("%s in %s across %s, %s",
		plural(s.Matches, "match", "matches"),
		humanize.Bytes(s.Bytes),
		plural(s.Files, "file", "files"),
		plural(s.Errors, "error", "errors"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}
