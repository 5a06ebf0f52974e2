// Package status draws a one-line summary of watch-mode notifications on
// the bottom row of the terminal.
package status

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Status represents the state of the most recent notification
type Status int

const (
	StatusWatching Status = iota
	StatusSending
	StatusSuccess
	StatusFailed
)

// refreshInterval is how often the line is redrawn, since the watched
// program may scroll or clear the screen underneath it.
const refreshInterval = 2 * time.Second

// Indicator manages the status display in the terminal
type Indicator struct {
	mu       sync.Mutex
	status   Status
	sent     int
	dropped  int
	lastSent time.Time
	enabled  bool
	writer   io.Writer

	refreshChan chan struct{}
}

// NewIndicator creates a new status indicator
func NewIndicator(writer io.Writer, enabled bool) *Indicator {
	return &Indicator{
		status:      StatusWatching,
		writer:      writer,
		enabled:     enabled,
		refreshChan: make(chan struct{}, 1),
	}
}

// SetStatus updates the current status
func (i *Indicator) SetStatus(status Status) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = status
	if status == StatusSuccess {
		i.sent++
		i.lastSent = time.Now()
	}

	// Best effort - don't fail if we can't update the display
	_ = i.draw()
}

// RecordDrop counts a notification rejected by the rate limiter
func (i *Indicator) RecordDrop() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.dropped++
	_ = i.draw()
}

// Counts returns the number of delivered and dropped notifications
func (i *Indicator) Counts() (sent, dropped int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sent, i.dropped
}

// draw renders the status indicator. Caller holds i.mu.
func (i *Indicator) draw() error {
	if !i.enabled || i.writer == nil {
		return nil
	}

	// \0337 save cursor, \033[r reset scroll region, \033[999;1H last row,
	// \033[2K clear line, \0338 restore cursor
	sequence := fmt.Sprintf("\0337\033[r\033[999;1H\033[2K%s\0338", i.getStatusText())

	_, err := fmt.Fprint(i.writer, sequence)
	return err
}

// getStatusText returns the status text with color
func (i *Indicator) getStatusText() string {
	parts := []string{"\033[32m▶\033[0m kmpscan"}

	switch i.status {
	case StatusSending:
		parts = append(parts, "\033[33m⟳\033[0m")
	case StatusSuccess:
		parts = append(parts, "\033[32m✓\033[0m")
	case StatusFailed:
		parts = append(parts, "\033[31m✗\033[0m")
	}

	parts = append(parts, fmt.Sprintf("%d sent", i.sent))
	if i.dropped > 0 {
		parts = append(parts, fmt.Sprintf("\033[33m%d dropped\033[0m", i.dropped))
	}
	if !i.lastSent.IsZero() {
		parts = append(parts, "last "+i.lastSent.Format("15:04:05"))
	}

	return strings.Join(parts, " ")
}

// Clear removes the status indicator
func (i *Indicator) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.enabled || i.writer == nil {
		return nil
	}

	_, err := fmt.Fprint(i.writer, "\0337\033[999;1H\033[2K\0338")
	return err
}

// Refresh asks the auto-refresh loop to redraw now
func (i *Indicator) Refresh() {
	if !i.enabled {
		return
	}
	select {
	case i.refreshChan <- struct{}{}:
	default:
		// refresh already pending
	}
}

// StartAutoRefresh redraws the line periodically until stopChan is closed
func (i *Indicator) StartAutoRefresh(stopChan <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
			case <-i.refreshChan:
			case <-stopChan:
				_ = i.Clear() // Best effort
				return
			}
			i.mu.Lock()
			_ = i.draw()
			i.mu.Unlock()
		}
	}()
}
