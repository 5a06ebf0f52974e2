package notification

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/kmpscan/pkg/config"
	"github.com/Veraticus/kmpscan/pkg/interfaces"
)

// maxBatchSize caps how many matches are folded into one batched notification
const maxBatchSize = 100

// Manager orchestrates notification sending with batching and rate limiting
type Manager struct {
	notifier    Notifier
	rateLimiter interfaces.RateLimiter
	batcher     *Batcher

	mu       sync.Mutex
	dropped  int
	reporter interfaces.StatusReporter
}

// NewManager creates a new notification manager. rateLimiter may be nil.
func NewManager(cfg *config.Config, notifier Notifier, rateLimiter interfaces.RateLimiter) *Manager {
	m := &Manager{
		notifier:    notifier,
		rateLimiter: rateLimiter,
	}

	// Create batcher if batch window is configured
	if cfg.BatchWindow > 0 {
		m.batcher = NewBatcher(cfg.BatchWindow, maxBatchSize, m.sendBatch)
	}

	return m
}

// SetStatusReporter sets the reporter told about each delivery
func (m *Manager) SetStatusReporter(reporter interfaces.StatusReporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporter = reporter
}

// Send sends or batches a notification based on configuration
func (m *Manager) Send(notification Notification) error {
	m.mu.Lock()
	if m.rateLimiter != nil && !m.rateLimiter.Allow() {
		m.dropped++
		reporter := m.reporter
		m.mu.Unlock()
		if reporter != nil {
			reporter.ReportDropped()
		}
		return nil
	}
	batcher := m.batcher
	m.mu.Unlock()

	if batcher != nil {
		batcher.Add(notification)
		return nil
	}

	return m.deliver(notification)
}

// deliver sends one notification and reports the outcome
func (m *Manager) deliver(n Notification) error {
	m.mu.Lock()
	reporter := m.reporter
	m.mu.Unlock()

	if reporter != nil {
		reporter.ReportSending()
	}
	err := m.notifier.Send(n)
	if reporter != nil {
		if err != nil {
			reporter.ReportFailure()
		} else {
			reporter.ReportSuccess()
		}
	}
	return err
}

// Dropped returns how many notifications the rate limiter has rejected
func (m *Manager) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// sendBatch sends a batch of notifications as a single notification
func (m *Manager) sendBatch(notifications []Notification) {
	if len(notifications) == 0 {
		return
	}

	if len(notifications) == 1 {
		if err := m.deliver(notifications[0]); err != nil {
			fmt.Fprintf(os.Stderr, "kmpscan: notification error: %v\n", err)
		}
		return
	}

	combined := Notification{
		Title:   fmt.Sprintf("%d matches", len(notifications)),
		Message: formatBatchMessage(notifications),
		Time:    time.Now(),
		Pattern: "batch",
	}

	// Notifications are best effort; the batch runs off a timer with no caller to return to
	if err := m.deliver(combined); err != nil {
		fmt.Fprintf(os.Stderr, "kmpscan: notification error: %v\n", err)
	}
}

// Close flushes pending batches
func (m *Manager) Close() error {
	if m.batcher != nil {
		m.batcher.Flush()
	}
	return nil
}

// formatBatchMessage formats multiple notifications into a single message
func formatBatchMessage(notifications []Notification) string {
	var b strings.Builder
	for i, n := range notifications {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(n.Pattern)
		b.WriteString(": ")
		b.WriteString(n.Message)
	}
	return b.String()
}
