package testutil

import (
	"sync"

	"github.com/Veraticus/kmpscan/pkg/notification"
)

// MockNotifier records every match notification it is asked to send.
// Safe for concurrent use.
type MockNotifier struct {
	mu        sync.Mutex
	attempts  []notification.Notification
	delivered []notification.Notification
	err       error
}

// NewMockNotifier creates a notifier that accepts everything until SetError
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send records n and fails with the configured error, if any
func (m *MockNotifier) Send(n notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = append(m.attempts, n)
	if m.err != nil {
		return m.err
	}
	m.delivered = append(m.delivered, n)
	return nil
}

// GetNotifications returns the notifications that were sent successfully
func (m *MockNotifier) GetNotifications() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification.Notification{}, m.delivered...)
}

// GetAttempts returns every notification passed to Send, failed or not
func (m *MockNotifier) GetAttempts() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification.Notification{}, m.attempts...)
}

// SetError makes subsequent sends fail with err; nil restores success
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Clear forgets all recorded notifications and the configured error
func (m *MockNotifier) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = nil
	m.delivered = nil
	m.err = nil
}

// CountingRateLimiter is a rate limiter that allows first N calls
type CountingRateLimiter struct {
	mu           sync.Mutex
	maxAllowed   int
	currentCount int
}

// NewCountingRateLimiter creates a new counting rate limiter
func NewCountingRateLimiter(maxAllowed int) *CountingRateLimiter {
	return &CountingRateLimiter{
		maxAllowed: maxAllowed,
	}
}

// Allow implements the RateLimiter interface
func (c *CountingRateLimiter) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentCount++
	return c.currentCount <= c.maxAllowed
}

// Reset implements the RateLimiter interface
func (c *CountingRateLimiter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentCount = 0
}
