package notification

import (
	"sync"
	"time"
)

// Batcher collects notifications and hands them to a callback once the
// window after the first pending notification has passed, or as soon as
// maxSize notifications are pending
type Batcher struct {
	window   time.Duration
	maxSize  int
	callback func([]Notification)

	mu      sync.Mutex
	pending []Notification
	timer   *time.Timer
}

// NewBatcher creates a new notification batcher. A maxSize of zero means no size limit.
func NewBatcher(window time.Duration, maxSize int, callback func([]Notification)) *Batcher {
	return &Batcher{
		window:   window,
		maxSize:  maxSize,
		callback: callback,
	}
}

// Add adds a notification to the batch
func (b *Batcher) Add(n Notification) {
	b.mu.Lock()
	b.pending = append(b.pending, n)

	if b.maxSize > 0 && len(b.pending) >= b.maxSize {
		batch := b.take()
		b.mu.Unlock()
		b.callback(batch)
		return
	}

	// Start timer if not already running
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
	b.mu.Unlock()
}

// Pending returns the number of notifications waiting to be sent
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush immediately sends any pending notifications
func (b *Batcher) Flush() {
	b.flush()
}

func (b *Batcher) flush() {
	b.mu.Lock()
	batch := b.take()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.callback(batch)
	}
}

// take empties the batch and stops the timer. Callers hold b.mu.
func (b *Batcher) take() []Notification {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.pending
	b.pending = nil
	return batch
}
