package reload

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of events for the same key into a single
// callback, run once the key has been quiet for the debounce duration.
type Debouncer struct {
	duration  time.Duration
	afterFunc func(time.Duration, func()) *time.Timer

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewDebouncer creates a debouncer that fires after duration of quiet
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration:  duration,
		afterFunc: time.AfterFunc,
		timers:    make(map[string]*time.Timer),
	}
}

// Debounce schedules fn for key, replacing any callback still pending for
// the same key.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.timers[key]; exists {
		timer.Stop()
	}

	var timer *time.Timer
	timer = d.afterFunc(d.duration, func() {
		d.mu.Lock()
		// A timer that fired while being replaced or stopped no longer owns the key
		if d.timers[key] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = timer
}

// Stop cancels all pending callbacks
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

// Pending returns the number of scheduled callbacks
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
