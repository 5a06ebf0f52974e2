package reload

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CollapsesBurst(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls int32
	fired := make(chan int, 5)
	for i := 0; i < 5; i++ {
		i := i
		d.Debounce("config.yaml", func() {
			atomic.AddInt32(&calls, 1)
			fired <- i
		})
	}

	select {
	case i := <-fired:
		if i != 4 {
			t.Errorf("callback %d fired, want the last one", i)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}

	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("callback fired %d times, want 1", n)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after firing", d.Pending())
	}
}

func TestDebouncer_SeparateKeys(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)

	fired := make(chan string, 2)
	d.Debounce("a", func() { fired <- "a" })
	d.Debounce("b", func() { fired <- "b" })

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case key := <-fired:
			seen[key] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for callbacks")
		}
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("callbacks = %v, want both keys", seen)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var calls int32
	d.Debounce("a", func() { atomic.AddInt32(&calls, 1) })
	d.Stop()

	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("callback fired %d times after Stop", n)
	}
}

// manualTimers captures scheduled callbacks so a test decides when they run
type manualTimers struct {
	mu    sync.Mutex
	funcs []func()
}

func (m *manualTimers) afterFunc(_ time.Duration, f func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, f)
	return time.AfterFunc(time.Hour, func() {})
}

func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	f := m.funcs[i]
	m.mu.Unlock()
	f()
}

func TestDebouncer_StaleTimerKeepsReplacement(t *testing.T) {
	timers := &manualTimers{}
	d := NewDebouncer(time.Second)
	d.afterFunc = timers.afterFunc

	var first, second int32
	d.Debounce("config.yaml", func() { atomic.AddInt32(&first, 1) })
	d.Debounce("config.yaml", func() { atomic.AddInt32(&second, 1) })

	// The first timer fired just as it was replaced
	timers.fire(0)
	if n := atomic.LoadInt32(&first); n != 0 {
		t.Errorf("replaced callback ran %d times", n)
	}
	if d.Pending() != 1 {
		t.Fatalf("Pending() = %d after stale fire, want 1", d.Pending())
	}

	timers.fire(1)
	if n := atomic.LoadInt32(&second); n != 1 {
		t.Errorf("replacement callback ran %d times, want 1", n)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after firing, want 0", d.Pending())
	}
}

func TestDebouncer_FireAfterStop(t *testing.T) {
	timers := &manualTimers{}
	d := NewDebouncer(time.Second)
	d.afterFunc = timers.afterFunc

	var calls int32
	d.Debounce("config.yaml", func() { atomic.AddInt32(&calls, 1) })
	d.Stop()

	// Fired before Stop could cancel it
	timers.fire(0)
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("callback ran %d times after Stop", n)
	}
}
