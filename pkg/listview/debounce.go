package listview

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultDebounce is the delay between the last keystroke and the commit.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer buffers raw search input and commits it once typing pauses.
// It is Idle when no timer is armed and Pending otherwise. Only the timer
// armed by the latest Input may commit.
type Debouncer struct {
	clock  clock.Clock
	delay  time.Duration
	commit func(string)

	mu     sync.Mutex
	buffer string
	timer  *clock.Timer
	gen    uint64
	closed bool
}

// DebounceOption configures a Debouncer.
type DebounceOption func(*Debouncer)

// WithClock replaces the wall clock, typically with clock.NewMock in tests.
func WithClock(c clock.Clock) DebounceOption {
	return func(d *Debouncer) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithDelay sets the debounce delay. Non-positive values keep the default.
func WithDelay(delay time.Duration) DebounceOption {
	return func(d *Debouncer) {
		if delay > 0 {
			d.delay = delay
		}
	}
}

// NewDebouncer returns an Idle Debouncer that hands committed text to commit.
func NewDebouncer(commit func(string), opts ...DebounceOption) *Debouncer {
	d := &Debouncer{
		clock:  clock.New(),
		delay:  DefaultDebounce,
		commit: commit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Input records a keystroke and re-arms the timer, canceling any earlier one.
func (d *Debouncer) Input(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.buffer = text
	d.stopLocked()
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Confirm cancels any armed timer and commits the buffer immediately.
func (d *Debouncer) Confirm() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.stopLocked()
	text := d.buffer
	d.mu.Unlock()
	d.commit(text)
}

// Reset replaces the buffer without committing, e.g. when the committed
// search changed from elsewhere.
func (d *Debouncer) Reset(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.buffer = text
}

// Value returns the raw, un-debounced input.
func (d *Debouncer) Value() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffer
}

// Pending reports whether a commit is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Close cancels any armed timer. No commit happens after Close returns.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.stopLocked()
}

// stopLocked disarms the current timer and invalidates its callback in case
// it already started.
func (d *Debouncer) stopLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	text := d.buffer
	d.mu.Unlock()
	d.commit(text)
}
