// Package debounce delays a value until it has stopped changing.
package debounce

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Debouncer emits the most recent value passed to Set once the value has
// not changed for the configured delay.
type Debouncer[T comparable] struct {
	clock clock.WithDelayedExecution
	delay time.Duration
	emit  func(T)

	mu      sync.Mutex
	pending T
	settled T
	timer   clock.Timer
	gen     uint64
	stopped bool
}

// New returns a Debouncer calling emit with each settled value. A nil clk
// uses the real clock.
func New[T comparable](clk clock.WithDelayedExecution, delay time.Duration, initial T, emit func(T)) *Debouncer[T] {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Debouncer[T]{
		clock:   clk,
		delay:   delay,
		emit:    emit,
		pending: initial,
		settled: initial,
	}
}

// Set records v and restarts the delay. Setting the latest value again
// leaves the running delay alone.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || v == d.pending {
		return
	}
	d.pending = v
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush emits the pending value immediately if one is waiting.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Value returns the last settled value.
func (d *Debouncer[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// Pending reports whether a value is waiting for the delay to elapse.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop drops any pending value. Later calls to Set are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// a stale timer may still fire after Stop on the timer lost the race
	if gen != d.gen || d.stopped || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.settled = d.pending
	v := d.settled
	d.mu.Unlock()

	if d.emit != nil {
		d.emit(v)
	}
}
