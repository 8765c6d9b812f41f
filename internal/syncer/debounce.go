package syncer

import (
	"sync"
	"time"
)

// Debouncer runs the most recently scheduled task after a quiet period. Each Schedule bumps a
// generation counter so a timer that fires for a replaced task does nothing.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	idle    *sync.Cond
	gen     uint64
	timer   *time.Timer
	task    func()
	running int
}

func NewDebouncer(delay time.Duration) *Debouncer {
	d := &Debouncer{delay: delay}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Schedule replaces any pending task with task.
func (d *Debouncer) Schedule(task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.task = task
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.task == nil {
		d.mu.Unlock()
		return
	}
	task := d.take()
	d.running++
	d.mu.Unlock()

	task()

	d.mu.Lock()
	d.running--
	if d.running == 0 {
		d.idle.Broadcast()
	}
	d.mu.Unlock()
}

// Wait blocks until no task started by the timer is still running.
func (d *Debouncer) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.running > 0 {
		d.idle.Wait()
	}
}

// Cancel drops the pending task without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.take()
}

// Flush runs the pending task now on the caller's goroutine. It reports whether a task ran.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	task := d.take()
	d.mu.Unlock()
	if task == nil {
		return false
	}
	task()
	return true
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.task != nil
}

// take must be called with mu held.
func (d *Debouncer) take() func() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	task := d.task
	d.task = nil
	return task
}
