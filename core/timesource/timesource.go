// Package timesource provides the machine's virtual clock. Peripherals
// apply register side effects immediately and push work that must observe
// the settled state of the current access onto a deferred queue; the queue
// is flushed once the machine is quiescent, i.e. after every bus access and
// on every tick.
package timesource

// Scheduler is the view of the clock a peripheral needs.
type Scheduler interface {
	// Defer queues fn to run at the next synchronisation point.
	Defer(fn func())
}

type TimeSource struct {
	now     uint64
	queue   []func()
	syncing bool
}

func New() *TimeSource { return &TimeSource{} }

// Now is the number of ticks elapsed since creation.
func (t *TimeSource) Now() uint64 { return t.now }

func (t *TimeSource) Defer(fn func()) {
	if fn != nil {
		t.queue = append(t.queue, fn)
	}
}

// Pending reports how many deferred actions are queued.
func (t *TimeSource) Pending() int { return len(t.queue) }

// Sync runs every deferred action in FIFO order. Actions deferred by a
// running action are run by the same Sync. It returns the number of actions
// executed. A nested Sync call is a no-op.
func (t *TimeSource) Sync() int {
	if t.syncing {
		return 0
	}
	t.syncing = true
	defer func() { t.syncing = false }()

	n := 0
	for len(t.queue) > 0 {
		fn := t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
		fn()
		n++
	}
	t.queue = t.queue[:0]
	return n
}

// Advance moves the clock forward by ticks, synchronising after each one.
// Advance(0) is a plain Sync.
func (t *TimeSource) Advance(ticks uint64) {
	t.Sync()
	for i := uint64(0); i < ticks; i++ {
		t.now++
		t.Sync()
	}
}

// Immediate is a Scheduler that runs deferred work at once. It is used by
// tests that do not care about ordering against the current access.
type Immediate struct{}

func (Immediate) Defer(fn func()) {
	if fn != nil {
		fn()
	}
}
