package campaign

import "sync"

// State is a point-in-time view of campaign progress.
type State struct {
	Total         int  `json:"total"`
	Completed     int  `json:"completed"`
	Running       bool `json:"running"`
	StopRequested bool `json:"stop_requested"`
}

// Tracker counts terminal contacts and detects completion exactly once.
//
// Increment is the only place completion is detected. The callback runs after
// the lock is released, on the goroutine whose Increment reached the total.
// Increments past completion are no-ops.
type Tracker struct {
	mu    sync.Mutex
	state State
	done  bool

	onComplete func()
}

func NewTracker(onComplete func()) *Tracker {
	return &Tracker{onComplete: onComplete}
}

func (t *Tracker) Start(total int) {
	if total < 0 {
		total = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{Total: total, Running: total > 0}
	t.done = total == 0
}

// Increment records one more terminal contact. It returns true only for the
// call that completed the campaign.
func (t *Tracker) Increment() bool {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.state.Completed++
	if t.state.Completed < t.state.Total {
		t.mu.Unlock()
		return false
	}
	t.state.Completed = t.state.Total
	t.state.Running = false
	t.done = true
	cb := t.onComplete
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}

// Stop marks the campaign as no longer running. Calls still in flight keep
// counting and may complete it.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Running = false
	t.state.StopRequested = true
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{}
	t.done = false
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done reports whether completion has fired.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
