package harvest

import (
	"sync"
	"sync/atomic"

	"listing_harvester/internal/shared/globalstate"
)

// Run stages reported through ProgressEvent.
const (
	StageProbe  = "probe"
	StageCount  = "count"
	StageWalk   = "walk"
	StageDetail = "detail"
	StageOutput = "output"
	StageDone   = "done"
)

// ProgressEvent is one progress notification of a run.
type ProgressEvent struct {
	RunID    string `json:"run_id"`
	Stage    string `json:"stage"`
	Keyword  string `json:"keyword,omitempty"`
	Location string `json:"location,omitempty"`
	Page     int    `json:"page,omitempty"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
	Message  string `json:"message,omitempty"`
}

// ProgressFunc receives progress events. It may be called from worker
// goroutines and must not block for long.
type ProgressFunc func(ProgressEvent)

// RunContext is passed to every component of a run. It carries the
// cooperative stop flag, the shared counters and the progress callback.
//
// Stop is not preemptive: requests already in flight finish, only new work
// is refused. Hard cancellation goes through the context.Context given to
// each operation.
type RunContext struct {
	State *globalstate.RunState

	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	progress ProgressFunc
}

// NewRunContext creates the context of run runID. progress may be nil.
func NewRunContext(runID string, progress ProgressFunc) *RunContext {
	return &RunContext{
		State:    globalstate.NewRunState(runID),
		stopCh:   make(chan struct{}),
		progress: progress,
	}
}

// ID returns the run ID.
func (rc *RunContext) ID() string {
	return rc.State.RunID()
}

// Stop raises the stop flag. Safe to call more than once.
func (rc *RunContext) Stop() {
	rc.stopOnce.Do(func() {
		rc.stopped.Store(true)
		close(rc.stopCh)
	})
}

// Stopped reports whether Stop was called.
func (rc *RunContext) Stopped() bool {
	return rc.stopped.Load()
}

// Done is closed by Stop.
func (rc *RunContext) Done() <-chan struct{} {
	return rc.stopCh
}

// Report sets the status line and forwards ev to the progress callback.
func (rc *RunContext) Report(ev ProgressEvent) {
	ev.RunID = rc.ID()
	if ev.Message != "" {
		rc.State.SetStatus(ev.Message)
	}
	if rc.progress != nil {
		rc.progress(ev)
	}
}
