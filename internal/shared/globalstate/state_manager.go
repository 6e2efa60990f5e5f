package globalstate

import (
	"sync"
	"sync/atomic"
)

// RunState holds the status line and counters of one harvest run. Workers
// update it concurrently; the progress feed reads snapshots.
type RunState struct {
	mu     sync.RWMutex
	runID  string
	status string

	totalEstimate atomic.Int64
	identifiers   atomic.Int64
	records       atomic.Int64
	failedFetches atomic.Int64
	parseFailures atomic.Int64
	pagesWalked   atomic.Int64
}

// Snapshot is a point-in-time copy of RunState.
type Snapshot struct {
	RunID         string `json:"run_id"`
	Status        string `json:"status"`
	TotalEstimate int64  `json:"total_estimate"`
	Identifiers   int64  `json:"identifiers"`
	Records       int64  `json:"records"`
	FailedFetches int64  `json:"failed_fetches"`
	ParseFailures int64  `json:"parse_failures"`
	PagesWalked   int64  `json:"pages_walked"`
}

// NewRunState creates the state of run runID.
func NewRunState(runID string) *RunState {
	return &RunState{runID: runID, status: "Initializing..."}
}

// SetStatus updates the status line.
func (s *RunState) SetStatus(newStatus string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = newStatus
}

// Status reads the status line.
func (s *RunState) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *RunState) RunID() string {
	return s.runID
}

func (s *RunState) AddTotalEstimate(n int) { s.totalEstimate.Add(int64(n)) }
func (s *RunState) AddIdentifiers(n int) { s.identifiers.Add(int64(n)) }
func (s *RunState) AddRecords(n int) { s.records.Add(int64(n)) }
func (s *RunState) IncFailedFetches() { s.failedFetches.Add(1) }
func (s *RunState) IncParseFailures() { s.parseFailures.Add(1) }
func (s *RunState) IncPagesWalked() { s.pagesWalked.Add(1) }

// Snapshot returns a consistent-enough copy for reporting.
func (s *RunState) Snapshot() Snapshot {
	return Snapshot{
		RunID:         s.runID,
		Status:        s.Status(),
		TotalEstimate: s.totalEstimate.Load(),
		Identifiers:   s.identifiers.Load(),
		Records:       s.records.Load(),
		FailedFetches: s.failedFetches.Load(),
		ParseFailures: s.parseFailures.Load(),
		PagesWalked:   s.pagesWalked.Load(),
	}
}
