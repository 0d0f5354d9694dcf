package orchestrator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sysupdater/sysupdater/internal/catalog"
)

type Status int

const (
	Completed Status = iota + 1
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one operation.
type Result struct {
	ID       catalog.OperationID
	Title    string
	Status   Status
	Updated  bool
	Reason   string // why it was skipped, or the no-op message of a completed operation
	Err      error  // set for Failed only
	Duration time.Duration
}

// Summary collects operation results of one run. It is safe for concurrent
// use while operations are in flight.
type Summary struct {
	mu      sync.Mutex
	results map[catalog.OperationID]Result
}

func NewSummary() *Summary {
	return &Summary{results: make(map[catalog.OperationID]Result)}
}

// Record stores r unless a result for the same operation already exists, in
// which case the first one is kept and Record returns false.
func (s *Summary) Record(ctx context.Context, r Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.ID]; ok {
		slog.WarnContext(ctx, "duplicate operation result ignored", "operation", string(r.ID))
		return false
	}
	s.results[r.ID] = r
	return true
}

func (s *Summary) Result(id catalog.OperationID) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	return r, ok
}

// Results returns every recorded result in priority order.
func (s *Summary) Results() []Result {
	s.mu.Lock()
	ret := make([]Result, 0, len(s.results))
	for _, r := range s.results {
		ret = append(ret, r)
	}
	s.mu.Unlock()

	slices.SortFunc(ret, func(a, b Result) int {
		return compareIDs(a.ID, b.ID)
	})
	return ret
}

func (s *Summary) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Updated reports whether the operation ran and changed something.
func (s *Summary) Updated(id catalog.OperationID) bool {
	r, ok := s.Result(id)
	return ok && r.Updated
}

// Errors returns one error per failed operation, in priority order.
func (s *Summary) Errors() []error {
	var errs []error
	for _, r := range s.Results() {
		if r.Status == Failed && r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// Report is the serializable form of a Summary.
type Report struct {
	Operations []OperationReport `json:"operations" yaml:"operations"`
	Errors     []string          `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type OperationReport struct {
	ID       string  `json:"id" yaml:"id"`
	Status   string  `json:"status" yaml:"status"`
	Updated  bool    `json:"updated" yaml:"updated"`
	Reason   string  `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error    string  `json:"error,omitempty" yaml:"error,omitempty"`
	Duration float64 `json:"duration_secs" yaml:"duration_secs"`
}

func (s *Summary) Report() Report {
	var rep Report
	for _, r := range s.Results() {
		op := OperationReport{
			ID:       string(r.ID),
			Status:   r.Status.String(),
			Updated:  r.Updated,
			Reason:   r.Reason,
			Duration: r.Duration.Seconds(),
		}
		if r.Err != nil {
			op.Error = r.Err.Error()
			rep.Errors = append(rep.Errors, op.Error)
		}
		rep.Operations = append(rep.Operations, op)
	}
	return rep
}
