package reader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// AnalysisState is a state of the per-session analysis machine.
type AnalysisState int

const (
	StateIdle AnalysisState = iota
	StateSelected
	StateAnalyzing
	StateAnalyzed
	StateFailed
)

func (s AnalysisState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelected:
		return "selected"
	case StateAnalyzing:
		return "analyzing"
	case StateAnalyzed:
		return "analyzed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Analyzer runs the remote analysis for one feed item.
type Analyzer interface {
	Analyze(ctx context.Context, id int64) (*AnalysisResult, error)
}

// AnalysisSnapshot is a point-in-time copy of the workflow.
type AnalysisSnapshot struct {
	State  AnalysisState
	Item   *FeedItem
	Result *AnalysisResult
	Err    error
}

// AnalysisWorkflow drives analysis of the selected item. Each request is
// tagged with a ticket; a response is only committed while its ticket is
// still current, so results never attach to an item the user moved away
// from (including A, then B, then back to A).
type AnalysisWorkflow struct {
	analyzer  Analyzer
	logger    log.Logger
	newTicket func() string

	mu      sync.Mutex
	state   AnalysisState
	item    FeedItem
	ticket  string
	result  *AnalysisResult
	lastErr error
}

// NewAnalysisWorkflow creates a workflow in the Idle state.
func NewAnalysisWorkflow(analyzer Analyzer, logger log.Logger) *AnalysisWorkflow {
	if logger == nil {
		logger = log.Nop()
	}
	return &AnalysisWorkflow{
		analyzer:  analyzer,
		logger:    logger,
		newTicket: func() string { return ulid.Make().String() },
	}
}

// Select makes item the current item. Selecting a different item discards
// any result, failure or in-flight request. Re-selecting the current item
// only refreshes its fields.
func (w *AnalysisWorkflow) Select(item FeedItem) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateIdle && w.item.ID == item.ID {
		w.item = item
		return
	}
	if w.state == StateAnalyzing {
		w.logger.Info(context.Background(), "abandoning in-flight analysis",
			"feed_id", w.item.ID,
			"ticket", w.ticket,
			"next_feed_id", item.ID,
		)
	}
	w.reset(StateSelected)
	w.item = item
}

// Clear returns the workflow to Idle.
func (w *AnalysisWorkflow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset(StateIdle)
	w.item = FeedItem{}
}

// ClearIf clears the workflow only when feedID is the current item.
func (w *AnalysisWorkflow) ClearIf(feedID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateIdle || w.item.ID != feedID {
		return false
	}
	w.reset(StateIdle)
	w.item = FeedItem{}
	return true
}

func (w *AnalysisWorkflow) reset(next AnalysisState) {
	w.state = next
	w.ticket = ""
	w.result = nil
	w.lastErr = nil
}

// Acknowledge moves a Failed workflow back to Selected so it can be retried.
func (w *AnalysisWorkflow) Acknowledge() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateFailed {
		return false
	}
	w.state = StateSelected
	w.lastErr = nil
	return true
}

// Analyze requests analysis of the current item and blocks until the
// response arrives. It returns ErrAnalysisInFlight without issuing a request
// when one is already pending, the cached result when already Analyzed, and
// ErrStaleResponse when the selection changed while waiting. Calling it from
// Failed acknowledges the failure and retries.
func (w *AnalysisWorkflow) Analyze(ctx context.Context) (*AnalysisResult, error) {
	w.mu.Lock()
	switch w.state {
	case StateIdle:
		w.mu.Unlock()
		return nil, &ValidationError{Field: "item", Message: "no item selected"}
	case StateAnalyzing:
		w.mu.Unlock()
		return nil, ErrAnalysisInFlight
	case StateAnalyzed:
		res := *w.result
		w.mu.Unlock()
		return &res, nil
	}

	item := w.item
	ticket := w.newTicket()
	w.ticket = ticket
	w.state = StateAnalyzing
	w.lastErr = nil
	w.mu.Unlock()

	L := w.logger.With("feed_id", item.ID, "ticket", ticket)
	L.Info(ctx, "analysis requested")
	start := time.Now()

	res, err := w.analyzer.Analyze(ctx, item.ID)
	if err == nil && res == nil {
		err = errors.New("empty analysis response")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateAnalyzing || w.ticket != ticket {
		L.Info(ctx, "dropping stale analysis response",
			"current_state", w.state.String(),
			"current_feed_id", w.item.ID,
		)
		return nil, ErrStaleResponse
	}
	w.ticket = ""

	if err != nil {
		err = asTransport("analyze", err)
		w.state = StateFailed
		w.lastErr = err
		L.Warn(ctx, "analysis failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	committed := *res
	committed.FeedID = item.ID
	w.result = &committed
	w.state = StateAnalyzed
	L.Info(ctx, "analysis complete", "duration", time.Since(start))

	out := committed
	return &out, nil
}

// AnalyzeAsync runs Analyze in the background and reports the outcome to
// done. Stale responses are dropped without calling done.
func (w *AnalysisWorkflow) AnalyzeAsync(ctx context.Context, done func(*AnalysisResult, error)) {
	go func() {
		res, err := w.Analyze(ctx)
		if errors.Is(err, ErrStaleResponse) || done == nil {
			return
		}
		done(res, err)
	}()
}

// Snapshot returns a copy of the current state.
func (w *AnalysisWorkflow) Snapshot() AnalysisSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := AnalysisSnapshot{State: w.state, Err: w.lastErr}
	if w.state != StateIdle {
		item := w.item
		snap.Item = &item
	}
	if w.result != nil {
		res := *w.result
		snap.Result = &res
	}
	return snap
}
