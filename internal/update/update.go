package update

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/rating"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/selector"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// #region engine
// Engine applies run transitions. It never mutates the state it is given.
type Engine struct {
	catalog  *catalog.Catalog
	selector selector.Picker
	policy   *convergence.Policy
}

// NewEngine wires the catalog, selector and stopping policy used by transitions.
func NewEngine(cat *catalog.Catalog, sel selector.Picker, policy *convergence.Policy) *Engine {
	if policy == nil {
		policy = convergence.New(convergence.DefaultConfig())
	}
	return &Engine{catalog: cat, selector: sel, policy: policy}
}

// Catalog returns the engine's statement catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Policy returns the engine's stopping policy.
func (e *Engine) Policy() *convergence.Policy {
	return e.policy
}

// #endregion engine

// #region start
// Start presents the first statement of a fresh run. A run that already has a
// statement pending is returned unchanged.
func (e *Engine) Start(s state.RunState) (state.RunState, *catalog.Statement, error) {
	if id, ok := s.Phase().Active(); ok {
		st, found := e.catalog.ByID(id)
		if !found {
			return s, nil, fmt.Errorf("start: %w: %s", ErrUnknownStatement, id)
		}
		return s, &st, nil
	}
	if len(s.History) > 0 || convergence.CapReached(s) {
		return s, nil, fmt.Errorf("start: %w", ErrRunFinished)
	}

	next := s.Clone()
	st, ok := e.selector.Next(e.catalog, next)
	if !ok {
		return s, nil, fmt.Errorf("start: %w: catalog exhausted", ErrRunFinished)
	}
	present(&next, st.ID)
	return next, &st, nil
}

// #endregion start

// #region commit
// Commit answers the current statement and returns the advanced state.
func (e *Engine) Commit(s state.RunState, raw string, now time.Time) (state.RunState, Result, error) {
	// 1. Reject once the run is over.
	if convergence.CapReached(s) {
		return s, Result{}, fmt.Errorf("commit: %w: round %d of %d", ErrRunFinished, s.Round, s.MaxRounds)
	}
	id, ok := s.Phase().Active()
	if !ok {
		return s, Result{}, fmt.Errorf("commit: %w", ErrNoCurrentStatement)
	}
	answer, ok := state.NormalizeAnswer(raw)
	if !ok {
		return s, Result{}, fmt.Errorf("commit: %w: %q", ErrInvalidAnswer, raw)
	}
	st, ok := e.catalog.ByID(id)
	if !ok {
		return s, Result{}, fmt.Errorf("commit: %w: %s", ErrUnknownStatement, id)
	}

	next := s.Clone()

	// 2. Rate the statement's lane against the baseline.
	before := next.Rating(st.LaneID)
	after := rating.Apply(before, answer.Outcome(), rating.DefaultK)
	next.LaneRatings[st.LaneID] = after

	// 3-5. Record the answer; Record advances tallies and the round.
	entry := state.HistoryEntry{
		StatementID: st.ID,
		LaneID:      st.LaneID,
		Answer:      answer,
		Timestamp:   now.UTC(),
	}
	next.Record(entry, e.catalog)
	next.CurrentStatementID = nil

	res := Result{Entry: entry, Before: before, After: after}

	if convergence.CapReached(next) {
		return next, finish(res, FinishCap), nil
	}

	// 6. Select from the post-commit state.
	pick, ok := e.selector.Next(e.catalog, next)
	if !ok {
		return next, finish(res, FinishExhausted), nil
	}

	// 7. Stop early on convergence; the pick is dropped.
	res.Decision = e.policy.Evaluate(next)
	if res.Decision.Finish {
		return next, finish(res, FinishConverged), nil
	}

	present(&next, pick.ID)
	res.Next = &pick
	return next, res, nil
}

// #endregion commit

// #region undo
// Undo removes the last answer, makes its statement current again and
// rebuilds ratings and tallies by replaying the remaining history.
func (e *Engine) Undo(s state.RunState) (state.RunState, state.HistoryEntry, error) {
	n := len(s.History)
	if n == 0 {
		return s, state.HistoryEntry{}, fmt.Errorf("undo: %w", ErrNothingToUndo)
	}
	removed := s.History[n-1]
	current := removed.StatementID
	return state.Replay(s.History[:n-1], &current, s.MaxRounds, e.catalog), removed, nil
}

// #endregion undo

// #region helpers
func present(s *state.RunState, id string) {
	s.CurrentStatementID = &id
	s.PresentedStatementIDs = append(s.PresentedStatementIDs, id)
}

func finish(res Result, reason FinishReason) Result {
	res.Finished = true
	res.Reason = reason
	return res
}

// #endregion helpers
