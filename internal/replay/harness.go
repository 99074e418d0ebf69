package replay

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/update"
)

// Actions recorded per turn.
const (
	ActionCommit   = "commit"
	ActionFinish   = "finish"
	ActionRejected = "rejected"
)

// baseTime stamps turns that carry no timestamp.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// #region types
// Turn is one recorded answer.
type Turn struct {
	TurnID      string
	StatementID string
	Answer      string
	Timestamp   time.Time
}

// ReplayConfig holds the run parameters for a replay.
type ReplayConfig struct {
	MaxRounds   int
	Convergence convergence.Config
}

// DefaultReplayConfig returns the production run parameters.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		MaxRounds:   state.DefaultMaxRounds,
		Convergence: convergence.DefaultConfig(),
	}
}

// TurnResult is the outcome of replaying one turn through the commit path.
type TurnResult struct {
	TurnID      string
	StatementID string
	Action      string // "commit" | "finish" | "rejected"
	Reason      string
	Result      update.Result
	Round       int // round after the turn
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns   int
	Commits      int
	Rejected     int
	Answers      state.AnswerCounts
	Finished     bool
	FinishReason update.FinishReason
	FinalState   state.RunState
	Assessment   convergence.Assessment
}

// #endregion types

// #region presenter
// scripted presents recorded statements in order, skipping any already seen
// or pending. Past the end of the script it continues in catalog order.
type scripted struct {
	ids []string
	pos int
}

func (p *scripted) Next(cat *catalog.Catalog, s state.RunState) (catalog.Statement, bool) {
	skip := s.Seen()
	if s.CurrentStatementID != nil {
		skip[*s.CurrentStatementID] = true
	}
	for p.pos < len(p.ids) {
		id := p.ids[p.pos]
		p.pos++
		if skip[id] {
			continue
		}
		if st, ok := cat.ByID(id); ok {
			return st, true
		}
	}
	return cat.FirstUnseen(skip)
}

// #endregion presenter

// #region replay
// Replay drives recorded turns through the real commit path in memory. The
// presenter follows the recording, so ratings, tallies and the stopping
// decision are reproduced exactly.
func Replay(cat *catalog.Catalog, turns []Turn, config ReplayConfig) ([]TurnResult, state.RunState, error) {
	if len(turns) == 0 {
		return nil, state.RunState{}, errors.New("replay: no turns")
	}
	ids := make([]string, len(turns))
	for i, t := range turns {
		if !cat.IsValidID(t.StatementID) {
			return nil, state.RunState{}, fmt.Errorf("replay: turn %s: unknown statement %q", t.TurnID, t.StatementID)
		}
		ids[i] = t.StatementID
	}

	engine := update.NewEngine(cat, &scripted{ids: ids}, convergence.New(config.Convergence))
	current, _, err := engine.Start(state.New(config.MaxRounds))
	if err != nil {
		return nil, state.RunState{}, fmt.Errorf("replay: %w", err)
	}

	results := make([]TurnResult, 0, len(turns))
	for i, t := range turns {
		r := TurnResult{TurnID: t.TurnID, StatementID: t.StatementID}

		// 1. The recording must answer the statement actually pending.
		pending, ok := current.Phase().Active()
		switch {
		case !ok:
			r.Action = ActionRejected
			r.Reason = "run finished"
		case pending != t.StatementID:
			r.Action = ActionRejected
			r.Reason = fmt.Sprintf("statement %s is not pending (%s is)", t.StatementID, pending)
		}
		if r.Action != "" {
			r.Round = current.Round
			results = append(results, r)
			continue
		}

		// 2. Commit.
		ts := t.Timestamp
		if ts.IsZero() {
			ts = baseTime.Add(time.Duration(i) * time.Second)
		}
		next, res, err := engine.Commit(current, t.Answer, ts)
		if err != nil {
			r.Action = ActionRejected
			r.Reason = err.Error()
			r.Round = current.Round
			results = append(results, r)
			continue
		}
		current = next
		r.Result = res
		r.Round = current.Round
		r.Action = ActionCommit
		r.Reason = res.Decision.Reason
		if res.Finished {
			r.Action = ActionFinish
			r.Reason = string(res.Reason)
		}
		results = append(results, r)
	}
	return results, current, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []TurnResult, final state.RunState, policy *convergence.Policy) ReplaySummary {
	if policy == nil {
		policy = convergence.New(convergence.DefaultConfig())
	}
	s := ReplaySummary{
		TotalTurns: len(results),
		Answers:    final.AnswerCounts,
		FinalState: final,
		Assessment: policy.Assess(final),
	}
	for _, r := range results {
		switch r.Action {
		case ActionCommit:
			s.Commits++
		case ActionFinish:
			s.Commits++
			s.Finished = true
			s.FinishReason = r.Result.Reason
		case ActionRejected:
			s.Rejected++
		}
	}
	return s
}

// #endregion replay
