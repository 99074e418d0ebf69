package recovery

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// #region heal
// Heal applies narrow repairs that never drop history: ratings replayed when
// lane keys are wrong, derived fields rebuilt, an invalid current statement
// replaced, and the presented stack made consistent with history and current.
func Heal(s state.RunState, cat *catalog.Catalog) (state.RunState, []string) {
	out := s.Clone()
	var notes []string
	note := func(format string, args ...any) {
		notes = append(notes, fmt.Sprintf(format, args...))
	}

	if out.MaxRounds < 1 {
		out.MaxRounds = state.DefaultMaxRounds
		note("max_rounds reset to %d", out.MaxRounds)
	}

	if !laneKeysOK(out.LaneRatings) {
		out.LaneRatings = state.ReplayRatings(out.History)
		note("lane_ratings rebuilt by replaying %d history entries", len(out.History))
	}

	before := out.Clone()
	out.RecomputeDerived(cat)
	if dropped := len(before.SeenStatementIDs) - len(out.SeenStatementIDs); dropped > 0 {
		note("seen_statement_ids: dropped %d unknown or duplicate ids", dropped)
	} else if !slices.Equal(before.SeenStatementIDs, out.SeenStatementIDs) {
		note("seen_statement_ids rebuilt from history")
	}
	if before.AnswerCounts != out.AnswerCounts || !maps.Equal(before.LaneCountsShown, out.LaneCountsShown) {
		note("answer and lane tallies rebuilt from history")
	}
	if before.Round != out.Round {
		note("round %d corrected to %d", before.Round, out.Round)
	}

	healCurrent(&out, cat, note)

	canon := state.CanonicalPresented(out.History, out.CurrentStatementID)
	if !slices.Equal(canon, out.PresentedStatementIDs) {
		note("presented_statement_ids rebuilt from history and current (%d -> %d ids)", len(out.PresentedStatementIDs), len(canon))
		out.PresentedStatementIDs = canon
	}

	if out.SchemaVersion != state.CurrentSchemaVersion {
		note("schema_version %d set to %d", out.SchemaVersion, state.CurrentSchemaVersion)
		out.SchemaVersion = state.CurrentSchemaVersion
	}
	return out, notes
}

// #endregion heal

// #region current
// healCurrent replaces an unknown or already answered current statement with
// the first unseen catalog statement, or restores a missing current from an
// unanswered tail of the presented stack. Past the cap current is cleared.
func healCurrent(s *state.RunState, cat *catalog.Catalog, note notef) {
	seen := s.Seen()

	if s.CurrentStatementID == nil {
		n := len(s.PresentedStatementIDs)
		if n == 0 || convergence.CapReached(*s) {
			return
		}
		tail := s.PresentedStatementIDs[n-1]
		if cat.IsValidID(tail) && !seen[tail] {
			s.CurrentStatementID = &tail
			note("current_statement_id restored from last presented id %q", tail)
		}
		return
	}

	id := *s.CurrentStatementID
	if convergence.CapReached(*s) {
		s.CurrentStatementID = nil
		note("current_statement_id %q cleared; round %d is past max_rounds %d", id, s.Round, s.MaxRounds)
		return
	}
	if cat.IsValidID(id) && !seen[id] {
		return
	}
	if st, ok := cat.FirstUnseen(seen); ok {
		next := st.ID
		s.CurrentStatementID = &next
		note("current_statement_id %q replaced with %q", id, next)
		return
	}
	s.CurrentStatementID = nil
	note("current_statement_id %q cleared; catalog exhausted", id)
}

// #endregion current

func laneKeysOK(ratings map[catalog.Lane]float64) bool {
	if len(ratings) != catalog.LaneCount {
		return false
	}
	for l, r := range ratings {
		if !l.Valid() || math.IsNaN(r) || math.IsInf(r, 0) {
			return false
		}
	}
	return true
}
