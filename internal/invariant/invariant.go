package invariant

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// requiredFields are the top-level keys every stored run must carry.
var requiredFields = []string{
	"round",
	"max_rounds",
	"lane_ratings",
	"history",
	"seen_statement_ids",
	"lane_counts_shown",
	"answer_counts",
	"current_statement_id",
	"presented_statement_ids",
	"schema_version",
}

// #region checker
// Checker inspects run states without modifying them.
type Checker struct {
	config Config
}

// NewChecker creates a checker with the given bounds.
func NewChecker(config Config) *Checker {
	return &Checker{config: config}
}

// CheckJSON reports missing fields in a raw snapshot, then checks the decoded
// state. It errors only when raw is not a JSON object.
func (c *Checker) CheckJSON(raw []byte, cat *catalog.Catalog) (Report, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Report{}, fmt.Errorf("invariant: decode snapshot: %w", err)
	}

	var r Report
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			r.add(SeverityError, CodeMissingField, f, "required field is missing")
		}
	}

	var s state.RunState
	if err := json.Unmarshal(raw, &s); err != nil {
		r.add(SeverityError, CodeMalformed, "", "snapshot does not decode: %v", err)
		return r, nil
	}
	r.Issues = append(r.Issues, c.Check(s, cat).Issues...)
	return r, nil
}

// Check runs every invariant against s.
func (c *Checker) Check(s state.RunState, cat *catalog.Catalog) Report {
	var r Report
	c.checkSchema(&r, s)
	c.checkRatings(&r, s)
	c.checkHistory(&r, s, cat)
	c.checkTallies(&r, s, cat)
	c.checkPresented(&r, s, cat)
	return r
}

// #endregion checker

// #region checks
func (c *Checker) checkSchema(r *Report, s state.RunState) {
	if s.SchemaVersion != state.CurrentSchemaVersion {
		r.add(SeverityError, CodeSchemaVersion, "schema_version", "got %d, want %d", s.SchemaVersion, state.CurrentSchemaVersion)
	}
	if s.MaxRounds < 1 {
		r.add(SeverityError, CodeRoundRange, "max_rounds", "%d must be positive", s.MaxRounds)
	}
	if s.Round < 1 || s.Round > s.MaxRounds+1 {
		r.add(SeverityError, CodeRoundRange, "round", "%d outside [1, %d]", s.Round, s.MaxRounds+1)
	}
}

func (c *Checker) checkRatings(r *Report, s state.RunState) {
	for l, v := range s.LaneRatings {
		if !l.Valid() {
			r.add(SeverityWarning, CodeLaneKeys, "lane_ratings", "unknown lane %q", l)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < c.config.MinRating || v > c.config.MaxRating {
			r.add(SeverityWarning, CodeRatingBounds, "lane_ratings", "%s rating %v outside [%v, %v]", l, v, c.config.MinRating, c.config.MaxRating)
		}
	}
	for _, l := range catalog.Lanes() {
		if _, ok := s.LaneRatings[l]; !ok {
			r.add(SeverityWarning, CodeLaneKeys, "lane_ratings", "missing lane %s", l)
		}
	}

	replayed := state.ReplayRatings(s.History)
	for _, l := range catalog.Lanes() {
		got, ok := s.LaneRatings[l]
		if ok && got != replayed[l] {
			r.add(SeverityWarning, CodeRatingDrift, "lane_ratings", "%s is %v, history replays to %v", l, got, replayed[l])
		}
	}
}

func (c *Checker) checkHistory(r *Report, s state.RunState, cat *catalog.Catalog) {
	for i, h := range s.History {
		field := fmt.Sprintf("history[%d]", i)
		st, ok := cat.ByID(h.StatementID)
		switch {
		case !ok:
			r.add(SeverityWarning, CodeUnknownStatement, field, "statement %q not in catalog", h.StatementID)
		case st.LaneID != h.LaneID:
			r.add(SeverityWarning, CodeHistoryEntry, field, "lane %q, catalog says %s", h.LaneID, st.LaneID)
		}
		if !h.Answer.Valid() {
			r.add(SeverityWarning, CodeHistoryEntry, field, "answer %q not recognised", h.Answer)
		}
		if h.Timestamp.IsZero() {
			r.add(SeverityWarning, CodeHistoryEntry, field, "missing timestamp")
		}
	}
}

func (c *Checker) checkTallies(r *Report, s state.RunState, cat *catalog.Catalog) {
	want := s.Clone()
	want.RecomputeDerived(cat)

	if s.AnswerCounts != want.AnswerCounts {
		r.add(SeverityWarning, CodeTallyMismatch, "answer_counts", "%+v, history gives %+v", s.AnswerCounts, want.AnswerCounts)
	}
	for _, l := range catalog.Lanes() {
		if s.LaneCountsShown[l] != want.LaneCountsShown[l] {
			r.add(SeverityWarning, CodeTallyMismatch, "lane_counts_shown", "%s is %d, history gives %d", l, s.LaneCountsShown[l], want.LaneCountsShown[l])
		}
	}
	if !slices.Equal(s.SeenStatementIDs, want.SeenStatementIDs) {
		r.add(SeverityWarning, CodeTallyMismatch, "seen_statement_ids", "%d ids, history gives %d", len(s.SeenStatementIDs), len(want.SeenStatementIDs))
	}
	if s.Round != want.Round {
		r.add(SeverityWarning, CodeTallyMismatch, "round", "%d, history gives %d", s.Round, want.Round)
	}
}

func (c *Checker) checkPresented(r *Report, s state.RunState, cat *catalog.Catalog) {
	dup := make(map[string]bool, len(s.PresentedStatementIDs))
	for _, id := range s.PresentedStatementIDs {
		if dup[id] {
			r.add(SeverityWarning, CodeDuplicatePresented, "presented_statement_ids", "%q appears more than once", id)
		}
		dup[id] = true
	}
	if s.CurrentStatementID == nil {
		return
	}
	id := *s.CurrentStatementID
	if s.Round > s.MaxRounds {
		r.add(SeverityWarning, CodeCurrentMismatch, "current_statement_id", "%q pending after round %d of %d", id, s.Round, s.MaxRounds)
	}
	if !cat.IsValidID(id) {
		r.add(SeverityWarning, CodeUnknownStatement, "current_statement_id", "%q not in catalog", id)
	}
	if n := len(s.PresentedStatementIDs); n == 0 || s.PresentedStatementIDs[n-1] != id {
		r.add(SeverityWarning, CodeCurrentMismatch, "current_statement_id", "%q is not the last presented id", id)
	}
}

// #endregion checks

// #region defaults
var defaultChecker = NewChecker(DefaultConfig())

// Check runs the default checker.
func Check(s state.RunState, cat *catalog.Catalog) Report {
	return defaultChecker.Check(s, cat)
}

// CheckJSON runs the default checker on a raw snapshot.
func CheckJSON(raw []byte, cat *catalog.Catalog) (Report, error) {
	return defaultChecker.CheckJSON(raw, cat)
}

// #endregion defaults
