package state

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/rating"
)

// #region constructors
// New returns a fresh run: every lane at baseline, empty history, no statement pending.
func New(maxRounds int) RunState {
	if maxRounds < 1 {
		maxRounds = DefaultMaxRounds
	}
	return RunState{
		Round:                 1,
		MaxRounds:             maxRounds,
		LaneRatings:           BaselineRatings(),
		History:               []HistoryEntry{},
		SeenStatementIDs:      []string{},
		LaneCountsShown:       zeroLaneCounts(),
		CurrentStatementID:    nil,
		PresentedStatementIDs: []string{},
		SchemaVersion:         CurrentSchemaVersion,
	}
}

// BaselineRatings returns a rating map with every known lane at the baseline.
func BaselineRatings() map[catalog.Lane]float64 {
	m := make(map[catalog.Lane]float64, catalog.LaneCount)
	for _, l := range catalog.Lanes() {
		m[l] = rating.Baseline
	}
	return m
}

func zeroLaneCounts() map[catalog.Lane]int {
	m := make(map[catalog.Lane]int, catalog.LaneCount)
	for _, l := range catalog.Lanes() {
		m[l] = 0
	}
	return m
}

// Clone returns a deep copy so transitions never alias the caller's maps or slices.
func (s RunState) Clone() RunState {
	out := s
	out.LaneRatings = make(map[catalog.Lane]float64, len(s.LaneRatings))
	for k, v := range s.LaneRatings {
		out.LaneRatings[k] = v
	}
	out.LaneCountsShown = make(map[catalog.Lane]int, len(s.LaneCountsShown))
	for k, v := range s.LaneCountsShown {
		out.LaneCountsShown[k] = v
	}
	out.History = append([]HistoryEntry{}, s.History...)
	out.SeenStatementIDs = append([]string{}, s.SeenStatementIDs...)
	out.PresentedStatementIDs = append([]string{}, s.PresentedStatementIDs...)
	if s.CurrentStatementID != nil {
		id := *s.CurrentStatementID
		out.CurrentStatementID = &id
	}
	return out
}

// #endregion constructors

// #region phase-accessors
// Phase returns the explicit run phase.
func (s RunState) Phase() Phase {
	if s.CurrentStatementID == nil {
		return Phase{finished: true}
	}
	return Phase{statementID: *s.CurrentStatementID}
}

// Seen returns the seen statement ids as a set.
func (s RunState) Seen() map[string]bool {
	m := make(map[string]bool, len(s.SeenStatementIDs))
	for _, id := range s.SeenStatementIDs {
		m[id] = true
	}
	return m
}

// Rating returns a lane's rating, falling back to the baseline for a missing lane.
func (s RunState) Rating(l catalog.Lane) float64 {
	if r, ok := s.LaneRatings[l]; ok {
		return r
	}
	return rating.Baseline
}

// Ranked returns every known lane sorted by rating, highest first. Ties keep
// canonical lane order so rankings are deterministic.
func (s RunState) Ranked() []LaneRating {
	out := make([]LaneRating, 0, catalog.LaneCount)
	for _, l := range catalog.Lanes() {
		out = append(out, LaneRating{Lane: l, Rating: s.Rating(l)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rating > out[j].Rating
	})
	return out
}

// TopLanes returns the n highest-rated lanes.
func (s RunState) TopLanes(n int) []LaneRating {
	ranked := s.Ranked()
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	return ranked[:n]
}

// TopGap returns the rating difference between the top two lanes.
func (s RunState) TopGap() float64 {
	top := s.TopLanes(2)
	if len(top) < 2 {
		return 0
	}
	return top[0].Rating - top[1].Rating
}

// #endregion phase-accessors

// #region replay
// ReplayRatings recomputes lane ratings from baseline by applying history in order.
func ReplayRatings(history []HistoryEntry) map[catalog.Lane]float64 {
	ratings := BaselineRatings()
	for _, h := range history {
		if !h.LaneID.Valid() {
			continue
		}
		ratings[h.LaneID] = rating.Apply(ratings[h.LaneID], h.Answer.Outcome(), rating.DefaultK)
	}
	return ratings
}

// RecomputeDerived rebuilds seen ids, lane counts, answer counts and round from
// history. Ratings and the presented stack are left alone.
func (s *RunState) RecomputeDerived(cat *catalog.Catalog) {
	s.SeenStatementIDs = DeriveSeen(s.History, cat)
	s.LaneCountsShown = zeroLaneCounts()
	s.AnswerCounts = AnswerCounts{}
	for _, h := range s.History {
		if h.LaneID.Valid() {
			s.LaneCountsShown[h.LaneID]++
		}
		s.AnswerCounts.add(h.Answer)
	}
	s.Round = len(s.History) + 1
}

// Record appends an answered entry and advances the derived tallies and round
// incrementally. Ratings are the caller's concern.
func (s *RunState) Record(h HistoryEntry, cat *catalog.Catalog) {
	s.History = append(s.History, h)
	if cat.IsValidID(h.StatementID) && !slices.Contains(s.SeenStatementIDs, h.StatementID) {
		s.SeenStatementIDs = append(s.SeenStatementIDs, h.StatementID)
	}
	if h.LaneID.Valid() {
		s.LaneCountsShown[h.LaneID]++
	}
	s.AnswerCounts.add(h.Answer)
	s.Round++
}

// DeriveSeen returns the distinct history statement ids, in first-answered
// order, that still resolve in the catalog.
func DeriveSeen(history []HistoryEntry, cat *catalog.Catalog) []string {
	seen := make([]string, 0, len(history))
	dup := make(map[string]bool, len(history))
	for _, h := range history {
		if dup[h.StatementID] || !cat.IsValidID(h.StatementID) {
			continue
		}
		dup[h.StatementID] = true
		seen = append(seen, h.StatementID)
	}
	return seen
}

// CanonicalPresented returns the presented stack implied by history plus the
// pending statement: distinct answered ids in order, then current.
func CanonicalPresented(history []HistoryEntry, current *string) []string {
	out := make([]string, 0, len(history)+1)
	dup := make(map[string]bool, len(history)+1)
	for _, h := range history {
		if dup[h.StatementID] {
			continue
		}
		dup[h.StatementID] = true
		out = append(out, h.StatementID)
	}
	if current != nil && !dup[*current] {
		out = append(out, *current)
	}
	return out
}

// Replay rebuilds a complete run from history: ratings from baseline, every
// derived field, and the presented stack ending at current.
func Replay(history []HistoryEntry, current *string, maxRounds int, cat *catalog.Catalog) RunState {
	s := New(maxRounds)
	s.History = append([]HistoryEntry{}, history...)
	s.LaneRatings = ReplayRatings(s.History)
	s.RecomputeDerived(cat)
	if current != nil {
		id := *current
		s.CurrentStatementID = &id
	}
	s.PresentedStatementIDs = CanonicalPresented(s.History, s.CurrentStatementID)
	return s
}

// #endregion replay

// #region validate
// Validate checks the snapshot against the run schema and its cross-field
// invariants. It returns every problem found, joined.
func (s RunState) Validate(cat *catalog.Catalog) error {
	var errs []error
	if s.SchemaVersion != CurrentSchemaVersion {
		errs = append(errs, fmt.Errorf("schema_version %d, want %d", s.SchemaVersion, CurrentSchemaVersion))
	}
	if s.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("max_rounds %d must be positive", s.MaxRounds))
	}
	if len(s.History) > s.MaxRounds {
		errs = append(errs, fmt.Errorf("history has %d entries, max_rounds is %d", len(s.History), s.MaxRounds))
	}
	if s.Round < 1 || s.Round > s.MaxRounds+1 {
		errs = append(errs, fmt.Errorf("round %d outside [1, %d]", s.Round, s.MaxRounds+1))
	}
	if s.Round != len(s.History)+1 {
		errs = append(errs, fmt.Errorf("round %d does not follow history length %d", s.Round, len(s.History)))
	}

	errs = append(errs, validateLaneRatings(s.LaneRatings)...)

	for i, h := range s.History {
		if err := validateEntry(h, cat); err != nil {
			errs = append(errs, fmt.Errorf("history[%d]: %w", i, err))
		}
	}

	want := s.Clone()
	want.RecomputeDerived(cat)
	if !slices.Equal(s.SeenStatementIDs, want.SeenStatementIDs) {
		errs = append(errs, errors.New("seen_statement_ids do not match history"))
	}
	if !laneCountsEqual(s.LaneCountsShown, want.LaneCountsShown) {
		errs = append(errs, errors.New("lane_counts_shown do not match history"))
	}
	if s.AnswerCounts != want.AnswerCounts {
		errs = append(errs, fmt.Errorf("answer_counts %+v do not match history %+v", s.AnswerCounts, want.AnswerCounts))
	}

	if s.CurrentStatementID != nil {
		id := *s.CurrentStatementID
		switch {
		case s.Round > s.MaxRounds:
			errs = append(errs, fmt.Errorf("current_statement_id %q pending after the round cap (round %d of %d)", id, s.Round, s.MaxRounds))
		case !cat.IsValidID(id):
			errs = append(errs, fmt.Errorf("current_statement_id %q not in catalog", id))
		case slices.Contains(want.SeenStatementIDs, id):
			errs = append(errs, fmt.Errorf("current_statement_id %q was already answered", id))
		}
	}
	if !slices.Equal(s.PresentedStatementIDs, CanonicalPresented(s.History, s.CurrentStatementID)) {
		errs = append(errs, errors.New("presented_statement_ids do not match history and current statement"))
	}
	return errors.Join(errs...)
}

func validateLaneRatings(ratings map[catalog.Lane]float64) []error {
	var errs []error
	if len(ratings) != catalog.LaneCount {
		errs = append(errs, fmt.Errorf("lane_ratings has %d lanes, want %d", len(ratings), catalog.LaneCount))
	}
	for l, r := range ratings {
		if !l.Valid() {
			errs = append(errs, fmt.Errorf("lane_ratings: unknown lane %q", l))
		}
		if math.IsNaN(r) || math.IsInf(r, 0) {
			errs = append(errs, fmt.Errorf("lane_ratings[%s] is not finite", l))
		}
	}
	for _, l := range catalog.Lanes() {
		if _, ok := ratings[l]; !ok {
			errs = append(errs, fmt.Errorf("lane_ratings: missing lane %s", l))
		}
	}
	return errs
}

func validateEntry(h HistoryEntry, cat *catalog.Catalog) error {
	switch {
	case h.StatementID == "":
		return errors.New("empty statement_id")
	case !h.LaneID.Valid():
		return fmt.Errorf("unknown lane %q", h.LaneID)
	case !h.Answer.Valid():
		return fmt.Errorf("invalid answer %q", h.Answer)
	case h.Timestamp.IsZero():
		return errors.New("missing timestamp")
	}
	if st, ok := cat.ByID(h.StatementID); ok && st.LaneID != h.LaneID {
		return fmt.Errorf("statement %s belongs to lane %s, not %s", h.StatementID, st.LaneID, h.LaneID)
	}
	return nil
}

func laneCountsEqual(a, b map[catalog.Lane]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// #endregion validate
