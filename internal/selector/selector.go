package selector

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// #region config
// Config holds the selection policy knobs.
type Config struct {
	MinLaneCoverage    int     // statements each lane must show before ratings are trusted
	ExploreProbability float64 // chance of sampling outside the top lanes once covered
	TopLanes           int     // size of the contested group
}

// DefaultConfig returns the production selection policy.
func DefaultConfig() Config {
	return Config{
		MinLaneCoverage:    2,
		ExploreProbability: 0.12,
		TopLanes:           3,
	}
}

// #endregion config

// #region rand
// Rand is the randomness the selector needs. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a seeded PCG source. A zero seed derives one from the clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// #endregion rand

// #region selector
// Phase names the selection step that produced a pick.
type Phase string

const (
	PhaseCoverage    Phase = "coverage"
	PhaseExplore     Phase = "explore"
	PhaseUncertainty Phase = "uncertainty"
	PhaseFallback    Phase = "fallback"
	PhaseExhausted   Phase = "exhausted"
)

// Pick is a selected statement and the step that chose it.
type Pick struct {
	Statement catalog.Statement
	Phase     Phase
}

// Picker chooses the next statement for a run.
type Picker interface {
	Next(cat *catalog.Catalog, s state.RunState) (catalog.Statement, bool)
}

// Selector balances lane coverage, exploration and focus on contested lanes.
type Selector struct {
	config Config
	rng    Rand
}

// New creates a selector with the given policy and randomness.
func New(config Config, rng Rand) *Selector {
	return &Selector{config: config, rng: rng}
}

// Next returns the next statement, or false when every catalog statement has been seen.
func (sel *Selector) Next(cat *catalog.Catalog, s state.RunState) (catalog.Statement, bool) {
	p := sel.Choose(cat, s)
	return p.Statement, p.Phase != PhaseExhausted
}

// Choose runs the selection steps in priority order and reports which one picked.
func (sel *Selector) Choose(cat *catalog.Catalog, s state.RunState) Pick {
	seen := s.Seen()
	if s.CurrentStatementID != nil {
		seen[*s.CurrentStatementID] = true
	}
	unseen := cat.Unseen(seen)
	if len(unseen) == 0 {
		return Pick{Phase: PhaseExhausted}
	}

	// 1. Coverage: lanes tied for the lowest shown count while any lane is under-covered.
	if lanes, under := sel.underCovered(s); under {
		if c := filterLanes(unseen, lanes); len(c) > 0 {
			return Pick{Statement: sel.pick(c), Phase: PhaseCoverage}
		}
		return Pick{Statement: sel.pick(unseen), Phase: PhaseFallback}
	}

	top := s.TopLanes(sel.config.TopLanes)

	// 2. Exploration: lanes outside the top group.
	if sel.rng.Float64() < sel.config.ExploreProbability {
		outside := make(map[catalog.Lane]bool, catalog.LaneCount)
		for _, l := range catalog.Lanes() {
			outside[l] = true
		}
		for _, lr := range top {
			delete(outside, lr.Lane)
		}
		if c := filterLanes(unseen, outside); len(c) > 0 {
			return Pick{Statement: sel.pick(c), Phase: PhaseExplore}
		}
		return Pick{Statement: sel.pick(unseen), Phase: PhaseFallback}
	}

	// 3. Uncertainty: the top lanes at the minimum gap to the leader.
	if c := filterLanes(unseen, contested(top)); len(c) > 0 {
		return Pick{Statement: sel.pick(c), Phase: PhaseUncertainty}
	}

	// 4. Fallback.
	return Pick{Statement: sel.pick(unseen), Phase: PhaseFallback}
}

// #endregion selector

// #region helpers
// underCovered returns the lanes tied for the lowest shown count, and whether
// that count is below the coverage minimum.
func (sel *Selector) underCovered(s state.RunState) (map[catalog.Lane]bool, bool) {
	minCount := -1
	for _, l := range catalog.Lanes() {
		if n := s.LaneCountsShown[l]; minCount < 0 || n < minCount {
			minCount = n
		}
	}
	if minCount >= sel.config.MinLaneCoverage {
		return nil, false
	}
	lowest := make(map[catalog.Lane]bool)
	for _, l := range catalog.Lanes() {
		if s.LaneCountsShown[l] == minCount {
			lowest[l] = true
		}
	}
	return lowest, true
}

// contested returns the lanes in top whose gap to the leader is the smallest
// gap in the group. The leader's own gap is zero, so only lanes tied with it qualify.
func contested(top []state.LaneRating) map[catalog.Lane]bool {
	out := make(map[catalog.Lane]bool, len(top))
	if len(top) == 0 {
		return out
	}
	leader := top[0].Rating
	minGap := math.Inf(1)
	for _, lr := range top {
		minGap = math.Min(minGap, leader-lr.Rating)
	}
	for _, lr := range top {
		if leader-lr.Rating == minGap {
			out[lr.Lane] = true
		}
	}
	return out
}

func filterLanes(stmts []catalog.Statement, lanes map[catalog.Lane]bool) []catalog.Statement {
	var out []catalog.Statement
	for _, s := range stmts {
		if lanes[s.LaneID] {
			out = append(out, s)
		}
	}
	return out
}

func (sel *Selector) pick(c []catalog.Statement) catalog.Statement {
	return c[sel.rng.IntN(len(c))]
}

// #endregion helpers
