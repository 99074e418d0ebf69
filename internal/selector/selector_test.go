package selector

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixedRand returns a constant Float64 and either the first or last index.
type fixedRand struct {
	f    float64
	last bool
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int {
	if r.last {
		return n - 1
	}
	return 0
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

// runWith replays answers keyed by statement id, in the given order.
func runWith(t *testing.T, cat *catalog.Catalog, ids []string, answers map[string]state.Answer) state.RunState {
	t.Helper()
	history := make([]state.HistoryEntry, 0, len(ids))
	for _, id := range ids {
		st, ok := cat.ByID(id)
		require.True(t, ok, id)
		a, ok := answers[id]
		if !ok {
			a = state.AnswerSkip
		}
		history = append(history, state.HistoryEntry{StatementID: id, LaneID: st.LaneID, Answer: a, Timestamp: ts})
	}
	return state.Replay(history, nil, 64, cat)
}

// coveredRun shows two statements from every lane. Partnerships leads with two
// yes answers; content and community follow with one each.
func coveredRun(t *testing.T, cat *catalog.Catalog) state.RunState {
	var ids []string
	for _, l := range catalog.Lanes() {
		for _, st := range cat.ByLane(l)[:2] {
			ids = append(ids, st.ID)
		}
	}
	return runWith(t, cat, ids, map[string]state.Answer{
		"pa-01": state.AnswerYes,
		"pa-02": state.AnswerYes,
		"co-01": state.AnswerYes,
		"cm-01": state.AnswerYes,
	})
}

func TestNextExhaustedCatalog(t *testing.T) {
	cat := testCatalog(t)
	var ids []string
	for _, st := range cat.All() {
		ids = append(ids, st.ID)
	}
	s := runWith(t, cat, ids, nil)

	sel := New(DefaultConfig(), NewRand(1))
	_, ok := sel.Next(cat, s)
	assert.False(t, ok)
	assert.Equal(t, PhaseExhausted, sel.Choose(cat, s).Phase)
}

func TestNextLastUnseenStatement(t *testing.T) {
	cat := testCatalog(t)
	var ids []string
	for _, st := range cat.All() {
		if st.ID != "de-06" {
			ids = append(ids, st.ID)
		}
	}
	s := runWith(t, cat, ids, nil)

	got, ok := New(DefaultConfig(), NewRand(7)).Next(cat, s)
	require.True(t, ok)
	assert.Equal(t, "de-06", got.ID)
}

func TestCoveragePrefersLeastShownLane(t *testing.T) {
	cat := testCatalog(t)
	var ids []string
	for _, l := range catalog.Lanes() {
		if l == catalog.Design {
			continue
		}
		for _, st := range cat.ByLane(l)[:2] {
			ids = append(ids, st.ID)
		}
	}
	s := runWith(t, cat, ids, nil)
	require.Equal(t, 0, s.LaneCountsShown[catalog.Design])

	sel := New(DefaultConfig(), NewRand(99))
	for i := 0; i < 50; i++ {
		p := sel.Choose(cat, s)
		assert.Equal(t, PhaseCoverage, p.Phase)
		assert.Equal(t, catalog.Design, p.Statement.LaneID, "pick %d", i)
	}
}

func TestCoverageFreshRunConsidersEveryLane(t *testing.T) {
	cat := testCatalog(t)
	s := state.New(0)

	first := New(DefaultConfig(), fixedRand{}).Choose(cat, s)
	assert.Equal(t, PhaseCoverage, first.Phase)
	assert.Equal(t, "pa-01", first.Statement.ID)

	last := New(DefaultConfig(), fixedRand{last: true}).Choose(cat, s)
	assert.Equal(t, "de-06", last.Statement.ID)
}

func TestCoverageTieAmongLowestLanes(t *testing.T) {
	cat := testCatalog(t)
	s := runWith(t, cat, []string{"pa-01", "co-01", "cm-01", "pr-01", "op-01", "da-01"}, nil)

	sel := New(DefaultConfig(), NewRand(3))
	for i := 0; i < 40; i++ {
		p := sel.Choose(cat, s)
		assert.Contains(t, []catalog.Lane{catalog.Engineering, catalog.Design}, p.Statement.LaneID)
	}
}

func TestExplorationPicksOutsideTopThree(t *testing.T) {
	cat := testCatalog(t)
	s := coveredRun(t, cat)

	p := New(DefaultConfig(), fixedRand{f: 0}).Choose(cat, s)
	assert.Equal(t, PhaseExplore, p.Phase)
	assert.Equal(t, "pr-03", p.Statement.ID)
}

func TestUncertaintyFocusOnContestedLanes(t *testing.T) {
	cat := testCatalog(t)
	s := coveredRun(t, cat)
	require.Equal(t, 1024.0, s.LaneRatings[catalog.Partnerships])
	require.Equal(t, 1012.0, s.LaneRatings[catalog.Content])
	require.Equal(t, 1012.0, s.LaneRatings[catalog.Community])

	// A sole leader is the only lane at the minimum gap.
	first := New(DefaultConfig(), fixedRand{f: 0.99}).Choose(cat, s)
	assert.Equal(t, PhaseUncertainty, first.Phase)
	assert.Equal(t, "pa-03", first.Statement.ID)

	last := New(DefaultConfig(), fixedRand{f: 0.99, last: true}).Choose(cat, s)
	assert.Equal(t, PhaseUncertainty, last.Phase)
	assert.Equal(t, "pa-06", last.Statement.ID)
}

func TestUncertaintyKeepsLanesTiedWithLeader(t *testing.T) {
	cat := testCatalog(t)
	s := coveredRun(t, cat)
	s.LaneRatings[catalog.Content] = s.LaneRatings[catalog.Partnerships]

	last := New(DefaultConfig(), fixedRand{f: 0.99, last: true}).Choose(cat, s)
	assert.Equal(t, PhaseUncertainty, last.Phase)
	assert.Equal(t, "co-06", last.Statement.ID)
}

func TestUncertaintyFallsBackWhenContestedLanesExhausted(t *testing.T) {
	cat := testCatalog(t)
	var ids []string
	answers := map[string]state.Answer{}
	for _, l := range catalog.Lanes() {
		n := 2
		if l == catalog.Partnerships || l == catalog.Content {
			n = 6
		}
		for _, st := range cat.ByLane(l)[:n] {
			ids = append(ids, st.ID)
			if l == catalog.Partnerships {
				answers[st.ID] = state.AnswerYes
			}
		}
	}
	answers["co-01"] = state.AnswerYes
	s := runWith(t, cat, ids, answers)

	// Partnerships leads alone and every partnerships statement has been shown.
	p := New(DefaultConfig(), fixedRand{f: 0.99}).Choose(cat, s)
	assert.Equal(t, PhaseFallback, p.Phase)
	assert.Equal(t, "cm-03", p.Statement.ID)
}

func TestContested(t *testing.T) {
	tests := []struct {
		name string
		top  []state.LaneRating
		want []catalog.Lane
	}{
		{"empty", nil, nil},
		{"leader only", []state.LaneRating{{Lane: catalog.Data, Rating: 1000}}, []catalog.Lane{catalog.Data}},
		{
			"sole leader",
			[]state.LaneRating{
				{Lane: catalog.Partnerships, Rating: 1050},
				{Lane: catalog.Content, Rating: 1030},
				{Lane: catalog.Data, Rating: 1000},
			},
			[]catalog.Lane{catalog.Partnerships},
		},
		{
			"tied with leader",
			[]state.LaneRating{
				{Lane: catalog.Partnerships, Rating: 1024},
				{Lane: catalog.Content, Rating: 1024},
				{Lane: catalog.Community, Rating: 1000},
			},
			[]catalog.Lane{catalog.Partnerships, catalog.Content},
		},
		{
			"all tied",
			[]state.LaneRating{
				{Lane: catalog.Partnerships, Rating: 1000},
				{Lane: catalog.Content, Rating: 1000},
				{Lane: catalog.Community, Rating: 1000},
			},
			[]catalog.Lane{catalog.Partnerships, catalog.Content, catalog.Community},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := contested(tc.top)
			assert.Len(t, got, len(tc.want))
			for _, l := range tc.want {
				assert.True(t, got[l], "missing %s", l)
			}
		})
	}
}

func TestSeededSelectionIsDeterministic(t *testing.T) {
	cat := testCatalog(t)
	walk := func(seed uint64) []string {
		sel := New(DefaultConfig(), NewRand(seed))
		var ids []string
		for i := 0; i < 20; i++ {
			s := runWith(t, cat, ids, nil)
			st, ok := sel.Next(cat, s)
			require.True(t, ok)
			ids = append(ids, st.ID)
		}
		return ids
	}
	a, b := walk(42), walk(42)
	assert.Equal(t, a, b)
	assert.Len(t, uniq(a), len(a), "statements repeat: %v", a)
}

func TestNextSkipsCurrentStatement(t *testing.T) {
	cat := testCatalog(t)
	var ids []string
	for _, st := range cat.All() {
		if st.ID != "de-05" && st.ID != "de-06" {
			ids = append(ids, st.ID)
		}
	}
	s := runWith(t, cat, ids, nil)
	cur := "de-05"
	s.CurrentStatementID = &cur

	got, ok := New(DefaultConfig(), NewRand(5)).Next(cat, s)
	require.True(t, ok)
	assert.Equal(t, "de-06", got.ID)
}

func uniq(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func ExampleSelector_Next() {
	cat, _ := catalog.Default()
	sel := New(DefaultConfig(), fixedRand{})
	st, ok := sel.Next(cat, state.New(0))
	fmt.Println(st.ID, ok)
	// Output: pa-01 true
}
