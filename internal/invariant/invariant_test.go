package invariant

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	return c
}

func playedState(cat *catalog.Catalog) state.RunState {
	current := "cm-01"
	return state.Replay([]state.HistoryEntry{
		{StatementID: "pa-01", LaneID: catalog.Partnerships, Answer: state.AnswerYes, Timestamp: ts},
		{StatementID: "co-01", LaneID: catalog.Content, Answer: state.AnswerNo, Timestamp: ts},
		{StatementID: "pa-02", LaneID: catalog.Partnerships, Answer: state.AnswerSkip, Timestamp: ts},
	}, &current, 0, cat)
}

func TestCheckCleanStates(t *testing.T) {
	cat := testCatalog(t)
	for name, s := range map[string]state.RunState{
		"fresh":  state.New(0),
		"played": playedState(cat),
	} {
		if r := Check(s, cat); !r.Clean() {
			t.Errorf("%s: expected no issues, got:\n%s", name, r)
		}
	}
}

func TestCheckDoesNotMutate(t *testing.T) {
	cat := testCatalog(t)
	s := playedState(cat)
	s.AnswerCounts.Yes = 9
	s.PresentedStatementIDs = append(s.PresentedStatementIDs, "pa-01")
	before := s.Clone()

	_ = Check(s, cat)

	if diff := cmp.Diff(before, s); diff != "" {
		t.Fatalf("Check modified state (-before +after):\n%s", diff)
	}
}

func TestCheckErrors(t *testing.T) {
	cat := testCatalog(t)
	tests := []struct {
		name   string
		mutate func(*state.RunState)
		code   Code
	}{
		{"schema version", func(s *state.RunState) { s.SchemaVersion = 1 }, CodeSchemaVersion},
		{"round zero", func(s *state.RunState) { s.Round = 0 }, CodeRoundRange},
		{"round past cap", func(s *state.RunState) { s.Round = 40 }, CodeRoundRange},
		{"max rounds", func(s *state.RunState) { s.MaxRounds = 0 }, CodeRoundRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := playedState(cat)
			tc.mutate(&s)
			r := Check(s, cat)
			if r.OK() {
				t.Fatal("expected errors")
			}
			if !r.Has(tc.code) {
				t.Fatalf("expected %s, got:\n%s", tc.code, r)
			}
		})
	}
}

func TestCheckWarnings(t *testing.T) {
	cat := testCatalog(t)
	tests := []struct {
		name   string
		mutate func(*state.RunState)
		code   Code
	}{
		{"duplicate presented", func(s *state.RunState) {
			s.PresentedStatementIDs = []string{"pa-01", "pa-01", "co-01", "pa-02", "cm-01"}
		}, CodeDuplicatePresented},
		{"implausible rating", func(s *state.RunState) { s.LaneRatings[catalog.Data] = 2500 }, CodeRatingBounds},
		{"drifted rating", func(s *state.RunState) { s.LaneRatings[catalog.Data] = 1001 }, CodeRatingDrift},
		{"answer tally", func(s *state.RunState) { s.AnswerCounts.Skip = 0 }, CodeTallyMismatch},
		{"lane tally", func(s *state.RunState) { s.LaneCountsShown[catalog.Design] = 3 }, CodeTallyMismatch},
		{"unknown lane", func(s *state.RunState) { s.LaneRatings["marketing"] = 1000 }, CodeLaneKeys},
		{"missing lane", func(s *state.RunState) { delete(s.LaneRatings, catalog.Design) }, CodeLaneKeys},
		{"current not last", func(s *state.RunState) { s.PresentedStatementIDs = []string{"pa-01", "cm-01", "co-01", "pa-02"} }, CodeCurrentMismatch},
		{"current after cap", func(s *state.RunState) { s.MaxRounds = 3 }, CodeCurrentMismatch},
		{"unknown history id", func(s *state.RunState) { s.History[1].StatementID = "zz-01" }, CodeUnknownStatement},
		{"bad answer", func(s *state.RunState) { s.History[0].Answer = "maybe" }, CodeHistoryEntry},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := playedState(cat)
			tc.mutate(&s)
			r := Check(s, cat)
			if !r.OK() {
				t.Fatalf("expected warnings only, got:\n%s", r)
			}
			if !r.Has(tc.code) {
				t.Fatalf("expected %s, got:\n%s", tc.code, r)
			}
		})
	}
}

func TestCheckJSONMissingFields(t *testing.T) {
	cat := testCatalog(t)
	legacy := []byte(`{
		"round": 2,
		"max_rounds": 32,
		"lane_ratings": {"partnerships": 1012},
		"history": [{"statement_id": "pa-01", "lane_id": "partnerships", "answer": "YES"}],
		"seen_statement_ids": ["pa-01"],
		"lane_counts_shown": {"partnerships": 1},
		"answer_counts": {"yes": 1, "no": 0, "skip": 0},
		"current_statement_id": "co-01"
	}`)

	r, err := CheckJSON(legacy, cat)
	if err != nil {
		t.Fatalf("CheckJSON: %v", err)
	}
	var missing []string
	for _, i := range r.Errors() {
		if i.Code == CodeMissingField {
			missing = append(missing, i.Field)
		}
	}
	if diff := cmp.Diff([]string{"presented_statement_ids", "schema_version"}, missing); diff != "" {
		t.Fatalf("missing fields (-want +got):\n%s", diff)
	}
	if !r.Has(CodeSchemaVersion) {
		t.Fatal("expected schema_version error")
	}
	if !r.Has(CodeLaneKeys) || !r.Has(CodeHistoryEntry) {
		t.Fatalf("expected lane and history warnings, got:\n%s", r)
	}
}

func TestCheckJSONRoundTripClean(t *testing.T) {
	cat := testCatalog(t)
	raw, err := json.Marshal(playedState(cat))
	if err != nil {
		t.Fatal(err)
	}
	r, err := CheckJSON(raw, cat)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Clean() {
		t.Fatalf("expected no issues, got:\n%s", r)
	}
}

func TestCheckJSONMalformed(t *testing.T) {
	cat := testCatalog(t)
	if _, err := CheckJSON([]byte("not json"), cat); err == nil {
		t.Fatal("expected decode error")
	}

	r, err := CheckJSON([]byte(`{"round": "two"}`), cat)
	if err != nil {
		t.Fatalf("CheckJSON: %v", err)
	}
	if !r.Has(CodeMalformed) || !r.Has(CodeMissingField) {
		t.Fatalf("expected malformed and missing field errors, got:\n%s", r)
	}
}
