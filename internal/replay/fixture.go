package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Turns           []FixtureTurn           `json:"turns"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
	Expected        FixtureExpected         `json:"expected"`
}

// FixtureTurn mirrors Turn with JSON tags.
type FixtureTurn struct {
	TurnID      string    `json:"turn_id"`
	StatementID string    `json:"statement_id"`
	Answer      string    `json:"answer"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
}

// FixtureExpectedResult captures the expected action per turn.
type FixtureExpectedResult struct {
	TurnID string `json:"turn_id"`
	Action string `json:"action"`
}

// FixtureExpected captures the expected end state.
type FixtureExpected struct {
	LaneRatings  map[catalog.Lane]float64 `json:"lane_ratings"`
	Round        int                      `json:"round"`
	Confidence   string                   `json:"confidence"`
	FinishEarly  bool                     `json:"finish_early"`
	FinishReason string                   `json:"finish_reason,omitempty"`
}

// FixtureConfig holds optional overrides; zero values keep the defaults.
type FixtureConfig struct {
	MaxRounds   int                       `json:"max_rounds,omitempty"`
	Convergence *FixtureConvergenceConfig `json:"convergence,omitempty"`
}

// FixtureConvergenceConfig mirrors convergence.Config with JSON tags.
type FixtureConvergenceConfig struct {
	MinSwipes           int     `json:"min_swipes"`
	MaxSkipRate         float64 `json:"max_skip_rate"`
	FinishGap           float64 `json:"finish_gap"`
	StrongGap           float64 `json:"strong_gap"`
	WeakGap             float64 `json:"weak_gap"`
	ExploratorySkipRate float64 `json:"exploratory_skip_rate"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToTurns converts fixture turns to domain turns.
func (f *Fixture) ToTurns() []Turn {
	out := make([]Turn, len(f.Turns))
	for i, t := range f.Turns {
		out[i] = Turn{TurnID: t.TurnID, StatementID: t.StatementID, Answer: t.Answer, Timestamp: t.Timestamp}
	}
	return out
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if fc.MaxRounds > 0 {
		cfg.MaxRounds = fc.MaxRounds
	}
	if c := fc.Convergence; c != nil {
		cfg.Convergence = convergence.Config{
			MinSwipes:           c.MinSwipes,
			MaxSkipRate:         c.MaxSkipRate,
			FinishGap:           c.FinishGap,
			StrongGap:           c.StrongGap,
			WeakGap:             c.WeakGap,
			ExploratorySkipRate: c.ExploratorySkipRate,
		}
	}
	return cfg
}

// #endregion fixture-loader

// #region fixture-export

// FromState builds a fixture from a run's history. Expectations are the
// run's own ratings and projection, so replaying the fixture must reproduce it.
func FromState(s state.RunState, description string, policy *convergence.Policy) *Fixture {
	if policy == nil {
		policy = convergence.New(convergence.DefaultConfig())
	}
	f := &Fixture{
		Description: description,
		Config:      FixtureConfig{MaxRounds: s.MaxRounds},
	}
	for i, h := range s.History {
		id := fmt.Sprintf("turn-%d", i+1)
		f.Turns = append(f.Turns, FixtureTurn{
			TurnID:      id,
			StatementID: h.StatementID,
			Answer:      string(h.Answer),
			Timestamp:   h.Timestamp,
		})
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{TurnID: id, Action: ActionCommit})
	}

	if n := len(f.ExpectedResults); n > 0 && s.Phase().Finished() {
		f.ExpectedResults[n-1].Action = ActionFinish
	}

	ratings := make(map[catalog.Lane]float64, len(s.LaneRatings))
	for l, r := range s.LaneRatings {
		ratings[l] = r
	}
	a := policy.Assess(s)
	f.Expected = FixtureExpected{
		LaneRatings: ratings,
		Round:       s.Round,
		Confidence:  string(a.Confidence),
		FinishEarly: a.FinishEarly,
	}
	return f
}

// #endregion fixture-export
