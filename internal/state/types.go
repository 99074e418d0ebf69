package state

import (
	"strings"
	"time"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/rating"
)

const (
	// CurrentSchemaVersion tags snapshots written by this package.
	CurrentSchemaVersion = 2
	// DefaultMaxRounds caps the number of statements presented in one run.
	DefaultMaxRounds = 32
)

// #region answer
// Answer is a user's response to a statement.
type Answer string

const (
	AnswerYes  Answer = "yes"
	AnswerNo   Answer = "no"
	AnswerSkip Answer = "skip"
	AnswerMeh  Answer = "meh" // legacy synonym for skip
)

// NormalizeAnswer maps a raw answer string case-insensitively onto a known answer.
func NormalizeAnswer(raw string) (Answer, bool) {
	switch a := Answer(strings.ToLower(strings.TrimSpace(raw))); a {
	case AnswerYes, AnswerNo, AnswerSkip, AnswerMeh:
		return a, true
	}
	return "", false
}

// Valid reports whether a is one of the four stored answers.
func (a Answer) Valid() bool {
	switch a {
	case AnswerYes, AnswerNo, AnswerSkip, AnswerMeh:
		return true
	}
	return false
}

// Outcome returns how the answer is scored against the baseline.
func (a Answer) Outcome() rating.Outcome {
	switch a {
	case AnswerYes:
		return rating.Win
	case AnswerNo:
		return rating.Loss
	}
	return rating.Neutral
}

// #endregion answer

// #region history-entry
// HistoryEntry records one answered statement.
type HistoryEntry struct {
	StatementID string       `json:"statement_id"`
	LaneID      catalog.Lane `json:"lane_id"`
	Answer      Answer       `json:"answer"`
	Timestamp   time.Time    `json:"timestamp"`
}

// #endregion history-entry

// #region answer-counts
// AnswerCounts partitions the history by answer; meh counts as skip.
type AnswerCounts struct {
	Yes  int `json:"yes"`
	No   int `json:"no"`
	Skip int `json:"skip"`
}

// Total returns the number of counted answers.
func (c AnswerCounts) Total() int {
	return c.Yes + c.No + c.Skip
}

// SkipRate returns skip/total, or 0 when nothing has been answered.
func (c AnswerCounts) SkipRate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Skip) / float64(total)
}

func (c *AnswerCounts) add(a Answer) {
	switch a {
	case AnswerYes:
		c.Yes++
	case AnswerNo:
		c.No++
	case AnswerSkip, AnswerMeh:
		c.Skip++
	}
}

// #endregion answer-counts

// #region run-state
// RunState is the serializable snapshot of one run in progress.
type RunState struct {
	Round                 int                      `json:"round"`
	MaxRounds             int                      `json:"max_rounds"`
	LaneRatings           map[catalog.Lane]float64 `json:"lane_ratings"`
	History               []HistoryEntry           `json:"history"`
	SeenStatementIDs      []string                 `json:"seen_statement_ids"`
	LaneCountsShown       map[catalog.Lane]int     `json:"lane_counts_shown"`
	AnswerCounts          AnswerCounts             `json:"answer_counts"`
	CurrentStatementID    *string                  `json:"current_statement_id"`
	PresentedStatementIDs []string                 `json:"presented_statement_ids"`
	SchemaVersion         int                      `json:"schema_version"`
}

// #endregion run-state

// #region phase
// Phase is the explicit run phase: either waiting on a statement or finished.
type Phase struct {
	statementID string
	finished    bool
}

// Active returns the statement awaiting an answer, if the run is active.
func (p Phase) Active() (string, bool) {
	return p.statementID, !p.finished
}

// Finished reports whether the run has ended.
func (p Phase) Finished() bool {
	return p.finished
}

func (p Phase) String() string {
	if p.finished {
		return "finished"
	}
	return "active(" + p.statementID + ")"
}

// #endregion phase

// #region lane-rating
// LaneRating pairs a lane with its rating for ranked projections.
type LaneRating struct {
	Lane   catalog.Lane `json:"lane"`
	Rating float64      `json:"rating"`
}

// #endregion lane-rating
