package update

import (
	"errors"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// #region errors
var (
	// ErrRunFinished is returned for transitions on a run that has ended.
	ErrRunFinished = errors.New("run finished")
	// ErrNoCurrentStatement is returned when no statement is awaiting an answer.
	ErrNoCurrentStatement = errors.New("no current statement")
	// ErrInvalidAnswer is returned for answers outside yes/no/skip/meh.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrNothingToUndo is returned when history is empty.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrUnknownStatement is returned when the current statement is not in the catalog.
	ErrUnknownStatement = errors.New("unknown statement")
)

// #endregion errors

// #region finish-reason
// FinishReason says why a commit ended the run.
type FinishReason string

const (
	FinishNone      FinishReason = ""
	FinishCap       FinishReason = "cap"
	FinishExhausted FinishReason = "exhausted"
	FinishConverged FinishReason = "converged"
)

// #endregion finish-reason

// #region result
// Result describes one committed answer.
type Result struct {
	Entry    state.HistoryEntry
	Before   float64 // lane rating before the answer
	After    float64 // lane rating after the answer
	Next     *catalog.Statement
	Finished bool
	Reason   FinishReason
	Decision convergence.Decision
}

// #endregion result
