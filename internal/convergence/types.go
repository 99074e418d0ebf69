package convergence

import "github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"

// #region confidence
// Confidence labels how decisive a run's result is.
type Confidence string

const (
	Strong      Confidence = "strong"
	Medium      Confidence = "medium"
	Weak        Confidence = "weak"
	Exploratory Confidence = "exploratory"
)

// #endregion confidence

// #region config
// Config holds stopping and labelling thresholds.
type Config struct {
	MinSwipes           int     // answers required before an early finish
	MaxSkipRate         float64 // skip rate ceiling for early finish and Strong
	FinishGap           float64 // top-2 gap required to finish early
	StrongGap           float64 // top-2 gap required for Strong
	WeakGap             float64 // gaps below this are Weak
	ExploratorySkipRate float64 // skip rates above this are Exploratory
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinSwipes:           18,
		MaxSkipRate:         0.35,
		FinishGap:           75,
		StrongGap:           80,
		WeakGap:             40,
		ExploratorySkipRate: 0.5,
	}
}

// #endregion config

// #region decision
// Decision is the outcome of an early-finish evaluation. Reasons lists every
// stop condition that failed; it is empty when Finish is true.
type Decision struct {
	Finish   bool
	Reason   string
	Reasons  []string
	Gap      float64
	SkipRate float64
	Total    int
}

// #endregion decision

// #region assessment
// Assessment is the results projection of a run, computed on demand.
type Assessment struct {
	Top         state.LaneRating
	RunnerUp    state.LaneRating
	Gap         float64
	SkipRate    float64
	Total       int
	Confidence  Confidence
	FinishEarly bool
}

// #endregion assessment
