package rating

import "math"

const (
	// Baseline is the fixed reference rating every lane is compared against.
	Baseline = 1000.0
	// DefaultK is the update step size.
	DefaultK = 24.0
)

// #region expected-score
// ExpectedScore is the logistic probability that a player rated rA beats one rated rB.
func ExpectedScore(rA, rB float64) float64 {
	return 1 / (1 + math.Pow(10, (rB-rA)/400))
}

// #endregion expected-score

// #region update-elo
// UpdateElo returns the post-game ratings of a winner and a loser, rounded to
// the nearest integer. The winner always gains and the loser always loses at
// least one point, even when the gap is wide enough for rounding to swallow
// the change.
func UpdateElo(winner, loser, k float64) (newWinner, newLoser float64) {
	newWinner = math.Round(winner + k*(1-ExpectedScore(winner, loser)))
	newLoser = math.Round(loser + k*(0-ExpectedScore(loser, winner)))
	if newWinner <= winner {
		newWinner = math.Floor(winner) + 1
	}
	if newLoser >= loser {
		newLoser = math.Ceil(loser) - 1
	}
	return newWinner, newLoser
}

// #endregion update-elo

// #region apply
// Outcome is how an answer is scored against the baseline.
type Outcome int

const (
	// Neutral answers leave the rating unchanged.
	Neutral Outcome = iota
	// Win means the lane beat the baseline.
	Win
	// Loss means the baseline beat the lane.
	Loss
)

// Apply scores one answer for a lane rated r against Baseline.
func Apply(r float64, o Outcome, k float64) float64 {
	switch o {
	case Win:
		w, _ := UpdateElo(r, Baseline, k)
		return w
	case Loss:
		_, l := UpdateElo(Baseline, r, k)
		return l
	default:
		return r
	}
}

// #endregion apply
