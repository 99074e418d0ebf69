package convergence

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// #region policy
// Policy decides when a run may stop and how confident its result is.
type Policy struct {
	config Config
}

// New creates a policy with the given thresholds.
func New(config Config) *Policy {
	return &Policy{config: config}
}

// Config returns the policy's thresholds.
func (p *Policy) Config() Config {
	return p.config
}

// Evaluate checks every early-finish condition and records the ones that fail.
func (p *Policy) Evaluate(s state.RunState) Decision {
	total := s.AnswerCounts.Total()
	d := Decision{
		Gap:      s.TopGap(),
		SkipRate: s.AnswerCounts.SkipRate(),
		Total:    total,
	}

	if s.Round < p.config.MinSwipes {
		d.Reasons = append(d.Reasons, fmt.Sprintf("round %d below minimum %d", s.Round, p.config.MinSwipes))
	}
	if total < p.config.MinSwipes {
		d.Reasons = append(d.Reasons, fmt.Sprintf("answers %d below minimum %d", total, p.config.MinSwipes))
	}
	if d.SkipRate > p.config.MaxSkipRate {
		d.Reasons = append(d.Reasons, fmt.Sprintf("skip rate %.2f above %.2f", d.SkipRate, p.config.MaxSkipRate))
	}
	if d.Gap < p.config.FinishGap {
		d.Reasons = append(d.Reasons, fmt.Sprintf("top gap %.0f below %.0f", d.Gap, p.config.FinishGap))
	}

	if len(d.Reasons) > 0 {
		d.Reason = "continue: " + strings.Join(d.Reasons, "; ")
		return d
	}
	d.Finish = true
	d.Reason = fmt.Sprintf("converged: gap=%.0f skip_rate=%.2f answers=%d", d.Gap, d.SkipRate, total)
	return d
}

// CanFinishEarly reports whether the run has enough signal to end before the cap.
func (p *Policy) CanFinishEarly(s state.RunState) bool {
	return p.Evaluate(s).Finish
}

// ConfidenceLabel grades a result from its top-2 gap and skip rate.
func (p *Policy) ConfidenceLabel(gap, skipRate float64) Confidence {
	switch {
	case gap >= p.config.StrongGap && skipRate <= p.config.MaxSkipRate:
		return Strong
	case skipRate > p.config.ExploratorySkipRate:
		return Exploratory
	case gap < p.config.WeakGap:
		return Weak
	default:
		return Medium
	}
}

// Assess builds the results projection for s.
func (p *Policy) Assess(s state.RunState) Assessment {
	top := s.TopLanes(2)
	d := p.Evaluate(s)
	a := Assessment{
		Gap:         d.Gap,
		SkipRate:    d.SkipRate,
		Total:       d.Total,
		Confidence:  p.ConfidenceLabel(d.Gap, d.SkipRate),
		FinishEarly: d.Finish,
	}
	if len(top) > 0 {
		a.Top = top[0]
	}
	if len(top) > 1 {
		a.RunnerUp = top[1]
	}
	return a
}

// #endregion policy

// #region hard-cap
// CapReached reports whether the run has advanced past its round cap.
func CapReached(s state.RunState) bool {
	return s.Round > s.MaxRounds
}

// #endregion hard-cap

// #region defaults
var defaultPolicy = New(DefaultConfig())

// CanFinishEarly applies the default thresholds.
func CanFinishEarly(s state.RunState) bool {
	return defaultPolicy.CanFinishEarly(s)
}

// ConfidenceLabel applies the default thresholds.
func ConfidenceLabel(gap, skipRate float64) Confidence {
	return defaultPolicy.ConfidenceLabel(gap, skipRate)
}

// #endregion defaults
