package recovery

import (
	"time"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// #region stage
// Stage names the pipeline step that produced the recovered state.
type Stage string

const (
	StageFresh    Stage = "fresh"    // nothing was persisted
	StageValid    Stage = "valid"    // stored state passed validation as is
	StageMigrated Stage = "migrated" // legacy fields were coerced
	StageHealed   Stage = "healed"   // narrow repairs were applied after migration
	StageReset    Stage = "reset"    // stored bytes were unusable and discarded
)

// #endregion stage

// #region options
// Options control recovery. Zero values fall back to time.Now and the default cap.
type Options struct {
	Now       func() time.Time
	MaxRounds int
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

func (o Options) maxRounds() int {
	if o.MaxRounds < 1 {
		return state.DefaultMaxRounds
	}
	return o.MaxRounds
}

// #endregion options

// #region result
// Result is a recovered state plus a human-readable account of every repair.
type Result struct {
	State state.RunState
	Stage Stage
	Notes []string
}

// Changed reports whether recovery altered or replaced what was stored.
func (r Result) Changed() bool {
	return r.Stage != StageValid && r.Stage != StageFresh
}

// #endregion result
