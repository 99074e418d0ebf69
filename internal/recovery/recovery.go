package recovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// #region recover
// Recover turns whatever bytes were persisted into a valid run state. Each
// step runs only when the previous result fails validation:
// parse, validate, migrate, heal, and finally a fresh state.
func Recover(raw []byte, cat *catalog.Catalog, opts Options) Result {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Result{
			State: state.New(opts.maxRounds()),
			Stage: StageFresh,
			Notes: []string{"nothing persisted; started a fresh run"},
		}
	}

	// 1. Parse.
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return reset(opts, fmt.Sprintf("stored state does not parse as a JSON object: %v", parseErr(err)))
	}

	// 2. Validate as stored.
	var stored state.RunState
	if err := json.Unmarshal(raw, &stored); err == nil {
		if verr := stored.Validate(cat); verr == nil {
			return Result{State: stored, Stage: StageValid}
		}
	}

	// 3. Migrate.
	migrated, notes := Migrate(doc, cat, opts)
	verr := migrated.Validate(cat)
	if verr == nil {
		return Result{State: migrated, Stage: StageMigrated, Notes: notes}
	}

	// 4. Heal.
	healed, healNotes := Heal(migrated, cat)
	notes = append(notes, healNotes...)
	verr = healed.Validate(cat)
	if verr == nil {
		return Result{State: healed, Stage: StageHealed, Notes: notes}
	}

	// 5. Give up.
	res := reset(opts, "stored state is unrecoverable; started a fresh run")
	res.Notes = append(notes, append(res.Notes, splitErr(verr)...)...)
	return res
}

// #endregion recover

// #region helpers
func reset(opts Options, note string) Result {
	return Result{
		State: state.New(opts.maxRounds()),
		Stage: StageReset,
		Notes: []string{note},
	}
}

func parseErr(err error) error {
	if err == nil {
		return errors.New("got null")
	}
	return err
}

// splitErr flattens a joined validation error into one note per problem.
func splitErr(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, "still invalid: "+e.Error())
		}
		return out
	}
	return []string{"still invalid: " + err.Error()}
}

// #endregion helpers
