package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// #region output

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRatings prints every lane, strongest first, with a bar scaled around
// the baseline.
func printRatings(out io.Writer, s state.RunState) {
	for _, lr := range s.Ranked() {
		fmt.Fprintf(out, "  %-13s %7.1f  %s\n", lr.Lane, lr.Rating, bar(lr.Rating))
	}
}

func bar(rating float64) string {
	n := int((rating - 900) / 10)
	n = max(0, min(n, 40))
	return strings.Repeat("#", n)
}

func printAssessment(out io.Writer, a convergence.Assessment) {
	fmt.Fprintf(out, "Top lane:    %s (%.1f)\n", a.Top.Lane, a.Top.Rating)
	fmt.Fprintf(out, "Runner-up:   %s (%.1f)\n", a.RunnerUp.Lane, a.RunnerUp.Rating)
	fmt.Fprintf(out, "Gap:         %.1f\n", a.Gap)
	fmt.Fprintf(out, "Skip rate:   %.0f%% of %d answers\n", a.SkipRate*100, a.Total)
	fmt.Fprintf(out, "Confidence:  %s\n", a.Confidence)
	fmt.Fprintf(out, "Early stop:  %v\n", a.FinishEarly)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output

// #region stored

// loadStored returns the raw persisted run, falling back to the legacy
// location. source is "current", "legacy" or "none".
func loadStored(ctx context.Context, store state.Persistence) (raw []byte, source string, err error) {
	raw, err = store.Load(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load run: %w", err)
	}
	if len(raw) > 0 {
		return raw, "current", nil
	}
	if legacy, ok := store.(state.LegacyLoader); ok {
		raw, err = legacy.LoadLegacy(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("load legacy run: %w", err)
		}
		if len(raw) > 0 {
			return raw, "legacy", nil
		}
	}
	return nil, "none", nil
}

// #endregion stored
