package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/invariant"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/recovery"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

var inspectFlags struct {
	jsonOut bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Check the stored run without changing it",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFlags.jsonOut, "json", false, "output as JSON instead of text")
}

type inspectOutput struct {
	Source     string                 `json:"source"`
	Report     invariant.Report       `json:"report"`
	Stage      recovery.Stage         `json:"recovery_stage"`
	Notes      []string               `json:"recovery_notes,omitempty"`
	Phase      string                 `json:"phase"`
	Ratings    []state.LaneRating     `json:"ratings"`
	Assessment convergence.Assessment `json:"assessment"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	raw, source, err := loadStored(ctx, a.store)
	if err != nil {
		return err
	}

	o := inspectOutput{Source: source}
	if len(raw) > 0 {
		// Decode errors are part of the report.
		o.Report, _ = invariant.CheckJSON(raw, a.cat)
	}
	rec := recovery.Recover(raw, a.cat, recovery.Options{MaxRounds: a.cfg.Engine.MaxRounds})
	o.Stage, o.Notes = rec.Stage, rec.Notes
	o.Phase = rec.State.Phase().String()
	o.Ratings = rec.State.Ranked()
	o.Assessment = a.engine.Policy().Assess(rec.State)

	out := cmd.OutOrStdout()
	if inspectFlags.jsonOut {
		return printJSON(out, o)
	}

	fmt.Fprintf(out, "Source:      %s\n", o.Source)
	fmt.Fprintf(out, "Phase:       %s\n", o.Phase)
	fmt.Fprintf(out, "Round:       %d/%d\n", rec.State.Round, rec.State.MaxRounds)
	fmt.Fprintf(out, "Recovery:    %s\n", o.Stage)
	for _, n := range o.Notes {
		fmt.Fprintf(out, "  - %s\n", n)
	}
	fmt.Fprintf(out, "\nChecks:\n%s\n", indent(o.Report.String()))
	fmt.Fprintf(out, "\nRatings:\n")
	printRatings(out, rec.State)
	fmt.Fprintln(out)
	printAssessment(out, o.Assessment)
	return nil
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
