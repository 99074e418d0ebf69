package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/replay"
)

var replayFlags struct {
	fixture string
	check   bool
	verbose bool
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded run through the commit path",
	RunE:  runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayFlags.fixture, "fixture", "", "path to a replay fixture JSON (required)")
	f.BoolVar(&replayFlags.check, "check", false, "fail when results differ from the fixture's expectations")
	f.BoolVarP(&replayFlags.verbose, "verbose", "v", false, "print every turn")
	_ = replayCmd.MarkFlagRequired("fixture")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	f, err := replay.LoadFixture(replayFlags.fixture)
	if err != nil {
		return err
	}

	rc := f.Config.ToReplayConfig()
	results, final, err := replay.Replay(cat, f.ToTurns(), rc)
	if err != nil {
		return err
	}
	summary := replay.Summarize(results, final, convergence.New(rc.Convergence))

	out := cmd.OutOrStdout()
	if f.Description != "" {
		fmt.Fprintf(out, "%s\n\n", f.Description)
	}
	if replayFlags.verbose {
		fmt.Fprintf(out, "%-10s  %-8s  %-9s  %6s  %s\n", "Turn", "Stmt", "Action", "Round", "Reason")
		for _, r := range results {
			fmt.Fprintf(out, "%-10s  %-8s  %-9s  %6d  %s\n", r.TurnID, r.StatementID, r.Action, r.Round, r.Reason)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Turns: %d  Commits: %d  Rejected: %d  Finished: %v %s\n",
		summary.TotalTurns, summary.Commits, summary.Rejected, summary.Finished, summary.FinishReason)
	printRatings(out, final)
	fmt.Fprintln(out)
	printAssessment(out, summary.Assessment)

	if !replayFlags.check {
		return nil
	}
	mismatches := compareFixture(f, results, summary)
	for _, m := range mismatches {
		fmt.Fprintf(cmd.ErrOrStderr(), "MISMATCH %s\n", m)
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%d mismatches against %s", len(mismatches), replayFlags.fixture)
	}
	fmt.Fprintln(out, "\nAll expectations met.")
	return nil
}

func compareFixture(f *replay.Fixture, results []replay.TurnResult, summary replay.ReplaySummary) []string {
	var out []string
	if len(results) != len(f.ExpectedResults) {
		out = append(out, fmt.Sprintf("turns: got %d results, want %d", len(results), len(f.ExpectedResults)))
	}
	for i := 0; i < min(len(results), len(f.ExpectedResults)); i++ {
		if got, want := results[i].Action, f.ExpectedResults[i].Action; got != want {
			out = append(out, fmt.Sprintf("%s: action %s, want %s (%s)", results[i].TurnID, got, want, results[i].Reason))
		}
	}
	final := summary.FinalState
	for _, l := range catalog.Lanes() {
		if got, want := final.LaneRatings[l], f.Expected.LaneRatings[l]; got != want {
			out = append(out, fmt.Sprintf("rating[%s]: %v, want %v", l, got, want))
		}
	}
	if final.Round != f.Expected.Round {
		out = append(out, fmt.Sprintf("round: %d, want %d", final.Round, f.Expected.Round))
	}
	if got := string(summary.Assessment.Confidence); got != f.Expected.Confidence {
		out = append(out, fmt.Sprintf("confidence: %s, want %s", got, f.Expected.Confidence))
	}
	if summary.Assessment.FinishEarly != f.Expected.FinishEarly {
		out = append(out, fmt.Sprintf("finish_early: %v, want %v", summary.Assessment.FinishEarly, f.Expected.FinishEarly))
	}
	if got := string(summary.FinishReason); got != f.Expected.FinishReason {
		out = append(out, fmt.Sprintf("finish_reason: %q, want %q", got, f.Expected.FinishReason))
	}
	return out
}
