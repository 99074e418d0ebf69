package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/recovery"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/replay"
)

var exportFlags struct {
	out         string
	description string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored run as a replay fixture",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.out, "out", "", "fixture path to write (required)")
	f.StringVar(&exportFlags.description, "description", "exported run", "fixture description")
	_ = exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	raw, _, err := loadStored(ctx, a.store)
	if err != nil {
		return err
	}
	rec := recovery.Recover(raw, a.cat, recovery.Options{MaxRounds: a.cfg.Engine.MaxRounds})
	if len(rec.State.History) == 0 {
		return fmt.Errorf("stored run has no answers to export")
	}

	f := replay.FromState(rec.State, exportFlags.description, a.engine.Policy())
	if err := replay.WriteFixture(exportFlags.out, f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d turns to %s\n", len(f.Turns), exportFlags.out)
	return nil
}
