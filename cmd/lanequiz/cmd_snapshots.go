package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/recovery"
)

var snapshotsFlags struct {
	last     int
	rollback string
	jsonOut  bool
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List saved run versions, or roll back to one",
	RunE:  runSnapshots,
}

func init() {
	f := snapshotsCmd.Flags()
	f.IntVar(&snapshotsFlags.last, "last", 20, "show N most recent versions")
	f.StringVar(&snapshotsFlags.rollback, "rollback", "", "make this version the active run")
	f.BoolVar(&snapshotsFlags.jsonOut, "json", false, "output as JSON instead of a table")
}

type snapshotRow struct {
	VersionID string `json:"version_id"`
	ParentID  string `json:"parent_id,omitempty"`
	Active    bool   `json:"active"`
	Round     int    `json:"round"`
	Answers   int    `json:"answers"`
	Stage     string `json:"stage"`
	CreatedAt string `json:"created_at"`
}

func runSnapshots(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSQLite("snapshots"); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if snapshotsFlags.rollback != "" {
		if err := a.sqlite.Rollback(ctx, snapshotsFlags.rollback); err != nil {
			return err
		}
		fmt.Fprintf(out, "Active run is now %s.\n", snapshotsFlags.rollback)
		return nil
	}

	snaps, err := a.sqlite.ListSnapshots(ctx, snapshotsFlags.last)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no snapshots found")
		return nil
	}

	rows := make([]snapshotRow, len(snaps))
	for i, sn := range snaps {
		rec := recovery.Recover(sn.Payload, a.cat, recovery.Options{MaxRounds: a.cfg.Engine.MaxRounds})
		rows[i] = snapshotRow{
			VersionID: sn.VersionID,
			ParentID:  sn.ParentID,
			Active:    sn.Active,
			Round:     rec.State.Round,
			Answers:   len(rec.State.History),
			Stage:     string(rec.Stage),
			CreatedAt: sn.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if snapshotsFlags.jsonOut {
		return printJSON(out, rows)
	}

	fmt.Fprintf(out, "%-10s  %-10s  %6s  %7s  %-8s  %s\n", "Version", "Parent", "Round", "Answers", "Stage", "Time")
	for _, r := range rows {
		marker := " "
		if r.Active {
			marker = "*"
		}
		fmt.Fprintf(out, "%s%-9s  %-10s  %6d  %7d  %-8s  %s\n",
			marker, shortID(r.VersionID), shortID(r.ParentID), r.Round, r.Answers, r.Stage, r.CreatedAt)
	}
	return nil
}
