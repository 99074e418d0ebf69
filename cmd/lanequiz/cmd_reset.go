package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the stored run and start a fresh one",
	RunE:  runReset,
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started run %s.\n", shortID(sess.RunID()))
	return nil
}
