package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/recovery"
)

var recoverFlags struct {
	file  string
	write bool
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Run the recovery pipeline over a stored run and report every repair",
	Long: "Recovers the stored run (or --file) into a valid state and lists what was\n" +
		"migrated or healed. With --write the recovered run replaces the stored one.",
	RunE: runRecover,
}

func init() {
	f := recoverCmd.Flags()
	f.StringVar(&recoverFlags.file, "file", "", "read the run from a JSON file instead of the store")
	f.BoolVar(&recoverFlags.write, "write", false, "save the recovered run to the store")
}

func runRecover(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var raw []byte
	source := recoverFlags.file
	if source != "" {
		raw, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("read %s: %w", source, err)
		}
	} else {
		raw, source, err = loadStored(ctx, a.store)
		if err != nil {
			return err
		}
	}

	res := recovery.Recover(raw, a.cat, recovery.Options{MaxRounds: a.cfg.Engine.MaxRounds})
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source:  %s\n", source)
	fmt.Fprintf(out, "Stage:   %s\n", res.Stage)
	fmt.Fprintf(out, "Phase:   %s\n", res.State.Phase())
	if len(res.Notes) == 0 {
		fmt.Fprintln(out, "No repairs needed.")
	}
	for _, n := range res.Notes {
		fmt.Fprintf(out, "  - %s\n", n)
	}

	if !recoverFlags.write {
		return nil
	}
	data, err := json.Marshal(res.State)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if err := a.store.Save(ctx, data); err != nil {
		return err
	}
	fmt.Fprintln(out, "Recovered run saved.")
	return nil
}
