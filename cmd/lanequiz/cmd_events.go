package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var eventsFlags struct {
	runID   string
	last    int
	jsonOut bool
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recorded analytics events",
	RunE:  runEvents,
}

func init() {
	f := eventsCmd.Flags()
	f.StringVar(&eventsFlags.runID, "run", "", "only events for this run id")
	f.IntVar(&eventsFlags.last, "last", 50, "show N most recent events")
	f.BoolVar(&eventsFlags.jsonOut, "json", false, "output as JSON instead of text")
}

func runEvents(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.events == nil {
		return fmt.Errorf("analytics is disabled or the %s driver keeps no event log", a.cfg.Storage.Driver)
	}

	events, err := a.events.Events(ctx, eventsFlags.runID, eventsFlags.last)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if eventsFlags.jsonOut {
		return printJSON(out, events)
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		fmt.Fprintf(out, "%s  %-8s  %-17s  %v\n",
			ev.CreatedAt.Format("2006-01-02T15:04:05Z"), shortID(ev.RunID), ev.Name, ev.Props)
	}
	return nil
}
