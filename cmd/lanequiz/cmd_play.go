package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/session"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/update"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Answer statements interactively until a lane wins",
	Long: "Reads one answer per line: y (agree), n (disagree), s (skip), m (meh),\n" +
		"u (undo), r (start over), q (quit). Progress is saved after every answer.",
	RunE: runPlay,
}

var answerKeys = map[string]string{
	"y": "yes", "yes": "yes",
	"n": "no", "no": "no",
	"s": "skip", "skip": "skip",
	"m": "meh", "meh": "meh",
}

func runPlay(cmd *cobra.Command, _ []string) error {
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

	out := cmd.OutOrStdout()
	if rec := sess.Recovery(); rec.Changed() {
		fmt.Fprintf(out, "Saved run was repaired (%s, %d notes).\n", rec.Stage, len(rec.Notes))
	}

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		st := sess.State()
		id, active := st.Phase().Active()
		if !active {
			fmt.Fprintln(out, "\nRun finished.")
			printRatings(out, st)
			fmt.Fprintln(out)
			printAssessment(out, sess.Results())
			return nil
		}
		stmt, _ := a.cat.ByID(id)
		fmt.Fprintf(out, "\n[%d/%d] %s\n> ", st.Round, st.MaxRounds, stmt.Text)

		if !in.Scan() {
			return in.Err()
		}
		line := strings.ToLower(strings.TrimSpace(in.Text()))
		switch line {
		case "":
			continue
		case "q", "quit", "exit":
			fmt.Fprintln(out, "Progress saved.")
			return nil
		case "u", "undo":
			removed, err := sess.Undo(ctx)
			if errors.Is(err, update.ErrNothingToUndo) {
				fmt.Fprintln(out, "Nothing to undo.")
				continue
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Undid %s (%s).\n", removed.StatementID, removed.Answer)
			continue
		case "r", "reset":
			if err := sess.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Started over.")
			continue
		}

		answer, ok := answerKeys[line]
		if !ok {
			fmt.Fprintln(out, "Answer y, n, s or m (u undo, r reset, q quit).")
			continue
		}
		if err := commit(ctx, sess, answer, a.cfg.Session.SettleDelay, out); err != nil {
			return err
		}
	}
}

// commit waits out the settle window once before giving up, so piped input
// is not rejected.
func commit(ctx context.Context, sess *session.Session, answer string, settle time.Duration, out io.Writer) error {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := sess.Commit(ctx, answer)
		if err != nil {
			return err
		}
		if !res.Rejected {
			if res.Finished {
				fmt.Fprintf(out, "Finished: %s.\n", res.Reason)
			}
			return nil
		}
		select {
		case <-time.After(settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	fmt.Fprintln(out, "Too fast; answer again.")
	return nil
}
