package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/xeptore/ymdl/ledger"
	"github.com/xeptore/ymdl/log"
)

const historyTimeLayout = "2006-01-02 15:04:05"

var errLedgerDisabled = errors.New("ledger_path is not set in the configuration. history is only kept when it is")

func runHistory(cliCtx *cli.Context) error {
	s, err := newSession(cliCtx, sessionOptions{requireToken: false, logToFile: false})
	if nil != err {
		return err
	}
	defer s.Close()

	if s.cfg.LedgerPath == "" {
		return errLedgerDisabled
	}
	if _, err := os.Stat(s.cfg.LedgerPath); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stdout, mutedStyle.Render("No runs recorded yet"))
			return nil
		}
		return fmt.Errorf("failed to stat ledger file: %v", err)
	}

	ctx := cliCtx.Context
	store, err := ledger.Open(ctx, s.cfg.LedgerPath, s.logger)
	if nil != err {
		return err
	}
	defer func() {
		if err := store.Close(); nil != err {
			s.logger.Error().Func(log.Flaw(err)).Msg("Failed to close ledger")
		}
	}()

	if runID := cliCtx.String(flagRun); runID != "" {
		run, err := store.Run(ctx, runID)
		if nil != err {
			if errors.Is(err, ledger.ErrRunNotFound) {
				return fmt.Errorf("no run with id %q", runID)
			}
			return err
		}
		outcomes, err := store.TrackOutcomes(ctx, runID)
		if nil != err {
			return err
		}
		printRun(os.Stdout, run)
		printOutcomes(os.Stdout, outcomes)
		return nil
	}

	runs, err := store.RecentRuns(ctx, cliCtx.Int(flagLimit))
	if nil != err {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, mutedStyle.Render("No runs recorded yet"))
		return nil
	}
	for _, run := range runs {
		printRun(os.Stdout, run)
	}
	return nil
}

func printRun(w io.Writer, run ledger.Run) {
	status := successStyle.Render("done")
	if !run.Success {
		status = failureStyle.Render("failed " + run.Kind.String())
	}
	title := run.Identifier
	if run.PlaylistTitle != "" {
		title = run.PlaylistTitle + " (" + run.Identifier + ")"
	}
	fmt.Fprintf(w, "%s %s %s\n", mutedStyle.Render(run.StartedAt.Local().Format(historyTimeLayout)), labelStyle.Render(title), status)
	fmt.Fprintf(
		w,
		"  %s %s  %d successful, %d failed, %d already present, took %s\n",
		mutedStyle.Render("run:"),
		run.ID,
		run.Successful,
		run.Failed,
		run.Skipped,
		run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
	)
	if run.Message != "" {
		fmt.Fprintf(w, "  %s\n", run.Message)
	}
}

func printOutcomes(w io.Writer, outcomes []ledger.TrackOutcome) {
	for _, o := range outcomes {
		var status string
		switch {
		case o.Skipped:
			status = skippedStyle.Render("present")
		case o.Success:
			status = successStyle.Render(fmt.Sprintf("%s %dkbps", o.Codec, o.BitrateKbps))
		default:
			status = failureStyle.Render(o.ErrorKind.String())
		}
		fmt.Fprintf(w, "  %3d. %-12s %s", o.Position+1, o.TrackID, status)
		switch {
		case o.Path != "":
			fmt.Fprintf(w, " %s", mutedStyle.Render(o.Path))
		case o.ErrorMessage != "":
			fmt.Fprintf(w, " %s", mutedStyle.Render(o.ErrorMessage))
		}
		fmt.Fprintln(w)
	}
}
