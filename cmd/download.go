package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/ymdl/acquire"
	"github.com/xeptore/ymdl/ctxutil"
	"github.com/xeptore/ymdl/download"
	"github.com/xeptore/ymdl/ledger"
	"github.com/xeptore/ymdl/log"
	"github.com/xeptore/ymdl/ymusic"
)

// ledgerGracePeriod is how long ledger writes may continue after the run
// context is canceled, so interrupted runs still get their final records.
const ledgerGracePeriod = 5 * time.Second

func runDownload(cliCtx *cli.Context) error {
	identifiers := cliCtx.Args().Slice()
	if len(identifiers) == 0 {
		return errors.New("at least one playlist identifier is required")
	}
	plain := cliCtx.Bool(flagPlain)

	s, err := newSession(cliCtx, sessionOptions{requireToken: true, logToFile: !plain})
	if nil != err {
		return err
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := ymusic.NewClient(s.token, s.logger)
	fetcher := ymusic.NewFetcher(client, s.cfg.BatchSize, s.logger)
	executor := download.NewExecutor(
		client,
		s.logger,
		download.WithMaxRetries(s.cfg.MaxRetries),
		download.WithMP3Tagging(s.cfg.ShouldTagMP3()),
	)

	opts := []acquire.Option{acquire.WithPacing(s.cfg.TrackPacing)}
	if s.cfg.LedgerPath != "" {
		ledgerCtx, ledgerCancel := ctxutil.WithGracePeriod(ctx, ledgerGracePeriod)
		defer ledgerCancel()

		store, err := ledger.Open(ledgerCtx, s.cfg.LedgerPath, s.logger)
		if nil != err {
			return err
		}
		defer func() {
			if err := store.Close(); nil != err {
				s.logger.Error().Func(log.Flaw(err)).Msg("Failed to close ledger")
			}
		}()
		opts = append(opts, acquire.WithRecorder(&graceRecorder{ctx: ledgerCtx, next: store}))
	}
	orchestrator := acquire.New(client, fetcher, executor, s.logger, opts...)

	subset := trackSubset(cliCtx.StringSlice(flagTrack))
	requests := lo.Map(identifiers, func(identifier string, _ int) acquire.Request {
		return acquire.Request{
			Identifier:      identifier,
			PreferredCodec:  s.cfg.PreferredCodec,
			DestinationRoot: s.cfg.DownloadBaseDir,
			TrackSubset:     subset,
		}
	})

	var rep reporter
	if plain {
		rep = newPlainReporter(s.logger)
	} else {
		rep = newTUIReporter(identifiers, cancel, os.Stderr)
	}
	rep.Start()

	summaries, err := acquireAll(ctx, orchestrator, requests, s.cfg.ParallelRuns, rep)
	rep.Stop()

	for _, sum := range summaries {
		logSummary(s.logger, sum)
	}
	printSummaries(os.Stdout, summaries)

	if nil != err {
		if errors.Is(err, ymusic.ErrUnauthorized) {
			return fmt.Errorf("%w: %s", errRunFailed, ymusic.KindAuth.Guidance())
		}
		return err
	}
	if nil != ctx.Err() {
		return ctx.Err()
	}
	for _, sum := range summaries {
		if !sum.Success {
			return errRunFailed
		}
	}
	return nil
}

func trackSubset(ids []string) []ymusic.TrackID {
	out := make([]ymusic.TrackID, 0, len(ids))
	for _, id := range ids {
		for part := range strings.SplitSeq(id, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// acquireAll runs every request with at most limit runs in flight. Runs are
// independent except for authentication: a rejected token stops the rest.
func acquireAll(ctx context.Context, o *acquire.Orchestrator, requests []acquire.Request, limit int, r reporter) ([]acquire.Summary, error) {
	summaries := make([]acquire.Summary, len(requests))
	wg, wgCtx := errgroup.WithContext(ctx)
	wg.SetLimit(limit)
	for i, req := range requests {
		wg.Go(func() error {
			summaries[i] = o.Acquire(wgCtx, req, r.Sink(i))
			if summaries[i].Kind == ymusic.KindAuth {
				return errors.Join(ymusic.ErrUnauthorized, summaries[i].Err)
			}
			return nil
		})
	}
	err := wg.Wait()
	for i := range summaries {
		if summaries[i].RunID == "" {
			// Runs that never started because an earlier one failed authentication.
			summaries[i] = acquire.Summary{ //nolint:exhaustruct
				Identifier: requests[i].Identifier,
				Kind:       ymusic.KindCanceled,
				Message:    "Not started: " + ymusic.KindCanceled.Guidance(),
			}
		}
	}
	return summaries, err
}

// graceRecorder forwards records to next under ctx instead of the run
// context.
type graceRecorder struct {
	ctx  context.Context //nolint:containedctx
	next acquire.Recorder
}

func (g *graceRecorder) RecordPlaylist(_ context.Context, runID string, p *ymusic.Playlist, tracks []ymusic.TrackMetadata) error {
	return g.next.RecordPlaylist(g.ctx, runID, p, tracks)
}

func (g *graceRecorder) RecordTrack(_ context.Context, runID string, r acquire.TrackResult) error {
	return g.next.RecordTrack(g.ctx, runID, r)
}

func (g *graceRecorder) RecordSummary(_ context.Context, s acquire.Summary) error {
	return g.next.RecordSummary(g.ctx, s)
}

func logSummary(logger zerolog.Logger, s acquire.Summary) {
	e := logger.Info()
	if !s.Success {
		e = logger.Error()
	}
	e.
		Str("run_id", s.RunID).
		Str("identifier", s.Identifier).
		Str("dir", s.Dir).
		Int("successful", s.Successful).
		Int("failed", s.Failed).
		Int("skipped", s.Skipped).
		Stringer("kind", s.Kind).
		Str("message", s.Message).
		Msg("Run finished")
}
