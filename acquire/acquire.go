package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/xeptore/ymdl/config"
	"github.com/xeptore/ymdl/download"
	"github.com/xeptore/ymdl/log"
	"github.com/xeptore/ymdl/ratelimit"
	"github.com/xeptore/ymdl/ymusic"
	"github.com/xeptore/ymdl/ymusic/fs"
)

type Catalog interface {
	Authenticate(ctx context.Context) (ymusic.Account, error)
	Playlist(ctx context.Context, ref ymusic.PlaylistReference) (*ymusic.Playlist, error)
}

type MetadataFetcher interface {
	FetchEntries(ctx context.Context, entries []ymusic.PlaylistEntry, onBatch ymusic.BatchFunc) ([]ymusic.TrackMetadata, error)
}

type Downloader interface {
	DownloadTrack(ctx context.Context, trackID ymusic.TrackID, dest download.Destination, preferredCodec string, opts ...download.TrackOption) download.Outcome
}

// Recorder persists what a run did. Recorder failures are logged and never
// change the outcome of the run.
type Recorder interface {
	RecordPlaylist(ctx context.Context, runID string, p *ymusic.Playlist, tracks []ymusic.TrackMetadata) error
	RecordTrack(ctx context.Context, runID string, r TrackResult) error
	RecordSummary(ctx context.Context, s Summary) error
}

// Request describes one acquisition run. An empty TrackSubset selects every
// track of the playlist.
type Request struct {
	Identifier      string
	PreferredCodec  string
	DestinationRoot string
	TrackSubset     []ymusic.TrackID
}

type Orchestrator struct {
	catalog    Catalog
	fetcher    MetadataFetcher
	downloader Downloader
	recorder   Recorder
	pacing     time.Duration
	sleep      ratelimit.Sleeper
	now        func() time.Time
	logger     zerolog.Logger
}

type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithPacing sets the delay between two track downloads.
func WithPacing(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.pacing = d
	}
}

func WithSleeper(s ratelimit.Sleeper) Option {
	return func(o *Orchestrator) {
		o.sleep = s
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func New(catalog Catalog, fetcher MetadataFetcher, downloader Downloader, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:    catalog,
		fetcher:    fetcher,
		downloader: downloader,
		recorder:   nil,
		pacing:     config.DefaultTrackPacing,
		sleep:      ratelimit.Sleep,
		now:        time.Now,
		logger:     logger.With().Str("module", "acquire").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newRunID() string {
	id, err := uuid.NewV7()
	if nil != err {
		return uuid.NewString()
	}
	return id.String()
}

// run carries the state of one Acquire call.
type run struct {
	*Orchestrator
	req     Request
	sink    Sink
	summary Summary
	logger  zerolog.Logger
	// current and total are the counters of the last emitted event.
	current int
	total   int
}

func (r *run) emit(p Progress) {
	p.RunID = r.summary.RunID
	if !p.Phase.Terminal() && p.Total > 0 {
		r.current, r.total = p.Current, p.Total
	}
	r.sink(p)
}

// Acquire runs the whole pipeline for req and reports progress to sink.
// It never panics and never returns an error: failures are described by the
// returned Summary and by a final PhaseError event.
func (o *Orchestrator) Acquire(ctx context.Context, req Request, sink Sink) (summary Summary) {
	if nil == sink {
		sink = discard
	}
	r := &run{
		Orchestrator: o,
		req:          req,
		sink:         sink,
		summary: Summary{ //nolint:exhaustruct
			RunID:      newRunID(),
			Identifier: req.Identifier,
			StartedAt:  o.now(),
		},
	}
	r.logger = o.logger.With().Str("run_id", r.summary.RunID).Str("identifier", req.Identifier).Logger()

	defer func() {
		if p := recover(); nil != p {
			r.logger.Error().Func(log.Panic(p)).Msg("Acquisition panicked")
			summary = r.fail("Acquisition", fmt.Errorf("panic: %v", p))
		}
		if nil != o.recorder {
			if err := o.recorder.RecordSummary(context.WithoutCancel(ctx), summary); nil != err {
				r.logger.Warn().Func(log.Flaw(err)).Msg("Failed to record run summary")
			}
		}
	}()

	r.emit(Progress{Phase: PhasePending, Message: "Queued"}) //nolint:exhaustruct
	return r.execute(ctx)
}

func (r *run) execute(ctx context.Context) Summary {
	r.emit(Progress{Phase: PhaseLoading, Message: "Resolving playlist"}) //nolint:exhaustruct
	ref, err := ymusic.Resolve(r.req.Identifier)
	if nil != err {
		return r.fail("Resolve playlist", err)
	}
	r.logger = r.logger.With().Str("ref", ref.String()).Logger()

	if _, err := r.catalog.Authenticate(ctx); nil != err {
		return r.fail("Authenticate", err)
	}

	playlist, err := r.catalog.Playlist(ctx, ref)
	if nil != err {
		return r.fail("Look up playlist", err)
	}
	r.summary.Playlist = playlist
	r.logger.Info().Str("title", playlist.Title).Int("entries", len(playlist.Entries)).Msg("Playlist found")

	total := len(playlist.Entries)
	r.emit(Progress{Phase: PhaseLoading, Total: total, Message: "Fetching track metadata"}) //nolint:exhaustruct
	tracks, err := r.fetcher.FetchEntries(ctx, playlist.Entries, func(processed, total int) {
		r.emit(Progress{Phase: PhaseLoading, Current: processed, Total: total, Message: "Fetching track metadata"}) //nolint:exhaustruct
	})
	if nil != err {
		return r.fail("Fetch track metadata", err)
	}

	dir, err := r.save(ctx, playlist, tracks)
	if nil != err {
		return r.fail("Prepare playlist directory", err)
	}

	return r.download(ctx, dir, r.selected(tracks))
}

func (r *run) save(ctx context.Context, playlist *ymusic.Playlist, tracks []ymusic.TrackMetadata) (fs.Playlist, error) {
	r.emit(Progress{Phase: PhaseSaving, Total: len(tracks), Message: "Saving playlist"}) //nolint:exhaustruct

	dir := fs.From(r.req.DestinationRoot).Playlist(playlist.Title)
	r.summary.Dir = dir.DirPath
	if err := dir.Create(); nil != err {
		return fs.Playlist{}, err
	}

	info := fs.StoredPlaylist{
		Ref:     playlist.Ref.String(),
		Title:   playlist.Title,
		Owner:   playlist.Owner,
		SavedAt: r.now().UTC(),
		Tracks:  tracks,
	}
	if err := dir.InfoFile.Write(info); nil != err {
		r.logger.Warn().Func(log.Flaw(err)).Msg("Failed to write playlist info file")
	}

	if nil != r.recorder {
		if err := r.recorder.RecordPlaylist(ctx, r.summary.RunID, playlist, tracks); nil != err {
			r.logger.Warn().Func(log.Flaw(err)).Msg("Failed to record playlist")
		}
	}
	return dir, nil
}

// selected keeps the tracks of the requested subset in playlist order.
func (r *run) selected(tracks []ymusic.TrackMetadata) []ymusic.TrackMetadata {
	if len(r.req.TrackSubset) == 0 {
		return tracks
	}
	wanted := lo.SliceToMap(r.req.TrackSubset, func(id ymusic.TrackID) (string, struct{}) {
		return ymusic.TrackKey(id), struct{}{}
	})
	return lo.Filter(tracks, func(t ymusic.TrackMetadata, _ int) bool {
		_, ok := wanted[ymusic.TrackKey(t.ID)]
		return ok
	})
}

func (r *run) download(ctx context.Context, dir fs.Playlist, tracks []ymusic.TrackMetadata) Summary {
	total := len(tracks)
	r.summary.Tracks = make([]TrackResult, 0, total)
	r.emit(Progress{Phase: PhaseDownloading, Total: total, Message: "Downloading tracks"}) //nolint:exhaustruct

	var firstFailure error
	claimed := make(map[string]string, total)
	for i, track := range tracks {
		if i > 0 {
			if err := r.sleep(ctx, r.pacing); nil != err {
				return r.fail("Download tracks", err)
			}
		}
		if err := ctx.Err(); nil != err {
			return r.fail("Download tracks", err)
		}

		dest := func(codec string) string {
			return r.claimPath(claimed, dir, track, codec)
		}
		outcome := r.downloader.DownloadTrack(
			ctx,
			track.ID,
			dest,
			r.req.PreferredCodec,
			download.WithTags(track.Title, track.ArtistDisplay),
			download.WithProgress(func(written, expected int64) {
				r.emit(Progress{
					Phase:      PhaseDownloading,
					Current:    i,
					Total:      total,
					Message:    "Downloading " + track.ArtistDisplay + " - " + track.Title,
					Track:      &track,
					Bytes:      written,
					BytesTotal: expected,
				})
			}),
		)
		if outcome.ErrorKind == ymusic.KindCanceled && nil != ctx.Err() {
			return r.fail("Download tracks", outcome.Err)
		}

		result := TrackResult{Track: track, Outcome: outcome}
		r.summary.Tracks = append(r.summary.Tracks, result)
		if outcome.ErrorKind == ymusic.KindAuth {
			// The token stopped working, so every remaining track would fail too.
			r.summary.Failed++
			r.record(ctx, result)
			return r.fail("Download tracks", outcome.Err)
		}
		message := r.count(result)
		if !outcome.Success && nil == firstFailure {
			firstFailure = outcome.Err
		}
		r.record(ctx, result)
		r.emit(Progress{Phase: PhaseDownloading, Current: i + 1, Total: total, Message: message, Track: &track}) //nolint:exhaustruct
	}

	return r.finish(total, firstFailure)
}

// claimPath returns the plain track path unless another track of this run
// already claimed it, in which case the track id is appended to the name.
// A playlist listing the same track twice still maps both to one file.
func (r *run) claimPath(claimed map[string]string, dir fs.Playlist, track ymusic.TrackMetadata, codec string) string {
	key := ymusic.TrackKey(track.ID)
	path := dir.TrackPath(track.ArtistDisplay, track.Title, codec)
	if owner, ok := claimed[path]; ok && owner != key {
		distinct := dir.DistinctTrackPath(track.ArtistDisplay, track.Title, key, codec)
		r.logger.Warn().
			Str("track_id", track.ID).
			Str("claimed_by", owner).
			Str("path", distinct).
			Msg("Track file name already taken in this run")
		path = distinct
	}
	claimed[path] = key
	return path
}

func (r *run) record(ctx context.Context, result TrackResult) {
	if nil == r.recorder {
		return
	}
	if err := r.recorder.RecordTrack(ctx, r.summary.RunID, result); nil != err {
		r.logger.Warn().Func(log.Flaw(err)).Str("track_id", result.Track.ID).Msg("Failed to record track outcome")
	}
}

func (r *run) count(result TrackResult) string {
	outcome, track := result.Outcome, result.Track
	name := track.ArtistDisplay + " - " + track.Title
	switch {
	case outcome.Skipped:
		r.summary.Successful++
		r.summary.Skipped++
		return "Already downloaded " + name
	case outcome.Success:
		r.summary.Successful++
		return "Downloaded " + name
	default:
		r.summary.Failed++
		r.logger.Warn().Str("track_id", track.ID).Stringer("kind", outcome.ErrorKind).Msg("Track download failed")
		return fmt.Sprintf("Failed %s: %s", name, outcome.ErrorKind.Guidance())
	}
}

func (r *run) finish(total int, firstFailure error) Summary {
	s := &r.summary
	s.FinishedAt = r.now()
	s.Success = s.Successful > 0 || total == 0
	s.Message = fmt.Sprintf("Downloaded %d of %d tracks (%d failed, %d already present)", s.Successful, total, s.Failed, s.Skipped)

	phase := PhaseCompleted
	if !s.Success {
		phase = PhaseError
		s.Err = firstFailure
		s.Kind = ymusic.KindOf(firstFailure)
		s.Message = "Every track failed to download. " + s.Message
	}
	r.logger.Info().Int("successful", s.Successful).Int("failed", s.Failed).Int("skipped", s.Skipped).Bool("success", s.Success).Msg("Acquisition finished")
	r.emit(Progress{Phase: phase, Current: total, Total: total, Message: s.Message}) //nolint:exhaustruct
	return *s
}

// fail ends the run because of a failure that concerns the whole playlist.
func (r *run) fail(stage string, err error) Summary {
	s := &r.summary
	s.FinishedAt = r.now()
	s.Success = false
	s.Err = err
	s.Kind = ymusic.KindOf(err)
	s.Message = stage + " failed: " + s.Kind.Guidance()

	event := r.logger.Error()
	if errors.Is(err, context.Canceled) {
		event = r.logger.Warn()
	}
	event.Str("stage", stage).Stringer("kind", s.Kind).Func(log.Flaw(err)).Msg("Acquisition failed")

	r.emit(Progress{Phase: PhaseError, Current: r.current, Total: r.total, Message: s.Message}) //nolint:exhaustruct
	return *s
}
