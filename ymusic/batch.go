package ymusic

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/xeptore/ymdl/errutil"
	"github.com/xeptore/ymdl/iterutil"
	"github.com/xeptore/ymdl/log"
)

const DefaultBatchSize = 100

// TrackSource returns catalog objects for a batch of ids in any order.
type TrackSource interface {
	Tracks(ctx context.Context, ids []TrackID) ([]RawTrack, error)
}

// BatchFunc is called after every processed batch with the number of
// playlist entries processed so far and the total known.
type BatchFunc func(processed, total int)

// Fetcher turns ordered track ids into ordered metadata using batch
// requests, falling back to one request per id for batches that fail.
type Fetcher struct {
	source    TrackSource
	batchSize int
	logger    zerolog.Logger
}

func NewFetcher(source TrackSource, batchSize int, logger zerolog.Logger) *Fetcher {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Fetcher{
		source:    source,
		batchSize: batchSize,
		logger:    logger.With().Str("module", "fetcher").Logger(),
	}
}

// isFatal reports errors that concern every track, not one batch.
func isFatal(ctx context.Context, err error) bool {
	return errutil.IsContext(ctx) || errors.Is(err, ErrUnauthorized)
}

// FetchMetadata returns metadata for ids in their original order. Ids that
// cannot be resolved are omitted. Positions are dense, starting at 1.
func (f *Fetcher) FetchMetadata(ctx context.Context, ids []TrackID, onBatch BatchFunc) ([]TrackMetadata, error) {
	return f.fetch(ctx, ids, 0, len(ids), onBatch)
}

func (f *Fetcher) fetch(ctx context.Context, ids []TrackID, processedBefore, total int, onBatch BatchFunc) ([]TrackMetadata, error) {
	out := make([]TrackMetadata, 0, len(ids))
	for batch := range iterutil.Batches(ids, f.batchSize) {
		logger := f.logger.With().Int("batch", batch.Number).Int("batches", batch.Count).Int("batch_size", len(batch.Items)).Logger()

		tracks, err := f.fetchChunk(ctx, batch.Items, logger)
		if nil != err {
			return nil, err
		}
		for _, t := range tracks {
			t.Position = len(out) + 1
			out = append(out, t)
		}

		processed := processedBefore + batch.Offset + len(batch.Items)
		logger.Debug().Int("resolved", len(tracks)).Int("processed", processed).Msg("Batch processed")
		if nil != onBatch {
			onBatch(processed, total)
		}
	}
	return out, nil
}

func (f *Fetcher) fetchChunk(ctx context.Context, chunk []TrackID, logger zerolog.Logger) ([]TrackMetadata, error) {
	byKey, err := f.batch(ctx, chunk)
	if nil != err {
		if isFatal(ctx, err) {
			return nil, err
		}
		logger.Warn().Stringer("kind", KindOf(err)).Func(log.Flaw(err)).Msg("Batch request failed. Falling back to per track requests")
		byKey = make(map[string]TrackMetadata)
	}

	missing := lo.Reject(chunk, func(id TrackID, _ int) bool {
		_, ok := byKey[TrackKey(id)]
		return ok
	})
	if nil == err && len(missing) > 0 {
		logger.Warn().Err(errPartialBatch).Strs("missing", missing).Msg("Batch response is incomplete. Fetching missing tracks individually")
	}

	for _, id := range missing {
		t, err := f.single(ctx, id)
		if nil != err {
			if isFatal(ctx, err) {
				return nil, err
			}
			logger.Warn().Str("track_id", id).Stringer("kind", KindOf(err)).Func(log.Flaw(err)).Msg("Skipping track that could not be fetched")
			continue
		}
		byKey[TrackKey(id)] = t
	}

	out := make([]TrackMetadata, 0, len(chunk))
	for _, id := range chunk {
		if t, ok := byKey[TrackKey(id)]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *Fetcher) batch(ctx context.Context, chunk []TrackID) (map[string]TrackMetadata, error) {
	raw, err := f.source.Tracks(ctx, chunk)
	if nil != err {
		return nil, err
	}

	out := make(map[string]TrackMetadata, len(raw))
	for _, r := range raw {
		t, err := r.Metadata()
		if nil != err {
			f.logger.Debug().Err(err).Msg("Dropping malformed track from batch response")
			continue
		}
		out[TrackKey(t.ID)] = t
	}
	return out, nil
}

func (f *Fetcher) single(ctx context.Context, id TrackID) (TrackMetadata, error) {
	raw, err := f.source.Tracks(ctx, []TrackID{id})
	if nil != err {
		return TrackMetadata{}, err
	}

	key := TrackKey(id)
	for _, r := range raw {
		if TrackKey(string(r.ID)) != key {
			continue
		}
		return r.Metadata()
	}
	return TrackMetadata{}, ErrNotFound
}

// FetchEntries resolves playlist entries. Embedded track objects are used as
// is, the remaining ids are batch fetched, and the union is ordered by the
// original playlist index before positions are assigned.
func (f *Fetcher) FetchEntries(ctx context.Context, entries []PlaylistEntry, onBatch BatchFunc) ([]TrackMetadata, error) {
	type indexed struct {
		index int
		track TrackMetadata
	}

	resolved := make([]indexed, 0, len(entries))
	pending := make([]PlaylistEntry, 0, len(entries))
	for _, e := range entries {
		if nil != e.Track {
			t, err := e.Track.Metadata()
			if nil == err {
				resolved = append(resolved, indexed{index: e.Index, track: t})
				continue
			}
			f.logger.Debug().Err(err).Int("index", e.Index).Msg("Embedded track is malformed. Fetching it by id")
		}
		if e.ID == "" {
			continue
		}
		pending = append(pending, e)
	}

	total := len(entries)
	inline := total - len(pending)
	if nil != onBatch && inline > 0 {
		onBatch(inline, total)
	}

	fetched, err := f.fetch(ctx, lo.Map(pending, func(e PlaylistEntry, _ int) TrackID { return e.ID }), inline, total, onBatch)
	if nil != err {
		return nil, err
	}

	// fetched is an ordered subsequence of pending.
	next := 0
	for _, t := range fetched {
		for next < len(pending) && TrackKey(pending[next].ID) != TrackKey(t.ID) {
			next++
		}
		if next == len(pending) {
			break
		}
		resolved = append(resolved, indexed{index: pending[next].Index, track: t})
		next++
	}

	slices.SortStableFunc(resolved, func(a, b indexed) int { return a.index - b.index })

	out := make([]TrackMetadata, len(resolved))
	for i, r := range resolved {
		r.track.Position = i + 1
		out[i] = r.track
	}
	return out, nil
}
