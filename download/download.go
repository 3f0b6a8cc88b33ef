package download

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/matryer/try.v1"

	"github.com/xeptore/ymdl/config"
	"github.com/xeptore/ymdl/errutil"
	"github.com/xeptore/ymdl/log"
	"github.com/xeptore/ymdl/ratelimit"
	"github.com/xeptore/ymdl/ymusic"
)

// VariantSource lists the encodings a track is available in.
type VariantSource interface {
	Variants(ctx context.Context, trackID ymusic.TrackID) ([]ymusic.Variant, error)
}

// Destination names the file of a track stored in codec.
type Destination func(codec string) string

// Outcome is the result of one DownloadTrack call. Skipped outcomes are
// successful ones whose destination already existed. Tagged reports that
// ID3v2 tags were written to a downloaded mp3.
type Outcome struct {
	Success      bool
	Skipped      bool
	BytesWritten int64
	Codec        string
	BitrateKbps  int
	Path         string
	Tagged       bool
	ErrorKind    ymusic.ErrorKind
	Err          error
}

func (o Outcome) fail(err error) Outcome {
	o.Success = false
	o.Skipped = false
	o.ErrorKind = ymusic.KindOf(err)
	o.Err = err
	return o
}

type Executor struct {
	source     VariantSource
	client     *http.Client
	maxRetries int
	sleep      ratelimit.Sleeper
	tagMP3     bool
	logger     zerolog.Logger
}

type Option func(*Executor)

// WithTransport replaces the round tripper used for file transfers.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Executor) {
		e.client.Transport = rt
	}
}

// WithMaxRetries sets the number of variant lookup attempts.
func WithMaxRetries(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

func WithSleeper(s ratelimit.Sleeper) Option {
	return func(e *Executor) {
		e.sleep = s
	}
}

func WithMP3Tagging(enabled bool) Option {
	return func(e *Executor) {
		e.tagMP3 = enabled
	}
}

func NewExecutor(source VariantSource, logger zerolog.Logger, opts ...Option) *Executor {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert
	transport.ResponseHeaderTimeout = config.TrackResponseHeaderTimeout

	e := &Executor{
		source:     source,
		client:     &http.Client{Transport: transport}, //nolint:exhaustruct
		maxRetries: config.DefaultMaxRetries,
		sleep:      ratelimit.Sleep,
		tagMP3:     true,
		logger:     logger.With().Str("module", "download").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TrackOption adjusts a single DownloadTrack call.
type TrackOption func(*trackOptions)

type trackOptions struct {
	tags     *Tags
	progress ProgressFunc
}

// WithTags sets the ID3 tags written to mp3 files.
func WithTags(title, artist string) TrackOption {
	return func(o *trackOptions) {
		o.tags = &Tags{Title: title, Artist: artist}
	}
}

// WithProgress reports transferred bytes of the file.
func WithProgress(f ProgressFunc) TrackOption {
	return func(o *trackOptions) {
		o.progress = f
	}
}

// DownloadTrack downloads the best variant of trackID into the file named
// by dest. An existing destination is reported as a skipped success without
// a transfer. DownloadTrack never panics on remote failures; they are
// reported in the returned Outcome.
func (e *Executor) DownloadTrack(ctx context.Context, trackID ymusic.TrackID, dest Destination, preferredCodec string, opts ...TrackOption) Outcome {
	var options trackOptions
	for _, opt := range opts {
		opt(&options)
	}
	logger := e.logger.With().Str("track_id", trackID).Logger()

	variants, err := e.variants(ctx, trackID)
	if nil != err {
		logger.Error().Func(log.Flaw(err)).Msg("Failed to look up track variants")
		return Outcome{}.fail(err)
	}
	if len(variants) == 0 {
		logger.Warn().Msg("Track has no download variants")
		return Outcome{}.fail(fmt.Errorf("%w: track %s", ymusic.ErrNoVariants, trackID))
	}

	best := ymusic.SelectBest(variants, preferredCodec)
	out := Outcome{Codec: best.Codec, BitrateKbps: best.BitrateKbps} //nolint:exhaustruct
	logger = logger.With().Str("variant", best.String()).Logger()

	link, err := best.ResolveLink(ctx)
	if nil != err {
		logger.Error().Func(log.Flaw(err)).Msg("Failed to resolve direct link")
		return out.fail(err)
	}

	out.Path = dest(best.Codec)
	if info, err := os.Stat(out.Path); nil == err && info.Mode().IsRegular() {
		logger.Debug().Str("path", out.Path).Msg("Track file already exists. Skipping download")
		out.Success = true
		out.Skipped = true
		out.BytesWritten = info.Size()
		return out
	}

	n, err := e.transfer(ctx, link, out.Path, options.progress)
	if nil != err {
		logger.Error().Func(log.Flaw(err)).Str("path", out.Path).Msg("Failed to transfer track file")
		return out.fail(err)
	}
	out.Success = true
	out.BytesWritten = n

	if e.tagMP3 && nil != options.tags && strings.EqualFold(best.Codec, "mp3") {
		if err := writeTags(out.Path, *options.tags); nil != err {
			logger.Warn().Func(log.Flaw(err)).Str("path", out.Path).Msg("Failed to write track tags")
		} else {
			out.Tagged = true
		}
	}

	logger.Info().Str("path", out.Path).Int64("bytes", n).Msg("Track downloaded")
	return out
}

// variants looks the variants up, retrying transient failures with
// exponential backoff until maxRetries attempts were made.
func (e *Executor) variants(ctx context.Context, trackID ymusic.TrackID) (variants []ymusic.Variant, err error) {
	err = try.Do(func(attempt int) (retry bool, err error) {
		variants, err = e.source.Variants(ctx, trackID)
		switch {
		case nil == err:
			return false, nil
		case errutil.IsContext(ctx):
			return false, ctx.Err()
		case !ymusic.IsTransient(err), attempt >= e.maxRetries:
			return false, err
		}

		delay := ratelimit.RetryDelay(attempt - 1)
		e.logger.Warn().Str("track_id", trackID).Int("attempt", attempt).Dur("retry_in", delay).Func(log.Flaw(err)).Msg("Variant lookup failed. Retrying")
		if sleepErr := e.sleep(ctx, delay); nil != sleepErr {
			return false, sleepErr
		}
		return true, err
	})
	if nil != err {
		return nil, err
	}
	return variants, nil
}
