package download_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/ymdl/download"
	"github.com/xeptore/ymdl/ymusic"
)

// payload starts with an MPEG-1 Layer III frame header so it reads as an
// untagged mp3.
var payload = append([]byte{0xFF, 0xFB, 0x90, 0x64}, make([]byte, 413)...)

type storage struct {
	*httptest.Server
	hits atomic.Int32
}

func newStorage(t *testing.T) *storage {
	t.Helper()

	s := new(storage)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/short", func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write(payload)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func staticLink(link string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		return link, nil
	}
}

type variantSource struct {
	variants []ymusic.Variant
	errs     []error
	calls    atomic.Int32
}

func (s *variantSource) Variants(_ context.Context, _ ymusic.TrackID) ([]ymusic.Variant, error) {
	call := int(s.calls.Add(1)) - 1
	if call < len(s.errs) && nil != s.errs[call] {
		return nil, s.errs[call]
	}
	return s.variants, nil
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func destIn(dir string) download.Destination {
	return func(codec string) string {
		return filepath.Join(dir, "nested", "Artist - Title."+codec)
	}
}

func newExecutor(source download.VariantSource, sleeper *sleepRecorder, opts ...download.Option) *download.Executor {
	opts = append([]download.Option{download.WithSleeper(sleeper.sleep), download.WithMaxRetries(3)}, opts...)
	return download.NewExecutor(source, zerolog.Nop(), opts...)
}

func TestDownloadTrack(t *testing.T) {
	t.Parallel()

	t.Run("Idempotent", func(t *testing.T) {
		t.Parallel()
		s := newStorage(t)
		source := &variantSource{variants: []ymusic.Variant{
			ymusic.NewVariant("mp3", 192, staticLink(s.URL+"/broken")),
			ymusic.NewVariant("mp3", 320, staticLink(s.URL+"/ok")),
		}}
		dir := t.TempDir()
		e := newExecutor(source, new(sleepRecorder))

		var reported int64
		first := e.DownloadTrack(t.Context(), "1", destIn(dir), "mp3", download.WithProgress(func(written, _ int64) {
			reported = written
		}))
		require.True(t, first.Success, first.Err)
		assert.False(t, first.Skipped)
		assert.Equal(t, int64(len(payload)), first.BytesWritten)
		assert.Equal(t, int64(len(payload)), reported)
		assert.Equal(t, "mp3", first.Codec)
		assert.Equal(t, 320, first.BitrateKbps)
		assert.Equal(t, ymusic.KindNone, first.ErrorKind)

		content, err := os.ReadFile(first.Path)
		require.NoError(t, err)
		assert.Equal(t, payload, content)
		_, err = os.Stat(first.Path + ".part")
		assert.ErrorIs(t, err, os.ErrNotExist)

		second := e.DownloadTrack(t.Context(), "1", destIn(dir), "mp3")
		require.True(t, second.Success)
		assert.True(t, second.Skipped)
		assert.Equal(t, first.BytesWritten, second.BytesWritten)
		assert.Equal(t, first.Codec, second.Codec)
		assert.Equal(t, first.BitrateKbps, second.BitrateKbps)
		assert.EqualValues(t, 1, s.hits.Load())
	})

	t.Run("DestinationUsesSelectedCodec", func(t *testing.T) {
		t.Parallel()
		s := newStorage(t)
		source := &variantSource{variants: []ymusic.Variant{
			ymusic.NewVariant("aac", 256, staticLink(s.URL+"/broken")),
			ymusic.NewVariant("mp3", 128, staticLink(s.URL+"/ok")),
		}}
		out := newExecutor(source, new(sleepRecorder)).DownloadTrack(t.Context(), "1", destIn(t.TempDir()), "flac")
		require.True(t, out.Success, out.Err)
		assert.Equal(t, "mp3", out.Codec)
		assert.Equal(t, ".mp3", filepath.Ext(out.Path))
	})

	t.Run("RetriesTransientLookups", func(t *testing.T) {
		t.Parallel()
		s := newStorage(t)
		source := &variantSource{
			variants: []ymusic.Variant{ymusic.NewVariant("mp3", 320, staticLink(s.URL+"/ok"))},
			errs:     []error{ymusic.ErrNetwork, context.DeadlineExceeded},
		}
		sleeper := new(sleepRecorder)
		out := newExecutor(source, sleeper).DownloadTrack(t.Context(), "1", destIn(t.TempDir()), "mp3")
		require.True(t, out.Success, out.Err)
		assert.EqualValues(t, 3, source.calls.Load())
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
	})

	t.Run("RetriesExhausted", func(t *testing.T) {
		t.Parallel()
		source := &variantSource{errs: []error{ymusic.ErrNetwork, ymusic.ErrNetwork, ymusic.ErrNetwork, ymusic.ErrNetwork}}
		sleeper := new(sleepRecorder)
		out := newExecutor(source, sleeper).DownloadTrack(t.Context(), "1", destIn(t.TempDir()), "mp3")
		assert.False(t, out.Success)
		assert.Equal(t, ymusic.KindNetwork, out.ErrorKind)
		assert.EqualValues(t, 3, source.calls.Load())
		assert.Len(t, sleeper.delays, 2)
	})

	t.Run("PermanentLookupFailure", func(t *testing.T) {
		t.Parallel()
		source := &variantSource{errs: []error{ymusic.ErrNotFound}}
		sleeper := new(sleepRecorder)
		out := newExecutor(source, sleeper).DownloadTrack(t.Context(), "1", destIn(t.TempDir()), "mp3")
		assert.Equal(t, ymusic.KindNotFound, out.ErrorKind)
		assert.EqualValues(t, 1, source.calls.Load())
		assert.Empty(t, sleeper.delays)
	})

	t.Run("NoVariants", func(t *testing.T) {
		t.Parallel()
		source := &variantSource{variants: []ymusic.Variant{}}
		sleeper := new(sleepRecorder)
		out := newExecutor(source, sleeper).DownloadTrack(t.Context(), "1", destIn(t.TempDir()), "mp3")
		assert.False(t, out.Success)
		assert.Equal(t, ymusic.KindNoVariants, out.ErrorKind)
		assert.ErrorIs(t, out.Err, ymusic.ErrNoVariants)
		assert.EqualValues(t, 1, source.calls.Load())
		assert.Empty(t, sleeper.delays)
	})

	t.Run("LinkUnavailable", func(t *testing.T) {
		t.Parallel()
		source := &variantSource{variants: []ymusic.Variant{ymusic.NewVariant("mp3", 320, staticLink(""))}}
		dir := t.TempDir()
		out := newExecutor(source, new(sleepRecorder)).DownloadTrack(t.Context(), "1", destIn(dir), "mp3")
		assert.False(t, out.Success)
		assert.Equal(t, ymusic.KindLinkUnavailable, out.ErrorKind)
		assert.Equal(t, "mp3", out.Codec)
		assert.NoDirExists(t, filepath.Join(dir, "nested"))
	})

	t.Run("TransferFailures", func(t *testing.T) {
		t.Parallel()
		s := newStorage(t)
		for _, path := range []string{"/broken", "/short"} {
			source := &variantSource{variants: []ymusic.Variant{ymusic.NewVariant("mp3", 320, staticLink(s.URL+path))}}
			out := newExecutor(source, new(sleepRecorder)).DownloadTrack(t.Context(), "1", destIn(t.TempDir()), "mp3")
			assert.False(t, out.Success, path)
			assert.Equal(t, ymusic.KindTransfer, out.ErrorKind, path)
			assert.NoFileExists(t, out.Path, path)
			assert.NoFileExists(t, out.Path+".part", path)
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		source := &variantSource{errs: []error{context.Canceled}}
		out := newExecutor(source, new(sleepRecorder)).DownloadTrack(ctx, "1", destIn(t.TempDir()), "mp3")
		assert.Equal(t, ymusic.KindCanceled, out.ErrorKind)
		assert.EqualValues(t, 1, source.calls.Load())
	})

	t.Run("TagsMP3", func(t *testing.T) {
		t.Parallel()
		s := newStorage(t)
		source := &variantSource{variants: []ymusic.Variant{ymusic.NewVariant("mp3", 320, staticLink(s.URL+"/ok"))}}
		out := newExecutor(source, new(sleepRecorder)).DownloadTrack(t.Context(), "1", destIn(t.TempDir()), "mp3", download.WithTags("Title", "Artist"))
		require.True(t, out.Success, out.Err)
		require.True(t, out.Tagged)

		tag, err := id3v2.Open(out.Path, id3v2.Options{Parse: true})
		require.NoError(t, err)
		defer tag.Close()
		assert.Equal(t, "Title", tag.Title())
		assert.Equal(t, "Artist", tag.Artist())
	})

	t.Run("TaggingFailureKeepsDownload", func(t *testing.T) {
		t.Parallel()
		// Starts with an ID3 marker but carries no valid tag after it.
		body := []byte("ID3-less audio payload used by the tests")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(body)
		}))
		t.Cleanup(srv.Close)

		source := &variantSource{variants: []ymusic.Variant{ymusic.NewVariant("mp3", 320, staticLink(srv.URL))}}
		out := newExecutor(source, new(sleepRecorder)).DownloadTrack(t.Context(), "1", destIn(t.TempDir()), "mp3", download.WithTags("Title", "Artist"))
		require.True(t, out.Success, out.Err)
		assert.False(t, out.Tagged)
		assert.Equal(t, int64(len(body)), out.BytesWritten)
	})

	t.Run("OtherCodecsAreNotTagged", func(t *testing.T) {
		t.Parallel()
		s := newStorage(t)
		source := &variantSource{variants: []ymusic.Variant{ymusic.NewVariant("flac", 900, staticLink(s.URL+"/ok"))}}
		out := newExecutor(source, new(sleepRecorder)).DownloadTrack(t.Context(), "1", destIn(t.TempDir()), "flac", download.WithTags("Title", "Artist"))
		require.True(t, out.Success, out.Err)
		assert.False(t, out.Tagged)
	})
}
