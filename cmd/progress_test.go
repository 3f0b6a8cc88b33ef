package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/ymdl/acquire"
	"github.com/xeptore/ymdl/ymusic"
)

func TestFraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    acquire.Progress
		want float64
	}{
		{
			name: "Pending",
			p:    acquire.Progress{Phase: acquire.PhasePending}, //nolint:exhaustruct
			want: 0,
		},
		{
			name: "EmptyPlaylistCompleted",
			p:    acquire.Progress{Phase: acquire.PhaseCompleted}, //nolint:exhaustruct
			want: 1,
		},
		{
			name: "HalfOfTracks",
			p:    acquire.Progress{Phase: acquire.PhaseDownloading, Current: 2, Total: 4}, //nolint:exhaustruct
			want: 0.5,
		},
		{
			name: "PartialTrack",
			p:    acquire.Progress{Phase: acquire.PhaseDownloading, Current: 1, Total: 4, Bytes: 50, BytesTotal: 100}, //nolint:exhaustruct
			want: 0.375,
		},
		{
			name: "UnknownLength",
			p:    acquire.Progress{Phase: acquire.PhaseDownloading, Current: 1, Total: 4, Bytes: 50, BytesTotal: -1}, //nolint:exhaustruct
			want: 0.25,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, fraction(tt.p), 1e-9)
		})
	}
}

func TestTrackSubset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []ymusic.TrackID{"1", "2", "3"}, trackSubset([]string{"1", " 2,3 ", ","}))
	assert.Empty(t, trackSubset(nil))
}

func TestProgressModel(t *testing.T) {
	t.Parallel()

	canceled := false
	m := newProgressModel([]string{"liked", "alice:42"}, func() { canceled = true })

	next, _ := m.Update(progressMsg{slot: 1, p: acquire.Progress{Phase: acquire.PhaseDownloading, Current: 1, Total: 2, Message: "Downloaded A - B"}}) //nolint:exhaustruct
	m = next.(progressModel)
	require.Equal(t, acquire.PhaseDownloading, m.rows[1].last.Phase)
	require.Equal(t, acquire.PhasePending, m.rows[0].last.Phase)

	view := m.View()
	assert.Contains(t, view, "alice:42")
	assert.Contains(t, view, "Downloaded A - B")
	assert.Contains(t, view, "1/2")

	next, _ = m.Update(progressMsg{slot: 7, p: acquire.Progress{Phase: acquire.PhaseError}}) //nolint:exhaustruct
	m = next.(progressModel)
	assert.Len(t, m.rows, 2)

	_, cmd := m.Update(stopMsg{})
	assert.NotNil(t, cmd)
	assert.False(t, canceled)
}

func TestPrintSummaries(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printSummaries(&out, []acquire.Summary{
		{ //nolint:exhaustruct
			RunID:      "run-1",
			Identifier: "alice:42",
			Playlist:   &ymusic.Playlist{Title: "Road Trip"}, //nolint:exhaustruct
			Dir:        "downloads/Road Trip",
			Successful: 3,
			Failed:     1,
			Skipped:    1,
			Success:    true,
			Message:    "Downloaded 3 of 4 tracks (1 failed, 1 already present)",
		},
		{ //nolint:exhaustruct
			Identifier: "liked",
			Kind:       ymusic.KindCanceled,
			Message:    "Not started: " + ymusic.KindCanceled.Guidance(),
		},
	})

	s := out.String()
	assert.Contains(t, s, "Road Trip (alice:42)")
	assert.Contains(t, s, "downloads/Road Trip")
	assert.Contains(t, s, "run-1")
	assert.Contains(t, s, "Not started")
}
