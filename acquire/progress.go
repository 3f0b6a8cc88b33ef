package acquire

import (
	"time"

	"github.com/xeptore/ymdl/download"
	"github.com/xeptore/ymdl/ymusic"
)

type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseLoading     Phase = "loading"
	PhaseSaving      Phase = "saving"
	PhaseDownloading Phase = "downloading"
	PhaseCompleted   Phase = "completed"
	PhaseError       Phase = "error"
)

// Terminal reports whether no event follows one in phase p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

// Progress is one checkpoint of a run. Track and the byte counters are set
// only while a track is being downloaded.
type Progress struct {
	RunID      string
	Phase      Phase
	Current    int
	Total      int
	Message    string
	Track      *ymusic.TrackMetadata
	Bytes      int64
	BytesTotal int64
}

// Sink receives progress events synchronously, in order.
type Sink func(Progress)

func discard(Progress) {}

// TrackResult pairs a selected track with its download outcome.
type TrackResult struct {
	Track   ymusic.TrackMetadata
	Outcome download.Outcome
}

// Summary is the structured result of a run. Kind is KindNone for
// successful runs.
type Summary struct {
	RunID      string
	Identifier string
	Playlist   *ymusic.Playlist
	Dir        string
	Successful int
	Failed     int
	Skipped    int
	Success    bool
	Kind       ymusic.ErrorKind
	Message    string
	Err        error
	Tracks     []TrackResult
	StartedAt  time.Time
	FinishedAt time.Time
}
