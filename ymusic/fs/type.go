package fs

import (
	"time"

	"github.com/xeptore/ymdl/ymusic"
)

// StoredPlaylist is the content of the playlist info file.
type StoredPlaylist struct {
	Ref     string                 `json:"ref"`
	Title   string                 `json:"title"`
	Owner   string                 `json:"owner"`
	SavedAt time.Time              `json:"saved_at"`
	Tracks  []ymusic.TrackMetadata `json:"tracks"`
}
