package config

import "time"

var (
	AccountStatusRequestTimeout = 5 * time.Second
	PlaylistMetaRequestTimeout  = 10 * time.Second
	LikedTracksRequestTimeout   = 10 * time.Second
	TracksBatchRequestTimeout   = 15 * time.Second
	DownloadInfoRequestTimeout  = 5 * time.Second
	DirectLinkRequestTimeout    = 5 * time.Second
	// Track files are streamed, so only the response headers are bounded.
	TrackResponseHeaderTimeout = 15 * time.Second
)
