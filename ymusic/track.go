package ymusic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/cache"
	"github.com/xeptore/ymdl/config"
)

// UnknownArtist is displayed for tracks without artist information.
const UnknownArtist = "Unknown"

// TrackID identifies a catalog track. It is either a bare track id or the
// track:album pair used by playlists.
type TrackID = string

// TrackKey strips the album part of id.
func TrackKey(id TrackID) string {
	key, _, _ := strings.Cut(id, ":")
	return key
}

// TrackMetadata is the parsed, immutable description of one playlist track.
type TrackMetadata struct {
	ID              TrackID `json:"id"`
	Title           string  `json:"title"`
	ArtistDisplay   string  `json:"artist"`
	DurationSeconds int     `json:"duration_seconds"`
	Position        int     `json:"position"`
}

// flexID accepts ids encoded either as JSON strings or numbers.
type flexID string

// UnmarshalJSONContext is what goccy/go-json calls for custom unmarshalers
// when decoding with UnmarshalContext.
func (id *flexID) UnmarshalJSONContext(_ context.Context, b []byte) error {
	return id.UnmarshalJSON(b)
}

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); nil != err {
			return err
		}
		*id = flexID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); nil != err {
			return err
		}
		*id = flexID(n.String())
	}
	return nil
}

type TrackArtist struct {
	Name string `json:"name"`
}

// RawTrack is the catalog track object as returned by the API.
type RawTrack struct {
	ID         flexID        `json:"id"`
	Title      string        `json:"title"`
	Version    string        `json:"version"`
	DurationMS int64         `json:"durationMs"`
	Artists    []TrackArtist `json:"artists"`
}

var (
	errMissingTrackID    = errors.New("track has no id")
	errMissingTrackTitle = errors.New("track has no title")
)

// Metadata maps the raw object into TrackMetadata. Position is left zero for
// the fetcher to assign.
func (t RawTrack) Metadata() (TrackMetadata, error) {
	if t.ID == "" {
		return TrackMetadata{}, errMissingTrackID
	}
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return TrackMetadata{}, fmt.Errorf("%w: %s", errMissingTrackTitle, t.ID)
	}
	if version := strings.TrimSpace(t.Version); version != "" {
		title = title + " (" + version + ")"
	}

	return TrackMetadata{
		ID:              string(t.ID),
		Title:           title,
		ArtistDisplay:   JoinArtists(t.Artists),
		DurationSeconds: int(t.DurationMS / 1000),
		Position:        0,
	}, nil
}

func (t RawTrack) FlawP() flaw.P {
	return flaw.P{
		"id":          string(t.ID),
		"title":       t.Title,
		"duration_ms": t.DurationMS,
		"artists":     JoinArtists(t.Artists),
	}
}

func JoinArtists(artists []TrackArtist) string {
	names := lo.FilterMap(artists, func(a TrackArtist, _ int) (string, bool) {
		name := strings.TrimSpace(a.Name)
		return name, name != ""
	})
	if len(names) == 0 {
		return UnknownArtist
	}
	return strings.Join(names, ", ")
}

// Tracks fetches the catalog objects of ids with one batch request. Tracks
// seen before are served from the client cache. The result is in response
// order and may miss ids the catalog does not know.
func (c *Client) Tracks(ctx context.Context, ids []TrackID) ([]RawTrack, error) {
	out := make([]RawTrack, 0, len(ids))
	missing := make([]TrackID, 0, len(ids))
	for _, id := range ids {
		if t, ok := c.tracks.Get(TrackKey(id)); ok {
			out = append(out, t)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	form := make(url.Values, 2)
	form.Set("track-ids", strings.Join(missing, ","))
	form.Set("with-positions", "false")

	reqURL := c.endpoint("tracks")
	flawP := flaw.P{"url": reqURL, "track_ids": missing}

	respBody, err := c.send(ctx, postFormRequest(reqURL, form), config.TracksBatchRequestTimeout, c.authorized)
	if nil != err {
		return nil, classify(ctx, err, flawP)
	}

	fetched, err := decodeResult[[]RawTrack](ctx, respBody)
	if nil != err {
		return nil, withFlawP(err, flawP)
	}

	for _, t := range *fetched {
		if t.ID != "" {
			c.tracks.Set(string(t.ID), t, cache.DefaultTrackTTL)
		}
	}
	return append(out, *fetched...), nil
}
