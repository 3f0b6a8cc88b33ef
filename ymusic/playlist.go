package ymusic

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/config"
)

type Playlist struct {
	Ref        PlaylistReference `json:"-"`
	Title      string            `json:"title"`
	Owner      string            `json:"owner"`
	TrackCount int               `json:"track_count"`
	Entries    []PlaylistEntry   `json:"-"`
}

// PlaylistEntry is one slot of the playlist. Track is set when the API
// embedded the track object, otherwise only ID is known.
type PlaylistEntry struct {
	Index int
	ID    TrackID
	Track *RawTrack
}

type playlistResponse struct {
	Title      string              `json:"title"`
	TrackCount int                 `json:"trackCount"`
	Tracks     []playlistTrackItem `json:"tracks"`
}

type playlistTrackItem struct {
	ID      flexID    `json:"id"`
	AlbumID flexID    `json:"albumId"`
	Track   *RawTrack `json:"track"`
}

func (i playlistTrackItem) trackID() TrackID {
	id := string(i.ID)
	if id == "" && nil != i.Track {
		id = string(i.Track.ID)
	}
	return id
}

type likesResponse struct {
	Library struct {
		Tracks []playlistTrackItem `json:"tracks"`
	} `json:"library"`
}

// Playlist looks up the playlist ref points to. Liked playlists belong to
// the authenticated account.
func (c *Client) Playlist(ctx context.Context, ref PlaylistReference) (*Playlist, error) {
	switch ref.Kind {
	case RefLiked:
		return c.likedPlaylist(ctx)
	case RefOwned:
		return c.playlist(ctx, ref, c.endpoint("users", ref.Owner, "playlists", ref.ID))
	case RefByUUID:
		return c.playlist(ctx, ref, c.endpoint("playlist", ref.ID))
	default:
		panic(fmt.Sprintf("unsupported playlist reference kind %d", ref.Kind))
	}
}

func (c *Client) playlist(ctx context.Context, ref PlaylistReference, reqURL string) (*Playlist, error) {
	flawP := flaw.P{"url": reqURL, "ref": ref.String()}

	respBody, err := c.send(ctx, getRequest(reqURL), config.PlaylistMetaRequestTimeout, c.authorized)
	if nil != err {
		return nil, classify(ctx, err, flawP)
	}

	resp, err := decodeResult[playlistResponse](ctx, respBody)
	if nil != err {
		return nil, withFlawP(err, flawP)
	}

	p := &Playlist{
		Ref:        ref,
		Title:      resp.Title,
		Owner:      playlistOwner(ref, respBody),
		TrackCount: resp.TrackCount,
		Entries:    entries(resp.Tracks),
	}
	if p.Title == "" {
		p.Title = "Playlist " + ref.ID
	}
	if p.TrackCount < len(p.Entries) {
		p.TrackCount = len(p.Entries)
	}
	return p, nil
}

// playlistOwner probes the owner login. Uuid playlists may come without one,
// in which case UnknownOwner is reported.
func playlistOwner(ref PlaylistReference, respBody []byte) string {
	for _, path := range []string{"result.owner.login", "result.owner.name", "result.owner.uid"} {
		if v := gjson.GetBytes(respBody, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	if ref.Kind == RefOwned {
		return ref.Owner
	}
	return UnknownOwner
}

func (c *Client) likedPlaylist(ctx context.Context) (*Playlist, error) {
	account, err := c.Authenticate(ctx)
	if nil != err {
		return nil, err
	}

	reqURL := c.endpoint("users", account.UID, "likes", "tracks")
	flawP := flaw.P{"url": reqURL, "uid": account.UID}

	respBody, err := c.send(ctx, getRequest(reqURL), config.LikedTracksRequestTimeout, c.authorized)
	if nil != err {
		return nil, classify(ctx, err, flawP)
	}

	resp, err := decodeResult[likesResponse](ctx, respBody)
	if nil != err {
		return nil, withFlawP(err, flawP)
	}

	items := resp.Library.Tracks
	return &Playlist{
		Ref:        Liked(),
		Title:      LikedTitle,
		Owner:      account.Login,
		TrackCount: len(items),
		Entries:    entries(items),
	}, nil
}

func entries(items []playlistTrackItem) []PlaylistEntry {
	out := make([]PlaylistEntry, 0, len(items))
	for i, item := range items {
		id := item.trackID()
		if id == "" && nil == item.Track {
			continue
		}
		if item.AlbumID != "" && nil == item.Track {
			id = id + ":" + string(item.AlbumID)
		}
		out = append(out, PlaylistEntry{Index: i, ID: id, Track: item.Track})
	}
	return out
}

func (p *Playlist) FlawP() flaw.P {
	return flaw.P{
		"ref":         p.Ref.String(),
		"title":       p.Title,
		"owner":       p.Owner,
		"track_count": p.TrackCount,
		"entries":     len(p.Entries),
	}
}
