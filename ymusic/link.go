package ymusic

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

type RefKind int

const (
	RefLiked RefKind = iota + 1
	RefOwned
	RefByUUID
)

func (k RefKind) String() string {
	switch k {
	case RefLiked:
		return "liked"
	case RefOwned:
		return "owned"
	case RefByUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

const (
	LikedID    = "liked"
	LikedTitle = "Liked Tracks"
	// UnknownOwner is reported for uuid playlists whose payload carries no owner.
	UnknownOwner = "unknown"

	uuidLinkPrefix = "lk."
)

var likedTokens = []string{"liked", "favorites", "my"}

// PlaylistReference identifies a playlist. Owned references carry both Owner
// and ID, the others only ID.
type PlaylistReference struct {
	Kind  RefKind
	Owner string
	ID    string
}

func (r PlaylistReference) String() string {
	switch r.Kind {
	case RefOwned:
		return r.Owner + ":" + r.ID
	default:
		return r.ID
	}
}

// Key is a filesystem and cache friendly identity of the reference.
func (r PlaylistReference) Key() string {
	switch r.Kind {
	case RefOwned:
		return "owned-" + r.Owner + "-" + r.ID
	case RefByUUID:
		return "uuid-" + r.ID
	default:
		return LikedID
	}
}

func Liked() PlaylistReference {
	return PlaylistReference{Kind: RefLiked, Owner: "", ID: LikedID}
}

func Owned(owner, id string) PlaylistReference {
	return PlaylistReference{Kind: RefOwned, Owner: owner, ID: id}
}

func ByUUID(id string) PlaylistReference {
	return PlaylistReference{Kind: RefByUUID, Owner: "", ID: id}
}

// Resolve parses user input into a playlist reference. It performs no I/O.
// Recognized forms, in priority order: liked collection tokens, owner
// playlist links, uuid playlist links and the owner:id short form.
func Resolve(raw string) (PlaylistReference, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return PlaylistReference{}, fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}

	for _, token := range likedTokens {
		if strings.EqualFold(text, token) {
			return Liked(), nil
		}
	}

	if u, ok := parseLink(text); ok {
		if ref, ok := ownedFromLink(u); ok {
			return ref, nil
		}
		if ref, ok := uuidFromLink(u); ok {
			return ref, nil
		}
		return PlaylistReference{}, fmt.Errorf("%w: unsupported link %q", ErrInvalidFormat, text)
	}

	if ref, ok := ownedFromShortForm(text); ok {
		return ref, nil
	}

	return PlaylistReference{}, fmt.Errorf("%w: %q", ErrInvalidFormat, text)
}

func parseLink(text string) (*url.URL, bool) {
	u, err := url.Parse(text)
	if nil != err {
		return nil, false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, false
	}

	if u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

func pathParts(u *url.URL) []string {
	return strings.Split(strings.Trim(u.Path, "/"), "/")
}

func isMusicHost(host string) bool {
	labels := strings.Split(strings.ToLower(host), ".")
	if len(labels) < 2 {
		return false
	}

	tld := labels[len(labels)-1]
	if tld == "" {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}

	for _, label := range labels[:len(labels)-1] {
		if strings.Contains(label, "music") {
			return true
		}
	}
	return false
}

func ownedFromLink(u *url.URL) (PlaylistReference, bool) {
	if !isMusicHost(u.Hostname()) {
		return PlaylistReference{}, false
	}

	// Trailing segments such as /edit follow the playlist id in shared links.
	parts := pathParts(u)
	if len(parts) < 4 || parts[0] != "users" || parts[2] != "playlists" {
		return PlaylistReference{}, false
	}

	owner, id := parts[1], parts[3]
	if owner == "" || !isDigits(id) {
		return PlaylistReference{}, false
	}
	return Owned(owner, id), true
}

func uuidFromLink(u *url.URL) (PlaylistReference, bool) {
	parts := pathParts(u)
	if len(parts) < 2 || parts[0] != "playlists" {
		return PlaylistReference{}, false
	}

	id := parts[1]
	if _, err := uuid.Parse(strings.TrimPrefix(id, uuidLinkPrefix)); nil != err {
		return PlaylistReference{}, false
	}
	return ByUUID(id), true
}

func ownedFromShortForm(text string) (PlaylistReference, bool) {
	if strings.Count(text, ":") != 1 {
		return PlaylistReference{}, false
	}

	owner, id, _ := strings.Cut(text, ":")
	owner, id = strings.TrimSpace(owner), strings.TrimSpace(id)
	if owner == "" || id == "" {
		return PlaylistReference{}, false
	}
	return Owned(owner, id), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
