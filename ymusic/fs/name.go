package fs

import (
	"slices"
	"strings"
)

const maxNameLength = 200

var (
	fileExtensions   = []string{"mp3", "flac", "aac"}
	defaultExtension = "mp3"
	reservedReplacer = strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_",
		`\`, "_", "|", "_", "?", "_", "*", "_",
	)
)

// Sanitize makes name safe to use as a single path element. Reserved
// characters are replaced with underscores, the result is cut to 200
// characters and then trimmed.
func Sanitize(name string) string {
	name = reservedReplacer.Replace(name)
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	return strings.TrimSpace(name)
}

// Extension maps codec to the file extension used on disk.
func Extension(codec string) string {
	codec = strings.ToLower(codec)
	if slices.Contains(fileExtensions, codec) {
		return codec
	}
	return defaultExtension
}

// TrackFileName is "{artist} - {title}.{ext}".
func TrackFileName(artist, title, codec string) string {
	return Sanitize(artist+" - "+title) + "." + Extension(codec)
}

// DistinctTrackFileName is TrackFileName with " [id]" appended to the
// name. The suffix is kept when the name is cut to length.
func DistinctTrackFileName(artist, title, id, codec string) string {
	suffix := " [" + Sanitize(id) + "]"
	stem := Sanitize(artist + " - " + title)
	if room := maxNameLength - len([]rune(suffix)); len([]rune(stem)) > room {
		stem = strings.TrimSpace(string([]rune(stem)[:max(room, 0)]))
	}
	return stem + suffix + "." + Extension(codec)
}

// DirName is the playlist directory name. Titles that sanitize to nothing
// or to a relative path element get a placeholder.
func DirName(title string) string {
	name := Sanitize(title)
	switch name {
	case "", ".", "..":
		return "playlist"
	default:
		return name
	}
}
