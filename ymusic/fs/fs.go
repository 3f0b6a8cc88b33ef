package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/errutil"
	"github.com/xeptore/ymdl/must"
)

const playlistInfoFileName = "playlist.json"

type DownloadDir string

func From(d string) DownloadDir {
	return DownloadDir(d)
}

func (dir DownloadDir) path() string {
	return string(dir)
}

// Playlist returns the layout of the playlist directory named after title.
func (dir DownloadDir) Playlist(title string) Playlist {
	dirPath := filepath.Join(dir.path(), DirName(title))
	return Playlist{
		DirPath:  dirPath,
		InfoFile: InfoFile[StoredPlaylist]{Path: filepath.Join(dirPath, playlistInfoFileName)},
	}
}

type Playlist struct {
	DirPath  string
	InfoFile InfoFile[StoredPlaylist]
}

// Create makes the playlist directory and its parents.
func (p Playlist) Create() error {
	if err := os.MkdirAll(p.DirPath, 0o0755); nil != err {
		flawP := flaw.P{"dir_path": p.DirPath, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to create playlist directory: %v", err)).Append(flawP)
	}
	return nil
}

// TrackPath returns the destination of a track stored in codec.
func (p Playlist) TrackPath(artist, title, codec string) string {
	return filepath.Join(p.DirPath, TrackFileName(artist, title, codec))
}

// DistinctTrackPath is TrackPath for a track whose plain name is already
// taken by another track of the playlist.
func (p Playlist) DistinctTrackPath(artist, title, id, codec string) string {
	return filepath.Join(p.DirPath, DistinctTrackFileName(artist, title, id, codec))
}

type InfoFile[T any] struct {
	Path string
}

func (p InfoFile[T]) Read() (*T, error) {
	return readInfoFile(p)
}

func (p InfoFile[T]) Write(v T) error {
	return writeInfoFile(p, v)
}

func readInfoFile[T any](file InfoFile[T]) (out *T, err error) {
	filePath := file.Path
	flawP := flaw.P{"file_path": filePath}

	f, err := os.OpenFile(filePath, os.O_RDONLY, 0o0644)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to open info file for read: %v", err)).Append(flawP)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close info file: %v", closeErr)).Append(flawP)
			err, out = must.JoinFlaw(err, closeErr), nil
		}
	}()

	var v T
	if err := json.NewDecoder(f).Decode(&v); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to decode info file contents: %v", err)).Append(flawP)
	}

	return &v, nil
}

// writeInfoFile replaces the info file through a temporary sibling so
// readers never observe a partially written document.
func writeInfoFile[T any](file InfoFile[T], obj T) (err error) {
	filePath := file.Path
	tmpPath := filePath + ".tmp"
	flawP := flaw.P{"path": filePath}

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o0644)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to open info file for write: %v", err)).Append(flawP)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close info file: %v", closeErr)).Append(flawP)
			err = must.JoinFlaw(err, closeErr)
		}
		if nil != err {
			_ = os.Remove(tmpPath)
			return
		}
		if renameErr := os.Rename(tmpPath, filePath); nil != renameErr {
			flawP["err_debug_tree"] = errutil.Tree(renameErr).FlawP()
			err = flaw.From(fmt.Errorf("failed to move info file into place: %v", renameErr)).Append(flawP)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(obj); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to write info content: %v", err)).Append(flawP)
	}

	if err := f.Sync(); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to sync info file: %v", err)).Append(flawP)
	}

	return nil
}
