package download

import (
	"fmt"

	"github.com/bogem/id3v2/v2"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/errutil"
)

type Tags struct {
	Title  string
	Artist string
}

func writeTags(filePath string, tags Tags) (err error) {
	flawP := flaw.P{"file_path": filePath, "title": tags.Title, "artist": tags.Artist}

	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true}) //nolint:exhaustruct
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to open track file for tagging: %v", err)).Append(flawP)
	}
	defer func() {
		if closeErr := tag.Close(); nil != closeErr && nil == err {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			err = flaw.From(fmt.Errorf("failed to close tagged track file: %v", closeErr)).Append(flawP)
		}
	}()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tags.Title != "" {
		tag.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		tag.SetArtist(tags.Artist)
	}
	if err := tag.Save(); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to save track tags: %v", err)).Append(flawP)
	}
	return nil
}
