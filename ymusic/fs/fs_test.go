package fs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/ymdl/ymusic"
	"github.com/xeptore/ymdl/ymusic/fs"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Plain", input: "Artist - Title", expected: "Artist - Title"},
		{name: "Reserved", input: `a<b>c:d"e/f\g|h?i*j`, expected: "a_b_c_d_e_f_g_h_i_j"},
		{name: "Trimmed", input: "  spaced  ", expected: "spaced"},
		{name: "Unicode", input: "Кино - Группа крови", expected: "Кино - Группа крови"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.expected, fs.Sanitize(test.input))
		})
	}

	t.Run("TruncatedBeforeTrim", func(t *testing.T) {
		t.Parallel()
		input := strings.Repeat("a", 199) + " " + strings.Repeat("b", 10)
		assert.Equal(t, strings.Repeat("a", 199), fs.Sanitize(input))
	})

	t.Run("TruncatedByRunes", func(t *testing.T) {
		t.Parallel()
		out := fs.Sanitize(strings.Repeat("я", 300))
		assert.Equal(t, 200, len([]rune(out)))
	})
}

func TestTrackFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AC_DC - Back In Black.mp3", fs.TrackFileName("AC/DC", "Back In Black", "mp3"))
	assert.Equal(t, "A - B.flac", fs.TrackFileName("A", "B", "FLAC"))
	assert.Equal(t, "A - B.aac", fs.TrackFileName("A", "B", "aac"))
	assert.Equal(t, "A - B.mp3", fs.TrackFileName("A", "B", "he-aac"))
}

func TestDistinctTrackFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A - B [12_34].mp3", fs.DistinctTrackFileName("A", "B", "12:34", "mp3"))

	long := fs.DistinctTrackFileName("A", strings.Repeat("x", 300), "99", "flac")
	assert.True(t, strings.HasSuffix(long, " [99].flac"), long)
	assert.Len(t, []rune(strings.TrimSuffix(long, ".flac")), 200)
	assert.NotEqual(t, long, fs.DistinctTrackFileName("A", strings.Repeat("x", 300), "98", "flac"))
}

func TestDirName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Road Trip", fs.DirName("Road Trip"))
	assert.Equal(t, "Rock_Pop", fs.DirName("Rock/Pop"))
	assert.Equal(t, "playlist", fs.DirName("   "))
	assert.Equal(t, "playlist", fs.DirName(".."))
}

func TestPlaylistInfoFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := fs.From(root).Playlist("Road/Trip")
	assert.Equal(t, filepath.Join(root, "Road_Trip"), p.DirPath)
	assert.Equal(t, filepath.Join(root, "Road_Trip", "A - B.mp3"), p.TrackPath("A", "B", "mp3"))

	require.NoError(t, p.Create())

	stored := fs.StoredPlaylist{
		Ref:     "alice:42",
		Title:   "Road/Trip",
		Owner:   "alice",
		SavedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Tracks: []ymusic.TrackMetadata{
			{ID: "1", Title: "B", ArtistDisplay: "A", DurationSeconds: 10, Position: 1},
		},
	}
	require.NoError(t, p.InfoFile.Write(stored))

	read, err := p.InfoFile.Read()
	require.NoError(t, err)
	assert.Equal(t, stored, *read)

	_, err = os.Stat(p.InfoFile.Path + ".tmp")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = fs.From(root).Playlist("missing").InfoFile.Read()
	require.Error(t, err)
}
