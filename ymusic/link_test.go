package ymusic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/ymdl/ymusic"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			input    string
			expected ymusic.PlaylistReference
		}{
			{"https://music.example.tld/users/alice/playlists/42", ymusic.Owned("alice", "42")},
			{"alice:42", ymusic.Owned("alice", "42")},
			{"liked", ymusic.Liked()},
			{"LIKED", ymusic.Liked()},
			{"Favorites", ymusic.Liked()},
			{"  my  ", ymusic.Liked()},
			{"https://music.yandex.ru/users/music-blog/playlists/2055", ymusic.Owned("music-blog", "2055")},
			{"http://music.yandex.com/users/bob/playlists/7/", ymusic.Owned("bob", "7")},
			{"https://music.yandex.ru/users/bob/playlists/7?utm_source=share", ymusic.Owned("bob", "7")},
			{"https://music.yandex.ru/playlists/8c4c9e36-cc76-4b1a-9c8b-9b0b6bd2d3a1", ymusic.ByUUID("8c4c9e36-cc76-4b1a-9c8b-9b0b6bd2d3a1")},
			{"https://music.yandex.ru/playlists/lk.8c4c9e36-cc76-4b1a-9c8b-9b0b6bd2d3a1", ymusic.ByUUID("lk.8c4c9e36-cc76-4b1a-9c8b-9b0b6bd2d3a1")},
			{"https://share.example.org/playlists/8c4c9e36-cc76-4b1a-9c8b-9b0b6bd2d3a1", ymusic.ByUUID("8c4c9e36-cc76-4b1a-9c8b-9b0b6bd2d3a1")},
			{"yamusic-user:1003", ymusic.Owned("yamusic-user", "1003")},
			{"my list:42", ymusic.Owned("my list", "42")},
			{"a/b:42", ymusic.Owned("a/b", "42")},
			{"https://music.yandex.ru/users/alice/playlists/42/edit", ymusic.Owned("alice", "42")},
			{"https://music.yandex.ru/users/alice/playlists/42/tracks/7?from=share", ymusic.Owned("alice", "42")},
			{"https://music.yandex.ru/playlists/lk.8c4c9e36-cc76-4b1a-9c8b-9b0b6bd2d3a1/edit", ymusic.ByUUID("lk.8c4c9e36-cc76-4b1a-9c8b-9b0b6bd2d3a1")},
		}

		for _, test := range tests {
			ref, err := ymusic.Resolve(test.input)
			require.NoError(t, err, test.input)
			assert.Equal(t, test.expected, ref, test.input)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Parallel()

		tests := []string{
			"not a playlist",
			"",
			"   ",
			"alice:",
			":42",
			"a:b:c",
			"https://music.yandex.ru/users/alice/playlists/abc",
			"https://music.yandex.ru/users/alice/playlists",
			"https://music.yandex.ru/users/alice/albums/42/playlists",
			"https://example.com/users/alice/playlists/42",
			"https://music.yandex.ru/album/123",
			"https://music.yandex.ru/playlists/not-a-uuid",
			"ftp://music.yandex.ru/users/alice/playlists/42",
			"https://music.yandex.123/users/alice/playlists/42",
		}

		for _, test := range tests {
			_, err := ymusic.Resolve(test)
			require.Error(t, err, test)
			assert.ErrorIs(t, err, ymusic.ErrInvalidFormat, test)
			assert.Equal(t, ymusic.KindInvalidFormat, ymusic.KindOf(err), test)
		}
	})

	t.Run("Pure", func(t *testing.T) {
		t.Parallel()

		for _, input := range []string{"liked", "alice:42", "https://music.example.tld/users/alice/playlists/42"} {
			first, err := ymusic.Resolve(input)
			require.NoError(t, err)
			second, err := ymusic.Resolve(input)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		}
	})
}

func TestPlaylistReferenceKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "liked", ymusic.Liked().Key())
	assert.Equal(t, "owned-alice-42", ymusic.Owned("alice", "42").Key())
	assert.Equal(t, "uuid-lk.x", ymusic.ByUUID("lk.x").Key())
	assert.Equal(t, "alice:42", ymusic.Owned("alice", "42").String())
}
