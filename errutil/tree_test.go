package errutil_test

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/errutil"
)

var errNetwork = errors.New("network error")

// shape reduces a tree to type names so expectations stay readable.
func shape(info errutil.ErrInfo) any {
	if len(info.Children) == 0 {
		return info.TypeName
	}
	children := make([]any, 0, len(info.Children))
	for _, c := range info.Children {
		children = append(children, shape(c))
	}
	return map[string]any{info.TypeName: children}
}

func TestTree(t *testing.T) {
	t.Parallel()

	t.Run("NilErr", func(t *testing.T) {
		t.Parallel()
		assert.PanicsWithValue(t, "nil error", func() { errutil.Tree(nil) })
	})

	t.Run("Leaf", func(t *testing.T) {
		t.Parallel()

		tree := errutil.Tree(errors.New("playlist not found"))
		assert.Equal(t, "playlist not found", tree.Message)
		assert.Equal(t, "*errors.errorString", tree.TypeName)
		assert.Empty(t, tree.Children)
	})

	t.Run("SentinelJoinedWithRequestFailure", func(t *testing.T) {
		t.Parallel()

		reqErr := &url.Error{Op: "Get", URL: "https://api.music.yandex.net/account/status", Err: os.ErrDeadlineExceeded}
		tree := errutil.Tree(errors.Join(errNetwork, fmt.Errorf("failed to send request: %w", reqErr)))

		require.Equal(t, "network error\nfailed to send request: Get \"https://api.music.yandex.net/account/status\": i/o timeout", tree.Message)
		assert.Equal(t, map[string]any{
			"*errors.joinError": []any{
				"*errors.errorString",
				map[string]any{
					"*fmt.wrapError": []any{
						map[string]any{"*url.Error": []any{"*poll.DeadlineExceededError"}},
					},
				},
			},
		}, shape(tree))
	})

	t.Run("PathError", func(t *testing.T) {
		t.Parallel()

		_, err := os.Open("nonexistent/playlist.json")
		tree := errutil.Tree(fmt.Errorf("failed to open info file: %w", err))
		assert.Equal(t, map[string]any{
			"*fmt.wrapError": []any{
				map[string]any{"*fs.PathError": []any{"syscall.Errno"}},
			},
		}, shape(tree))
	})

	t.Run("NestedJoins", func(t *testing.T) {
		t.Parallel()

		tree := errutil.Tree(errors.Join(
			errors.New("batch failed"),
			errors.Join(errors.New("track 1 failed"), errors.New("track 2 failed")),
		))
		assert.Equal(t, map[string]any{
			"*errors.joinError": []any{
				"*errors.errorString",
				map[string]any{"*errors.joinError": []any{"*errors.errorString", "*errors.errorString"}},
			},
		}, shape(tree))
		assert.Equal(t, "track 2 failed", tree.Children[1].Children[1].Message)
	})
}

func TestErrInfoFlawP(t *testing.T) {
	t.Parallel()

	p := errutil.Tree(errors.Join(errors.New("first"), errors.New("second"))).FlawP()
	children, ok := p["children"].([]flaw.P)
	assert.True(t, ok)
	assert.Len(t, children, 2)
	assert.Equal(t, "first", children[0]["message"])
	assert.Equal(t, "second", children[1]["message"])

	leaf := errutil.Tree(errors.New("leaf")).FlawP()
	assert.Nil(t, leaf["children"])
}

func TestUnknownError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", errors.Join(errors.New("a"), errors.New("b")))
	assert.Equal(t, "unknown error of type *fmt.wrapError received: outer: a\nb (chain depth 3)", errutil.UnknownError(err))
	assert.Equal(t, "unknown nil error received", errutil.UnknownError(nil))
}
