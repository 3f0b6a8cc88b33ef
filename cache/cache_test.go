package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/ymdl/cache"
)

func TestCache(t *testing.T) {
	t.Parallel()

	t.Run("FetchOnce", func(t *testing.T) {
		t.Parallel()
		c := cache.New[string](10)
		defer c.Stop()

		calls := 0
		fetch := func() (string, error) {
			calls++
			return "Track", nil
		}

		v, err := c.Fetch("42", time.Minute, fetch)
		require.NoError(t, err)
		assert.Equal(t, "Track", v)

		v, err = c.Fetch("42", time.Minute, fetch)
		require.NoError(t, err)
		assert.Equal(t, "Track", v)
		assert.Equal(t, 1, calls)
	})

	t.Run("FailedFetchNotCached", func(t *testing.T) {
		t.Parallel()
		c := cache.New[int](10)
		defer c.Stop()

		_, err := c.Fetch("k", time.Minute, func() (int, error) { return 0, errors.New("boom") })
		require.Error(t, err)

		_, ok := c.Get("k")
		assert.False(t, ok)
	})

	t.Run("Expired", func(t *testing.T) {
		t.Parallel()
		c := cache.New[int](10)
		defer c.Stop()

		c.Set("k", 1, -time.Second)
		_, ok := c.Get("k")
		assert.False(t, ok)

		c.Set("k", 2, time.Minute)
		v, ok := c.Get("k")
		assert.True(t, ok)
		assert.Equal(t, 2, v)
		assert.True(t, c.Delete("k"))
	})
}
