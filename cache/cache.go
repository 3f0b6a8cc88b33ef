package cache

import (
	"time"

	"github.com/karlseguin/ccache/v3"
)

var (
	DefaultTrackTTL        = 1 * time.Hour
	DefaultDownloadInfoTTL = 1 * time.Minute
	DefaultAccountTTL      = 10 * time.Minute
)

const (
	DefaultTracksMaxSize       = 10_000
	DefaultDownloadInfoMaxSize = 1000
	defaultAccountsMaxSize     = 16
)

// Cache is a size bounded in-memory cache with per-item expiration.
type Cache[T any] struct {
	c *ccache.Cache[T]
}

func New[T any](maxSize int64) *Cache[T] {
	return &Cache[T]{
		c: ccache.New(
			ccache.Configure[T]().
				MaxSize(maxSize).
				GetsPerPromote(3).
				ItemsToPrune(1),
		),
	}
}

func NewAccounts[T any]() *Cache[T] {
	return New[T](defaultAccountsMaxSize)
}

// Get returns the unexpired value stored under k.
func (c *Cache[T]) Get(k string) (T, bool) {
	item := c.c.Get(k)
	if nil == item || item.Expired() {
		var zero T
		return zero, false
	}
	return item.Value(), true
}

func (c *Cache[T]) Set(k string, v T, ttl time.Duration) {
	c.c.Set(k, v, ttl)
}

// Fetch returns the cached value for k, or stores and returns the result of
// fetch. Failed fetches are not cached.
func (c *Cache[T]) Fetch(k string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	item, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		var zero T
		return zero, err
	}
	return item.Value(), nil
}

func (c *Cache[T]) Delete(k string) bool {
	return c.c.Delete(k)
}

func (c *Cache[T]) Len() int {
	return c.c.ItemCount()
}

func (c *Cache[T]) Stop() {
	c.c.Stop()
}
