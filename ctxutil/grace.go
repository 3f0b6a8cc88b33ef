package ctxutil

import (
	"context"
	"time"
)

// WithGracePeriod returns a context carrying the values of parent that is
// canceled grace after parent is done, or as soon as the returned cancel is
// called. Calling cancel releases the watcher on parent.
func WithGracePeriod(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		timer := time.AfterFunc(grace, cancel)
		context.AfterFunc(ctx, func() { timer.Stop() })
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

