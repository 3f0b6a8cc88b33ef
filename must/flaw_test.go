package must_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/must"
)

var errSentinel = errors.New("sentinel")

func TestBeFlaw(t *testing.T) {
	t.Parallel()

	t.Run("Joined", func(t *testing.T) {
		t.Parallel()

		f := flaw.From(errors.New("inner"))
		assert.Same(t, f, must.BeFlaw(errors.Join(errSentinel, f)))
	})

	t.Run("NotFlaw", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { must.BeFlaw(errSentinel) })
	})
}

func TestJoinFlaw(t *testing.T) {
	t.Parallel()

	closeErr := flaw.From(errors.New("close failed"))

	t.Run("NilErr", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, error(closeErr), must.JoinFlaw(nil, closeErr))
	})

	t.Run("KeepsSentinel", func(t *testing.T) {
		t.Parallel()

		err := errors.Join(errSentinel, flaw.From(errors.New("read failed")))
		joined := must.JoinFlaw(err, flaw.From(errors.New("close failed")))
		require.ErrorIs(t, joined, errSentinel)
		assert.Same(t, must.BeFlaw(err), must.BeFlaw(joined))
	})
}
