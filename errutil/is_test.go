package errutil_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xeptore/ymdl/errutil"
)

func TestIsNetwork(t *testing.T) {
	t.Parallel()

	t.Run("Transient", func(t *testing.T) {
		t.Parallel()
		errs := []error{
			context.DeadlineExceeded,
			io.ErrUnexpectedEOF,
			fmt.Errorf("read: %w", syscall.ECONNRESET),
			&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			&net.DNSError{Err: "no such host", Name: "api.music.yandex.net"},
			&url.Error{Op: "Get", URL: "https://api.music.yandex.net", Err: errors.New("tls handshake failure")},
		}
		for _, err := range errs {
			assert.True(t, errutil.IsNetwork(err), "expected %v to be a network error", err)
		}
	})

	t.Run("NotTransient", func(t *testing.T) {
		t.Parallel()
		errs := []error{
			nil,
			errors.New("unexpected status code"),
			context.Canceled,
			&url.Error{Op: "Get", URL: "https://api.music.yandex.net", Err: context.Canceled},
		}
		for _, err := range errs {
			assert.False(t, errutil.IsNetwork(err), "expected %v not to be a network error", err)
		}
	})
}

func TestIsAny(t *testing.T) {
	t.Parallel()

	errFirst := errors.New("first")
	errSecond := errors.New("second")

	matched, ok := errutil.IsAny(fmt.Errorf("wrapped: %w", errSecond), errFirst, errSecond)
	assert.True(t, ok)
	assert.Equal(t, errSecond, matched)

	matched, ok = errutil.IsAny(errors.New("other"), errFirst, errSecond)
	assert.False(t, ok)
	assert.Nil(t, matched)
}
