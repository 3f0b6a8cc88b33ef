package errutil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
)

func IsAny(err error, target error, targets ...error) (error, bool) {
	if errors.Is(err, target) {
		return target, true
	}
	for _, t := range targets {
		if errors.Is(err, t) {
			return t, true
		}
	}
	return nil, false
}

func IsContext(ctx context.Context) bool {
	err := ctx.Err()
	return nil != err && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// IsNetwork reports whether err was caused by the connection rather than the
// remote peer's response.
func IsNetwork(err error) bool {
	if nil == err {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if netErr := new(net.OpError); errors.As(err, &netErr) {
		return true
	}

	if dnsErr := new(net.DNSError); errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if urlErr := new(url.Error); errors.As(err, &urlErr) {
		return !errors.Is(urlErr.Err, context.Canceled)
	}

	return false
}
