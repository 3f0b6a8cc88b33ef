package ymusic

import (
	"context"
	"errors"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/errutil"
	"github.com/xeptore/ymdl/must"
)

var (
	ErrInvalidFormat   = errors.New("invalid playlist identifier format")
	ErrUnauthorized    = errors.New("token is invalid or expired")
	ErrNotFound        = errors.New("not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrNetwork         = errors.New("network error")
	ErrTooManyRequests = errors.New("too many requests")
	ErrNoVariants      = errors.New("no download variants available")
	ErrLinkUnavailable = errors.New("direct download link unavailable")
	ErrTransfer        = errors.New("track transfer failed")

	// errPartialBatch makes a batch fall back to per-track requests. It never
	// leaves the package.
	errPartialBatch = errors.New("partial batch response")
)

// ErrorKind is the closed set of failure categories reported to callers.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindInvalidFormat   ErrorKind = "invalid_format"
	KindAuth            ErrorKind = "auth"
	KindNotFound        ErrorKind = "not_found"
	KindAccessDenied    ErrorKind = "access_denied"
	KindNetwork         ErrorKind = "network"
	KindNoVariants      ErrorKind = "no_variants"
	KindLinkUnavailable ErrorKind = "link_unavailable"
	KindTransfer        ErrorKind = "transfer"
	KindCanceled        ErrorKind = "canceled"
	KindUnexpected      ErrorKind = "unexpected"
)

// KindOf maps err to its ErrorKind. Sentinels take precedence over the
// transport condition that may accompany them.
func KindOf(err error) ErrorKind {
	switch {
	case nil == err:
		return KindNone
	case errors.Is(err, ErrInvalidFormat):
		return KindInvalidFormat
	case errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrNoVariants):
		return KindNoVariants
	case errors.Is(err, ErrLinkUnavailable):
		return KindLinkUnavailable
	case errors.Is(err, ErrTransfer):
		return KindTransfer
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrTooManyRequests), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errutil.IsNetwork(err):
		return KindNetwork
	default:
		return KindUnexpected
	}
}

// IsTransient reports whether retrying the failed operation may succeed.
func IsTransient(err error) bool {
	return KindOf(err) == KindNetwork
}

func (k ErrorKind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// Guidance is a human readable hint for the user about what to do next.
func (k ErrorKind) Guidance() string {
	switch k {
	case KindInvalidFormat:
		return "Use a playlist link, the owner:id form or one of liked, favorites, my"
	case KindAuth:
		return "The token is invalid or expired. Obtain a fresh OAuth token and try again"
	case KindNotFound:
		return "The playlist or user does not exist"
	case KindAccessDenied:
		return "The playlist is private or not available for this account"
	case KindNetwork:
		return "The service could not be reached. Check the connection and try again later"
	case KindNoVariants, KindLinkUnavailable:
		return "The track is not available for download"
	case KindTransfer:
		return "The track file could not be transferred"
	case KindCanceled:
		return "The operation was canceled"
	default:
		return "An unexpected error occurred"
	}
}

// withFlawP appends p to the flaw carried by err. Sentinels joined with the
// flaw are kept.
func withFlawP(err error, p flaw.P) error {
	if errutil.IsFlaw(err) {
		must.BeFlaw(err).Append(p)
	}
	return err
}

// classify is the common tail of every request error switch.
func classify(ctx context.Context, err error, p flaw.P) error {
	switch {
	case errutil.IsContext(ctx):
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	case errutil.IsFlaw(err):
		return withFlawP(err, p)
	default:
		panic(errutil.UnknownError(err))
	}
}
