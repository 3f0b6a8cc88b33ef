package must

import (
	"errors"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/errutil"
)

// BeFlaw returns the flaw carried by err. err may join the flaw with
// sentinel errors. An err without a flaw is a programming error.
func BeFlaw(err error) *flaw.Flaw {
	f := new(flaw.Flaw)
	if !errors.As(err, &f) {
		panic(errutil.UnknownError(err))
	}
	return f
}

// JoinFlaw records next, usually a deferred close failure, on the flaw
// carried by err and returns err with its sentinels intact. A nil err
// yields next.
func JoinFlaw(err, next error) error {
	if nil == err {
		return next
	}
	BeFlaw(err).Join(next)
	return err
}
