package errutil

import (
	"fmt"

	"github.com/xeptore/flaw/v8"
)

type ErrInfo struct {
	Message    string
	TypeName   string
	SyntaxRepr string
	Children   []ErrInfo
}

func (e ErrInfo) FlawP() flaw.P {
	var children []flaw.P
	if len(e.Children) > 0 {
		children = make([]flaw.P, 0, len(e.Children))
		for _, child := range e.Children {
			children = append(children, child.FlawP())
		}
	}

	return flaw.P{
		"message":     e.Message,
		"type_name":   e.TypeName,
		"syntax_repr": e.SyntaxRepr,
		"children":    children,
	}
}

func Tree(err error) ErrInfo {
	if err == nil {
		panic("nil error")
	}

	info := ErrInfo{
		Message:    err.Error(),
		TypeName:   fmt.Sprintf("%T", err),
		SyntaxRepr: fmt.Sprintf("%+#v", err),
		Children:   nil,
	}

	//nolint:errorlint
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		if inner := x.Unwrap(); nil != inner {
			info.Children = []ErrInfo{Tree(inner)}
		}
	case interface{ Unwrap() []error }:
		errs := x.Unwrap()
		info.Children = make([]ErrInfo, 0, len(errs))
		for _, inner := range errs {
			info.Children = append(info.Children, Tree(inner))
		}
	}
	return info
}

// UnknownError describes an error that reached a classification switch with
// no branch for it. It is meant to be panicked with.
func UnknownError(err error) string {
	if nil == err {
		return "unknown nil error received"
	}
	return fmt.Sprintf("unknown error of type %T received: %v (chain depth %d)", err, err, Tree(err).depth())
}

func (e ErrInfo) depth() int {
	d := 0
	for _, child := range e.Children {
		d = max(d, child.depth())
	}
	return d + 1
}
