package log

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"
)

// Flaw attaches err to the event. Flaws are expanded into their records,
// joined errors and stack traces; any other error is attached as is.
func Flaw(err error) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		flawErr := new(flaw.Flaw)
		if !errors.As(err, &flawErr) {
			e.Err(err)
			return
		}

		e.
			Dict("error", errorDict(flawErr.Inner, flawErr.InnerType, flawErr.InnerSyntaxRepr)).
			Array("records", records(flawErr)).
			Array("joined_errors", joinedErrors(flawErr)).
			Array("stack_traces", stackTraces(flawErr))
	}
}

func errorDict(msg, typeName, repr string) *zerolog.Event {
	return zerolog.
		Dict().
		Str("message", msg).
		Str("type_name", typeName).
		Str("syntax_representation", repr)
}

func records(f *flaw.Flaw) *zerolog.Array {
	arr := zerolog.Arr()
	for _, v := range f.Records {
		b, err := json.MarshalWithOption(v.Payload, json.UnorderedMap(), json.DisableNormalizeUTF8(), json.DisableHTMLEscape())
		if nil != err {
			arr.Dict(
				zerolog.
					Dict().
					Str("function", v.Function).
					Dict("payload", zerolog.Dict().Str("error", err.Error()).Str("raw", fmt.Sprintf("%#+v", v.Payload))),
			)
			continue
		}
		arr.Dict(zerolog.Dict().Str("function", v.Function).RawJSON("payload", b))
	}
	return arr
}

func joinedErrors(f *flaw.Flaw) *zerolog.Array {
	arr := zerolog.Arr()
	for _, v := range f.JoinedErrors {
		d := zerolog.Dict().Dict("error", errorDict(v.Message, v.TypeName, v.SyntaxRepr))
		if st := v.CallerStackTrace; nil != st {
			d.Dict(
				"caller_stack_trace",
				zerolog.
					Dict().
					Str("location", fmt.Sprintf("%s:%d", st.File, st.Line)).
					Str("function", st.Function),
			)
		} else {
			d.Stringer("caller_stack_trace", nil)
		}
		arr.Dict(d)
	}
	return arr
}

func stackTraces(f *flaw.Flaw) *zerolog.Array {
	arr := zerolog.Arr()
	for _, v := range f.StackTrace {
		arr.Dict(zerolog.Dict().Str("location", fmt.Sprintf("%s:%d", v.File, v.Line)).Str("function", v.Function))
	}
	return arr
}
