package log

import (
	"bytes"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// framesToSkip drops the debug.Stack and deferred recover frames.
const framesToSkip = 9

func Panic(thing any) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		lines := bytes.Split(debug.Stack(), []byte("\n"))
		if len(lines) > framesToSkip {
			lines = lines[framesToSkip:]
		}
		e.Dict(
			"panic",
			zerolog.
				Dict().
				Any("content", thing).
				Bytes("stack_traces", bytes.Join(lines, []byte("\n"))),
		)
	}
}
