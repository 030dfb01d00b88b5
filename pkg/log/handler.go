package log

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// appendError attaches err and the stacktrace recorded by cockroachdb/errors.
func appendError(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Str(ErrAttrKey, err.Error())
	if st := extractStacktrace(err); st != "" {
		e = e.Str(StacktraceAttrKey, st)
	}
	if m, ok := errors.UnwrapAll(err).(zerolog.LogObjectMarshaler); ok {
		e = e.EmbedObject(m)
	}
	return e
}

// warnFunc routes errors.Warn to a zerolog logger. Warning types that
// implement zerolog.LogObjectMarshaler are embedded as structured fields.
func warnFunc(zl zerolog.Logger) func(error) {
	return func(w error) {
		e := zl.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			e = e.EmbedObject(m)
		}
		e.Msg(w.Error())
	}
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
