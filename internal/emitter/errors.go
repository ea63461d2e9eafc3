package emitter

import (
	"fmt"
	"strings"
)

// UserError reports a malformed construct in the source document. It
// carries a human-readable message and aborts the current build.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Errorf builds a UserError from a format string.
func Errorf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// ScriptFailure is one underlying failure from the embedded
// expression engine, with the source that produced it.
type ScriptFailure struct {
	Message string
	Source  string
}

// ScriptError aggregates one or more expression-engine failures.
type ScriptError struct {
	Failures []ScriptFailure
}

func (e *ScriptError) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("script error: %s in [%s]", f.Message, f.Source)
	}
	var sb strings.Builder
	sb.WriteString("script errors:")
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "\n  %s in [%s]", f.Message, f.Source)
	}
	return sb.String()
}

// NewScriptError wraps a single engine failure.
func NewScriptError(err error, source string) error {
	return &ScriptError{Failures: []ScriptFailure{{Message: err.Error(), Source: source}}}
}
