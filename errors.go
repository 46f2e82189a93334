package flowcompose

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by errors.Is against the typed errors below.
var (
	ErrComposition    = errors.New("composition error")
	ErrResolution     = errors.New("resolution error")
	ErrTypeConstraint = errors.New("type constraint error")
	ErrUncacheable    = errors.New("uncacheable arguments")
)

// CompositionError is returned while building a flow or flow function:
// parameter ordering violations, duplicate names, configuration collisions.
type CompositionError struct {
	Owner  string
	Reason string
}

func (e *CompositionError) Error() string {
	if e.Owner == "" {
		return "composition error: " + e.Reason
	}
	return fmt.Sprintf("composition error in `%s`: %s", e.Owner, e.Reason)
}

func (e *CompositionError) Is(target error) bool {
	return target == ErrComposition
}

// ResolutionError is returned per call when slots or parameters stay
// unresolved. Missing always lists every name, never just the first one.
type ResolutionError struct {
	Owner   string
	Flow    bool
	What    string
	Missing []string
	Cause   error
}

func (e *ResolutionError) Error() string {
	what := e.What
	if what == "" {
		what = "flow function"
	}

	quoted := make([]string, len(e.Missing))
	for i, name := range e.Missing {
		quoted[i] = "`" + name + "`"
	}

	verb := "is"
	if len(e.Missing) != 1 {
		what += "s"
		verb = "are"
	}

	owner := fmt.Sprintf("`%s` flow function", e.Owner)
	if e.Flow {
		owner = fmt.Sprintf("the flow `%s`", e.Owner)
	}

	msg := fmt.Sprintf("%s %s %s required by %s but %s missing in the flow context",
		strings.Join(quoted, ", "), what, verb, owner, verb)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

// TypeConstraintError reports an unset Argument, a value of the wrong type,
// or a call with the wrong number of plain arguments.
type TypeConstraintError struct {
	Name     string
	Expected string
	Got      string
	Unset    bool
	Reason   string
}

func (e *TypeConstraintError) Error() string {
	switch {
	case e.Unset:
		return fmt.Sprintf("argument `%s` of type %s has no value set", e.Name, e.Expected)
	case e.Reason != "":
		return fmt.Sprintf("`%s`: %s", e.Name, e.Reason)
	default:
		return fmt.Sprintf("`%s` expects %s, got %s", e.Name, e.Expected, e.Got)
	}
}

func (e *TypeConstraintError) Is(target error) bool {
	return target == ErrTypeConstraint
}

// UncacheableError is returned when a cached flow function is called with an
// argument that cannot take part in an equality-based cache key.
type UncacheableError struct {
	Name     string
	Position int
	Type     string
}

func (e *UncacheableError) Error() string {
	return fmt.Sprintf("cached flow function `%s`: argument %d of type %s cannot form a stable cache key",
		e.Name, e.Position, e.Type)
}

func (e *UncacheableError) Is(target error) bool {
	return target == ErrUncacheable
}

// PanicError wraps a value recovered from a panicking flow body.
type PanicError struct {
	Flow       string
	Recovered  any
	StackTrace []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in flow `%s`: %v", e.Flow, e.Recovered)
}

func compositionErrorf(owner, format string, args ...any) *CompositionError {
	return &CompositionError{Owner: owner, Reason: fmt.Sprintf(format, args...)}
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
