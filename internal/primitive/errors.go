package primitive

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration error kinds. A ConfigurationError always unwraps to one of these.
var (
	ErrDuplicateBackend      = errors.New("duplicate backend")
	ErrCategoryMismatch      = errors.New("category mismatch")
	ErrMalformedVector       = errors.New("malformed test vector")
	ErrMissingReference      = errors.New("missing reference backend")
	ErrUnknownPrimitive      = errors.New("unknown primitive")
	ErrInvalidClassification = errors.New("invalid secret classification")
	ErrInvalidBackend        = errors.New("invalid backend")
)

// Execution fault causes.
var (
	ErrCaseTimeout = errors.New("test case timed out")
	ErrPanic       = errors.New("backend panicked")
)

// ConfigurationError means the harness itself is misconfigured. It aborts a
// run before any backend executes.
type ConfigurationError struct {
	Kind      error
	Primitive string
	Backend   string
	Vector    string
	Detail    string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error: ")
	b.WriteString(e.Kind.Error())

	var subject []string
	if e.Primitive != "" {
		if e.Backend != "" {
			subject = append(subject, e.Primitive+"/"+e.Backend)
		} else {
			subject = append(subject, e.Primitive)
		}
	}
	if e.Vector != "" {
		subject = append(subject, "vector "+e.Vector)
	}
	if len(subject) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(subject, ", "))
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Kind
}

// NewConfigError builds a ConfigurationError with a formatted detail.
func NewConfigError(kind error, primitive, backend, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Kind:      kind,
		Primitive: primitive,
		Backend:   backend,
		Detail:    fmt.Sprintf(format, args...),
	}
}

// IsConfigurationError reports whether err contains a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ExecutionFault means a backend operation could not complete.
// It is recorded against the case and never aborts a run.
type ExecutionFault struct {
	Op  string
	Err error
}

func (e *ExecutionFault) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExecutionFault) Unwrap() error {
	return e.Err
}

// ConfigErrors joins several configuration errors so that every problem is
// reported in one abort.
type ConfigErrors []*ConfigurationError

func (es ConfigErrors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	lines := make([]string, len(es))
	for i, e := range es {
		lines[i] = "  - " + e.Error()
	}
	return fmt.Sprintf("%d configuration errors:\n%s", len(es), strings.Join(lines, "\n"))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (es ConfigErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// Err returns nil when es is empty.
func (es ConfigErrors) Err() error {
	if len(es) == 0 {
		return nil
	}
	return es
}
