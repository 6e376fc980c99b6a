package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse    Phase = "parse"    // WAT tokenizing and parsing
	PhaseCompile  Phase = "compile"  // source to artifact
	PhaseLink     Phase = "link"     // runtime facilities and imports
	PhaseRuntime  Phase = "runtime"  // artifact execution
	PhaseRegistry Phase = "registry" // function table bookkeeping
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData    Kind = "invalid_data"
	KindInvalidInput   Kind = "invalid_input"
	KindUnsupported    Kind = "unsupported"
	KindNotFound       Kind = "not_found"
	KindMissingImport  Kind = "missing_import"
	KindSignature      Kind = "signature_mismatch"
	KindInstantiation  Kind = "instantiation"
	KindCompilation    Kind = "compilation"
	KindInvalidHandle  Kind = "invalid_handle"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindNotInitialized Kind = "not_initialized"
	KindTrap           Kind = "trap"
	KindInvalidConfig  Kind = "invalid_config"
)

// ErrCompilation matches every CompilationError via errors.Is.
var ErrCompilation = &Error{Phase: PhaseCompile, Kind: KindCompilation}

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Line   int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Line sets the source line the error refers to
func (b *Builder) Line(line int) *Builder {
	b.err.Line = line
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Syntax creates a parse error pointing at a source line
func Syntax(line int, format string, args ...any) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Line:   line,
		Detail: fmt.Sprintf(format, args...),
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// Compilation wraps the cause of a failed bind. The result matches
// ErrCompilation.
func Compilation(handle uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindCompilation,
		Detail: fmt.Sprintf("compile function %d", handle),
		Value:  handle,
		Cause:  cause,
	}
}

// MissingImport reports a reference to a name the linking environment
// does not provide.
func MissingImport(line int, name string) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindMissingImport,
		Line:   line,
		Detail: fmt.Sprintf("%s is not provided by the runtime", name),
		Value:  name,
	}
}

// Signature creates a signature mismatch error
func Signature(phase Phase, name, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSignature,
		Detail: fmt.Sprintf("%s: want %s, got %s", name, want, got),
	}
}

// InvalidHandle creates an error for a handle outside the allocated range
func InvalidHandle(handle uint32) *Error {
	return &Error{
		Phase:  PhaseRegistry,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("handle %d was never reserved", handle),
		Value:  handle,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error for memory access
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access [%d, %d) out of bounds (size %d)", offset, uint64(offset)+uint64(length), size),
		Value:  offset,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// NotInitialized creates a not-initialized error for missing runtime state
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidConfig creates a configuration validation error
func InvalidConfig(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Instantiation creates an instantiation error
func Instantiation(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindInstantiation,
		Detail: "instantiate " + what,
		Cause:  cause,
	}
}

// Trap wraps a failure raised while an artifact was executing
func Trap(handle uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTrap,
		Detail: fmt.Sprintf("function %d trapped", handle),
		Value:  handle,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
