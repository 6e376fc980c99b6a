// Package errors provides structured error types for the JIT registry.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries an optional source line, the offending
// value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLink, errors.KindMissingImport).
//		Line(4).
//		Value("$Math.cbrt").
//		Detail("not provided by the runtime").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Syntax(line, "expected %v", token.LParen)
//	err := errors.Compilation(handle, cause)
//
// Every failed bind is reported as a compilation error; match it with
//
//	errors.Is(err, errors.ErrCompilation)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
