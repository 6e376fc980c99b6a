package engine

import "context"

// Artifact is a compiled function taking two i32 arguments and returning an
// i32. Call may return an error when execution traps.
type Artifact interface {
	Call(ctx context.Context, a, b int32) (int32, error)
	Close(ctx context.Context) error
}

// Compiler turns source into an Artifact.
type Compiler interface {
	Compile(ctx context.Context, source []byte) (Artifact, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, source []byte) (Artifact, error)

func (f CompilerFunc) Compile(ctx context.Context, source []byte) (Artifact, error) {
	return f(ctx, source)
}

// Func is an Artifact backed by a Go function. It never traps.
type Func func(a, b int32) int32

func (f Func) Call(_ context.Context, a, b int32) (int32, error) {
	return f(a, b), nil
}

func (f Func) Close(context.Context) error {
	return nil
}
