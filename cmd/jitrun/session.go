package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	wasmjit "github.com/wippyai/wasm-jit"
	"github.com/wippyai/wasm-jit/runtime"
)

// function is a source file and the handle it is served under. The handle
// is reserved up front so file order gives handle order, and stays the same
// across reloads.
type function struct {
	err    error
	file   string
	handle wasmjit.Handle
}

type session struct {
	rt    *runtime.Runtime
	funcs []*function
}

func newSession(ctx context.Context, cfg *runtime.Config, files []string) (*session, error) {
	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	s := &session{rt: rt}
	for _, file := range files {
		s.funcs = append(s.funcs, &function{file: file, handle: rt.Reserve()})
	}
	return s, nil
}

// load compiles the i-th file into its handle.
func (s *session) load(ctx context.Context, i int) error {
	f := s.funcs[i]
	src, err := os.ReadFile(f.file)
	if err != nil {
		f.err = err
		return err
	}
	_, f.err = s.rt.Bind(ctx, f.handle, src)
	return f.err
}

// reload compiles the i-th file into a fresh handle and, on success, swaps
// it in under the file's handle. A failed compile keeps the running code.
func (s *session) reload(ctx context.Context, i int) error {
	f := s.funcs[i]
	src, err := os.ReadFile(f.file)
	if err != nil {
		f.err = err
		return err
	}
	fresh, err := s.rt.Compile(ctx, src)
	if err != nil {
		f.err = err
		return err
	}
	s.rt.Replace(f.handle, fresh)
	s.rt.Free(fresh)
	f.err = nil
	return nil
}

func (s *session) index(file string) int {
	for i, f := range s.funcs {
		if filepath.Clean(f.file) == file {
			return i
		}
	}
	return -1
}

func (s *session) printGuards() {
	n := s.rt.Guards().Len()
	if n == 0 {
		return
	}
	fmt.Printf("guards triggered: %d\n", n)
	for _, f := range s.funcs {
		if s.rt.WasTriggered(f.handle) {
			fmt.Printf("  %s [%d]\n", f.file, f.handle)
		}
	}
}

func (s *session) close(ctx context.Context) error {
	return s.rt.Close(ctx)
}
