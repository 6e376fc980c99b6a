package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseParse,
				Kind:   KindInvalidData,
				Line:   3,
				Detail: "unknown instruction: i32.bogus",
			},
			contains: []string{"[parse]", "invalid_data", "line 3", "i32.bogus"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRegistry,
				Kind:  KindInvalidHandle,
			},
			contains: []string{"[registry]", "invalid_handle"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLink,
				Kind:   KindInstantiation,
				Detail: "instantiate env",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[link]", "instantiation", "instantiate env", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Compilation(4, cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestError_IsCompilation(t *testing.T) {
	parseErr := Syntax(2, "expected %s", "'('")
	err := Compilation(1, parseErr)

	if !errors.Is(err, ErrCompilation) {
		t.Fatal("compilation error should match ErrCompilation")
	}
	if errors.Is(parseErr, ErrCompilation) {
		t.Fatal("bare parse error should not match ErrCompilation")
	}

	var target *Error
	if !errors.As(err, &target) {
		t.Fatal("errors.As should extract *Error")
	}
	if target.Value != uint32(1) {
		t.Errorf("Value = %v, want 1", target.Value)
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseLink, KindMissingImport).
		Line(7).
		Value("$Math.cbrt").
		Detail("%s is not provided", "$Math.cbrt").
		Cause(errors.New("lookup")).
		Build()

	if err.Phase != PhaseLink || err.Kind != KindMissingImport {
		t.Errorf("got %s/%s", err.Phase, err.Kind)
	}
	if err.Line != 7 {
		t.Errorf("Line = %d, want 7", err.Line)
	}
	if err.Detail != "$Math.cbrt is not provided" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Cause == nil {
		t.Error("Cause not set")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{ParseFailed("WAT", errors.New("x")), PhaseParse, KindInvalidData},
		{MissingImport(1, "$nope"), PhaseLink, KindMissingImport},
		{Signature(PhaseCompile, "run", "(i32, i32) -> i32", "() -> ()"), PhaseCompile, KindSignature},
		{InvalidHandle(99), PhaseRegistry, KindInvalidHandle},
		{Unsupported(PhaseParse, "simd"), PhaseParse, KindUnsupported},
		{OutOfBounds(PhaseRuntime, 65530, 8, 65536), PhaseRuntime, KindOutOfBounds},
		{NotFound(PhaseCompile, "export", "run"), PhaseCompile, KindNotFound},
		{NotInitialized(PhaseLink, "memory"), PhaseLink, KindNotInitialized},
		{InvalidInput(PhaseCompile, "empty source"), PhaseCompile, KindInvalidInput},
		{InvalidConfig("pages %d", 0), PhaseConfig, KindInvalidConfig},
		{Instantiation("env", errors.New("x")), PhaseLink, KindInstantiation},
		{Trap(3, errors.New("unreachable")), PhaseRuntime, KindTrap},
		{Wrap(PhaseLink, KindInvalidData, errors.New("x"), "ctx"), PhaseLink, KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if tt.err.Phase != tt.phase || tt.err.Kind != tt.kind {
				t.Errorf("got %s/%s, want %s/%s", tt.err.Phase, tt.err.Kind, tt.phase, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestOutOfBounds_NoOverflow(t *testing.T) {
	err := OutOfBounds(PhaseRuntime, 0xFFFFFFFF, 8, 65536)
	if !strings.Contains(err.Error(), "4294967303") {
		t.Errorf("end offset should be computed in 64 bits: %s", err)
	}
}
