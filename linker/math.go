package linker

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// MathModule is the host module name of the numeric library.
const MathModule = "Math"

var (
	f64  = []api.ValueType{api.ValueTypeF64}
	f64s = []api.ValueType{api.ValueTypeF64, api.ValueTypeF64}
	i32  = []api.ValueType{api.ValueTypeI32}
	i32s = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
)

func unaryF64(f func(float64) float64) api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, stack []uint64) {
		stack[0] = api.EncodeF64(f(api.DecodeF64(stack[0])))
	}
}

func binaryF64(f func(float64, float64) float64) api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, stack []uint64) {
		stack[0] = api.EncodeF64(f(api.DecodeF64(stack[0]), api.DecodeF64(stack[1])))
	}
}

// imul is 32-bit multiplication with wraparound.
func imul(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(api.DecodeI32(stack[0]) * api.DecodeI32(stack[1]))
}

// mathModule provides the numeric functions generated code may call.
func mathModule() *HostModule {
	m := &HostModule{Name: MathModule}
	for _, u := range []struct {
		name string
		fn   func(float64) float64
	}{
		{"sin", math.Sin},
		{"cos", math.Cos},
		{"tan", math.Tan},
		{"asin", math.Asin},
		{"acos", math.Acos},
		{"atan", math.Atan},
		{"exp", math.Exp},
		{"log", math.Log},
	} {
		m.Func(u.name, unaryF64(u.fn), f64, f64)
	}
	m.Func("pow", binaryF64(math.Pow), f64s, f64)
	m.Func("atan2", binaryF64(math.Atan2), f64s, f64)
	m.Func("imul", api.GoModuleFunc(imul), i32s, i32)
	return m
}
