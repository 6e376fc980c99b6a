package linker

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/wat"
)

// FuncDef defines a host function
type FuncDef struct {
	Name        string
	Handler     api.GoModuleFunc
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// HostModule is a named set of host functions visible to compiled code as
// $<Module>.<func>.
type HostModule struct {
	Name  string
	Funcs []FuncDef
}

// Func adds a function to the module.
func (m *HostModule) Func(name string, fn api.GoModuleFunc, params, results []api.ValueType) *HostModule {
	m.Funcs = append(m.Funcs, FuncDef{
		Name:        name,
		Handler:     fn,
		ParamTypes:  params,
		ResultTypes: results,
	})
	return m
}

// Build instantiates the host module into the wazero runtime.
func (m *HostModule) Build(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	if rt.Module(m.Name) != nil {
		return nil, errors.Instantiation(m.Name, fmt.Errorf("module name %q already in use", m.Name))
	}

	builder := rt.NewHostModuleBuilder(m.Name)
	for _, f := range m.Funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.Handler, f.ParamTypes, f.ResultTypes).
			WithName(f.Name).
			Export(f.Name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Instantiation(m.Name, err)
	}
	return mod, nil
}

// declare registers the module's functions in a linking environment.
func (m *HostModule) declare(env *wat.Env) {
	for _, f := range m.Funcs {
		env.Funcs["$"+m.Name+"."+f.Name] = wat.FuncImport{
			Module:  m.Name,
			Name:    f.Name,
			Params:  valTypes(f.ParamTypes),
			Results: valTypes(f.ResultTypes),
		}
	}
}

// valTypes relies on api.ValueType using the binary encoding of value types.
func valTypes(in []api.ValueType) []wat.ValType {
	out := make([]wat.ValType, len(in))
	for i, t := range in {
		out[i] = wat.ValType(t)
	}
	return out
}
