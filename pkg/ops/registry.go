// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops is the registry of operation types known to shape propagation.
//
// Each registered operation type (e.g. "__torch__.torch.nn.modules.conv.Conv2d" or "aten::cat") maps to an OpDef:
// its family, its expected arity, the schema of its parameters and its shape Rule -- a pure function that
// computes the output shapes (one per output slot) from the input shapes (one per input slot) and the
// operation parameters.
//
// Default returns the process-wide registry with all the standard operations, built once and read-only
// afterwards. A custom registry can be created with NewRegistry, and extended with Register.
package ops

import (
	"fmt"
	"slices"
	"sync"

	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/JiahangXu/nni/pkg/ir"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Rule computes the output shapes of an operation. It must be pure: the output only depends on the inputs
// and parameters, and neither is modified.
type Rule func(inputs shapes.List, params ir.Parameters) (shapes.List, error)

// Family groups operations that share a shape rule.
type Family string

const (
	FamilyElementwise Family = "elementwise"
	FamilyConvolution Family = "convolution"
	FamilyPooling     Family = "pooling"
	FamilyLinear      Family = "linear"
	FamilyReshape     Family = "reshape"
	FamilyBinary      Family = "binary"
	FamilyConcat      Family = "concat"
	FamilySplit       Family = "split"
)

// Unbounded can be used as OpDef.MaxInputs.
const Unbounded = -1

// ParamSpec describes one parameter of an operation.
type ParamSpec struct {
	Name     string
	Required bool
}

// OpDef is the definition of an operation type.
type OpDef struct {
	Type   string
	Family Family

	// MinInputs and MaxInputs bound the number of input slots. MaxInputs can be Unbounded.
	MinInputs, MaxInputs int

	// Params is the parameter schema: only required parameters are enforced, others are documentation.
	Params []ParamSpec

	Rule Rule
}

// ErrUnregistered is returned (wrapped) when inferring the shape of an operation type not in the registry.
var ErrUnregistered = errors.New("operation type not registered")

// Registry maps operation types to their definitions. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*OpDef
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*OpDef)}
}

// Register a new operation type. It returns an error if the definition is incomplete or the type is
// already registered.
func (r *Registry) Register(def OpDef) error {
	if def.Type == "" {
		return errors.New("Registry.Register(): operation type cannot be empty")
	}
	if def.Rule == nil {
		return errors.Errorf("Registry.Register(%q): missing shape rule", def.Type)
	}
	if def.MinInputs < 0 || (def.MaxInputs != Unbounded && def.MaxInputs < def.MinInputs) {
		return errors.Errorf("Registry.Register(%q): invalid arity [%d, %d]", def.Type, def.MinInputs, def.MaxInputs)
	}
	switch def.Type {
	case ir.TypeCell, ir.TypeChoice, ir.TypeInputs, ir.TypeOutputs:
		return errors.Errorf("Registry.Register(%q): type is reserved by the IR", def.Type)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.defs[def.Type]; found {
		return errors.Errorf("Registry.Register(%q): operation type already registered", def.Type)
	}
	def.Params = slices.Clone(def.Params)
	r.defs[def.Type] = &def
	return nil
}

// MustRegister is like Register, but panics on error.
func (r *Registry) MustRegister(def OpDef) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition of the operation type.
func (r *Registry) Lookup(typeId string) (def *OpDef, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, found = r.defs[typeId]
	return
}

// Types returns the registered operation types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.defs))
	for typeId := range r.defs {
		types = append(types, typeId)
	}
	slices.Sort(types)
	return types
}

// Infer returns the output shapes of an operation of the given type.
//
// It checks the number of inputs and the required parameters before calling the rule, and converts panics
// raised while building shapes into errors. Unregistered types return an error wrapping ErrUnregistered.
func (r *Registry) Infer(typeId string, inputs shapes.List, params ir.Parameters) (outputs shapes.List, err error) {
	def, found := r.Lookup(typeId)
	if !found {
		return nil, errors.WithMessagef(ErrUnregistered, "operation type %q", typeId)
	}
	if len(inputs) < def.MinInputs || (def.MaxInputs != Unbounded && len(inputs) > def.MaxInputs) {
		return nil, errors.Errorf("%s takes %s inputs, got %d", typeId, arityString(def), len(inputs))
	}
	for _, spec := range def.Params {
		if !spec.Required {
			continue
		}
		if value, found := params[spec.Name]; !found || value == nil {
			return nil, errors.Errorf("%s requires parameter %q", typeId, spec.Name)
		}
	}
	var ruleErr error
	err = exceptions.TryCatch[error](func() {
		outputs, ruleErr = def.Rule(inputs, params)
	})
	if err == nil {
		err = ruleErr
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "%s", typeId)
	}
	if len(outputs) == 0 {
		return nil, errors.Errorf("%s: shape rule returned no outputs", typeId)
	}
	return outputs, nil
}

func arityString(def *OpDef) string {
	switch {
	case def.MaxInputs == Unbounded:
		return fmt.Sprintf("at least %d", def.MinInputs)
	case def.MinInputs == def.MaxInputs:
		return fmt.Sprintf("exactly %d", def.MinInputs)
	default:
		return fmt.Sprintf("between %d and %d", def.MinInputs, def.MaxInputs)
	}
}
