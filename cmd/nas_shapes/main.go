// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// nas_shapes loads a model IR (JSON), propagates the given input shapes through it, and reports the shapes
// of every node, including the nodes of nested cells and every candidate of choice nodes.
//
// Usage:
//
//	nas_shapes -input=1,3,224,224 [-input=...] [-parallelism=N] [-dump=annotated.json] model.json
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/JiahangXu/nni/pkg/ir"
	"github.com/JiahangXu/nni/pkg/ops"
	"github.com/JiahangXu/nni/pkg/propagate"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagInputs      shapesFlag
	flagParallelism = flag.Int("parallelism", runtime.NumCPU(),
		"Number of workers used to propagate the candidates of choice nodes: 0 for sequential, -1 for unlimited.")
	flagValidate = flag.Bool("validate", true, "Validate the model structure before propagation.")
	flagDump     = flag.String("dump", "", "If set, save the annotated model IR to this file.")
	flagHidden   = flag.Bool("hidden", false, "Also list the graphs' hidden input and output nodes.")
	flagOps      = flag.Bool("ops", false, "List the registered operation types and exit.")
)

func init() {
	flag.Var(&flagInputs, "input", "Shape of one input of the model, comma separated, e.g. \"1,3,224,224\". "+
		"Use \"?\" or -1 for an unknown axis. Repeat the flag once per model input.")
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagOps {
		listOps(ops.Default())
		return
	}
	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one model IR file, got %d arguments. See 'nas_shapes -help'.", len(args))
		os.Exit(1)
	}
	if len(flagInputs) == 0 {
		klog.Errorf("Missing -input shape(s). See 'nas_shapes -help'.")
		os.Exit(1)
	}

	model := must.M1(ir.Load(args[0]))
	err := propagate.New(ops.Default()).
		WithParallelism(*flagParallelism).
		WithValidation(*flagValidate).
		Propagate(model, flagInputs...)
	if err != nil {
		klog.Errorf("Shape propagation of %q failed: %+v", args[0], err)
	}
	fmt.Println(titleStyle.Render("Summary"))
	fmt.Println(summaryTable(args[0], model, flagInputs, err).Render())
	fmt.Println(titleStyle.Render("Nodes"))
	fmt.Println(nodesTable(model, *flagHidden).Render())

	if *flagDump != "" {
		must.M(ir.Save(model, *flagDump))
		klog.V(1).Infof("Annotated model saved to %q", *flagDump)
	}
	if err != nil {
		os.Exit(1)
	}
}

// shapesFlag collects repeated -input flags.
type shapesFlag []shapes.Shape

// String implements flag.Value.
func (f *shapesFlag) String() string {
	if f == nil {
		return ""
	}
	return shapes.List(*f).String()
}

// Set implements flag.Value.
func (f *shapesFlag) Set(value string) error {
	shape, err := parseShape(value)
	if err != nil {
		return err
	}
	*f = append(*f, shape)
	return nil
}

// parseShape parses comma separated dimensions, where "?" or -1 is an unknown axis.
// An empty string is a scalar.
func parseShape(value string) (shapes.Shape, error) {
	value = strings.Trim(strings.TrimSpace(value), "[]")
	if value == "" {
		return shapes.Make(), nil
	}
	parts := strings.Split(value, ",")
	dims := make([]int, len(parts))
	for ii, part := range parts {
		part = strings.TrimSpace(part)
		if part == "?" {
			dims[ii] = shapes.UnknownDim
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil {
			return shapes.Shape{}, errors.Wrapf(err, "invalid dimension #%d %q in shape %q", ii, part, value)
		}
		if dim < shapes.UnknownDim {
			return shapes.Shape{}, errors.Errorf("invalid dimension #%d %d in shape %q", ii, dim, value)
		}
		dims[ii] = dim
	}
	return shapes.Make(dims...), nil
}

func listOps(registry *ops.Registry) {
	fmt.Println(titleStyle.Render("Registered operations"))
	table := newTable([]string{"Type", "Family", "Inputs", "Required parameters"})
	for _, typeId := range registry.Types() {
		def, _ := registry.Lookup(typeId)
		var required []string
		for _, spec := range def.Params {
			if spec.Required {
				required = append(required, spec.Name)
			}
		}
		inputs := strconv.Itoa(def.MinInputs)
		if def.MaxInputs == ops.Unbounded {
			inputs += "+"
		} else if def.MaxInputs != def.MinInputs {
			inputs = fmt.Sprintf("%d-%d", def.MinInputs, def.MaxInputs)
		}
		table.Row(rowPlain, typeId, string(def.Family), inputs, strings.Join(required, ", "))
	}
	fmt.Println(table.Table.Render())
}
