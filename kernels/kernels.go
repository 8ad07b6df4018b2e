// Package kernels provides the minimal built-in operator nodes the
// engine's own scenarios exercise: a literal Array source, elementwise
// Sum/Product, WeightedSum, and ViewConcat. Each constructor wires a
// TypeFunc built from package typefn's helper vocabulary and a Kernel
// implementing the actual arithmetic, following the node-authoring
// contract of §4.2.
package kernels

import (
	"fmt"

	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/descriptor"
	"github.com/dagops/dflow/typefn"
)

// NewArray constructs a source node with no inputs and a single output
// holding a copy of values. The output's shape/dtype is fixed at
// construction (an Array never resizes itself during a type pass); later
// mutation goes through Output.Set (§4.5 "Setting a source buffer").
func NewArray(g *core.Graph, name string, values []float64, opts ...core.NodeOption) (*core.Node, error) {
	n := core.NewNode(g, name, opts...)
	out, err := n.AddOutput("output", true, true, false)
	if err != nil {
		return nil, err
	}
	shape := []int{len(values)}
	n.SetTypeFunc(func(n *core.Node) error {
		out.Desc().SetDtype(descriptor.F64)
		out.Desc().SetShape(shape)
		return nil
	})
	n.SetKernel("default", func(n *core.Node) error { return nil })
	n.SetPostAllocate(func(n *core.Node) error { return out.Set(values) })
	return n, nil
}

// NewSum constructs a node whose single output is the elementwise sum of
// n positional inputs, all of identical shape/dtype.
func NewSum(g *core.Graph, name string, n int, opts ...core.NodeOption) (*core.Node, error) {
	node := core.NewNode(g, name, opts...)
	for i := 0; i < n; i++ {
		if _, err := node.AddInput(fmt.Sprintf("input_%d", i), true, false, false); err != nil {
			return nil, err
		}
	}
	out, err := node.AddOutput("output", true, true, false)
	if err != nil {
		return nil, err
	}
	node.SetTypeFunc(func(node *core.Node) error {
		if err := typefn.CheckNodeHasInputs(node); err != nil {
			return err
		}
		if err := typefn.CheckInputsEquivalence(node, nil, typefn.EquivalenceOptions{CheckShape: true, CheckDtype: true}); err != nil {
			return err
		}
		return typefn.CopyFromInputsToOutputs(node, typefn.CopyOptions{})
	})
	node.SetKernel("default", func(node *core.Node) error {
		ins := node.Inputs().Iter(false)
		dst, err := out.Data()
		if err != nil {
			return err
		}
		for i := range dst {
			dst[i] = 0
		}
		for _, in := range ins {
			data, err := in.Data()
			if err != nil {
				return err
			}
			for i, v := range data {
				dst[i] += v
			}
		}
		return nil
	})
	return node, nil
}

// NewProduct constructs a node whose single output is the elementwise
// product of n positional inputs, all of identical shape/dtype.
func NewProduct(g *core.Graph, name string, n int, opts ...core.NodeOption) (*core.Node, error) {
	node := core.NewNode(g, name, opts...)
	for i := 0; i < n; i++ {
		if _, err := node.AddInput(fmt.Sprintf("input_%d", i), true, false, false); err != nil {
			return nil, err
		}
	}
	out, err := node.AddOutput("output", true, true, false)
	if err != nil {
		return nil, err
	}
	node.SetTypeFunc(func(node *core.Node) error {
		if err := typefn.CheckNodeHasInputs(node); err != nil {
			return err
		}
		if err := typefn.CheckInputsEquivalence(node, nil, typefn.EquivalenceOptions{CheckShape: true, CheckDtype: true}); err != nil {
			return err
		}
		return typefn.CopyFromInputsToOutputs(node, typefn.CopyOptions{})
	})
	node.SetKernel("default", func(node *core.Node) error {
		ins := node.Inputs().Iter(false)
		dst, err := out.Data()
		if err != nil {
			return err
		}
		for i := range dst {
			dst[i] = 1
		}
		for _, in := range ins {
			data, err := in.Data()
			if err != nil {
				return err
			}
			for i, v := range data {
				dst[i] *= v
			}
		}
		return nil
	})
	return node, nil
}

// NewWeightedSum constructs a node with nInputs positional inputs plus a
// keyword "weight" input holding a length-nInputs vector; its single
// output is sum_k weight[k] * input_k, elementwise (scenario S2).
func NewWeightedSum(g *core.Graph, name string, nInputs int, opts ...core.NodeOption) (*core.Node, error) {
	node := core.NewNode(g, name, append(opts, core.WithAllowedKeywordInputs("weight"))...)
	for i := 0; i < nInputs; i++ {
		if _, err := node.AddInput(fmt.Sprintf("input_%d", i), true, false, false); err != nil {
			return nil, err
		}
	}
	if _, err := node.AddInput("weight", false, true, false); err != nil {
		return nil, err
	}
	out, err := node.AddOutput("output", true, true, false)
	if err != nil {
		return nil, err
	}
	node.SetTypeFunc(func(node *core.Node) error {
		weight, err := node.Inputs().ByNames([]string{"weight"})
		if err != nil {
			return err
		}
		wd := weight[0].ParentOutput()
		if wd == nil || !wd.Desc().Resolved() {
			return fmt.Errorf("weighted_sum: weight input unresolved: %w", core.ErrTypeFunction)
		}
		if wd.Desc().Dim() != 1 || wd.Desc().Shape()[0] != nInputs {
			return fmt.Errorf("weighted_sum: weight must be a length-%d vector: %w", nInputs, core.ErrTypeFunction)
		}
		if err := typefn.CheckInputsEquivalence(node, nil, typefn.EquivalenceOptions{CheckShape: true, CheckDtype: true}); err != nil {
			return err
		}
		first, _ := node.Inputs().At(0)
		out.Desc().SetDtype(first.ParentOutput().Desc().Dtype())
		out.Desc().SetShape(first.ParentOutput().Desc().Shape())
		return nil
	})
	node.SetKernel("default", func(node *core.Node) error {
		weightIn, _ := node.Inputs().ByNames([]string{"weight"})
		w, err := weightIn[0].Data()
		if err != nil {
			return err
		}
		dst, err := out.Data()
		if err != nil {
			return err
		}
		for i := range dst {
			dst[i] = 0
		}
		for k := 0; k < nInputs; k++ {
			in, err := node.Inputs().At(k)
			if err != nil {
				return err
			}
			data, err := in.Data()
			if err != nil {
				return err
			}
			for i, v := range data {
				dst[i] += w[k] * v
			}
		}
		return nil
	})
	return node, nil
}

// NewViewConcat constructs a node with a single output and
// strategy.ViewConcat as its InputStrategy (set by the caller): every
// input added afterwards shares that one output. Rather than copying
// each input's data into the output on every touch, its PostAllocate
// hook aliases each upstream output's buffer directly into the
// corresponding sub-range of this node's own output buffer
// (Output.AliasInto), so the output stands as a standing concatenation
// (§4.7, scenario S3) with no recomputation required on read: a mutation
// of an upstream Array is already sitting in the right slot of this
// output's buffer by the time anything touches this node.
func NewViewConcat(g *core.Graph, name string, opts ...core.NodeOption) (*core.Node, error) {
	node := core.NewNode(g, name, opts...)
	out, err := node.AddOutput("output", true, true, false)
	if err != nil {
		return nil, err
	}
	node.SetTypeFunc(func(node *core.Node) error {
		if err := typefn.CheckNodeHasInputs(node); err != nil {
			return err
		}
		total := 0
		var dt descriptor.DType
		for _, in := range node.Inputs().Iter(false) {
			pd := in.ParentOutput()
			if pd == nil || !pd.Desc().Resolved() {
				return fmt.Errorf("view_concat: input %q unresolved: %w", in.Name(), core.ErrTypeFunction)
			}
			if pd.Desc().Dim() != 1 {
				return fmt.Errorf("view_concat: input %q must be rank 1: %w", in.Name(), core.ErrTypeFunction)
			}
			total += pd.Desc().Size()
			dt = pd.Desc().Dtype()
		}
		out.Desc().SetDtype(dt)
		out.Desc().SetShape([]int{total})
		return nil
	})
	node.SetPostAllocate(func(node *core.Node) error {
		offset := 0
		for _, in := range node.Inputs().Iter(false) {
			parent := in.ParentOutput()
			if parent == nil {
				return fmt.Errorf("view_concat: input %q not connected: %w", in.Name(), core.ErrAllocation)
			}
			if err := parent.AliasInto(out, offset); err != nil {
				return err
			}
			offset += parent.Desc().Size()
		}
		return nil
	})
	node.SetKernel("default", func(node *core.Node) error {
		// Every upstream output already aliases its slot in out's buffer
		// (wired above in PostAllocate), so there is nothing left to do
		// here: touching this node only needs to touch its parents, not
		// recompute anything of its own.
		return nil
	})
	return node, nil
}
