// Package typefn provides the standard type-function helper vocabulary
// (§4.2): small, composable validators and DataDescriptor-propagation
// helpers a node's TypeFunc calls during the type-resolution pass. Each
// validator follows the teacher's staged-validator shape (validate,
// prepare, execute, finalize) and wraps core.ErrTypeFunction so failures
// surface through the engine's usual error kind.
package typefn

import (
	"fmt"

	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/descriptor"
)

func fail(n *core.Node, tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// CheckInputsNumber requires exactly n positional inputs.
func CheckInputsNumber(node *core.Node, n int) error {
	got := node.Inputs().LenPos()
	if got != n {
		return fail(node, "CheckInputsNumber", fmt.Errorf("want %d inputs, have %d: %w", n, got, core.ErrTypeFunction))
	}
	return nil
}

// CheckNodeHasInputs requires at least one positional input.
func CheckNodeHasInputs(node *core.Node) error {
	if node.Inputs().LenPos() == 0 {
		return fail(node, "CheckNodeHasInputs", fmt.Errorf("no inputs: %w", core.ErrTypeFunction))
	}
	return nil
}

// CheckDimensionOfInputs requires every positional input's resolved rank
// to equal dim.
func CheckDimensionOfInputs(node *core.Node, dim int) error {
	for _, in := range node.Inputs().Iter(false) {
		dd := inputDD(in)
		if dd == nil || dd.Dim() != dim {
			return fail(node, "CheckDimensionOfInputs", fmt.Errorf("input %q: want rank %d: %w", in.Name(), dim, core.ErrTypeFunction))
		}
	}
	return nil
}

// CheckShapeOfInputs requires every positional input's resolved shape to
// equal shape exactly.
func CheckShapeOfInputs(node *core.Node, shape []int) error {
	for _, in := range node.Inputs().Iter(false) {
		dd := inputDD(in)
		if dd == nil || !sameShape(dd.Shape(), shape) {
			return fail(node, "CheckShapeOfInputs", fmt.Errorf("input %q: shape mismatch: %w", in.Name(), core.ErrTypeFunction))
		}
	}
	return nil
}

// CheckDtypeOfInputs requires every positional input's dtype to equal dt
// exactly.
func CheckDtypeOfInputs(node *core.Node, dt descriptor.DType) error {
	for _, in := range node.Inputs().Iter(false) {
		dd := inputDD(in)
		if dd == nil || dd.Dtype() != dt {
			return fail(node, "CheckDtypeOfInputs", fmt.Errorf("input %q: dtype mismatch: %w", in.Name(), core.ErrTypeFunction))
		}
	}
	return nil
}

// CheckSubtypeOfInputs requires every positional input's dtype to be one
// of the allowed set.
func CheckSubtypeOfInputs(node *core.Node, allowed ...descriptor.DType) error {
	set := make(map[descriptor.DType]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	for _, in := range node.Inputs().Iter(false) {
		dd := inputDD(in)
		if dd == nil || !set[dd.Dtype()] {
			return fail(node, "CheckSubtypeOfInputs", fmt.Errorf("input %q: dtype not in allowed set: %w", in.Name(), core.ErrTypeFunction))
		}
	}
	return nil
}

// EquivalenceOptions configures CheckInputsEquivalence.
type EquivalenceOptions struct {
	CheckShape     bool
	CheckDtype     bool
	Broadcastable  bool // when true, equal-rank shapes match if each dimension is equal or either one is 1
}

// CheckInputsEquivalence requires the named inputs (or every positional
// input when names is empty) to share shape and/or dtype, per opts.
func CheckInputsEquivalence(node *core.Node, names []string, opts EquivalenceOptions) error {
	var ins []*core.Input
	if len(names) == 0 {
		ins = node.Inputs().Iter(false)
	} else {
		found, err := node.Inputs().ByNames(names)
		if err != nil {
			return fail(node, "CheckInputsEquivalence", err)
		}
		ins = found
	}
	if len(ins) == 0 {
		return nil
	}
	ref := inputDD(ins[0])
	if ref == nil {
		return fail(node, "CheckInputsEquivalence", fmt.Errorf("input %q unresolved: %w", ins[0].Name(), core.ErrTypeFunction))
	}
	for _, in := range ins[1:] {
		dd := inputDD(in)
		if dd == nil {
			return fail(node, "CheckInputsEquivalence", fmt.Errorf("input %q unresolved: %w", in.Name(), core.ErrTypeFunction))
		}
		if opts.CheckDtype && dd.Dtype() != ref.Dtype() {
			return fail(node, "CheckInputsEquivalence", fmt.Errorf("input %q: dtype mismatch: %w", in.Name(), core.ErrTypeFunction))
		}
		if opts.CheckShape {
			if opts.Broadcastable {
				if !broadcastCompatible(ref.Shape(), dd.Shape()) {
					return fail(node, "CheckInputsEquivalence", fmt.Errorf("input %q: shape not broadcastable: %w", in.Name(), core.ErrTypeFunction))
				}
			} else if !sameShape(ref.Shape(), dd.Shape()) {
				return fail(node, "CheckInputsEquivalence", fmt.Errorf("input %q: shape mismatch: %w", in.Name(), core.ErrTypeFunction))
			}
		}
	}
	return nil
}

// CheckInputsAreSquareMatrices requires every positional input to be a
// 2-D square array, returning the common side length.
func CheckInputsAreSquareMatrices(node *core.Node) (int, error) {
	side := -1
	for _, in := range node.Inputs().Iter(false) {
		dd := inputDD(in)
		if dd == nil || dd.Dim() != 2 || dd.Shape()[0] != dd.Shape()[1] {
			return 0, fail(node, "CheckInputsAreSquareMatrices", fmt.Errorf("input %q: not a square matrix: %w", in.Name(), core.ErrTypeFunction))
		}
		if side == -1 {
			side = dd.Shape()[0]
		} else if dd.Shape()[0] != side {
			return 0, fail(node, "CheckInputsAreSquareMatrices", fmt.Errorf("input %q: side mismatch: %w", in.Name(), core.ErrTypeFunction))
		}
	}
	return side, nil
}

// CheckInputsAreMatrixMultipliable requires left's columns to equal
// right's rows, returning the result shape [left.rows, right.cols].
func CheckInputsAreMatrixMultipliable(node *core.Node, left, right *core.Input) ([]int, error) {
	ld, rd := inputDD(left), inputDD(right)
	if ld == nil || rd == nil || ld.Dim() != 2 || rd.Dim() != 2 {
		return nil, fail(node, "CheckInputsAreMatrixMultipliable", fmt.Errorf("inputs must be rank 2: %w", core.ErrTypeFunction))
	}
	if ld.Shape()[1] != rd.Shape()[0] {
		return nil, fail(node, "CheckInputsAreMatrixMultipliable", fmt.Errorf("inner dims %d != %d: %w", ld.Shape()[1], rd.Shape()[0], core.ErrTypeFunction))
	}
	return []int{ld.Shape()[0], rd.Shape()[1]}, nil
}

// CheckInputsAreMatricesOrDiagonals requires every positional input to be
// rank 1 (diagonal, implicitly square) or rank 2.
func CheckInputsAreMatricesOrDiagonals(node *core.Node) error {
	for _, in := range node.Inputs().Iter(false) {
		dd := inputDD(in)
		if dd == nil || (dd.Dim() != 1 && dd.Dim() != 2) {
			return fail(node, "CheckInputsAreMatricesOrDiagonals", fmt.Errorf("input %q: want rank 1 or 2: %w", in.Name(), core.ErrTypeFunction))
		}
	}
	return nil
}

// CopyOptions configures CopyFromInputsToOutputs.
type CopyOptions struct {
	Dtype              *descriptor.DType
	Shape              []int
	CopyEdges          bool
	CopyMeshes         bool
	PreferLargestInput bool
	PreferInputWithEdges bool
}

// CopyFromInputsToOutputs templates every positional output's
// DataDescriptor from the positional inputs, honoring CopyOptions
// overrides.
func CopyFromInputsToOutputs(node *core.Node, opts CopyOptions) error {
	ins := node.Inputs().Iter(false)
	if len(ins) == 0 {
		return fail(node, "CopyFromInputsToOutputs", fmt.Errorf("no inputs: %w", core.ErrTypeFunction))
	}
	src := ins[0]
	if opts.PreferLargestInput {
		best := inputDD(src).Size()
		for _, in := range ins[1:] {
			if dd := inputDD(in); dd.Size() > best {
				src, best = in, dd.Size()
			}
		}
	}
	if opts.PreferInputWithEdges {
		for _, in := range ins {
			if dd := inputDD(in); len(dd.AxesEdges()) > 0 {
				src = in
				break
			}
		}
	}
	sd := inputDD(src)

	for _, out := range node.Outputs().Iter(false) {
		dt := sd.Dtype()
		if opts.Dtype != nil {
			dt = *opts.Dtype
		}
		out.Desc().SetDtype(dt)
		shape := opts.Shape
		if shape == nil {
			shape = sd.Shape()
		}
		out.Desc().SetShape(shape)
		if opts.CopyEdges {
			out.Desc().SetAxesEdges(sd.AxesEdges())
		}
		if opts.CopyMeshes {
			out.Desc().SetAxesMeshes(sd.AxesMeshes())
		}
	}
	return nil
}

// EvaluateDtypeOfOutputs sets every positional output's dtype to the
// numpy-style "result type" (widest) of the positional inputs' dtypes.
func EvaluateDtypeOfOutputs(node *core.Node) error {
	ins := node.Inputs().Iter(false)
	if len(ins) == 0 {
		return fail(node, "EvaluateDtypeOfOutputs", fmt.Errorf("no inputs: %w", core.ErrTypeFunction))
	}
	result := inputDD(ins[0]).Dtype()
	for _, in := range ins[1:] {
		result = widestDtype(result, inputDD(in).Dtype())
	}
	for _, out := range node.Outputs().Iter(false) {
		out.Desc().SetDtype(result)
	}
	return nil
}

// AxesPolicy selects how AssignAxesFromInputsToOutputs resolves a
// conflict between an output's already-assigned axis metadata and an
// input's.
type AxesPolicy int

const (
	IgnoreAssigned AxesPolicy = iota
	OverwriteAssigned
	MergeInputAxes
)

// AssignAxesFromInputsToOutputs propagates axes_edges/axes_meshes from
// the positional inputs to the positional outputs under the given
// policy. MergeInputAxes handles edges only (an output's existing edges,
// else the first input's non-empty edges); meshes are left unchanged.
func AssignAxesFromInputsToOutputs(node *core.Node, policy AxesPolicy) error {
	ins := node.Inputs().Iter(false)
	if len(ins) == 0 {
		return nil
	}
	for _, out := range node.Outputs().Iter(false) {
		existingEdges := out.Desc().AxesEdges()
		existingMeshes := out.Desc().AxesMeshes()
		switch policy {
		case IgnoreAssigned:
			if len(existingEdges) == 0 {
				out.Desc().SetAxesEdges(inputDD(ins[0]).AxesEdges())
			}
			if len(existingMeshes) == 0 {
				out.Desc().SetAxesMeshes(inputDD(ins[0]).AxesMeshes())
			}
		case OverwriteAssigned:
			out.Desc().SetAxesEdges(inputDD(ins[0]).AxesEdges())
			out.Desc().SetAxesMeshes(inputDD(ins[0]).AxesMeshes())
		case MergeInputAxes:
			edges := append([]descriptor.AxisSource(nil), existingEdges...)
			for _, in := range ins {
				if e := inputDD(in).AxesEdges(); len(e) > 0 && len(edges) == 0 {
					edges = e
				}
			}
			out.Desc().SetAxesEdges(edges)
		}
	}
	return nil
}

func inputDD(in *core.Input) *descriptor.DataDescriptor {
	if in.ParentOutput() == nil {
		return nil
	}
	dd := in.ParentOutput().Desc()
	if !dd.Resolved() {
		return nil
	}
	return dd
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func broadcastCompatible(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && a[i] != 1 && b[i] != 1 {
			return false
		}
	}
	return true
}

func widestDtype(a, b descriptor.DType) descriptor.DType {
	rank := func(d descriptor.DType) int {
		switch d {
		case descriptor.I32:
			return 1
		case descriptor.I64:
			return 2
		case descriptor.F32:
			return 3
		case descriptor.F64:
			return 4
		default:
			return 0
		}
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}
