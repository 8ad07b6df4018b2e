package typefn_test

import (
	"testing"

	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/descriptor"
	"github.com/dagops/dflow/typefn"
	"github.com/stretchr/testify/require"
)

func resolvedInput(t *testing.T, g *core.Graph, n *core.Node, name string, shape []int, dt descriptor.DType) *core.Input {
	t.Helper()
	src := core.NewNode(g, name+"_src")
	out, err := src.AddOutput("output", true, true, false)
	require.NoError(t, err)
	out.Desc().SetDtype(dt)
	out.Desc().SetShape(shape)
	src.SetTypeFunc(func(*core.Node) error { return nil })
	src.SetKernel("default", func(*core.Node) error { return nil })

	in, err := n.AddInput(name, true, true, false)
	require.NoError(t, err)
	require.NoError(t, in.Bind(out))
	return in
}

func TestCheckNodeHasInputs(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	n := core.NewNode(g, "n")
	require.ErrorIs(t, typefn.CheckNodeHasInputs(n), core.ErrTypeFunction)

	resolvedInput(t, g, n, "in0", []int{2}, descriptor.F64)
	require.NoError(t, typefn.CheckNodeHasInputs(n))
}

func TestCheckInputsEquivalence(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	n := core.NewNode(g, "n")
	resolvedInput(t, g, n, "in0", []int{3}, descriptor.F64)
	resolvedInput(t, g, n, "in1", []int{3}, descriptor.F64)

	require.NoError(t, typefn.CheckInputsEquivalence(n, nil, typefn.EquivalenceOptions{CheckShape: true, CheckDtype: true}))

	g2 := core.NewGraph()
	m := core.NewNode(g2, "m")
	resolvedInput(t, g2, m, "in0", []int{3}, descriptor.F64)
	resolvedInput(t, g2, m, "in1", []int{4}, descriptor.F64)
	require.ErrorIs(t, typefn.CheckInputsEquivalence(m, nil, typefn.EquivalenceOptions{CheckShape: true}), core.ErrTypeFunction)
}

func TestCopyFromInputsToOutputs(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	n := core.NewNode(g, "n")
	resolvedInput(t, g, n, "in0", []int{5}, descriptor.F64)
	out, err := n.AddOutput("output", true, true, false)
	require.NoError(t, err)

	require.NoError(t, typefn.CopyFromInputsToOutputs(n, typefn.CopyOptions{}))
	require.True(t, out.Desc().Resolved())
	require.Equal(t, []int{5}, out.Desc().Shape())
	require.Equal(t, descriptor.F64, out.Desc().Dtype())
}

func TestCheckInputsAreMatrixMultipliable(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	n := core.NewNode(g, "n")
	left := resolvedInput(t, g, n, "left", []int{2, 3}, descriptor.F64)
	right := resolvedInput(t, g, n, "right", []int{3, 4}, descriptor.F64)

	shape, err := typefn.CheckInputsAreMatrixMultipliable(n, left, right)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4}, shape)

	badRight := resolvedInput(t, g, n, "bad", []int{5, 4}, descriptor.F64)
	_, err = typefn.CheckInputsAreMatrixMultipliable(n, left, badRight)
	require.ErrorIs(t, err, core.ErrTypeFunction)
}
