package connect_test

import (
	"testing"

	"github.com/dagops/dflow/connect"
	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/kernels"
	"github.com/dagops/dflow/strategy"
	"github.com/stretchr/testify/require"
)

func TestConnect_BindsDirectly(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	a, err := kernels.NewArray(g, "a", []float64{1, 2})
	require.NoError(t, err)
	s, err := kernels.NewSum(g, "s", 1)
	require.NoError(t, err)

	out, err := a.Outputs().At(0)
	require.NoError(t, err)
	in, err := s.Inputs().At(0)
	require.NoError(t, err)

	require.NoError(t, connect.Connect(out, in))
	require.Equal(t, out, in.ParentOutput())
}

func TestFromNode_SingleOutputForwardsToEveryTarget(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	a, err := kernels.NewArray(g, "a", []float64{1})
	require.NoError(t, err)
	s1, err := kernels.NewSum(g, "s1", 1)
	require.NoError(t, err)
	s2, err := kernels.NewSum(g, "s2", 1)
	require.NoError(t, err)

	require.NoError(t, connect.FromNode(a, []any{s1, s2}))

	out, err := a.Outputs().At(0)
	require.NoError(t, err)
	in1, err := s1.Inputs().At(0)
	require.NoError(t, err)
	in2, err := s2.Inputs().At(0)
	require.NoError(t, err)
	require.Equal(t, out, in1.ParentOutput())
	require.Equal(t, out, in2.ParentOutput())
}

func TestConnectMap_DispatchesByTargetType(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	a, err := kernels.NewArray(g, "a", []float64{1})
	require.NoError(t, err)
	s, err := kernels.NewSum(g, "s", 1)
	require.NoError(t, err)

	out, err := a.Outputs().At(0)
	require.NoError(t, err)
	in, err := s.Inputs().At(0)
	require.NoError(t, err)

	require.NoError(t, connect.ConnectMap(out, map[string]any{"x": in}))
	require.Equal(t, out, in.ParentOutput())
}

func TestConnectFromMap_OnlyBindsUnconnectedMatchingNames(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	a, err := kernels.NewArray(g, "a", []float64{1})
	require.NoError(t, err)
	other, err := kernels.NewArray(g, "other", []float64{9})
	require.NoError(t, err)

	node := core.NewNode(g, "node")
	in, err := node.AddInput("a", true, true, false)
	require.NoError(t, err)
	unrelated, err := node.AddInput("unrelated", true, true, false)
	require.NoError(t, err)

	aOut, err := a.Outputs().At(0)
	require.NoError(t, err)
	otherOut, err := other.Outputs().At(0)
	require.NoError(t, err)
	require.NoError(t, unrelated.Bind(otherOut))

	require.NoError(t, connect.ConnectFromMap(node, map[string]*core.Output{"a": aOut, "unrelated": otherOut}))
	require.Equal(t, aOut, in.ParentOutput())
	require.Equal(t, otherOut, unrelated.ParentOutput(), "already-bound input must be left untouched")
}

func TestConnectOutputsToNode_SharesOneScopeForBlockStrategy(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	dst := core.NewNode(g, "dst")
	dst.SetStrategy(&strategy.AddNewInputAddNewOutputForBlock{})

	a, err := kernels.NewArray(g, "a", []float64{1})
	require.NoError(t, err)
	b, err := kernels.NewArray(g, "b", []float64{1})
	require.NoError(t, err)
	aOut, err := a.Outputs().At(0)
	require.NoError(t, err)
	bOut, err := b.Outputs().At(0)
	require.NoError(t, err)

	require.NoError(t, connect.ConnectOutputsToNode([]*core.Output{aOut, bOut}, dst))
	require.Equal(t, 1, dst.Outputs().LenPos(), "both outputs came from one ConnectOutputsToNode call, so they share one scope")
}
