package metanode_test

import (
	"testing"

	"github.com/dagops/dflow/connect"
	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/kernels"
	"github.com/dagops/dflow/metanode"
	"github.com/stretchr/testify/require"
)

func TestImportPosInputs_ReExportsSubnodePorts(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	sum, err := kernels.NewSum(g, "inner_sum", 2)
	require.NoError(t, err)

	mn := metanode.New(g, "composite", metanode.LeadingNode)
	mn.SetLeadingNode(sum)
	mn.AddSubnode(sum)
	require.NoError(t, mn.ImportPosInputs(sum, nil))
	require.NoError(t, mn.ImportPosOutputs(sum, nil))

	require.Equal(t, 2, mn.Inputs().LenPos())
	require.Equal(t, 1, mn.Outputs().LenPos())

	a, err := kernels.NewArray(g, "a", []float64{1, 2})
	require.NoError(t, err)
	b, err := kernels.NewArray(g, "b", []float64{3, 4})
	require.NoError(t, err)
	aOut, _ := a.Outputs().At(0)
	bOut, _ := b.Outputs().At(0)
	in0, err := mn.Inputs().At(0)
	require.NoError(t, err)
	in1, err := mn.Inputs().At(1)
	require.NoError(t, err)
	require.NoError(t, connect.Connect(aOut, in0))
	require.NoError(t, connect.Connect(bOut, in1))

	require.NoError(t, g.Close(true, false))
	out, err := mn.Outputs().At(0)
	require.NoError(t, err)
	data, err := out.Data()
	require.NoError(t, err)
	require.Equal(t, []float64{4, 6}, data)
}

func TestNextPositionalInputTarget_NewNodeMode(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	mn := metanode.New(g, "composite", metanode.NewNode)
	mn.SetFactory(func(g *core.Graph, name string) (*core.Node, error) {
		return kernels.NewSum(g, name, 1)
	})

	n1, err := mn.NextPositionalInputTarget()
	require.NoError(t, err)
	n2, err := mn.NextPositionalInputTarget()
	require.NoError(t, err)
	require.NotSame(t, n1, n2)
	require.Len(t, mn.Subnodes(), 2)
}

func TestNextPositionalInputTarget_DisableMode(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	mn := metanode.New(g, "composite", metanode.Disable)
	_, err := mn.NextPositionalInputTarget()
	require.ErrorIs(t, err, core.ErrConnection)
}

func TestMetaOwner_BackReference(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	sum, err := kernels.NewSum(g, "s", 1)
	require.NoError(t, err)
	mn := metanode.New(g, "composite", metanode.LeadingNode)
	mn.AddSubnode(sum)

	require.Same(t, mn, sum.MetaOwner())
}
