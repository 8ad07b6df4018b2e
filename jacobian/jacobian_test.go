package jacobian_test

import (
	"testing"

	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/descriptor"
	"github.com/dagops/dflow/jacobian"
	"github.com/dagops/dflow/parameter"
	"github.com/stretchr/testify/require"
)

// quadraticObservable builds y = [p0^2 + p1], registered on g, reading
// through an Input bound to pars.Value() so a parameter mutation taints it.
func quadraticObservable(t *testing.T, g *core.Graph, pars *parameter.Parameters) *core.Output {
	t.Helper()
	y := core.NewNode(g, "y")
	in, err := y.AddInput("p", true, true, false)
	require.NoError(t, err)
	require.NoError(t, in.Bind(pars.Value()))
	out, err := y.AddOutput("output", true, true, false)
	require.NoError(t, err)
	y.SetTypeFunc(func(*core.Node) error {
		out.Desc().SetDtype(descriptor.F64)
		out.Desc().SetShape([]int{1})
		return nil
	})
	y.SetKernel("default", func(*core.Node) error {
		p, err := in.Data()
		if err != nil {
			return err
		}
		dst, err := out.Data()
		if err != nil {
			return err
		}
		dst[0] = p[0]*p[0] + p[1]
		return nil
	})
	return out
}

func TestJacobian_MatchesAnalyticDerivative(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	pars, err := parameter.New(g, "p", []string{"p0", "p1"}, []float64{3, 2}, true)
	require.NoError(t, err)
	yOut := quadraticObservable(t, g, pars)
	require.NoError(t, g.Close(true, false))

	jac, err := jacobian.New(g, "J", yOut, []*parameter.Parameter{pars.At(0), pars.At(1)}, []float64{0.001, 0.001}, 1)
	require.NoError(t, err)
	require.NoError(t, g.Close(true, false))

	row, err := jac.Matrix()
	require.NoError(t, err)
	require.Len(t, row, 2)
	require.InDelta(t, 6, row[0], 1e-3) // d/dp0 (p0^2+p1) = 2*p0 = 6
	require.InDelta(t, 1, row[1], 1e-3) // d/dp1 (p0^2+p1) = 1
}

func TestJacobian_RestoresOriginalParameterValues(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	pars, err := parameter.New(g, "p", []string{"p0", "p1"}, []float64{3, 2}, true)
	require.NoError(t, err)
	yOut := quadraticObservable(t, g, pars)
	require.NoError(t, g.Close(true, false))

	jac, err := jacobian.New(g, "J", yOut, []*parameter.Parameter{pars.At(0), pars.At(1)}, []float64{0.01, 0.01}, 1)
	require.NoError(t, err)
	require.NoError(t, g.Close(true, false))

	_, err = jac.Matrix()
	require.NoError(t, err)

	v0, err := pars.At(0).Value()
	require.NoError(t, err)
	v1, err := pars.At(1).Value()
	require.NoError(t, err)
	require.Equal(t, 3.0, v0)
	require.Equal(t, 2.0, v1)
}

func TestCovarianceMatrixGroup_RejectsDuplicateParameter(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	pars, err := parameter.New(g, "p", []string{"p0", "p1"}, []float64{3, 2}, true)
	require.NoError(t, err)
	yOut := quadraticObservable(t, g, pars)
	require.NoError(t, g.Close(true, false))

	jac, err := jacobian.New(g, "J", yOut, []*parameter.Parameter{pars.At(0), pars.At(1)}, []float64{0.01, 0.01}, 1)
	require.NoError(t, err)
	jac2, err := jacobian.New(g, "J2", yOut, []*parameter.Parameter{pars.At(0)}, []float64{0.01}, 1)
	require.NoError(t, err)
	require.NoError(t, g.Close(true, false))

	group := jacobian.NewGroup()
	require.NoError(t, group.AddBlock(jacobian.Block{J: jac}))
	err = group.AddBlock(jacobian.Block{J: jac2})
	require.ErrorIs(t, err, core.ErrInitialization)
}

func TestCovarianceMatrixGroup_ComputeSumsBlocks(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	pars, err := parameter.New(g, "p", []string{"p0"}, []float64{2}, true)
	require.NoError(t, err)

	y := core.NewNode(g, "y")
	in, err := y.AddInput("p", true, true, false)
	require.NoError(t, err)
	require.NoError(t, in.Bind(pars.Value()))
	out, err := y.AddOutput("output", true, true, false)
	require.NoError(t, err)
	y.SetTypeFunc(func(*core.Node) error {
		out.Desc().SetDtype(descriptor.F64)
		out.Desc().SetShape([]int{1})
		return nil
	})
	y.SetKernel("default", func(*core.Node) error {
		p, err := in.Data()
		if err != nil {
			return err
		}
		dst, err := out.Data()
		if err != nil {
			return err
		}
		dst[0] = 2 * p[0] // dy/dp0 = 2
		return nil
	})
	require.NoError(t, g.Close(true, false))

	jac, err := jacobian.New(g, "J", out, []*parameter.Parameter{pars.At(0)}, []float64{0.01}, 1)
	require.NoError(t, err)
	require.NoError(t, g.Close(true, false))

	group := jacobian.NewGroup()
	require.NoError(t, group.AddBlock(jacobian.Block{J: jac}))
	group.AddSystematic(1, []float64{0.5})

	cov, err := group.Compute()
	require.NoError(t, err)
	// J*J^T with J=[2] gives 4, plus systematic 0.5 = 4.5.
	require.InDelta(t, 4.5, cov.At(0, 0), 1e-3)
}
