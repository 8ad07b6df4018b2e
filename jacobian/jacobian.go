// Package jacobian implements the finite-difference Jacobian node and
// CovarianceMatrixGroup (§4.8): numerical derivatives of a vector output
// with respect to a list of Gaussian parameters, and propagation of
// parameter covariance through that Jacobian via gonum's dense matrix
// multiply (J*J^T or J*Vp*J^T).
package jacobian

import (
	"fmt"

	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/descriptor"
	"github.com/dagops/dflow/parameter"
	"gonum.org/v1/gonum/mat"
)

const (
	c1 = 4.0 / 3.0
	c2 = 1.0 / 6.0
)

// Jacobian computes an m×n matrix whose column k is ∂y/∂p_k, estimated
// by a centered 4-point stencil with step δ_k = σ_k · scale (§4.8). It is
// built auto_freeze: after each computation it freezes so downstream
// reads return the cached matrix; Compute unfreezes and recomputes on
// demand.
type Jacobian struct {
	node *core.Node
	out  *core.Output

	y      *core.Output
	yInput *core.Input

	pars  []*parameter.Parameter
	sigma []float64 // sigma_k used for the stencil step, one per parameter
	scale float64

	m, n int
}

// New constructs a Jacobian node registered with g, observing y (an
// upstream vector output) with respect to pars. scale defaults to 1 when
// 0 is passed.
func New(g *core.Graph, name string, y *core.Output, pars []*parameter.Parameter, sigmas []float64, scale float64) (*Jacobian, error) {
	if len(pars) != len(sigmas) {
		return nil, fmt.Errorf("jacobian: %d parameters but %d sigmas: %w", len(pars), len(sigmas), core.ErrInitialization)
	}
	if scale == 0 {
		scale = 1
	}
	n := core.NewNode(g, name)
	in, err := n.AddInput("y", true, true, false)
	if err != nil {
		return nil, err
	}
	if err := in.Bind(y); err != nil {
		return nil, err
	}
	out, err := n.AddOutput("output", true, true, false)
	if err != nil {
		return nil, err
	}

	j := &Jacobian{
		node:   n,
		out:    out,
		y:      y,
		yInput: in,
		pars:   pars,
		sigma:  sigmas,
		scale:  scale,
		n:      len(pars),
	}

	n.SetTypeFunc(func(n *core.Node) error {
		if !y.Desc().Resolved() || y.Desc().Dim() != 1 {
			return fmt.Errorf("jacobian: observed output must be a resolved rank-1 vector: %w", core.ErrTypeFunction)
		}
		j.m = y.Desc().Size()
		out.Desc().SetDtype(descriptor.F64)
		out.Desc().SetShape([]int{j.m, j.n})
		return nil
	})
	n.SetKernel("default", func(n *core.Node) error {
		if err := j.compute(); err != nil {
			return err
		}
		n.Freeze()
		return nil
	})
	return j, nil
}

// Matrix returns the cached Jacobian as row-major m*n data, touching the
// node first (so a first read computes it).
func (j *Jacobian) Matrix() ([]float64, error) {
	data, err := j.out.Data()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// M, N return the Jacobian's row/column counts.
func (j *Jacobian) M() int { return j.m }
func (j *Jacobian) N() int { return j.n }

// Compute forces recomputation: unfreezes the node (if frozen), runs the
// stencil, then freezes again so subsequent reads return the cached
// result (§4.8 "auto_freeze").
func (j *Jacobian) Compute() error {
	if j.node.IsFrozen() {
		j.node.Unfreeze()
	}
	j.node.Taint(false)
	if _, err := j.Matrix(); err != nil {
		return err
	}
	j.node.Freeze()
	return nil
}

// compute runs the centered 4-point stencil for every parameter column
// (§4.8). It is invoked as the node's kernel.
func (j *Jacobian) compute() error {
	dst, err := j.out.Data()
	if err != nil {
		return err
	}

	for k, p := range j.pars {
		orig, err := p.Value()
		if err != nil {
			return err
		}
		delta := j.sigma[k] * j.scale

		// yAt sets the parameter to orig+offset (tainting y's subgraph
		// through the standard Output.SetAt path) and force-touches the
		// upstream input so the new value propagates before sampling y.
		yAt := func(offset float64) ([]float64, error) {
			if err := p.SetValue(orig + offset); err != nil {
				return nil, err
			}
			data, err := j.yInput.Data()
			if err != nil {
				return nil, err
			}
			return append([]float64(nil), data...), nil
		}

		yP1, err := yAt(delta / 2)
		if err != nil {
			return err
		}
		yM1, err := yAt(-delta / 2)
		if err != nil {
			return err
		}
		yM2, err := yAt(-delta)
		if err != nil {
			return err
		}
		yP2, err := yAt(delta)
		if err != nil {
			return err
		}

		for i := 0; i < j.m; i++ {
			v := (c1/delta)*(yP1[i]-yM1[i]) + (c2/delta)*(yM2[i]-yP2[i])
			dst[i*j.n+k] = v
		}

		if err := p.SetValue(orig); err != nil {
			return err
		}
		if _, err := j.yInput.Data(); err != nil {
			return err
		}
	}
	return nil
}

// CovarianceMatrix computes V_y = J*J^T (parameters already normalized)
// via gonum.
func (j *Jacobian) CovarianceMatrix() (*mat.Dense, error) {
	data, err := j.Matrix()
	if err != nil {
		return nil, err
	}
	jm := mat.NewDense(j.m, j.n, data)
	var vy mat.Dense
	vy.Mul(jm, jm.T())
	return &vy, nil
}

// CovarianceMatrixWith computes V_y = J*Vp*J^T given the parameters'
// covariance matrix Vp (n×n, row-major).
func (j *Jacobian) CovarianceMatrixWith(vp []float64) (*mat.Dense, error) {
	data, err := j.Matrix()
	if err != nil {
		return nil, err
	}
	jm := mat.NewDense(j.m, j.n, data)
	vpm := mat.NewDense(j.n, j.n, vp)
	var tmp, vy mat.Dense
	tmp.Mul(jm, vpm)
	vy.Mul(&tmp, jm.T())
	return &vy, nil
}

// Block pairs a Jacobian with its own parameter-space covariance (nil
// when the block's parameters are already normalized, i.e. use identity
// covariance).
type Block struct {
	J  *Jacobian
	Vp []float64 // n*n row-major, or nil for identity (normalized space)
}

// CovarianceMatrixGroup manages multiple parameter blocks, summing their
// propagated covariances and a systematic-covariance accumulator, with
// duplicate-parameter detection across independent blocks (§4.8).
type CovarianceMatrixGroup struct {
	blocks     []Block
	systematic *mat.Dense
	seenParams map[*parameter.Parameter]int // parameter identity -> block index, for dup detection
}

// NewGroup constructs an empty CovarianceMatrixGroup.
func NewGroup() *CovarianceMatrixGroup {
	return &CovarianceMatrixGroup{seenParams: make(map[*parameter.Parameter]int)}
}

// AddBlock registers a Jacobian block. Returns an error if any of the
// block's parameters were already claimed by a previous block (§4.8
// "duplicate-parameter detection to avoid double-counting").
func (g *CovarianceMatrixGroup) AddBlock(b Block) error {
	idx := len(g.blocks)
	for _, p := range b.J.pars {
		if prev, dup := g.seenParams[p]; dup {
			return fmt.Errorf("jacobian: parameter %q already claimed by block %d: %w", p.Name(), prev, core.ErrInitialization)
		}
	}
	for _, p := range b.J.pars {
		g.seenParams[p] = idx
	}
	g.blocks = append(g.blocks, b)
	return nil
}

// AddSystematic accumulates an additional m×m systematic covariance
// contribution, summed into the final result.
func (g *CovarianceMatrixGroup) AddSystematic(m int, cov []float64) {
	s := mat.NewDense(m, m, cov)
	if g.systematic == nil {
		g.systematic = mat.NewDense(m, m, nil)
	}
	g.systematic.Add(g.systematic, s)
}

// Compute sums every block's propagated covariance plus any accumulated
// systematic contribution.
func (g *CovarianceMatrixGroup) Compute() (*mat.Dense, error) {
	if len(g.blocks) == 0 {
		return nil, fmt.Errorf("jacobian: covariance group has no blocks: %w", core.ErrInitialization)
	}
	m := g.blocks[0].J.m
	total := mat.NewDense(m, m, nil)
	for _, b := range g.blocks {
		var vy *mat.Dense
		var err error
		if b.Vp == nil {
			vy, err = b.J.CovarianceMatrix()
		} else {
			vy, err = b.J.CovarianceMatrixWith(b.Vp)
		}
		if err != nil {
			return nil, err
		}
		total.Add(total, vy)
	}
	if g.systematic != nil {
		total.Add(total, g.systematic)
	}
	return total, nil
}
