// Package parameter implements Parameters and GaussianConstraint (§4.9):
// named scalar views into a single backing value Output, optionally
// wired through a Cholesky-based correlated normalization subgraph.
// Cholesky itself is delegated to gonum.org/v1/gonum/mat rather than
// hand-rolled — the engine's own Non-goals exclude concrete linear
// algebra kernels beyond what this layer needs, and gonum is already
// part of the domain stack for the jacobian package's covariance
// assembly.
package parameter

import (
	"fmt"
	"math"

	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/descriptor"
	"gonum.org/v1/gonum/mat"
)

// Parameter is a view into a single element of a Parameters group's
// backing value Output.
type Parameter struct {
	group *Parameters
	index int
	name  string
}

// Name returns the parameter's name.
func (p *Parameter) Name() string { return p.name }

// Value reads the parameter's current value (§4.9).
func (p *Parameter) Value() (float64, error) {
	data, err := p.group.value.Data()
	if err != nil {
		return 0, err
	}
	return data[p.index], nil
}

// SetValue writes a single element of the backing value buffer via
// Output.SetAt, triggering standard taint (§4.9 "proxies a single
// element... triggering standard taint").
func (p *Parameter) SetValue(v float64) error {
	return p.group.value.SetAt(p.index, v)
}

// GaussianParameter additionally exposes the central/sigma/normvalue
// elements a Gaussian-constrained parameter carries (§4.9).
type GaussianParameter struct {
	Parameter
	constraint *GaussianConstraint
}

// Central returns this parameter's prior central value.
func (g *GaussianParameter) Central() (float64, error) {
	data, err := g.constraint.central.Data()
	if err != nil {
		return 0, err
	}
	return data[g.index], nil
}

// Sigma returns this parameter's prior standard deviation.
func (g *GaussianParameter) Sigma() (float64, error) {
	data, err := g.constraint.sigma.Data()
	if err != nil {
		return 0, err
	}
	return data[g.index], nil
}

// NormValue returns this parameter's current normalized value z (§4.9:
// `z = L^{-1}(x - mu)`).
func (g *GaussianParameter) NormValue() (float64, error) {
	data, err := g.constraint.normvalue.Data()
	if err != nil {
		return 0, err
	}
	return data[g.index], nil
}

// Parameters is a named group of Parameter views sharing one backing
// value Output (§3, §4.9).
type Parameters struct {
	node       *core.Node
	value      *core.Output
	names      []string
	pars       []*Parameter
	normPars   []*GaussianParameter
	isVariable bool
	constraint *GaussianConstraint
}

// New constructs a Parameters group of len(initial) scalar parameters
// backed by a single value Output holding initial's values in order.
func New(g *core.Graph, name string, names []string, initial []float64, isVariable bool) (*Parameters, error) {
	if len(names) != len(initial) {
		return nil, fmt.Errorf("parameter: %d names but %d initial values: %w", len(names), len(initial), core.ErrInitialization)
	}
	n := core.NewNode(g, name)
	out, err := n.AddOutput("value", true, true, false)
	if err != nil {
		return nil, err
	}
	shape := []int{len(initial)}
	n.SetTypeFunc(func(n *core.Node) error {
		out.Desc().SetDtype(descriptor.F64)
		out.Desc().SetShape(shape)
		return nil
	})
	n.SetKernel("default", func(n *core.Node) error { return nil })
	n.SetPostAllocate(func(n *core.Node) error { return out.Set(initial) })

	p := &Parameters{node: n, value: out, names: append([]string(nil), names...), isVariable: isVariable}
	p.pars = make([]*Parameter, len(names))
	for i, nm := range names {
		p.pars[i] = &Parameter{group: p, index: i, name: nm}
	}
	return p, nil
}

// Node returns the backing value Node.
func (p *Parameters) Node() *core.Node { return p.node }

// Value returns the backing value Output.
func (p *Parameters) Value() *core.Output { return p.value }

// Len returns the number of parameters in the group.
func (p *Parameters) Len() int { return len(p.pars) }

// At returns the i'th Parameter view.
func (p *Parameters) At(i int) *Parameter { return p.pars[i] }

// ByName returns the Parameter view named name, or nil.
func (p *Parameters) ByName(name string) *Parameter {
	for _, par := range p.pars {
		if par.name == name {
			return par
		}
	}
	return nil
}

// IsVariable reports whether this group's values are treated as fit
// variables.
func (p *Parameters) IsVariable() bool { return p.isVariable }

// Constraint returns the group's GaussianConstraint, or nil.
func (p *Parameters) Constraint() *GaussianConstraint { return p.constraint }

// NormalizedParameters returns the GaussianParameter views projecting
// onto normalized (z) space; empty if no constraint was attached.
func (p *Parameters) NormalizedParameters() []*GaussianParameter {
	out := make([]*GaussianParameter, len(p.normPars))
	copy(out, p.normPars)
	return out
}

// GaussianConstraint wires a Cholesky-backed correlated normalization
// subgraph onto a Parameters group (§4.9): `central`, `sigma`, an
// internal `normvalue`, and a bidirectional forward/backward transform
// `z = L^{-1}(x - mu)` / `x = L*z + mu`.
type GaussianConstraint struct {
	params *Parameters

	centralNode, sigmaNode, normNode *core.Node
	central, sigma, normvalue        *core.Output

	// normIn is normNode's "normvalue" Input: an external node (e.g. a
	// minimizer's trial-point source) binds into it to push a z vector
	// backward through the constraint. Unbound by default.
	normIn *core.Input

	l      *mat.TriDense // Cholesky factor L (L L^T = V)
	n      int
	lastDir direction
}

type direction int

const (
	dirNone direction = iota
	dirForward
	dirBackward
)

// Attach builds a GaussianConstraint on p from central values, and
// either a diagonal sigma vector or a full covariance matrix (pass sigma
// nil when covariance is non-nil, and vice versa — §4.9 "central, sigma
// (or a covariance matrix)"). correlation, when non-nil together with
// sigma, builds `V = diag(sigma)*C*diag(sigma)` before factoring it.
func Attach(g *core.Graph, p *Parameters, central, sigma []float64, covariance, correlation []float64) (*GaussianConstraint, error) {
	n := p.Len()
	if len(central) != n {
		return nil, fmt.Errorf("parameter: central has %d entries, want %d: %w", len(central), n, core.ErrInitialization)
	}

	var cov *mat.SymDense
	switch {
	case covariance != nil:
		cov = mat.NewSymDense(n, covariance)
	case sigma != nil && correlation != nil:
		c := mat.NewSymDense(n, correlation)
		d := make([]float64, n*n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				d[i*n+j] = sigma[i] * c.At(i, j) * sigma[j]
			}
		}
		cov = mat.NewSymDense(n, d)
	case sigma != nil:
		d := make([]float64, n*n)
		for i := 0; i < n; i++ {
			d[i*n+i] = sigma[i] * sigma[i]
		}
		cov = mat.NewSymDense(n, d)
	default:
		return nil, fmt.Errorf("parameter: GaussianConstraint requires sigma or covariance: %w", core.ErrInitialization)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("parameter: covariance is not positive-definite: %w", core.ErrInitialization)
	}
	var lMat mat.TriDense
	chol.LTo(&lMat)

	sigmaDiag := make([]float64, n)
	for i := 0; i < n; i++ {
		sigmaDiag[i] = math.Sqrt(cov.At(i, i))
	}

	gc := &GaussianConstraint{params: p, l: &lMat, n: n}

	gc.centralNode = core.NewNode(g, p.node.Name()+".central")
	centralOut, err := gc.centralNode.AddOutput("output", true, true, false)
	if err != nil {
		return nil, err
	}
	shape := []int{n}
	gc.centralNode.SetTypeFunc(func(nd *core.Node) error {
		centralOut.Desc().SetDtype(descriptor.F64)
		centralOut.Desc().SetShape(shape)
		return nil
	})
	gc.centralNode.SetKernel("default", func(nd *core.Node) error { return nil })
	gc.centralNode.SetPostAllocate(func(nd *core.Node) error { return centralOut.Set(central) })
	gc.central = centralOut

	gc.sigmaNode = core.NewNode(g, p.node.Name()+".sigma")
	sigmaOut, err := gc.sigmaNode.AddOutput("output", true, true, false)
	if err != nil {
		return nil, err
	}
	gc.sigmaNode.SetTypeFunc(func(nd *core.Node) error {
		sigmaOut.Desc().SetDtype(descriptor.F64)
		sigmaOut.Desc().SetShape(shape)
		return nil
	})
	gc.sigmaNode.SetKernel("default", func(nd *core.Node) error { return nil })
	gc.sigmaNode.SetPostAllocate(func(nd *core.Node) error { return sigmaOut.Set(sigmaDiag) })
	gc.sigma = sigmaOut

	gc.normNode = core.NewNode(g, p.node.Name()+".normvalue")
	// normNode reads through an Input bound to p's value output (rather
	// than peeking at gc.params.value directly) purely so a parameter
	// mutation taints normNode via the ordinary graph edge — the same
	// propagation every other node relies on.
	valueIn, err := gc.normNode.AddInput("value", true, true, false)
	if err != nil {
		return nil, err
	}
	if err := valueIn.Bind(p.value); err != nil {
		return nil, err
	}
	normOut, err := gc.normNode.AddOutput("output", true, true, false)
	if err != nil {
		return nil, err
	}
	// normIn is the "normvalue" side of the pair (§4.9's bidirectional
	// node): left unbound here, since normNode's own output already
	// serves as the normvalue source in the forward direction. An
	// external node binds into it to drive the backward direction
	// instead — never normOut itself, which would close a cycle.
	normIn, err := gc.normNode.AddInput("normvalue", true, true, false)
	if err != nil {
		return nil, err
	}
	gc.normIn = normIn
	gc.normNode.SetTypeFunc(func(nd *core.Node) error {
		normOut.Desc().SetDtype(descriptor.F64)
		normOut.Desc().SetShape(shape)
		return nil
	})
	gc.normNode.SetKernel("default", func(nd *core.Node) error {
		// The direction is driven by which side was tainted most
		// recently (§4.5, §4.9): a push through normIn means an external
		// source supplied a new z and wants x recomputed; anything else
		// (typically the "value" input) means x changed and z should be
		// rederived from it.
		if nd.LastTaintInput() == gc.normIn {
			return gc.denormalizeBackward(nd)
		}
		return gc.normalizeForward(nd)
	})
	gc.normvalue = normOut

	p.constraint = gc
	p.normPars = make([]*GaussianParameter, n)
	for i, par := range p.pars {
		p.normPars[i] = &GaussianParameter{Parameter: *par, constraint: gc}
	}
	return gc, nil
}

// normalizeForward computes z = L^{-1}(x - mu) by forward substitution
// (L is lower-triangular).
func (gc *GaussianConstraint) normalizeForward(nd *core.Node) error {
	x, err := gc.params.value.Data()
	if err != nil {
		return err
	}
	central, err := gc.central.Data()
	if err != nil {
		return err
	}
	z, err := gc.normvalue.Data()
	if err != nil {
		return err
	}
	for i := 0; i < gc.n; i++ {
		s := x[i] - central[i]
		for j := 0; j < i; j++ {
			s -= gc.l.At(i, j) * z[j]
		}
		z[i] = s / gc.l.At(i, i)
	}
	gc.lastDir = dirForward
	return nil
}

// denormalizeBackward computes x = L*z + mu (backward direction, §4.9)
// from the z vector pushed through normIn, writes it into the
// Parameters group's value buffer, and mirrors z into normvalue's own
// buffer so NormValue() reflects the pushed value rather than going
// stale (the gap the old out-of-band Denormalize method left open).
func (gc *GaussianConstraint) denormalizeBackward(nd *core.Node) error {
	z, err := gc.normIn.Data()
	if err != nil {
		return err
	}
	central, err := gc.central.Data()
	if err != nil {
		return err
	}
	x := make([]float64, gc.n)
	for i := 0; i < gc.n; i++ {
		s := 0.0
		for j := 0; j <= i; j++ {
			s += gc.l.At(i, j) * z[j]
		}
		x[i] = s + central[i]
	}
	gc.lastDir = dirBackward
	if err := gc.params.value.Set(x); err != nil {
		return err
	}
	return gc.normvalue.Set(z)
}

// NormValueInput returns normNode's "normvalue" Input: bind an external
// Output into it to push a z vector backward through the constraint
// (§4.9). Unbound by default.
func (gc *GaussianConstraint) NormValueInput() *core.Input { return gc.normIn }

// L returns the Cholesky factor (L L^T = V) as a dense row-major slice,
// size n*n.
func (gc *GaussianConstraint) L() []float64 {
	out := make([]float64, gc.n*gc.n)
	for i := 0; i < gc.n; i++ {
		for j := 0; j <= i; j++ {
			out[i*gc.n+j] = gc.l.At(i, j)
		}
	}
	return out
}
