package core

import (
	"errors"
	"fmt"
	"log"

	"github.com/dagops/dflow/labels"
)

// Kernel is a node's compute callback (§4.2): it may read Input buffers
// (already fresh, since parents were touched first) and must write into
// its own Outputs' buffers in place, deterministically, without
// reshaping or reallocating.
type Kernel func(n *Node) error

// TypeFunc is a node's type-function (§4.2), run during the
// type-resolution pass: it resolves this node's Outputs' dtype/shape
// from its Inputs' already-resolved DataDescriptors, and may select a
// Kernel variant via UseKernel.
type TypeFunc func(n *Node) error

// InputStrategy is the policy invoked when a bulk `>>` connection needs
// to create an input on the fly (§4.7). Defined here (rather than in a
// separate strategy package) so Node can hold one without an import
// cycle; package strategy provides the richer implementations.
type InputStrategy interface {
	// Connect is called once per output within a single connection
	// statement; scopeID is stable across every output of that
	// statement and strictly increases between statements (§4.7
	// "batch identification").
	Connect(n *Node, scopeID int, src *Output) (*Input, error)
}

type failStrategy struct{}

func (failStrategy) Connect(n *Node, _ int, _ *Output) (*Input, error) {
	return nil, newErr(ErrConnection, n.name, "", errors.New("no input strategy configured"))
}

// NodeOption configures a Node at construction time.
type NodeOption func(*Node)

// WithImmediate sets the immediate flag: a tainted node recomputes itself
// synchronously rather than waiting to be pulled (§4.5).
func WithImmediate(v bool) NodeOption { return func(n *Node) { n.immediate = v } }

// WithDebug toggles the node's debug flag (carried for collaborators;
// the engine itself does not branch on it).
func WithDebug(v bool) NodeOption { return func(n *Node) { n.debug = v } }

// WithStrategy sets the node's InputStrategy (default: always-fail).
func WithStrategy(s InputStrategy) NodeOption {
	return func(n *Node) {
		if s != nil {
			n.strategy = s
		}
	}
}

// WithTypeFunc sets the node's type-function.
func WithTypeFunc(fn TypeFunc) NodeOption { return func(n *Node) { n.typeFunc = fn } }

// WithPostAllocate sets the hook run once after allocation (§4.2).
func WithPostAllocate(fn func(*Node) error) NodeOption {
	return func(n *Node) { n.postAllocate = fn }
}

// WithKernel registers a named kernel variant; the first one registered
// becomes the active kernel by default (a type-function may switch it
// via UseKernel during the type pass — never later, §9).
func WithKernel(name string, fn Kernel) NodeOption {
	return func(n *Node) {
		if n.kernels == nil {
			n.kernels = make(map[string]Kernel)
		}
		n.kernels[name] = fn
		if n.activeKernel == nil {
			n.activeKernel = fn
		}
	}
}

// WithLabels seeds the node's Labels.
func WithLabels(l *labels.Labels) NodeOption { return func(n *Node) { n.labels = l } }

// WithAllowedKeywordInputs restricts which keyword input names the node
// will accept; nil/unset means unrestricted.
func WithAllowedKeywordInputs(names ...string) NodeOption {
	return func(n *Node) {
		m := make(map[string]bool, len(names))
		for _, nm := range names {
			m[nm] = true
		}
		n.allowedKeywordInputs = m
	}
}

// Node is a unit of computation: it hosts typed input/output ports, a
// FlagsDescriptor, a type-function and an active Kernel (§3 Node).
type Node struct {
	name  string
	flags FlagsDescriptor
	labels *labels.Labels

	inputs  *PortContainer[*Input]
	outputs *PortContainer[*Output]

	graph  *Graph
	logger *log.Logger

	lastErr error
	calls   uint64

	immediate bool
	debug     bool

	strategy InputStrategy

	kernels      map[string]Kernel
	activeKernel Kernel
	typeFunc     TypeFunc
	postAllocate func(*Node) error

	parentCallbacks []func() error

	allowedKeywordInputs map[string]bool

	// lastTaintInput records the child Input through which this node
	// most recently received taint propagated from a parent edge (§4.5
	// "caller"), or nil if the node has never been tainted that way (e.g.
	// construction-time taint, or a direct Taint() call). A kernel that
	// behaves differently depending on which of several inputs changed
	// most recently (a bidirectional transform, say) reads this via
	// LastTaintInput instead of re-deriving it from scratch.
	lastTaintInput *Input

	// metaOwner is a non-owning back-reference to an owning MetaNode, set
	// via SetMetaOwner by package metanode. Kept as `any` to avoid a core
	// → metanode import cycle (§9 "weak back-references").
	metaOwner any
}

// NewNode constructs a Node and, if g is non-nil, registers it with g
// (§4.2, §4.6 "each new Node registers itself with the current Graph").
func NewNode(g *Graph, name string, opts ...NodeOption) *Node {
	n := &Node{
		name:     name,
		flags:    newConstructionFlags(),
		inputs:   NewPortContainer[*Input](),
		outputs:  NewPortContainer[*Output](),
		strategy: failStrategy{},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.labels == nil {
		n.labels = &labels.Labels{}
	}
	if g != nil {
		n.graph = g
		g.register(n)
	}
	return n
}

// NewNodeCtx constructs a Node registered with the Graph currently open
// on ctx (§6 "Contexts"). Returns ErrNoCurrentGraph if ctx has none.
func NewNodeCtx(ctx *Context, name string, opts ...NodeOption) (*Node, error) {
	g := ctx.Current()
	if g == nil {
		return nil, ErrNoCurrentGraph
	}
	return NewNode(g, name, opts...), nil
}

// Name returns the node's name.
func (n *Node) Name() string { return n.name }

// Labels returns the node's Labels bag (never nil).
func (n *Node) Labels() *labels.Labels {
	if n.labels == nil {
		n.labels = &labels.Labels{}
	}
	return n.labels
}

// Graph returns the owning Graph, or nil.
func (n *Node) Graph() *Graph { return n.graph }

// SetLogger attaches a logger; nil disables logging (ambient concern,
// never required for correctness).
func (n *Node) SetLogger(l *log.Logger) { n.logger = l }

func (n *Node) logf(format string, args ...any) {
	if n.logger != nil {
		n.logger.Printf("[%s] "+format, append([]any{n.name}, args...)...)
	}
}

// SetMetaOwner records a non-owning back-reference to an owning
// MetaNode. Exported for package metanode only by convention.
func (n *Node) SetMetaOwner(owner any) { n.metaOwner = owner }

// MetaOwner returns the owning MetaNode reference, or nil.
func (n *Node) MetaOwner() any { return n.metaOwner }

// LastTaintInput returns the Input through which this node was most
// recently tainted by a parent edge, or nil if it has never been
// tainted that way. A bidirectional node's kernel reads this to decide
// which of several inputs is driving the current recomputation (§4.5).
func (n *Node) LastTaintInput() *Input { return n.lastTaintInput }

// Inputs returns the node's input PortContainer.
func (n *Node) Inputs() *PortContainer[*Input] { return n.inputs }

// Outputs returns the node's output PortContainer.
func (n *Node) Outputs() *PortContainer[*Output] { return n.outputs }

// Strategy returns the node's InputStrategy.
func (n *Node) Strategy() InputStrategy { return n.strategy }

// SetStrategy replaces the node's InputStrategy.
func (n *Node) SetStrategy(s InputStrategy) { n.strategy = s }

// AddInput creates and registers a new Input under the given addressing
// mode(s). Rejects a keyword name outside AllowedKeywordInputs, if set.
func (n *Node) AddInput(name string, positional, keyword, merge bool) (*Input, error) {
	if keyword && n.allowedKeywordInputs != nil && !n.allowedKeywordInputs[name] {
		return nil, newErr(ErrConnection, n.name, name, errors.New("keyword input not permitted"))
	}
	in := NewInput(n, name)
	if err := n.inputs.Add(in, name, positional, keyword, merge); err != nil {
		return nil, err
	}
	n.flags.TypesTainted = true
	return in, nil
}

// AddOutput creates and registers a new Output.
func (n *Node) AddOutput(name string, positional, keyword, merge bool) (*Output, error) {
	out := NewOutput(n, name)
	if err := n.outputs.Add(out, name, positional, keyword, merge); err != nil {
		return nil, err
	}
	return out, nil
}

// SetKernel registers/overwrites a named kernel variant; as with
// WithKernel, the first one registered becomes the active kernel.
func (n *Node) SetKernel(name string, fn Kernel) {
	if n.kernels == nil {
		n.kernels = make(map[string]Kernel)
	}
	n.kernels[name] = fn
	if n.activeKernel == nil {
		n.activeKernel = fn
	}
}

// UseKernel selects the active kernel variant by name. Must be called
// from within a TypeFunc (§9: dispatch is immutable post-close); calling
// it later is a misuse the engine does not separately guard against,
// matching the teacher's "trust the contract" stance on kernel callbacks.
func (n *Node) UseKernel(name string) error {
	fn, ok := n.kernels[name]
	if !ok {
		return newErr(ErrTypeFunction, n.name, "", fmt.Errorf("unknown kernel variant %q", name))
	}
	n.activeKernel = fn
	return nil
}

// SetTypeFunc replaces the node's type-function.
func (n *Node) SetTypeFunc(fn TypeFunc) { n.typeFunc = fn }

// SetPostAllocate replaces the node's post-allocate hook (§4.2).
func (n *Node) SetPostAllocate(fn func(*Node) error) { n.postAllocate = fn }

// NCalls returns the number of times this node's kernel has run.
func (n *Node) NCalls() uint64 { return n.calls }

// LastError returns the last kernel/type-function failure recorded on
// this node, or nil.
func (n *Node) LastError() error { return n.lastErr }

// IsClosed, IsAllocated, IsTainted, IsInvalid, IsFrozen report the
// corresponding flag.
func (n *Node) IsClosed() bool    { return n.flags.Closed }
func (n *Node) IsAllocated() bool { return n.flags.Allocated }
func (n *Node) IsTainted() bool   { return n.flags.Tainted }
func (n *Node) IsInvalid() bool   { return n.flags.Invalid }
func (n *Node) IsFrozen() bool    { return n.flags.Frozen }

// Immediate reports the node's immediate flag.
func (n *Node) Immediate() bool { return n.immediate }

// SetImmediate toggles the immediate flag after construction.
func (n *Node) SetImmediate(v bool) { n.immediate = v }
