package core

import (
	"log"
	"sync"
)

// Graph holds an insertion-ordered registry of unique Nodes plus the
// "new nodes since last close" diff set (§3, §4.4).
type Graph struct {
	mu sync.Mutex

	name string

	nodes    []*Node
	known    map[*Node]bool
	newNodes map[*Node]bool

	closed bool
	logger *log.Logger
}

// GraphOption configures a Graph at construction time.
type GraphOption func(*Graph)

// WithGraphName names the graph, used in log lines only.
func WithGraphName(name string) GraphOption { return func(g *Graph) { g.name = name } }

// WithGraphLogger attaches a logger.
func WithGraphLogger(l *log.Logger) GraphOption { return func(g *Graph) { g.logger = l } }

// NewGraph constructs an empty, open Graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		known:    make(map[*Node]bool),
		newNodes: make(map[*Node]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// register adds n to the graph's node set and marks it new-since-last-
// close. Idempotent.
func (g *Graph) register(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.known[n] {
		return
	}
	g.known[n] = true
	g.nodes = append(g.nodes, n)
	g.newNodes[n] = true
	g.closed = false
}

// Nodes returns the graph's nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Closed reports whether every node in the graph is closed.
func (g *Graph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close runs the two-phase close (§4.4): a type pass over the work-set
// (nodes added since the last close, or every node when force is true),
// then an allocation pass, then flips `closed` on every node whose
// allocation succeeded. With strict, any TypeFunctionError or unclosed
// node after the passes is returned as an error; otherwise failures are
// deferred (the node stays open, retried on the next Close).
func (g *Graph) Close(strict, force bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var workset []*Node
	if force {
		workset = append(workset, g.nodes...)
	} else {
		for _, n := range g.nodes {
			if g.newNodes[n] {
				workset = append(workset, n)
			}
		}
	}

	if len(workset) == 0 && g.closed {
		return nil // §8 property 5: idempotent no-op
	}

	for _, n := range workset {
		if err := n.runTypeFunc(strict); err != nil {
			return err
		}
	}
	for _, n := range workset {
		if err := n.allocateSelf(); err != nil {
			return err
		}
	}

	allClosed := true
	for _, n := range g.nodes {
		if n.flags.Allocated {
			n.flags.Closed = true
		} else {
			allClosed = false
		}
	}

	g.newNodes = make(map[*Node]bool)
	g.closed = allClosed

	if strict && !allClosed {
		return newErr(ErrUnclosedGraph, "", "", nil)
	}
	return nil
}

// Open reopens the graph: clears `closed` on the requested nodes (all of
// them when force is true or openNodes is nil), taints them, and forces
// every downstream node to reopen too (§4.4).
func (g *Graph) Open(force bool, openNodes []*Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	targets := openNodes
	if force || targets == nil {
		targets = g.nodes
	}

	visited := make(map[*Node]bool)
	for _, n := range targets {
		n.propagateOpen(visited)
	}
	g.closed = false
	return nil
}
