// Package metanode implements MetaNode (§4.11): a composite that
// re-exports a selection of its subnodes' ports as its own. MetaNode
// holds a non-owning back-reference from each imported subnode (via
// core.Node.SetMetaOwner) so multiple subnodes can share one MetaNode
// identity without core needing to import this package (§9 "weak
// back-references").
package metanode

import (
	"fmt"

	"github.com/dagops/dflow/core"
)

// Mode selects how MetaNode reacts to a positional-input addition
// request that has no existing target (§4.11).
type Mode int

const (
	// LeadingNode routes every new positional input to one designated
	// subnode.
	LeadingNode Mode = iota
	// NewNode spawns a fresh subnode of a declared factory for each new
	// positional input.
	NewNode
	// Disable rejects positional input creation outright.
	Disable
)

// SubnodeFactory builds a new subnode registered with g, used by Mode
// NewNode.
type SubnodeFactory func(g *core.Graph, name string) (*core.Node, error)

// MetaNode wraps a set of subnodes and re-exports selected ports as its
// own, via the same Node type the rest of the engine operates on — a
// MetaNode is itself a *core.Node, so it composes with the connection
// DSL and InputStrategy machinery without special-casing.
type MetaNode struct {
	*core.Node

	graph *core.Graph

	mode        Mode
	leadingNode *core.Node
	factory     SubnodeFactory
	nextID      int

	subnodes []*core.Node
}

// New constructs a MetaNode registered with g.
func New(g *core.Graph, name string, mode Mode, opts ...core.NodeOption) *MetaNode {
	n := core.NewNode(g, name, opts...)
	mn := &MetaNode{Node: n, graph: g, mode: mode}
	n.SetMetaOwner(mn)
	return mn
}

// SetLeadingNode designates the subnode LeadingNode mode routes new
// positional inputs to.
func (m *MetaNode) SetLeadingNode(n *core.Node) { m.leadingNode = n }

// SetFactory installs the subnode factory NewNode mode uses.
func (m *MetaNode) SetFactory(f SubnodeFactory) { m.factory = f }

// AddSubnode registers an existing subnode with this MetaNode (does not
// itself import any ports; call the Import* helpers for that).
func (m *MetaNode) AddSubnode(n *core.Node) {
	n.SetMetaOwner(m)
	m.subnodes = append(m.subnodes, n)
}

// Subnodes returns the registered subnodes in registration order.
func (m *MetaNode) Subnodes() []*core.Node {
	out := make([]*core.Node, len(m.subnodes))
	copy(out, m.subnodes)
	return out
}

// NextPositionalInputTarget resolves which subnode a new positional
// input addition should land on, per Mode (§4.11).
func (m *MetaNode) NextPositionalInputTarget() (*core.Node, error) {
	switch m.mode {
	case LeadingNode:
		if m.leadingNode == nil {
			return nil, fmt.Errorf("metanode: %q has no leading node configured: %w", m.Name(), core.ErrInitialization)
		}
		return m.leadingNode, nil
	case NewNode:
		if m.factory == nil {
			return nil, fmt.Errorf("metanode: %q has no subnode factory configured: %w", m.Name(), core.ErrInitialization)
		}
		n, err := m.factory(m.graph, fmt.Sprintf("%s_%d", m.Name(), m.nextID))
		if err != nil {
			return nil, err
		}
		m.nextID++
		m.AddSubnode(n)
		return n, nil
	default:
		return nil, fmt.Errorf("metanode: %q rejects positional input creation: %w", m.Name(), core.ErrConnection)
	}
}

// ImportPosInputs adds every positional input of sub to this MetaNode's
// own input container, in order, optionally renamed by rename (nil:
// keep original names).
func (m *MetaNode) ImportPosInputs(sub *core.Node, rename func(string) string) error {
	return m.importPorts(sub.Inputs().Iter(false), portNames(sub.Inputs().Iter(false)), rename, true, false)
}

// ImportPosOutputs mirrors ImportPosInputs for a subnode's positional
// outputs.
func (m *MetaNode) ImportPosOutputs(sub *core.Node, rename func(string) string) error {
	return m.importOutputPorts(sub.Outputs().Iter(false), rename, true, false)
}

// ImportKwInputs imports sub's keyword-only inputs, optionally merging
// ports that land on a name already used by a previously imported
// subnode (§3 PortContainer merge mode, §4.11 "merging keyword ports
// across subnodes").
func (m *MetaNode) ImportKwInputs(sub *core.Node, rename func(string) string, merge bool) error {
	kwOnly := kwOnlyInputs(sub)
	return m.importPorts(kwOnly, portNames(kwOnly), rename, false, true, merge)
}

// ImportKwOutputs mirrors ImportKwInputs for outputs.
func (m *MetaNode) ImportKwOutputs(sub *core.Node, rename func(string) string, merge bool) error {
	kwOnly := kwOnlyOutputs(sub)
	return m.importOutputPorts(kwOnly, rename, false, true, merge)
}

func (m *MetaNode) importPorts(ins []*core.Input, names []string, rename func(string) string, positional, keyword bool, merge ...bool) error {
	doMerge := len(merge) > 0 && merge[0]
	for i, in := range ins {
		name := names[i]
		if rename != nil {
			name = rename(name)
		}
		if err := m.Inputs().Add(in, name, positional, keyword, doMerge); err != nil {
			return fmt.Errorf("metanode: importing input %q: %w", name, err)
		}
	}
	return nil
}

func (m *MetaNode) importOutputPorts(outs []*core.Output, rename func(string) string, positional, keyword bool, merge ...bool) error {
	doMerge := len(merge) > 0 && merge[0]
	for _, out := range outs {
		name := out.Name()
		if rename != nil {
			name = rename(name)
		}
		if err := m.Outputs().Add(out, name, positional, keyword, doMerge); err != nil {
			return fmt.Errorf("metanode: importing output %q: %w", name, err)
		}
	}
	return nil
}

func portNames(ins []*core.Input) []string {
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.Name()
	}
	return names
}

func kwOnlyInputs(n *core.Node) []*core.Input {
	all := n.Inputs().IterAll()
	pos := n.Inputs().Iter(false)
	posSet := make(map[string]bool, len(pos))
	for _, p := range pos {
		posSet[p.Name()] = true
	}
	var out []*core.Input
	for _, in := range all {
		if !posSet[in.Name()] {
			out = append(out, in)
		}
	}
	return out
}

func kwOnlyOutputs(n *core.Node) []*core.Output {
	all := n.Outputs().IterAll()
	pos := n.Outputs().Iter(false)
	posSet := make(map[string]bool, len(pos))
	for _, p := range pos {
		posSet[p.Name()] = true
	}
	var out []*core.Output
	for _, o := range all {
		if !posSet[o.Name()] {
			out = append(out, o)
		}
	}
	return out
}
