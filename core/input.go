package core

import "github.com/dagops/dflow/descriptor"

// Input is a typed input port (§3). At most one parent Output may be
// bound; reconnection is rejected (ErrReconnection).
type Input struct {
	node *Node
	name string

	parentOutput *Output
	childOutput  *Output // paired output, for strategies that expose one output per input

	ownBuffer   *buffer
	allocatable bool // if true, this input supplies the storage its parent output adopts

	dd *descriptor.DataDescriptor
}

// NewInput constructs an Input owned by n.
func NewInput(n *Node, name string) *Input {
	return &Input{node: n, name: name, dd: descriptor.New()}
}

func (i *Input) portName() string { return i.name }

// Name returns the input's name.
func (i *Input) Name() string { return i.name }

// Node returns the owning Node.
func (i *Input) Node() *Node { return i.node }

// Desc returns the input's DataDescriptor.
func (i *Input) Desc() *descriptor.DataDescriptor { return i.dd }

// ParentOutput returns the bound upstream Output, or nil.
func (i *Input) ParentOutput() *Output { return i.parentOutput }

// ChildOutput returns this input's paired output (set by strategies like
// AddNewInputAddNewOutput / ViewConcat), or nil.
func (i *Input) ChildOutput() *Output { return i.childOutput }

// SetChildOutput binds this input's paired output.
func (i *Input) SetChildOutput(o *Output) { i.childOutput = o }

// Allocatable reports whether this input supplies the storage its parent
// output should adopt (§4.4).
func (i *Input) Allocatable() bool { return i.allocatable }

// SetAllocatable marks this input as allocatable (or not).
func (i *Input) SetAllocatable(v bool) { i.allocatable = v }

// Bind attaches src as this input's parent output, registering the
// reverse edge. Returns ErrReconnection if already bound to a different
// output (§3 Input invariant, §4.6).
func (i *Input) Bind(src *Output) error {
	if i.parentOutput != nil && i.parentOutput != src {
		return newErr(ErrReconnection, i.node.Name(), i.name, nil)
	}
	if i.parentOutput == src {
		return nil
	}
	if err := src.addChildInput(i); err != nil {
		return err
	}
	i.parentOutput = src
	i.node.flags.TypesTainted = true
	i.node.flags.NeedsReallocation = true

	return nil
}

// allocateOwnBuffer (re)allocates this input's own buffer when it is
// marked allocatable, sizing it from its own descriptor (falling back to
// the parent output's, since the two are expected to agree once type
// resolution has run).
func (i *Input) allocateOwnBuffer() error {
	dd := i.dd
	if !dd.Resolved() && i.parentOutput != nil {
		dd = i.parentOutput.Desc()
	}
	if !dd.Resolved() {
		return newErr(ErrAllocation, i.node.Name(), i.name, errNotResolved)
	}
	size := dd.Size()
	if i.ownBuffer == nil || len(i.ownBuffer.data) != size {
		i.ownBuffer = newBuffer(size)
	}
	return nil
}

// Data reads through to the bound parent output.
func (i *Input) Data() ([]float64, error) {
	if i.parentOutput == nil {
		return nil, newErr(ErrConnection, i.node.Name(), i.name, nil)
	}
	return i.parentOutput.Data()
}
