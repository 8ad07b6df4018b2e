package core

import (
	"github.com/dagops/dflow/descriptor"
	"github.com/dagops/dflow/labels"
)

// Output is a typed output port (§3). It owns or references a numeric
// buffer, tracks its child Inputs, and — when closed — exposes a
// read-only view of its data, refreshed on demand by touching its owning
// Node.
type Output struct {
	node *Node
	name string

	dd  *descriptor.DataDescriptor
	buf *buffer

	justReassigned bool // set by allocate() when buf changed identity this pass

	childInputs        []*Input
	allocatingInput     *Input // the single child input owning the buffer, if any
	allocatable         bool   // whether this output may own/adopt a buffer at all
	ownsBuffer          bool
	forbidReallocation  bool

	labelsOverride *labels.Labels
}

// NewOutput constructs an Output owned by n. allocatable defaults to
// true. The flag is recorded only: allocate() does not consult it, so an
// Output with allocatable set to false still receives its own buffer.
func NewOutput(n *Node, name string) *Output {
	return &Output{
		node:        n,
		name:        name,
		dd:          descriptor.New(),
		allocatable: true,
	}
}

func (o *Output) portName() string { return o.name }

// Name returns the output's name.
func (o *Output) Name() string { return o.name }

// Node returns the owning Node.
func (o *Output) Node() *Node { return o.node }

// Desc returns the output's DataDescriptor (implements
// descriptor.AxisSource).
func (o *Output) Desc() *descriptor.DataDescriptor { return o.dd }

// AxisUnit implements descriptor.AxisSource, falling back from a Labels
// override on the Output to the owning Node's Labels.
func (o *Output) AxisUnit(root bool) string {
	if o.labelsOverride != nil {
		if v := o.labelsOverride.AxisUnit(root); v != "" {
			return v
		}
	}
	if o.node != nil {
		return o.node.Labels().AxisUnit(root)
	}
	return ""
}

// SetLabels overrides this Output's Labels (otherwise it falls back to
// the owning Node's Labels for axis/title lookups).
func (o *Output) SetLabels(l *labels.Labels) { o.labelsOverride = l }

// Labels returns this Output's label override, or nil if none was set.
func (o *Output) Labels() *labels.Labels { return o.labelsOverride }

// ChildInputs returns the Inputs this Output feeds.
func (o *Output) ChildInputs() []*Input {
	out := make([]*Input, len(o.childInputs))
	copy(out, o.childInputs)
	return out
}

// AllocatingInput returns the single child Input that owns this Output's
// buffer, or nil.
func (o *Output) AllocatingInput() *Input { return o.allocatingInput }

// Allocatable reports the Output's allocatable flag (see NewOutput: the
// allocation pass does not read it).
func (o *Output) Allocatable() bool { return o.allocatable }

// SetAllocatable sets the allocatable flag; buffer allocation is not
// affected by it.
func (o *Output) SetAllocatable(v bool) { o.allocatable = v }

// OwnsBuffer reports whether this Output owns (rather than views) its
// buffer.
func (o *Output) OwnsBuffer() bool { return o.ownsBuffer }

// ForbidReallocation reports whether buffer adoption is disabled for this
// Output (§4.4: pins the buffer, no child may be allocating).
func (o *Output) ForbidReallocation() bool { return o.forbidReallocation }

// SetForbidReallocation pins this Output's buffer: no child Input may
// become its allocating input.
func (o *Output) SetForbidReallocation(v bool) { o.forbidReallocation = v }

// addChildInput registers dst as a child of o and, if dst.allocatable is
// set, records it as the (unique) allocating input. Enforces the
// single-ownership invariant (§8 property 1).
func (o *Output) addChildInput(dst *Input) error {
	if dst.allocatable {
		if o.forbidReallocation {
			return newErr(ErrConnection, o.node.Name(), o.name, nil)
		}
		if o.allocatingInput != nil {
			return newErr(ErrConnection, o.node.Name(), o.name, nil)
		}
		o.allocatingInput = dst
	}
	o.childInputs = append(o.childInputs, dst)
	return nil
}

// Data returns the read-only (by convention) view of the output's
// buffer. Outside evaluation it touches the owning node first (§4.5);
// inside the owning node's kernel it returns the writable buffer so a
// kernel may read back what it has already written.
func (o *Output) Data() ([]float64, error) {
	if o.node.flags.Invalid {
		return nil, newErr(ErrNodeInvalid, o.node.Name(), o.name, nil)
	}
	if o.node.flags.BeingEvaluated {
		return o.buf.writable(), nil
	}
	if !o.node.flags.Closed {
		return nil, newErr(ErrUnclosedGraph, o.node.Name(), o.name, nil)
	}
	if err := o.node.Touch(); err != nil {
		return nil, err
	}
	return o.buf.view(), nil
}

// Set overwrites the entire buffer (a "source" mutation, §4.5), taints
// descendants, invalidates-clears ancestors, and clears this node's own
// tainted flag (the value is now up to date by construction).
func (o *Output) Set(values []float64) error {
	if o.buf == nil {
		return newErr(ErrAllocation, o.node.Name(), o.name, nil)
	}
	if len(values) != len(o.buf.data) {
		return newErr(ErrAllocation, o.node.Name(), o.name, nil)
	}
	copy(o.buf.data, values)
	return o.afterSourceMutation()
}

// SetAt overwrites a single element (seti), mirroring Set.
func (o *Output) SetAt(i int, v float64) error {
	if o.buf == nil || i < 0 || i >= len(o.buf.data) {
		return newErr(ErrAllocation, o.node.Name(), o.name, nil)
	}
	o.buf.data[i] = v
	return o.afterSourceMutation()
}

// allocate implements the per-output half of §4.4's allocation pass:
// adopt the allocating child input's buffer when present and size-
// consistent, else (re)allocate a fresh zeroed owned buffer when absent
// or size-inconsistent; otherwise keep the existing buffer untouched
// (§8 property 6: reopen/reclose preserves values).
func (o *Output) allocate() error {
	if !o.dd.Resolved() {
		return newErr(ErrAllocation, o.node.Name(), o.name, errNotResolved)
	}
	size := o.dd.Size()
	o.justReassigned = false

	if o.allocatingInput != nil && o.allocatingInput.ownBuffer != nil &&
		len(o.allocatingInput.ownBuffer.data) == size {
		if o.buf != o.allocatingInput.ownBuffer {
			o.buf = o.allocatingInput.ownBuffer
			o.ownsBuffer = false
			o.justReassigned = true
		}
		return nil
	}

	if o.buf == nil || len(o.buf.data) != size {
		o.buf = newBuffer(size)
		o.ownsBuffer = true
		o.justReassigned = true
	}
	return nil
}

// AliasInto replaces o's own buffer with the sub-range [offset,
// offset+o.dd.Size()) of shared's buffer, copying o's current data into
// that sub-range once so values already computed survive the switch.
// After this call o no longer owns its buffer: a write through o.Set or
// o.SetAt lands directly in shared's storage, so a downstream node built
// from several such aliased outputs (e.g. a standing concatenation, §4.7
// ViewConcat) never needs to re-copy data into its own buffer on a later
// touch — the data is already there. shared's buffer must already be
// allocated (call this from a PostAllocate hook, after shared.allocate()
// has run).
func (o *Output) AliasInto(shared *Output, offset int) error {
	if shared.buf == nil {
		return newErr(ErrAllocation, shared.node.Name(), shared.name, errNotResolved)
	}
	size := o.dd.Size()
	if offset < 0 || offset+size > len(shared.buf.data) {
		return newErr(ErrAllocation, o.node.Name(), o.name, nil)
	}
	dst := shared.buf.data[offset : offset+size]
	if o.buf != nil {
		copy(dst, o.buf.data)
	}
	o.buf = &buffer{data: dst}
	o.ownsBuffer = false
	o.forbidReallocation = true
	return nil
}

func (o *Output) afterSourceMutation() error {
	o.node.flags.Tainted = false
	o.node.taintChildren()
	o.node.InvalidateParents()
	return nil
}
