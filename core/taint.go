package core

import (
	"errors"
	"fmt"
)

// Taint marks the node tainted and propagates to children, honoring
// freeze (§4.5). force mirrors "force_computation": when set (or when
// the node's immediate flag is set), the node touches itself synchronously
// after tainting.
func (n *Node) Taint(force bool) {
	n.taintSelf(force)
}

func (n *Node) taintSelf(force bool) {
	if n.flags.Frozen {
		n.flags.FrozenTainted = true
		return
	}
	alreadyTainted := n.flags.Tainted
	n.flags.Tainted = true
	if !alreadyTainted {
		n.taintChildren()
	}
	if n.immediate || force {
		_ = n.Touch()
	}
}

// taintChildren propagates taint to every node reachable through this
// node's outputs' child inputs (§4.5, §8 property 3: descendants only,
// never ancestors).
func (n *Node) taintChildren() {
	for _, out := range n.outputs.IterAll() {
		for _, in := range out.ChildInputs() {
			in.node.lastTaintInput = in
			in.node.taintSelf(false)
		}
	}
}

// Freeze suppresses taint propagation at this node until Unfreeze.
func (n *Node) Freeze() {
	n.flags.Frozen = true
	n.flags.FrozenTainted = false
}

// Unfreeze lifts freeze and, if a taint arrived while frozen, propagates
// it now exactly as if it had just arrived (§4.5, §8 property 4).
func (n *Node) Unfreeze() {
	n.flags.Frozen = false
	if n.flags.FrozenTainted {
		n.flags.FrozenTainted = false
		n.taintSelf(false)
	}
}

// Invalidate sets or clears the invalid flag. Setting it taints self and
// children (the result is poisoned downstream too); clearing it only
// takes effect if no parent is itself invalid.
func (n *Node) Invalidate(v bool) {
	if v {
		n.flags.Invalid = true
		n.flags.Tainted = true
		n.taintChildren()
		return
	}
	if !n.anyParentInvalid() {
		n.flags.Invalid = false
		n.flags.Tainted = true
	}
}

// InvalidateParents attempts to clear the invalid flag on every direct
// parent node (one hop), used after a source mutation to let a corrected
// value un-poison ancestors that have no invalid parent of their own
// (§4.5: "invalidate_parents"). This resolves an Open Question in the
// source spec about exact propagation depth; see DESIGN.md.
func (n *Node) InvalidateParents() {
	for _, in := range n.inputs.IterAll() {
		if in.parentOutput != nil {
			in.parentOutput.node.Invalidate(false)
		}
	}
}

func (n *Node) anyParentInvalid() bool {
	for _, in := range n.inputs.IterAll() {
		if in.parentOutput != nil && in.parentOutput.node.flags.Invalid {
			return true
		}
	}
	return false
}

// Touch runs this node's cached parent-touch callbacks (positional input
// order, deduplicated per parent) then its kernel exactly once, if and
// only if the node is tainted (§4.5, §8 property 2).
func (n *Node) Touch() error {
	if !n.flags.Tainted {
		return nil
	}
	if !n.flags.Closed {
		return newErr(ErrUnclosedGraph, n.name, "", nil)
	}
	if n.flags.Invalid {
		return newErr(ErrNodeInvalid, n.name, "", nil)
	}

	for _, cb := range n.parentCallbacks {
		if err := cb(); err != nil {
			return err
		}
	}

	n.flags.BeingEvaluated = true
	var kernelErr error
	func() {
		defer func() {
			n.flags.BeingEvaluated = false
			if r := recover(); r != nil {
				kernelErr = newErr(ErrCalculation, n.name, "", fmt.Errorf("panic during kernel: %v", r))
			}
		}()
		if n.activeKernel == nil {
			kernelErr = newErr(ErrCalculation, n.name, "", errors.New("no active kernel"))
			return
		}
		kernelErr = n.activeKernel(n)
	}()

	n.calls++
	if kernelErr != nil {
		n.lastErr = kernelErr
		return kernelErr
	}
	n.flags.Tainted = false
	n.lastErr = nil
	return nil
}
