package core

// runTypeFunc is the per-node half of the type-resolution pass (§4.4
// step 2): recurse into parents first, then run this node's own
// type-function exactly once per taint. A failure is fatal when strict,
// else recorded and the node stays type-tainted for the next close.
func (n *Node) runTypeFunc(strict bool) error {
	if !n.flags.TypesTainted {
		return nil
	}
	for _, in := range n.inputs.IterAll() {
		if in.parentOutput != nil {
			if err := in.parentOutput.node.runTypeFunc(strict); err != nil {
				return err
			}
		}
	}
	if n.typeFunc != nil {
		if err := n.typeFunc(n); err != nil {
			wrapped := newErr(ErrTypeFunction, n.name, "", err)
			n.lastErr = wrapped
			if strict {
				return wrapped
			}
			return nil
		}
	}
	n.flags.TypesTainted = false
	n.flags.NeedsReallocation = true
	n.lastErr = nil
	return nil
}

// allocateSelf is the per-node half of the allocation pass (§4.4 step
// 3): recurse into parents' allocation first, then allocate/adopt this
// node's own output buffers and any allocatable input buffers, running
// _post_allocate exactly once if anything was (re)assigned.
func (n *Node) allocateSelf() error {
	if n.flags.TypesTainted {
		// Type resolution did not complete (deferred failure); nothing
		// to allocate yet.
		return nil
	}
	for _, in := range n.inputs.IterAll() {
		if in.parentOutput != nil {
			if err := in.parentOutput.node.allocateSelf(); err != nil {
				return err
			}
		}
	}

	reassigned := false
	for _, out := range n.outputs.IterAll() {
		if err := out.allocate(); err != nil {
			return err
		}
		if out.justReassigned {
			reassigned = true
		}
	}
	for _, in := range n.inputs.IterAll() {
		if in.allocatable {
			prev := in.ownBuffer
			if err := in.allocateOwnBuffer(); err != nil {
				return err
			}
			if in.ownBuffer != prev {
				reassigned = true
			}
		}
	}

	if reassigned || n.flags.NeedsPostAllocate {
		if n.postAllocate != nil {
			if err := n.postAllocate(n); err != nil {
				return newErr(ErrAllocation, n.name, "", err)
			}
		}
		n.buildParentCallbacks()
		n.flags.NeedsPostAllocate = false
	}
	if n.parentCallbacks == nil {
		n.buildParentCallbacks()
	}

	n.flags.Allocated = true
	n.flags.NeedsReallocation = false
	return nil
}

// buildParentCallbacks caches, in positional input order and deduplicated
// per distinct parent node, the touch callbacks Touch() runs before its
// own kernel (§5 "Ordering guarantees").
func (n *Node) buildParentCallbacks() {
	ins := n.inputs.IterAll()
	cbs := make([]func() error, 0, len(ins))
	seen := make(map[*Node]bool, len(ins))
	for _, in := range ins {
		if in.parentOutput == nil {
			continue
		}
		p := in.parentOutput.node
		if seen[p] {
			continue
		}
		seen[p] = true
		cbs = append(cbs, p.Touch)
	}
	n.parentCallbacks = cbs
}

// propagateOpen recursively clears Closed and taints every downstream
// node reachable from n (§4.4: "requires that downstream nodes reopen as
// well").
func (n *Node) propagateOpen(visited map[*Node]bool) {
	if visited[n] {
		return
	}
	visited[n] = true
	n.flags.Closed = false
	n.taintSelf(false)
	for _, out := range n.outputs.IterAll() {
		for _, in := range out.ChildInputs() {
			in.node.propagateOpen(visited)
		}
	}
}
