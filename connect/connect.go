// Package connect implements the `>>`/`<<` connection DSL (§4.6) as
// ordinary Go functions — Go has no operator overloading, so each shape
// of the original's shift-operator dispatch becomes a named function
// here, dispatching on its operands' concrete types the way a type
// switch would in the teacher's own connection code.
package connect

import (
	"fmt"
	"sync"

	"github.com/dagops/dflow/core"
)

// scopeCounter hands out a monotonically increasing "batch scope id"
// (§4.7), one per top-level ConnectNode call made with scope 0 and one per
// ConnectNodes/ConnectMap/FromNode/ConnectOutputsToNode call, shared by
// every output touched within that call (Connect binds directly and uses
// none) — the Go equivalent of the teacher's counter incremented once per
// `>>` expression.
var scopeCounter struct {
	mu  sync.Mutex
	cur int
}

func nextScope() int {
	scopeCounter.mu.Lock()
	defer scopeCounter.mu.Unlock()
	scopeCounter.cur++
	return scopeCounter.cur
}

// Connect wires src directly into dst (`Output >> Input`, §4.6).
func Connect(src *core.Output, dst *core.Input) error {
	return dst.Bind(src)
}

// ConnectNode wires src into the next missing input of dst per dst's
// InputStrategy (`Output >> Node`, §4.6). All calls made for a single
// logical `>>` statement should share a scopeID; pass 0 to mint a fresh
// one.
func ConnectNode(src *core.Output, dst *core.Node, scopeID int) (*core.Input, error) {
	if scopeID == 0 {
		scopeID = nextScope()
	}
	return dst.Strategy().Connect(dst, scopeID, src)
}

// ConnectInputs wires src into every element of dsts in order
// (`Output >> Sequence[Input]`, §4.6).
func ConnectInputs(src *core.Output, dsts []*core.Input) error {
	for _, d := range dsts {
		if err := Connect(src, d); err != nil {
			return err
		}
	}
	return nil
}

// ConnectNodes wires src into every node of dsts, sharing one scope id
// across the whole statement (`Output >> Sequence[Node]`, §4.6).
func ConnectNodes(src *core.Output, dsts []*core.Node) error {
	scope := nextScope()
	for _, d := range dsts {
		if _, err := ConnectNode(src, d, scope); err != nil {
			return err
		}
	}
	return nil
}

// ConnectMap wires src into every targets[key] (`Output >> Mapping`,
// §4.6). A target may be an *core.Input or *core.Node.
func ConnectMap(src *core.Output, targets map[string]any) error {
	scope := nextScope()
	for key, t := range targets {
		if err := connectOne(src, t, scope); err != nil {
			return fmt.Errorf("connect: key %q: %w", key, err)
		}
	}
	return nil
}

func connectOne(src *core.Output, target any, scope int) error {
	switch t := target.(type) {
	case *core.Input:
		return Connect(src, t)
	case *core.Node:
		_, err := ConnectNode(src, t, scope)
		return err
	case map[string]any:
		for key, nested := range t {
			if err := connectOne(src, nested, scope); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("connect: unsupported connection target %T: %w", target, core.ErrConnection)
	}
}

// FromNode dispatches `Node >> X` (§4.6): if src has exactly one output,
// forwards that output; if src's outputs and targets are equal in
// length, connects pairwise; otherwise fails with ErrConnection.
func FromNode(src *core.Node, targets []any) error {
	outs := src.Outputs().Iter(false)
	scope := nextScope()

	if len(outs) == 1 {
		for _, t := range targets {
			if err := connectOne(outs[0], t, scope); err != nil {
				return err
			}
		}
		return nil
	}
	if len(outs) != len(targets) {
		return fmt.Errorf("connect: node %q has %d outputs, %d targets given: %w", src.Name(), len(outs), len(targets), core.ErrConnection)
	}
	for i, t := range targets {
		if err := connectOne(outs[i], t, scope); err != nil {
			return err
		}
	}
	return nil
}

// ConnectOutputsToNode dispatches `Sequence[Output] >> Node`: each
// output is run through dst's strategy in turn, all sharing one scope id
// so `ForBlock`-style strategies group them into a single batch (§4.7,
// scenario S6).
func ConnectOutputsToNode(srcs []*core.Output, dst *core.Node) error {
	scope := nextScope()
	for _, src := range srcs {
		if _, err := ConnectNode(src, dst, scope); err != nil {
			return err
		}
	}
	return nil
}

// ConnectFromMap dispatches `Node << Mapping[name -> Output]` (§4.6): for
// every input of dst not yet bound to a parent output, looks up a
// same-named Output in srcs and connects it. Inputs without a matching
// key, or already bound, are left untouched.
func ConnectFromMap(dst *core.Node, srcs map[string]*core.Output) error {
	for _, in := range dst.Inputs().IterAll() {
		if in.ParentOutput() != nil {
			continue
		}
		src, ok := srcs[in.Name()]
		if !ok {
			continue
		}
		if err := Connect(src, in); err != nil {
			return err
		}
	}
	return nil
}
