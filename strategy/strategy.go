// Package strategy implements the InputStrategy variants a Node's
// missing-input policy selects from (§4.7): what a bulk `>>` connection
// does when it needs an input that does not yet exist. Package connect
// drives these through core.InputStrategy; a Node references one without
// core needing to import this package.
package strategy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dagops/dflow/core"
)

// Fail always rejects, mirroring core's own built-in default. Exported
// here so callers can set it back explicitly after trying another
// strategy.
type Fail struct{}

func (Fail) Connect(n *core.Node, _ int, _ *core.Output) (*core.Input, error) {
	return nil, fmt.Errorf("strategy: node %q has no input strategy configured: %w", n.Name(), core.ErrConnection)
}

// inputFmt names the next auto-created input from the node's current
// positional input count, e.g. "input_0", "input_1", ...
func inputFmt(n *core.Node) string {
	return fmt.Sprintf("input_%d", n.Inputs().LenPos())
}

// AddNewInput appends one new positional input per `>>` step, named by
// inputFmt, and binds src to it.
type AddNewInput struct{}

func (AddNewInput) Connect(n *core.Node, _ int, src *core.Output) (*core.Input, error) {
	in, err := n.AddInput(inputFmt(n), true, false, false)
	if err != nil {
		return nil, err
	}
	if err := in.Bind(src); err != nil {
		return nil, err
	}
	return in, nil
}

// AddNewInputAddNewOutput appends a new input and a paired new output per
// step; Input.ChildOutput links the two (one output per input, §4.7).
type AddNewInputAddNewOutput struct{}

func (AddNewInputAddNewOutput) Connect(n *core.Node, _ int, src *core.Output) (*core.Input, error) {
	idx := n.Inputs().LenPos()
	in, err := n.AddInput(fmt.Sprintf("input_%d", idx), true, false, false)
	if err != nil {
		return nil, err
	}
	out, err := n.AddOutput(fmt.Sprintf("output_%d", idx), true, false, false)
	if err != nil {
		return nil, err
	}
	in.SetChildOutput(out)
	if err := in.Bind(src); err != nil {
		return nil, err
	}
	return in, nil
}

// AddNewInputAddAndKeepSingleOutput appends a new input per step but
// ensures at most one shared output exists across all steps; every new
// input's ChildOutput points at that single output.
type AddNewInputAddAndKeepSingleOutput struct {
	mu  sync.Mutex
	out *core.Output
}

func (s *AddNewInputAddAndKeepSingleOutput) Connect(n *core.Node, _ int, src *core.Output) (*core.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := n.AddInput(inputFmt(n), true, false, false)
	if err != nil {
		return nil, err
	}
	if s.out == nil {
		s.out, err = n.AddOutput("output", true, false, false)
		if err != nil {
			return nil, err
		}
	}
	in.SetChildOutput(s.out)
	if err := in.Bind(src); err != nil {
		return nil, err
	}
	return in, nil
}

// AddNewInputAddNewOutputForBlock adds one new output per distinct scope
// id (a single `>>` statement); every input connected within that
// statement shares the block's output (§4.7, scenario S6).
type AddNewInputAddNewOutputForBlock struct {
	mu        sync.Mutex
	blockOut  map[int]*core.Output
}

func (s *AddNewInputAddNewOutputForBlock) Connect(n *core.Node, scopeID int, src *core.Output) (*core.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := n.AddInput(inputFmt(n), true, false, false)
	if err != nil {
		return nil, err
	}
	if s.blockOut == nil {
		s.blockOut = make(map[int]*core.Output)
	}
	out, ok := s.blockOut[scopeID]
	if !ok {
		out, err = n.AddOutput(fmt.Sprintf("output_%d", n.Outputs().LenPos()), true, false, false)
		if err != nil {
			return nil, err
		}
		s.blockOut[scopeID] = out
	}
	in.SetChildOutput(out)
	if err := in.Bind(src); err != nil {
		return nil, err
	}
	return in, nil
}

// AddNewInputAddNewOutputForNInputs adds one new output for every N
// consecutive inputs (across however many `>>` steps that takes).
type AddNewInputAddNewOutputForNInputs struct {
	N int

	mu      sync.Mutex
	current *core.Output
	inGroup int
}

func (s *AddNewInputAddNewOutputForNInputs) Connect(n *core.Node, _ int, src *core.Output) (*core.Input, error) {
	if s.N <= 0 {
		return nil, fmt.Errorf("strategy: AddNewInputAddNewOutputForNInputs requires N>0: %w", core.ErrInitialization)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := n.AddInput(inputFmt(n), true, false, false)
	if err != nil {
		return nil, err
	}
	if s.current == nil || s.inGroup == s.N {
		s.current, err = n.AddOutput(fmt.Sprintf("output_%d", n.Outputs().LenPos()), true, false, false)
		if err != nil {
			return nil, err
		}
		s.inGroup = 0
	}
	in.SetChildOutput(s.current)
	s.inGroup++
	if err := in.Bind(src); err != nil {
		return nil, err
	}
	return in, nil
}

// ViewConcat targets a single-output node: every new input shares that
// fixed output as its ChildOutput (the output's PostAllocate hook aliases
// each bound input's upstream buffer into the output's own storage, see
// package kernels' NewViewConcat).
type ViewConcat struct{}

func (ViewConcat) Connect(n *core.Node, _ int, src *core.Output) (*core.Input, error) {
	outs := n.Outputs().Iter(false)
	if len(outs) != 1 {
		return nil, fmt.Errorf("strategy: ViewConcat requires exactly one output, node %q has %d: %w", n.Name(), len(outs), core.ErrConnection)
	}
	in, err := n.AddInput(inputFmt(n), true, false, false)
	if err != nil {
		return nil, err
	}
	in.SetChildOutput(outs[0])
	if err := in.Bind(src); err != nil {
		return nil, err
	}
	return in, nil
}

// Inherit delegates to source's strategy, then registers the newly
// created input (and, when inheritOutputs is set, its paired output) on
// target too — how MetaNode re-exports a subnode's auto-created ports as
// its own (§4.7, §4.11).
type Inherit struct {
	Source         core.InputStrategy
	Target         *core.Node
	InheritOutputs bool
}

func (s Inherit) Connect(n *core.Node, scopeID int, src *core.Output) (*core.Input, error) {
	if s.Source == nil || s.Target == nil {
		return nil, fmt.Errorf("strategy: Inherit misconfigured: %w", core.ErrInitialization)
	}
	in, err := s.Source.Connect(n, scopeID, src)
	if err != nil {
		return nil, err
	}
	if err := s.Target.Inputs().Add(in, in.Name(), true, false, false); err != nil {
		return nil, err
	}
	if s.InheritOutputs && in.ChildOutput() != nil {
		out := in.ChildOutput()
		if err := s.Target.Outputs().Add(out, out.Name(), true, false, false); err != nil && !errors.Is(err, core.ErrDuplicateName) {
			return nil, err
		}
	}
	return in, nil
}
