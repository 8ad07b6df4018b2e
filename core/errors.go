// Package core implements the engine's hub types: Node, Output, Input,
// PortContainer, FlagsDescriptor, and Graph (§3, §4.2–§4.5). These types
// are mutually referential (a Node owns ports, an Output back-references
// its Node and child Inputs, a Graph owns Nodes and drives their
// lifecycle) so — mirroring the teacher's single `core` package bundling
// Graph+Vertex+Edge — they live together in one package.
package core

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, one per §7 error category. Typed errors below
// wrap one of these so callers can use errors.Is regardless of which
// node/port produced the failure.
var (
	ErrInitialization = errors.New("core: initialization error")
	ErrTypeFunction    = errors.New("core: type function error")
	ErrAllocation      = errors.New("core: allocation error")
	ErrConnection      = errors.New("core: connection error")
	ErrReconnection    = errors.New("core: reconnection error")
	ErrClosing         = errors.New("core: closing error")
	ErrUnclosedGraph   = errors.New("core: unclosed graph")
	ErrClosedGraph     = errors.New("core: graph already closed")
	ErrOpening         = errors.New("core: opening error")
	ErrCalculation     = errors.New("core: calculation error")
	ErrCritical        = errors.New("core: critical invariant violation")
	ErrNodeInvalid     = errors.New("core: node is invalid")
	ErrPortNotFound    = errors.New("core: port not found")
	ErrDuplicateName   = errors.New("core: duplicate port name")
	ErrNoCurrentGraph  = errors.New("core: no current graph on context stack")
)

// NodeError carries §7 error-kind context: which node/port was involved
// and the underlying cause, if any.
type NodeError struct {
	Kind error  // one of the Err* sentinels above
	Node string // owning node name, may be empty
	Port string // input/output name, may be empty
	Err  error  // underlying cause, may be nil
}

func (e *NodeError) Error() string {
	msg := e.Kind.Error()
	if e.Node != "" {
		msg += fmt.Sprintf(" [node=%s", e.Node)
		if e.Port != "" {
			msg += fmt.Sprintf(" port=%s", e.Port)
		}
		msg += "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the error kind (for errors.Is(err, ErrConnection)
// style checks) and the underlying cause.
func (e *NodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newErr(kind error, node, port string, cause error) *NodeError {
	return &NodeError{Kind: kind, Node: node, Port: port, Err: cause}
}

var errNotResolved = errors.New("core: descriptor not resolved")
