// Package core implements the engine's hub types and the lifecycle that
// ties them together: Node, Output, Input, PortContainer, FlagsDescriptor
// and Graph.
//
// A Graph owns an insertion-ordered set of Nodes. Each Node hosts typed
// Input and Output ports; Outputs own or adopt a shared numeric buffer,
// Inputs read through to their bound parent Output. Connecting an Input
// to an Output (see package connect) taints the downstream Node's type
// state; Graph.Close runs the two-phase close (type-resolution pass,
// then allocation pass) that the engine requires before any Node's data
// can be read, and Graph.Open reverses it, cascading downstream.
//
// Pulling a value (Output.Data, Node.Touch) walks to tainted ancestors
// first, runs their kernels in dependency order, then this node's own —
// so a caller touching any single Output always observes a fully
// up-to-date subgraph no matter how deep the taint.
//
// See package connect for the `>>`/`<<` wiring surface, package strategy
// for the richer InputStrategy implementations, and package typefn for
// the standard type-function helper vocabulary nodes build their
// TypeFunc from.
package core
