// Package dflow is a directed acyclic dataflow engine for numerical
// computation: build a graph of typed operator Nodes producing
// multidimensional array Outputs, close it to resolve shapes/dtypes and
// allocate buffers, then pull values through it on demand.
//
// What is dflow?
//
//	A single-threaded, pull-based evaluation engine that brings together:
//
//	  - Core primitives: Nodes, typed Input/Output ports, PortContainers
//	  - A two-phase close: type resolution, then buffer allocation with
//	    edge-level buffer sharing
//	  - A taint/freeze/invalid flag state machine driving incremental
//	    recomputation
//	  - A parameter/constraint/Jacobian layer for numerical derivatives
//	    and covariance propagation
//
// Everything is organized under subpackages:
//
//	descriptor/ — dtype + shape + axis metadata (DataDescriptor)
//	labels/     — free-form node/output annotations
//	core/       — Node, Output, Input, PortContainer, FlagsDescriptor, Graph
//	typefn/     — shared type-function validation vocabulary
//	strategy/   — missing-input connection policies
//	connect/    — the `>>`/`<<` connection DSL, as Go functions
//	kernels/    — a small set of built-in operator nodes
//	storage/    — nested keyed directory of nodes/outputs/parameters
//	metanode/   — composite nodes re-exporting subnode ports
//	parameter/  — Parameters and GaussianConstraint
//	jacobian/   — finite-difference Jacobian and covariance propagation
//	fcn/        — closures mapping parameter overrides to outputs
//
//	go get github.com/dagops/dflow
package dflow
