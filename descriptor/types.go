// Package descriptor defines DataDescriptor: the dtype/shape/axis metadata
// carried by every Output and Input port in the engine.
//
// DataDescriptor never performs evaluation and never owns a numeric
// buffer; it only describes one. Axis edges/meshes are expressed through
// the AxisSource interface (rather than a concrete Output type) so this
// package stays a dependency-free leaf — core.Output implements
// AxisSource.
package descriptor

import "errors"

// Sentinel errors for DataDescriptor validation.
var (
	// ErrShapeRankMismatch indicates an axis array's rank does not match
	// the owner's rank.
	ErrShapeRankMismatch = errors.New("descriptor: axis rank mismatch")

	// ErrEdgesShapeInvalid indicates an edges array is not 1-D of length
	// shape[axis]+1.
	ErrEdgesShapeInvalid = errors.New("descriptor: edges array shape invalid")

	// ErrMeshShapeInvalid indicates a mesh array's shape does not equal
	// the owner's shape.
	ErrMeshShapeInvalid = errors.New("descriptor: mesh array shape invalid")

	// ErrInconsistentBuffer indicates a buffer's shape/dtype does not
	// match the descriptor.
	ErrInconsistentBuffer = errors.New("descriptor: buffer inconsistent with descriptor")
)

// DType is the element type carried by a buffer.
type DType int

// Recognized element types. DTypeUnknown marks an unresolved descriptor.
const (
	DTypeUnknown DType = iota
	F32
	F64
	I32
	I64
)

// String renders the DType name, used in error messages and debug labels.
func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case F64:
		return "f64"
	case I32:
		return "i32"
	case I64:
		return "i64"
	default:
		return "unknown"
	}
}

// AxisKind selects which axis metadata an axis_label lookup targets.
type AxisKind int

// Axis metadata kinds recognized by AxisLabel.
const (
	AxisAny AxisKind = iota
	AxisEdges
	AxisMesh
)

// AxisSource is the minimal read surface DataDescriptor needs from an
// Output used as an axis_edges/axis_meshes reference: its own resolved
// descriptor and, for axis-label lookups, a unit label. core.Output
// implements this; descriptor never imports core (that would cycle).
type AxisSource interface {
	// Desc returns the referenced Output's own DataDescriptor.
	Desc() *DataDescriptor
	// AxisUnit returns the label used by DataDescriptor.AxisLabel
	// (rootaxis_unit when root is requested and set, else axis_unit);
	// empty string if absent.
	AxisUnit(root bool) string
}

// DataDescriptor carries dtype, shape, and axis metadata for one port.
//
// A nil Shape (as opposed to an empty, zero-length slice) means
// "unresolved": the type-function pass has not yet assigned it. Rank is
// fixed once Shape is set non-nil even if some dimensions are zero.
type DataDescriptor struct {
	dtype DType
	shape []int // nil: unresolved

	axesEdges  []AxisSource // len 0 or == rank
	axesMeshes []AxisSource // len 0 or == rank
}

// New returns an unresolved DataDescriptor (DTypeUnknown, nil shape).
func New() *DataDescriptor {
	return &DataDescriptor{}
}

// Dtype returns the element type.
func (d *DataDescriptor) Dtype() DType { return d.dtype }

// SetDtype assigns the element type. Called only from a node's
// type-function during the type-resolution pass.
func (d *DataDescriptor) SetDtype(t DType) { d.dtype = t }

// Shape returns the resolved shape, or nil if unresolved. Callers must
// not mutate the returned slice.
func (d *DataDescriptor) Shape() []int { return d.shape }

// SetShape coerces seq into the descriptor's shape. Passing nil marks the
// descriptor unresolved again (used when a node's type-function needs to
// re-derive shape from scratch).
func (d *DataDescriptor) SetShape(seq []int) {
	if seq == nil {
		d.shape = nil
		return
	}
	cp := make([]int, len(seq))
	copy(cp, seq)
	d.shape = cp
}

// Resolved reports whether both dtype and shape have been assigned.
func (d *DataDescriptor) Resolved() bool {
	return d.dtype != DTypeUnknown && d.shape != nil
}

// Dim returns the rank (0 if unresolved).
func (d *DataDescriptor) Dim() int { return len(d.shape) }

// Size returns the product of the shape's dimensions (1 for rank 0, 0 if
// unresolved).
func (d *DataDescriptor) Size() int {
	if d.shape == nil {
		return 0
	}
	size := 1
	for _, s := range d.shape {
		size *= s
	}
	return size
}

// AxesEdges returns the per-axis bin-boundary references (len 0 or ==
// Dim()).
func (d *DataDescriptor) AxesEdges() []AxisSource { return d.axesEdges }

// AxesMeshes returns the per-axis coordinate references (len 0 or ==
// Dim()).
func (d *DataDescriptor) AxesMeshes() []AxisSource { return d.axesMeshes }

// SetAxesEdges assigns per-axis bin-boundary references. Each non-nil
// entry's own descriptor must be 1-D of length shape[i]+1 once both
// descriptors are resolved; SetAxesEdges itself does not validate (the
// type-function runs before shapes are final), callers should call
// Validate after the owner's shape settles.
func (d *DataDescriptor) SetAxesEdges(edges []AxisSource) { d.axesEdges = edges }

// SetAxesMeshes assigns per-axis coordinate references, mirroring
// SetAxesEdges.
func (d *DataDescriptor) SetAxesMeshes(meshes []AxisSource) { d.axesMeshes = meshes }

// Validate checks the histogram/mesh shape invariants of §3: an edges
// reference at axis i must be 1-D of length shape[i]+1; a mesh reference
// at axis i must have the owner's exact shape.
func (d *DataDescriptor) Validate() error {
	if len(d.axesEdges) != 0 && len(d.axesEdges) != d.Dim() {
		return ErrShapeRankMismatch
	}
	if len(d.axesMeshes) != 0 && len(d.axesMeshes) != d.Dim() {
		return ErrShapeRankMismatch
	}
	for i, e := range d.axesEdges {
		if e == nil {
			continue
		}
		es := e.Desc().Shape()
		if len(es) != 1 || es[0] != d.shape[i]+1 {
			return ErrEdgesShapeInvalid
		}
	}
	for _, m := range d.axesMeshes {
		if m == nil {
			continue
		}
		ms := m.Desc().Shape()
		if !shapeEqual(ms, d.shape) {
			return ErrMeshShapeInvalid
		}
	}
	return nil
}

// ConsistentWith reports whether a buffer of the given shape and dtype
// matches this descriptor exactly (§4.1: shape-AND-dtype match).
func (d *DataDescriptor) ConsistentWith(shape []int, dtype DType) bool {
	return d.dtype == dtype && shapeEqual(d.shape, shape)
}

// AxisLabel returns the axis_unit (or rootaxis_unit, when root is true)
// label of the referenced edge/mesh Output for the given axis and kind.
// AxisAny tries edges first, then mesh. Returns "" if nothing is bound.
func (d *DataDescriptor) AxisLabel(axis int, kind AxisKind, root bool) string {
	pick := func(src []AxisSource) string {
		if axis < 0 || axis >= len(src) || src[axis] == nil {
			return ""
		}
		return src[axis].AxisUnit(root)
	}
	switch kind {
	case AxisEdges:
		return pick(d.axesEdges)
	case AxisMesh:
		return pick(d.axesMeshes)
	default:
		if v := pick(d.axesEdges); v != "" {
			return v
		}
		return pick(d.axesMeshes)
	}
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
