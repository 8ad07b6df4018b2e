package descriptor_test

import (
	"testing"

	"github.com/dagops/dflow/descriptor"
	"github.com/stretchr/testify/require"
)

type fakeAxis struct {
	desc *descriptor.DataDescriptor
	unit string
}

func (f *fakeAxis) Desc() *descriptor.DataDescriptor { return f.desc }
func (f *fakeAxis) AxisUnit(bool) string             { return f.unit }

func TestDataDescriptor_ResolvedRequiresBothDtypeAndShape(t *testing.T) {
	t.Parallel()
	d := descriptor.New()
	require.False(t, d.Resolved())

	d.SetDtype(descriptor.F64)
	require.False(t, d.Resolved(), "shape is still nil")

	d.SetShape([]int{2, 3})
	require.True(t, d.Resolved())
	require.Equal(t, 2, d.Dim())
	require.Equal(t, 6, d.Size())
}

func TestDataDescriptor_SetShapeNilUnresolves(t *testing.T) {
	t.Parallel()
	d := descriptor.New()
	d.SetDtype(descriptor.F64)
	d.SetShape([]int{4})
	require.True(t, d.Resolved())

	d.SetShape(nil)
	require.False(t, d.Resolved())
	require.Equal(t, 0, d.Dim())
}

func TestDataDescriptor_ConsistentWith(t *testing.T) {
	t.Parallel()
	d := descriptor.New()
	d.SetDtype(descriptor.F64)
	d.SetShape([]int{2, 2})

	require.True(t, d.ConsistentWith([]int{2, 2}, descriptor.F64))
	require.False(t, d.ConsistentWith([]int{2, 2}, descriptor.F32), "dtype mismatch")
	require.False(t, d.ConsistentWith([]int{3, 2}, descriptor.F64), "shape mismatch")
}

func TestDataDescriptor_ValidateEdgesShape(t *testing.T) {
	t.Parallel()
	d := descriptor.New()
	d.SetDtype(descriptor.F64)
	d.SetShape([]int{3})

	edgeDesc := descriptor.New()
	edgeDesc.SetDtype(descriptor.F64)
	edgeDesc.SetShape([]int{4}) // shape[0]+1
	d.SetAxesEdges([]descriptor.AxisSource{&fakeAxis{desc: edgeDesc}})
	require.NoError(t, d.Validate())

	badEdgeDesc := descriptor.New()
	badEdgeDesc.SetDtype(descriptor.F64)
	badEdgeDesc.SetShape([]int{2})
	d.SetAxesEdges([]descriptor.AxisSource{&fakeAxis{desc: badEdgeDesc}})
	require.ErrorIs(t, d.Validate(), descriptor.ErrEdgesShapeInvalid)
}

func TestDataDescriptor_ValidateMeshShape(t *testing.T) {
	t.Parallel()
	d := descriptor.New()
	d.SetDtype(descriptor.F64)
	d.SetShape([]int{2, 3})

	meshDesc := descriptor.New()
	meshDesc.SetDtype(descriptor.F64)
	meshDesc.SetShape([]int{2, 3})
	d.SetAxesMeshes([]descriptor.AxisSource{&fakeAxis{desc: meshDesc}, nil})
	require.NoError(t, d.Validate())

	badMeshDesc := descriptor.New()
	badMeshDesc.SetDtype(descriptor.F64)
	badMeshDesc.SetShape([]int{3, 3})
	d.SetAxesMeshes([]descriptor.AxisSource{&fakeAxis{desc: badMeshDesc}, nil})
	require.ErrorIs(t, d.Validate(), descriptor.ErrMeshShapeInvalid)
}

func TestDataDescriptor_AxisLabelFallsBackFromEdgesToMesh(t *testing.T) {
	t.Parallel()
	d := descriptor.New()
	d.SetDtype(descriptor.F64)
	d.SetShape([]int{3})

	meshDesc := descriptor.New()
	d.SetAxesMeshes([]descriptor.AxisSource{&fakeAxis{desc: meshDesc, unit: "GeV"}})
	require.Equal(t, "GeV", d.AxisLabel(0, descriptor.AxisAny, false))
	require.Equal(t, "", d.AxisLabel(0, descriptor.AxisEdges, false), "no edges bound")
	require.Equal(t, "GeV", d.AxisLabel(0, descriptor.AxisMesh, false))
}

func TestDType_String(t *testing.T) {
	t.Parallel()
	require.Equal(t, "f64", descriptor.F64.String())
	require.Equal(t, "unknown", descriptor.DTypeUnknown.String())
}
