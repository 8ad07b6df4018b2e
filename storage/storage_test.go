package storage_test

import (
	"testing"

	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/kernels"
	"github.com/dagops/dflow/storage"
	"github.com/stretchr/testify/require"
)

func TestStore_RejectsDuplicateKey(t *testing.T) {
	t.Parallel()
	s := storage.New()
	require.NoError(t, s.Store("a.b", 1))
	err := s.Store("a.b", 2)
	require.ErrorIs(t, err, core.ErrDuplicateName)
}

func TestWalkItems_InsertionOrder(t *testing.T) {
	t.Parallel()
	s := storage.New()
	require.NoError(t, s.Store("a", 1))
	require.NoError(t, s.Store("b", 2))
	require.NoError(t, s.Store("c", 3))

	items := s.WalkItems()
	require.Equal(t, []string{"a", "b", "c"}, []string{items[0].Key, items[1].Key, items[2].Key})
}

func TestConnect_KeyMatchingBulkConnect(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	a, err := kernels.NewArray(g, "a", []float64{1, 2})
	require.NoError(t, err)
	s, err := kernels.NewSum(g, "s", 1)
	require.NoError(t, err)

	aOut, err := a.Outputs().At(0)
	require.NoError(t, err)
	sIn, err := s.Inputs().At(0)
	require.NoError(t, err)

	src := storage.New()
	require.NoError(t, src.Store("x", aOut))
	dst := storage.New()
	require.NoError(t, dst.Store("x", sIn))

	require.NoError(t, src.Connect(dst, true))
	require.Equal(t, aOut, sIn.ParentOutput())
	_, ok := dst.Get("x")
	require.False(t, ok, "matched input should be removed when removeConnectedInputs is set")
}

func TestConnect_ErrorsWhenNoKeysMatch(t *testing.T) {
	t.Parallel()
	src := storage.New()
	require.NoError(t, src.Store("x", 1))
	dst := storage.New()
	require.NoError(t, dst.Store("y", 2))

	err := src.Connect(dst, false)
	require.ErrorIs(t, err, core.ErrConnection)
}

func TestReadLabels_MergesByLongestPrefix(t *testing.T) {
	t.Parallel()
	g := core.NewGraph()
	a, err := kernels.NewArray(g, "a", []float64{1})
	require.NoError(t, err)

	s := storage.New()
	require.NoError(t, s.Store("a", a))

	// A top-level "group" key doesn't add a path segment of its own, so
	// the nested "a" group applies to storage key "a" directly.
	yamlDoc := []byte(`
group:
  text: "top level"
  a:
    text: "leaf label"
`)
	require.NoError(t, s.ReadLabels(yamlDoc, true))
	require.Equal(t, "leaf label", a.Labels().Text)
}

func TestReadLabels_StrictErrorsWhenNothingMatches(t *testing.T) {
	t.Parallel()
	s := storage.New()
	require.NoError(t, s.Store("z", 1))

	yamlDoc := []byte(`
unrelated:
  text: "nope"
`)
	err := s.ReadLabels(yamlDoc, true)
	require.ErrorIs(t, err, core.ErrInitialization)
}
