package labels_test

import (
	"testing"

	"github.com/dagops/dflow/labels"
	"github.com/stretchr/testify/require"
)

func TestClone_DeepCopiesSlicesAndMaps(t *testing.T) {
	t.Parallel()
	l := &labels.Labels{
		Text:        "x",
		Paths:       []string{"a.b"},
		IndexValues: []string{"3"},
		IndexDict:   map[string]string{"Np": "3"},
	}
	clone := l.Clone()
	require.Equal(t, l.Text, clone.Text)

	clone.Paths[0] = "changed"
	clone.IndexDict["Np"] = "changed"
	require.Equal(t, "a.b", l.Paths[0], "mutating the clone's slice must not affect the original")
	require.Equal(t, "3", l.IndexDict["Np"], "mutating the clone's map must not affect the original")
}

func TestClone_NilReceiverReturnsEmpty(t *testing.T) {
	t.Parallel()
	var l *labels.Labels
	clone := l.Clone()
	require.NotNil(t, clone)
	require.Equal(t, "", clone.Text)
}

func TestMerge_OverlaysOnlyNonEmptyFields(t *testing.T) {
	t.Parallel()
	dst := &labels.Labels{Text: "keep", Axis: "old axis"}
	dst.Merge(&labels.Labels{Axis: "new axis"})
	require.Equal(t, "keep", dst.Text, "fields absent from src must survive untouched")
	require.Equal(t, "new axis", dst.Axis, "fields present in src must overwrite")
}

func TestMerge_NilSourceIsNoop(t *testing.T) {
	t.Parallel()
	dst := &labels.Labels{Text: "keep"}
	dst.Merge(nil)
	require.Equal(t, "keep", dst.Text)
}

func TestPlotTitleOr_FallsBackThroughLatexToText(t *testing.T) {
	t.Parallel()
	require.Equal(t, "plain text", (&labels.Labels{Text: "plain text"}).PlotTitleOr())
	require.Equal(t, "$x^2$", (&labels.Labels{Text: "plain text", Latex: "$x^2$"}).PlotTitleOr())
	require.Equal(t, "title", (&labels.Labels{Text: "plain text", Latex: "$x^2$", PlotTitle: "title"}).PlotTitleOr())

	var nilLabels *labels.Labels
	require.Equal(t, "", nilLabels.PlotTitleOr())
}

func TestAxisUnit_PrefersRootAxisOnlyWhenRootRequested(t *testing.T) {
	t.Parallel()
	l := &labels.Labels{Axis: "axis", XAxis: "xaxis", RootAxis: "rootaxis"}
	require.Equal(t, "rootaxis", l.AxisUnit(true))
	require.Equal(t, "axis", l.AxisUnit(false))

	xOnly := &labels.Labels{XAxis: "xaxis"}
	require.Equal(t, "xaxis", xOnly.AxisUnit(true), "falls back to XAxis when Axis and RootAxis are both empty")
}
