// Package labels holds the free-form annotation bag attached to Nodes and
// Outputs (§3). Labels are pure metadata: nothing in the engine reads
// them to make evaluation decisions; plotting/export collaborators (§6)
// are the only consumers besides the getters' fallback chains defined
// here.
package labels

// Labels is a bag of optional annotation strings plus combinatorial index
// bookkeeping used by NodeStorage. The zero value is a usable, empty
// Labels.
type Labels struct {
	Text       string
	Graph      string
	Latex      string
	Axis       string
	XAxis      string
	PlotTitle  string
	RootTitle  string
	RootAxis   string
	Mark       string
	PlotMethod string
	NodeHidden bool

	// Paths holds the dotted NodeStorage origin paths this object was
	// reachable from, populated by storage.ReadPaths.
	Paths []string

	// IndexValues/IndexDict describe the combinatorial index a storage
	// entry was generated from (e.g. {"Np": "3"}).
	IndexValues []string
	IndexDict   map[string]string
}

// Clone returns a deep-enough copy (slices/maps are copied) so that a
// caller may attach a Labels override to an Output without aliasing the
// node's own Labels.
func (l *Labels) Clone() *Labels {
	if l == nil {
		return &Labels{}
	}
	out := *l
	if l.Paths != nil {
		out.Paths = append([]string(nil), l.Paths...)
	}
	if l.IndexValues != nil {
		out.IndexValues = append([]string(nil), l.IndexValues...)
	}
	if l.IndexDict != nil {
		out.IndexDict = make(map[string]string, len(l.IndexDict))
		for k, v := range l.IndexDict {
			out.IndexDict[k] = v
		}
	}
	return &out
}

// PlotTitleOr returns PlotTitle, falling back to Latex, then Text (§3:
// "plottitle ← latex ← text").
func (l *Labels) PlotTitleOr() string {
	if l == nil {
		return ""
	}
	if l.PlotTitle != "" {
		return l.PlotTitle
	}
	if l.Latex != "" {
		return l.Latex
	}
	return l.Text
}

// RootTitleOr returns RootTitle, falling back to Latex, then Text,
// mirroring PlotTitleOr for ROOT-facing exporters.
func (l *Labels) RootTitleOr() string {
	if l == nil {
		return ""
	}
	if l.RootTitle != "" {
		return l.RootTitle
	}
	if l.Latex != "" {
		return l.Latex
	}
	return l.Text
}

// AxisUnit returns the axis label for this object: RootAxis when root is
// true and set, else Axis falling back to XAxis.
func (l *Labels) AxisUnit(root bool) string {
	if l == nil {
		return ""
	}
	if root && l.RootAxis != "" {
		return l.RootAxis
	}
	if l.Axis != "" {
		return l.Axis
	}
	return l.XAxis
}

// Merge overlays non-empty fields of src onto l (src wins on conflicts),
// used by NodeStorage.ReadLabels when applying a YAML group to many
// entries (§4.10, §6).
func (l *Labels) Merge(src *Labels) {
	if src == nil {
		return
	}
	if src.Text != "" {
		l.Text = src.Text
	}
	if src.Graph != "" {
		l.Graph = src.Graph
	}
	if src.Latex != "" {
		l.Latex = src.Latex
	}
	if src.Axis != "" {
		l.Axis = src.Axis
	}
	if src.XAxis != "" {
		l.XAxis = src.XAxis
	}
	if src.PlotTitle != "" {
		l.PlotTitle = src.PlotTitle
	}
	if src.RootTitle != "" {
		l.RootTitle = src.RootTitle
	}
	if src.RootAxis != "" {
		l.RootAxis = src.RootAxis
	}
	if src.Mark != "" {
		l.Mark = src.Mark
	}
	if src.PlotMethod != "" {
		l.PlotMethod = src.PlotMethod
	}
	if src.NodeHidden {
		l.NodeHidden = true
	}
}
