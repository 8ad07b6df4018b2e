package core

// FlagsDescriptor holds the per-node taint/freeze/invalid/closed/allocated
// flags and their propagation (§3 FlagsDescriptor, §4.5). A Node embeds
// one by value; all transitions are driven through Node methods so the
// invariants in §4.5 stay in one place.
type FlagsDescriptor struct {
	Tainted          bool // outputs need recomputation
	TypesTainted     bool // type-function must rerun
	Frozen           bool // taint propagation suppressed at this node
	FrozenTainted    bool // a taint arrived while frozen
	Invalid          bool // node is unusable; result poisoned
	Closed           bool
	Allocated        bool
	NeedsReallocation bool
	NeedsPostAllocate bool
	BeingEvaluated    bool
}

// newConstructionFlags returns the flag state a freshly constructed Node
// starts with (§4.5: "Construction").
func newConstructionFlags() FlagsDescriptor {
	return FlagsDescriptor{Tainted: true, TypesTainted: true}
}
