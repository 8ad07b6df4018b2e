package core

// buffer is the concrete numeric storage backing an Output (§3, §5
// "Resource policy"). The engine's concrete kernels operate on float64
// regardless of the descriptor's nominal DType: DType stays pure
// type-checking metadata (dtype compatibility is enforced by typefn
// helpers at close time) rather than a storage-layout discriminator,
// since concrete numeric kernels beyond the engine's own needs are out of
// scope (§1 Non-goals). See DESIGN.md for this simplification.
type buffer struct {
	data []float64
}

func newBuffer(size int) *buffer {
	return &buffer{data: make([]float64, size)}
}

// view returns the read-only slice exposed by Output.Data() outside
// evaluation. Go has no read-only slice type; callers must not mutate it
// (documented contract, §4.5).
func (b *buffer) view() []float64 {
	if b == nil {
		return nil
	}
	return b.data
}

// writable returns the mutable slice a kernel writes into while
// being_evaluated, or that Output.Set/SetAt use for source mutation.
func (b *buffer) writable() []float64 {
	if b == nil {
		return nil
	}
	return b.data
}
