package engine

// Batch describes the outcome of one render pass.
type Batch struct {
	// UpdatedComponents lists the ids of components that rendered, in
	// render order. A component appears at most once per batch.
	UpdatedComponents []int

	// DisposedComponents lists the ids of components that were unmounted.
	DisposedComponents []int

	// DisposedHandlers lists event handler ids that are no longer valid.
	DisposedHandlers []uint64
}

// Empty reports whether the batch carries no changes.
func (b *Batch) Empty() bool {
	return b == nil || len(b.UpdatedComponents) == 0 && len(b.DisposedComponents) == 0
}

// BatchHandler receives every completed render batch.
// It is called on the renderer's goroutine, after the pass has finished
// and frames reflect the new state.
type BatchHandler interface {
	OnBatchComplete(batch *Batch)
}

// BatchHandlerFunc adapts a function to BatchHandler.
type BatchHandlerFunc func(batch *Batch)

// OnBatchComplete implements BatchHandler.
func (f BatchHandlerFunc) OnBatchComplete(batch *Batch) {
	f(batch)
}

// EventFieldInfo identifies the form field an event updates.
type EventFieldInfo struct {
	ComponentID int
	FieldValue  any
}
