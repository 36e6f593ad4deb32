package harness

import (
	"sort"

	"github.com/vango-dev/vharness/pkg/engine"
	"github.com/vango-dev/vharness/pkg/vdom"
)

// RenderEvent describes one completed render batch. Events are immutable
// and published in batch order.
type RenderEvent struct {
	// Seq numbers events per harness, starting at 1.
	Seq uint64

	// DispatcherID is the id of the dispatcher the batch ran on.
	DispatcherID string

	// Batch is the engine's batch. It must not be modified.
	Batch *engine.Batch

	updated  map[int]struct{}
	disposed map[int]struct{}
	frames   vdom.FrameSource
}

func newRenderEvent(seq uint64, dispatcherID string, batch *engine.Batch, frames vdom.FrameSource) *RenderEvent {
	e := &RenderEvent{
		Seq:          seq,
		DispatcherID: dispatcherID,
		Batch:        batch,
		updated:      make(map[int]struct{}, len(batch.UpdatedComponents)),
		disposed:     make(map[int]struct{}, len(batch.DisposedComponents)),
		frames:       frames,
	}
	for _, id := range batch.UpdatedComponents {
		e.updated[id] = struct{}{}
	}
	for _, id := range batch.DisposedComponents {
		e.disposed[id] = struct{}{}
	}
	return e
}

// Updated returns the ids of the components rendered in the batch, sorted.
func (e *RenderEvent) Updated() []int { return sortedIDs(e.updated) }

// Disposed returns the ids of the components disposed in the batch, sorted.
func (e *RenderEvent) Disposed() []int { return sortedIDs(e.disposed) }

// IsUpdated reports whether component id was rendered in the batch.
func (e *RenderEvent) IsUpdated(id int) bool {
	_, ok := e.updated[id]
	return ok
}

// IsDisposed reports whether component id was disposed in the batch.
func (e *RenderEvent) IsDisposed(id int) bool {
	_, ok := e.disposed[id]
	return ok
}

// HasChangesTo reports whether the batch rendered or disposed component id
// or any component nested in it. It reads the live frame tree, so it may
// only be called while the event is being delivered.
func (e *RenderEvent) HasChangesTo(id int) bool {
	if e.touched(id) {
		return true
	}
	if e.frames == nil {
		return false
	}

	pending := []int{id}
	seen := map[int]bool{id: true}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		frames, _ := e.frames.Frames(current)
		for _, f := range frames {
			if f.Kind != vdom.FrameComponent || seen[f.ComponentID] {
				continue
			}
			if e.touched(f.ComponentID) {
				return true
			}
			seen[f.ComponentID] = true
			pending = append(pending, f.ComponentID)
		}
	}
	return false
}

func (e *RenderEvent) touched(id int) bool {
	return e.IsUpdated(id) || e.IsDisposed(id)
}

func sortedIDs(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
