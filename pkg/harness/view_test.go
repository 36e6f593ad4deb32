package harness

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vharness/pkg/engine"
	"github.com/vango-dev/vharness/pkg/htmldiff"
	"github.com/vango-dev/vharness/pkg/markup"
	"github.com/vango-dev/vharness/pkg/vdom"
)

// countingSerializer counts serializations.
type countingSerializer struct {
	inner Serializer
	calls atomic.Int32
}

func (s *countingSerializer) Render(src vdom.FrameSource, rootID int) (string, error) {
	s.calls.Add(1)
	return s.inner.Render(src, rootID)
}

func TestHeadingFindAllSmall(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[heading](h)
	require.NoError(t, err)

	smalls, err := view.FindAll("small")
	require.NoError(t, err)
	require.Len(t, smalls, 1)
	assert.Equal(t, "<small>Secondary text</small>", markup.Outer(smalls[0]))
}

func TestTableFirstCells(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[rowTable](h)
	require.NoError(t, err)

	cells, err := view.FindAll("td:first-child")
	require.NoError(t, err)
	require.Len(t, cells, 2)
	for _, cell := range cells {
		style, ok := markup.Attr(cell, "style")
		assert.True(t, ok)
		assert.NotEmpty(t, style)
	}
}

func TestGrandchildTextChangeIsOneDifference(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[outer](h)
	require.NoError(t, err)
	require.NoError(t, view.SaveSnapshot())

	ref, err := FindComponentIn[*leaf](view.RenderedView)
	require.NoError(t, err)
	require.NoError(t, h.Invoke(func() error {
		ref.Instance.Text = "changed"
		return ref.Instance.h.StateHasChanged()
	}))

	diffs, err := view.ChangesSinceSnapshot()
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, htmldiff.DiffText, diffs[0].Kind)
	assert.Equal(t, "initial", diffs[0].ControlValue)
	assert.Equal(t, "changed", diffs[0].TestValue)
}

func TestSnapshotThenDiffIsEmpty(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*counter](h, Param("Start", 1))
	require.NoError(t, err)

	require.NoError(t, view.SaveSnapshot())
	diffs, err := view.ChangesSinceSnapshot()
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestChangesSinceSnapshotRequiresSnapshot(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*counter](h)
	require.NoError(t, err)

	_, err = view.ChangesSinceSnapshot()
	assert.ErrorIs(t, err, ErrInvalidOperation)

	require.NoError(t, h.Invoke(func() error {
		view.Instance().Count = 5
		return view.Instance().h.StateHasChanged()
	}))
	_, err = view.ChangesSinceSnapshot()
	assert.ErrorIs(t, err, ErrInvalidOperation, "still fails after renders")
}

func TestFirstMarkupIsFixed(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*counter](h, Param("Label", "n="))
	require.NoError(t, err)
	first, err := view.FirstMarkup()
	require.NoError(t, err)
	assert.Equal(t, `<div><p>n=0</p><button data-on-click="1">+</button></div>`, first)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.DispatchEvent(handlerOf(t, view.RenderedView, "button", "click"), engine.EventFieldInfo{}, nil))
	}

	current, err := view.Markup()
	require.NoError(t, err)
	assert.Contains(t, current, "n=3")
	again, err := view.FirstMarkup()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	diffs, err := view.ChangesSinceFirstRender()
	require.NoError(t, err)
	require.Len(t, diffs, 1, "handler ids are ignored by default")
	assert.Equal(t, htmldiff.DiffText, diffs[0].Kind)
}

func TestMarkupCachedUntilRelevantRender(t *testing.T) {
	ser := &countingSerializer{inner: defaultOptions().serializer}
	h := newHarness(t, WithSerializer(ser))

	view, err := h.RenderFragment(func() *vdom.VNode {
		return vdom.Div(vdom.Child(&counter{}), vdom.Child(&leaf{}))
	})
	require.NoError(t, err)
	counterRef, err := FindComponentIn[*counter](view)
	require.NoError(t, err)
	leafRef, err := FindComponentIn[*leaf](view)
	require.NoError(t, err)
	leafView, err := h.View(leafRef.ID)
	require.NoError(t, err)

	base := ser.calls.Load()
	a, err := view.Markup()
	require.NoError(t, err)
	b, err := view.Markup()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, base, ser.calls.Load(), "no render, no serialization")

	require.NoError(t, h.Invoke(func() error {
		counterRef.Instance.Count = 7
		return counterRef.Instance.h.StateHasChanged()
	}))

	c, err := view.Markup()
	require.NoError(t, err)
	assert.NotEqual(t, b, c)
	assert.Equal(t, 2, view.RenderCount())
	assert.Equal(t, 1, leafView.RenderCount(), "sibling render does not touch the leaf view")

	before := ser.calls.Load()
	_, err = leafView.Markup()
	require.NoError(t, err)
	assert.Equal(t, before, ser.calls.Load())
}

func TestViewOfExistingComponent(t *testing.T) {
	h := newHarness(t)
	root, err := RenderComponent[outer](h)
	require.NoError(t, err)
	ref, err := FindComponentIn[*leaf](root.RenderedView)
	require.NoError(t, err)

	view, err := h.View(ref.ID)
	require.NoError(t, err)
	first, err := view.FirstMarkup()
	require.NoError(t, err)
	assert.Equal(t, `<span class="leaf">initial</span>`, first)

	_, err = h.View(424242)
	assert.ErrorIs(t, err, ErrComponentNotFound)
}

func TestEventErrorObservedOnlyByItsCaller(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*faulty](h)
	require.NoError(t, err)
	require.NoError(t, h.Invoke(func() error {
		view.Instance().Fail = errHandler
		return nil
	}))

	err = h.DispatchEvent(handlerOf(t, view.RenderedView, "button", "click"), engine.EventFieldInfo{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnhandledRender)
	assert.ErrorIs(t, err, errHandler)

	assert.NoError(t, h.Invoke(func() error { return nil }))
	_, err = view.Markup()
	assert.NoError(t, err)
}

func TestAsyncEventErrorSurfacesOnce(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*faulty](h)
	require.NoError(t, err)
	view.Instance().Fail = errHandler

	c := h.DispatchEventAsync(handlerOf(t, view.RenderedView, "button", "click"), engine.EventFieldInfo{}, nil)
	<-c.Done()

	_, err = view.Markup()
	assert.ErrorIs(t, err, errHandler)
	assert.NoError(t, c.Wait())
	_, err = view.Markup()
	assert.NoError(t, err)
}

func TestEventRunsWhenEarlierFailureIsReported(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*counter](h)
	require.NoError(t, err)
	click := handlerOf(t, view.RenderedView, "button", "click")

	require.NoError(t, h.Post(func() error { return errHandler }))
	waitUnobserved(t, h.Dispatcher(), 1)

	err = h.DispatchEvent(click, engine.EventFieldInfo{}, nil)
	assert.ErrorIs(t, err, errHandler)

	out, err := view.Markup()
	require.NoError(t, err)
	assert.Contains(t, out, "<p>1</p>")
}

func TestCloseDisposesAfterFailedPost(t *testing.T) {
	h := New(engine.New())
	view, err := RenderComponent[*disposable](h)
	require.NoError(t, err)

	var disposed []int
	h.Events().Subscribe(SubscriberFunc(func(e *RenderEvent) { disposed = append(disposed, e.Disposed()...) }))

	require.NoError(t, h.Post(func() error { return errHandler }))
	waitUnobserved(t, h.Dispatcher(), 1)

	err = h.Close()
	assert.ErrorIs(t, err, errHandler)
	assert.True(t, view.Instance().Disposed)
	assert.Contains(t, disposed, view.ID())
}

func TestInstanceIsMountedComponent(t *testing.T) {
	h := newHarness(t)

	ptr, err := RenderComponent[*counter](h, Param("Start", 4))
	require.NoError(t, err)
	ref, err := FindComponentIn[*counter](ptr.RenderedView)
	require.NoError(t, err)
	assert.Same(t, ref.Instance, ptr.Instance())
	assert.Equal(t, 4, ptr.Instance().Count)

	val, err := RenderComponent[heading](h)
	require.NoError(t, err)
	valRef, err := FindComponent[heading](h, val.rootID)
	require.NoError(t, err)
	assert.Equal(t, valRef.Instance, val.Instance())
	assert.Equal(t, valRef.ID, val.ID())
}

func TestUnknownHandlerIsUnhandledRender(t *testing.T) {
	h := newHarness(t)
	_, err := RenderComponent[*counter](h)
	require.NoError(t, err)

	err = h.DispatchEvent(9999, engine.EventFieldInfo{}, nil)
	assert.ErrorIs(t, err, ErrUnhandledRender)
	assert.ErrorIs(t, err, engine.ErrUnknownHandler)
}

func TestRenderComponentRejectsNonComponent(t *testing.T) {
	h := newHarness(t)
	_, err := RenderComponent[*notComponent](h)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestSetParametersAndRender(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*counter](h, Param("Start", 1), Param("Label", "a="))
	require.NoError(t, err)

	require.NoError(t, view.SetParametersAndRender(Param("Label", "b=")))
	got, err := view.Markup()
	require.NoError(t, err)
	assert.Contains(t, got, "b=1")
	assert.Equal(t, 2, view.RenderCount())

	err = view.SetParametersAndRender(Cascading("x"))
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestViewEventsAreFiltered(t *testing.T) {
	h := newHarness(t)
	first, err := RenderComponent[*counter](h)
	require.NoError(t, err)
	second, err := RenderComponent[*counter](h)
	require.NoError(t, err)

	var seen []uint64
	first.Events().Subscribe(SubscriberFunc(func(e *RenderEvent) { seen = append(seen, e.Seq) }))

	require.NoError(t, h.DispatchEvent(handlerOf(t, second.RenderedView, "button", "click"), engine.EventFieldInfo{}, nil))
	require.NoError(t, h.DispatchEvent(handlerOf(t, first.RenderedView, "button", "click"), engine.EventFieldInfo{}, nil))

	require.NoError(t, h.Invoke(func() error { return nil }))
	require.Len(t, seen, 1)
}

func TestWaitForRenderFromAnotherGoroutine(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*counter](h)
	require.NoError(t, err)
	inst := view.Instance()

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = h.Post(func() error {
			inst.Count = 42
			return inst.h.StateHasChanged()
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, view.WaitForRender(ctx, 2))

	require.NoError(t, view.WaitForState(ctx, func(v *RenderedView) bool {
		m, err := v.Markup()
		return err == nil && strings.Contains(m, "<p>42</p>")
	}))
}

func TestWaitForStateTimesOut(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*counter](h)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = view.WaitForState(ctx, func(*RenderedView) bool { return false })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForStateReportsPostedFailure(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*counter](h)
	require.NoError(t, err)

	require.NoError(t, h.Post(func() error { return errHandler }))
	waitUnobserved(t, h.Dispatcher(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = view.WaitForRender(ctx, 5)
	assert.ErrorIs(t, err, errHandler)
}

func TestFindErrors(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[heading](h)
	require.NoError(t, err)

	_, err = view.Find("table")
	assert.ErrorIs(t, err, ErrElementNotFound)

	_, err = view.Find("h3[")
	assert.ErrorIs(t, err, ErrInvalidSelector)

	all, err := view.FindAll("table")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDisposedView(t *testing.T) {
	h := newHarness(t)
	view, err := RenderComponent[*counter](h)
	require.NoError(t, err)

	view.Dispose()
	view.Dispose()

	_, err = view.Markup()
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = view.FirstMarkup()
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = view.ChangesSinceFirstRender()
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Equal(t, 1, view.RenderCount())
	err = view.SetParametersAndRender(Param("Start", 3))
	assert.ErrorIs(t, err, ErrInvalidOperation)
	err = view.WaitForRender(context.Background(), 2)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Zero(t, h.publisher.Stats().Subscribers)
}

func TestCloseCompletesEvents(t *testing.T) {
	h := New(engine.New())
	view, err := RenderComponent[*counter](h)
	require.NoError(t, err)

	completed := false
	view.Events().Subscribe(&funcSubscriber{onCompleted: func() { completed = true }})

	var disposed []int
	h.Events().Subscribe(SubscriberFunc(func(e *RenderEvent) { disposed = append(disposed, e.Disposed()...) }))

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.True(t, completed)
	assert.Contains(t, disposed, view.ID())
	assert.ErrorIs(t, h.Invoke(func() error { return nil }), ErrDispatcherClosed)
}

type funcSubscriber struct {
	onRender    func(*RenderEvent)
	onCompleted func()
}

func (f *funcSubscriber) OnRender(e *RenderEvent) {
	if f.onRender != nil {
		f.onRender(e)
	}
}

func (f *funcSubscriber) OnCompleted() {
	if f.onCompleted != nil {
		f.onCompleted()
	}
}
