package harness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, queueSize int, mw ...Middleware) *Dispatcher {
	t.Helper()
	d := NewDispatcher(nil, queueSize, mw...)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// waitUnobserved blocks until n failures are pending.
func waitUnobserved(t *testing.T, d *Dispatcher, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		d.failMu.Lock()
		defer d.failMu.Unlock()
		return len(d.unobserved) >= n
	}, time.Second, time.Millisecond)
}

func TestDispatcherRunsInSubmissionOrder(t *testing.T) {
	d := newTestDispatcher(t, 0)

	var got []int
	completions := make([]*Completion, 0, 100)
	for i := 0; i < 100; i++ {
		i := i
		completions = append(completions, d.InvokeAsync(func() error {
			got = append(got, i)
			return nil
		}))
	}
	for _, c := range completions {
		require.NoError(t, c.Wait())
	}

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestInvokeReturnsFailureOnce(t *testing.T) {
	d := newTestDispatcher(t, 0)
	boom := errors.New("boom")

	err := d.Invoke(func() error { return boom })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnhandledRender)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, d.Invoke(func() error { return nil }))
}

func TestUnobservedFailureSurfacesAtNextCall(t *testing.T) {
	d := newTestDispatcher(t, 0)
	boom := errors.New("boom")

	c := d.InvokeAsync(func() error { return boom })
	<-c.Done()
	assert.ErrorIs(t, c.Err(), boom)

	ran := false
	err := d.Invoke(func() error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran, "callback runs even when an earlier failure is reported")

	assert.NoError(t, c.Wait(), "failure was already reported")
	assert.NoError(t, d.Invoke(func() error { return nil }))
}

func TestPendingFailureJoinsOwnFailure(t *testing.T) {
	d := newTestDispatcher(t, 0)
	earlier, own := errors.New("earlier"), errors.New("own")

	require.NoError(t, d.Post(func() error { return earlier }))
	waitUnobserved(t, d, 1)

	err := d.Invoke(func() error { return own })
	assert.ErrorIs(t, err, earlier)
	assert.ErrorIs(t, err, own)
	assert.NoError(t, d.Invoke(func() error { return nil }))
}

func TestPostQueuesWorkWhileReportingFailure(t *testing.T) {
	d := newTestDispatcher(t, 0)
	boom := errors.New("posted")

	require.NoError(t, d.Post(func() error { return boom }))
	waitUnobserved(t, d, 1)

	ran := make(chan struct{})
	err := d.Post(func() error {
		close(ran)
		return nil
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, d.Invoke(func() error { return nil }))
	select {
	case <-ran:
	default:
		t.Fatal("posted callback did not run")
	}
}

func TestWaiterKeepsItsFailure(t *testing.T) {
	d := newTestDispatcher(t, 0)
	boom := errors.New("mine")

	started := make(chan struct{})
	release := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- d.Invoke(func() error {
			close(started)
			<-release
			return boom
		})
	}()
	<-started
	close(release)

	for {
		select {
		case err := <-result:
			assert.ErrorIs(t, err, boom)
			assert.NoError(t, d.Invoke(func() error { return nil }))
			return
		default:
			assert.NoError(t, d.Invoke(func() error { return nil }), "another caller claimed a waited-for failure")
		}
	}
}

func TestWaitClaimsBeforeNextCall(t *testing.T) {
	d := newTestDispatcher(t, 0)
	boom := errors.New("boom")

	c := d.InvokeAsync(func() error { return boom })
	assert.ErrorIs(t, c.Wait(), boom)
	assert.NoError(t, d.Invoke(func() error { return nil }))
}

func TestPostFailureSurfacesAtNextBoundary(t *testing.T) {
	d := newTestDispatcher(t, 0)
	boom := errors.New("posted")

	require.NoError(t, d.Post(func() error { return boom }))
	waitUnobserved(t, d, 1)

	err := d.Post(func() error { return nil })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, d.Invoke(func() error { return nil }))
}

func TestMultipleUnobservedFailuresAreJoined(t *testing.T) {
	d := newTestDispatcher(t, 0)
	first, second := errors.New("first"), errors.New("second")

	require.NoError(t, d.Post(func() error { return first }))
	require.NoError(t, d.Post(func() error { return second }))
	waitUnobserved(t, d, 2)

	err := d.Invoke(func() error { return nil })
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestPanicBecomesUnhandledRenderError(t *testing.T) {
	d := newTestDispatcher(t, 0)

	err := d.Invoke(func() error { panic("kaboom") })

	var ue *UnhandledRenderError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "kaboom", ue.Panic)
	assert.NotEmpty(t, ue.Stack)
	assert.Nil(t, ue.Cause)
	assert.Contains(t, err.Error(), "panic: kaboom")
}

func TestPostDropsWhenQueueFull(t *testing.T) {
	d := newTestDispatcher(t, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := d.InvokeAsync(func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	require.NoError(t, d.Post(func() error { return nil }))
	assert.ErrorIs(t, d.Post(func() error { return nil }), ErrQueueFull)

	close(release)
	assert.NoError(t, blocker.Wait())
}

func TestCloseDrainsQueuedWork(t *testing.T) {
	d := NewDispatcher(nil, 0)

	var mu sync.Mutex
	count := 0
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Post(func() error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		}))
	}
	require.NoError(t, d.Close())
	assert.Equal(t, 10, count)

	assert.ErrorIs(t, d.Invoke(func() error { return nil }), ErrDispatcherClosed)
	assert.ErrorIs(t, d.Post(func() error { return nil }), ErrDispatcherClosed)
	assert.NoError(t, d.Close(), "second Close is a no-op")
}

func TestCloseReportsUnobservedFailure(t *testing.T) {
	d := NewDispatcher(nil, 0)
	boom := errors.New("late")

	require.NoError(t, d.Post(func() error { return boom }))
	assert.ErrorIs(t, d.Close(), boom)
}

func TestWaitContextGivesUp(t *testing.T) {
	d := newTestDispatcher(t, 0)
	boom := errors.New("slow failure")

	release := make(chan struct{})
	c := d.InvokeAsync(func() error {
		<-release
		return boom
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitContext(ctx), context.DeadlineExceeded)

	close(release)
	<-c.Done()
	assert.ErrorIs(t, d.Invoke(func() error { return nil }), boom)
}

func TestMiddlewareWrapsDispatch(t *testing.T) {
	var (
		trace []string
		seen  []Dispatch
	)
	record := func(name string) Middleware {
		return MiddlewareFunc(func(ctx context.Context, d *Dispatch, next func(context.Context) error) error {
			trace = append(trace, name+">")
			seen = append(seen, *d)
			err := next(ctx)
			trace = append(trace, "<"+name)
			return err
		})
	}
	d := newTestDispatcher(t, 0, record("outer"), record("inner"))

	require.NoError(t, d.Invoke(func() error {
		trace = append(trace, "fn")
		return nil
	}))

	assert.Equal(t, []string{"outer>", "inner>", "fn", "<inner", "<outer"}, trace)
	require.Len(t, seen, 2)
	assert.Equal(t, DispatchInvoke, seen[0].Kind)
	assert.Equal(t, d.ID(), seen[0].DispatcherID)
	assert.NotZero(t, seen[0].ID)
}

func TestMiddlewareSeesUnhandledError(t *testing.T) {
	var got error
	observe := MiddlewareFunc(func(ctx context.Context, d *Dispatch, next func(context.Context) error) error {
		got = next(ctx)
		return got
	})
	d := newTestDispatcher(t, 0, observe)

	_ = d.Invoke(func() error { return errors.New("x") })
	assert.ErrorIs(t, got, ErrUnhandledRender)
}

func TestDispatchKindString(t *testing.T) {
	tests := []struct {
		kind DispatchKind
		want string
	}{
		{DispatchInvoke, "invoke"},
		{DispatchPost, "post"},
		{DispatchEvent, "event"},
		{DispatchKind(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}
