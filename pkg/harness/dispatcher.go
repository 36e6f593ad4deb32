package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/vharness/pkg/engine"
)

// DefaultQueueSize is the dispatch queue capacity used when none is set.
const DefaultQueueSize = 256

// DispatchKind says how a unit of work entered the dispatcher.
type DispatchKind uint8

const (
	DispatchInvoke DispatchKind = iota // InvokeAsync / Invoke
	DispatchPost                       // Post, fire-and-forget
	DispatchEvent                      // UI event delivered to the engine
)

// String returns the string representation of the DispatchKind.
func (k DispatchKind) String() string {
	switch k {
	case DispatchInvoke:
		return "invoke"
	case DispatchPost:
		return "post"
	case DispatchEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Dispatch describes one unit of work while it runs.
type Dispatch struct {
	ID           uint64
	Kind         DispatchKind
	DispatcherID string
	HandlerID    uint64 // DispatchEvent only
}

// Middleware wraps every dispatched callback. Implementations run on the
// dispatcher goroutine and must call next exactly once.
type Middleware interface {
	Handle(ctx context.Context, d *Dispatch, next func(context.Context) error) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, d *Dispatch, next func(context.Context) error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, d *Dispatch, next func(context.Context) error) error {
	return f(ctx, d, next)
}

type job struct {
	dispatch Dispatch
	fn       func() error
	c        *Completion
}

// Dispatcher runs callbacks one at a time, in submission order, on a single
// goroutine. Every engine access and every render event delivery happens
// there.
//
// A failed callback's error belongs to its Completion. When nobody is
// waiting for it, the failure is queued as unobserved, and the next call
// that crosses the dispatcher (InvokeAsync, Invoke, Post) claims it and
// reports it together with its own result. The caller's work is queued
// either way. Each failure is reported exactly once.
//
// Callbacks must not call Invoke or Completion.Wait themselves: the
// dispatcher would wait for itself.
type Dispatcher struct {
	id         string
	logger     *slog.Logger
	middleware []Middleware

	work    chan *job
	stopped chan struct{}
	seq     atomic.Uint64

	mu     sync.RWMutex // guards closed against in-flight submissions
	closed bool

	failMu     sync.Mutex
	unobserved []*Completion
}

// NewDispatcher starts a dispatcher goroutine.
func NewDispatcher(logger *slog.Logger, queueSize int, mw ...Middleware) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		id:         uuid.NewString(),
		middleware: mw,
		work:       make(chan *job, queueSize),
		stopped:    make(chan struct{}),
	}
	d.logger = logger.With("dispatcher_id", d.id)
	go d.loop()
	return d
}

// ID returns the dispatcher's unique id.
func (d *Dispatcher) ID() string {
	return d.id
}

// InvokeAsync queues fn and returns its Completion. Failures that were
// pending when fn was queued are reported by the Completion together with
// fn's own result.
func (d *Dispatcher) InvokeAsync(fn func() error) *Completion {
	return d.submit(DispatchInvoke, 0, fn, false)
}

// Invoke runs fn on the dispatcher and waits for it.
func (d *Dispatcher) Invoke(fn func() error) error {
	return d.submit(DispatchInvoke, 0, fn, true).await()
}

// Post queues fn without a way to wait for it. A failure of fn surfaces at
// the next call that crosses the dispatcher. Post returns the failures
// that were pending when fn was queued. It never blocks: when the queue is
// full fn is dropped and ErrQueueFull is returned with them.
func (d *Dispatcher) Post(fn func() error) error {
	err := d.enqueuePost(fn)
	return joinErrors(d.claimUnobserved(), err)
}

func (d *Dispatcher) enqueuePost(fn func() error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	j := d.newJob(DispatchPost, 0, fn)
	select {
	case d.work <- j:
		return nil
	default:
		d.logger.Warn("dispatch queue full, discarding callback", "dispatch_id", j.dispatch.ID)
		return ErrQueueFull
	}
}

// Close runs the queued work, then stops the dispatcher. Later submissions
// complete with ErrDispatcherClosed. Close must not be called from a
// dispatched callback.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return nil
	}
	d.closed = true
	close(d.work)
	d.mu.Unlock()

	<-d.stopped
	d.logger.Debug("dispatcher stopped")
	return d.claimUnobserved()
}

// submit queues a job, blocking while the queue is full, then claims the
// failures that were pending. With waiting set the caller is registered as
// the job's waiter before it can run and must call await.
func (d *Dispatcher) submit(kind DispatchKind, handlerID uint64, fn func() error, waiting bool) *Completion {
	c := d.enqueue(kind, handlerID, fn, waiting)
	c.prior = d.claimUnobserved()
	return c
}

func (d *Dispatcher) enqueue(kind DispatchKind, handlerID uint64, fn func() error, waiting bool) *Completion {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		c := newCompletion(d)
		c.finish(ErrDispatcherClosed, false)
		return c
	}
	j := d.newJob(kind, handlerID, fn)
	if waiting {
		j.c.waiters = 1
	}
	d.work <- j
	return j.c
}

func (d *Dispatcher) newJob(kind DispatchKind, handlerID uint64, fn func() error) *job {
	return &job{
		dispatch: Dispatch{
			ID:           d.seq.Add(1),
			Kind:         kind,
			DispatcherID: d.id,
			HandlerID:    handlerID,
		},
		fn: fn,
		c:  newCompletion(d),
	}
}

// loop is the dispatcher goroutine.
func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for j := range d.work {
		d.run(j)
	}
}

// run executes one job through the middleware chain.
func (d *Dispatcher) run(j *job) {
	start := time.Now()
	next := func(context.Context) error {
		return d.execute(j)
	}
	for i := len(d.middleware) - 1; i >= 0; i-- {
		mw, inner := d.middleware[i], next
		next = func(ctx context.Context) error {
			return mw.Handle(ctx, &j.dispatch, inner)
		}
	}
	err := next(context.Background())

	d.logger.Debug("dispatch",
		"dispatch_id", j.dispatch.ID,
		"kind", j.dispatch.Kind.String(),
		"duration", time.Since(start),
		"failed", err != nil)

	j.c.finish(err, true)
}

// execute runs the callback, converting failures to *UnhandledRenderError.
func (d *Dispatcher) execute(j *job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &UnhandledRenderError{Panic: p, Stack: debug.Stack()}
		}
	}()
	if err := j.fn(); err != nil {
		return asUnhandled(err)
	}
	return nil
}

// asUnhandled wraps a callback error, lifting engine panics.
func asUnhandled(err error) error {
	var ue *UnhandledRenderError
	if errors.As(err, &ue) {
		return err
	}
	out := &UnhandledRenderError{Cause: err}
	var pe *engine.PanicError
	if errors.As(err, &pe) {
		out.Panic = pe.Value
		out.Stack = pe.Stack
	}
	return out
}

// claimUnobserved removes every unobserved failure and returns them.
func (d *Dispatcher) claimUnobserved() error {
	d.failMu.Lock()
	pending := d.unobserved
	d.unobserved = nil
	for _, c := range pending {
		c.claimed = true
		c.queued = false
	}
	d.failMu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	errs := make([]error, len(pending))
	for i, c := range pending {
		errs[i] = c.err
		d.logger.Error("unhandled render error", "error", c.err)
	}
	return joinErrors(errs...)
}

// joinErrors is errors.Join that returns a lone error unwrapped.
func joinErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return errors.Join(nonNil...)
	}
}

// Completion is the result of one dispatched callback.
type Completion struct {
	d     *Dispatcher
	done  chan struct{}
	err   error
	prior error // failures claimed when the callback was queued

	// guarded by d.failMu
	claimed bool
	queued  bool // on d.unobserved
	waiters int
}

func newCompletion(d *Dispatcher) *Completion {
	return &Completion{d: d, done: make(chan struct{})}
}

// finish records the result. A failure nobody is waiting for is queued as
// unobserved before Done is closed.
func (c *Completion) finish(err error, queue bool) {
	c.err = err
	if err != nil && queue {
		c.d.failMu.Lock()
		if !c.claimed && c.waiters == 0 {
			c.queued = true
			c.d.unobserved = append(c.d.unobserved, c)
		}
		c.d.failMu.Unlock()
	}
	close(c.done)
}

// Done is closed when the callback has finished.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the callback's result, joined with the failures claimed when
// it was queued, without claiming it. It returns nil until Done is closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return joinErrors(c.prior, c.err)
	default:
		return nil
	}
}

// Wait blocks until the callback has finished and returns its failure,
// unless an earlier call crossing the dispatcher already reported it,
// together with the failures claimed when the callback was queued.
func (c *Completion) Wait() error {
	c.d.failMu.Lock()
	c.waiters++
	c.d.failMu.Unlock()
	return c.await()
}

// WaitContext is like Wait but gives up when ctx is done. Giving up leaves
// the failure unobserved.
func (c *Completion) WaitContext(ctx context.Context) error {
	d := c.d
	d.failMu.Lock()
	c.waiters++
	d.failMu.Unlock()

	select {
	case <-c.done:
		return c.await()
	case <-ctx.Done():
		d.failMu.Lock()
		c.waiters--
		c.release()
		d.failMu.Unlock()
		return fmt.Errorf("harness: waiting for dispatch: %w", ctx.Err())
	}
}

// await waits as a registered waiter and claims the result.
func (c *Completion) await() error {
	<-c.done
	d := c.d
	d.failMu.Lock()
	defer d.failMu.Unlock()
	c.waiters--

	var own error
	if c.err != nil && !c.claimed {
		c.claimed = true
		if c.queued {
			c.unqueue()
		}
		own = c.err
	}
	prior := c.prior
	c.prior = nil
	return joinErrors(prior, own)
}

// release queues a finished, unclaimed failure once its last waiter has
// left. Called with d.failMu held.
func (c *Completion) release() {
	select {
	case <-c.done:
	default:
		return
	}
	if c.err != nil && !c.claimed && !c.queued && c.waiters == 0 {
		c.queued = true
		c.d.unobserved = append(c.d.unobserved, c)
	}
}

// unqueue removes c from d.unobserved. Called with d.failMu held.
func (c *Completion) unqueue() {
	d := c.d
	for i, u := range d.unobserved {
		if u == c {
			d.unobserved = append(d.unobserved[:i], d.unobserved[i+1:]...)
			break
		}
	}
	c.queued = false
}
