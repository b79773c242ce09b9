package driver

import (
	"sync"

	"github.com/daemyung/clmtl/cl"
)

// Callback is a status-change callback; it receives the status that
// triggered it, which is the registered trigger or a negative error.
type Callback func(status cl.ExecStatus)

// Event models one node of the happens-before graph: a monotone status
// machine with waiters and at-most-once callbacks. Queue-owned events track
// a command's progress; user events are set by the client.
type Event struct {
	handle
	object

	context *Context
	queue   *CommandQueue // nil for user events
	user    bool

	mu        sync.Mutex
	cond      *sync.Cond
	status    cl.ExecStatus
	callbacks map[cl.ExecStatus][]Callback
}

func newEvent(context *Context, queue *CommandQueue, status cl.ExecStatus, user bool) *Event {
	e := &Event{
		handle:    newHandle(),
		context:   context,
		queue:     queue,
		user:      user,
		status:    status,
		callbacks: map[cl.ExecStatus][]Callback{},
	}
	e.object.init()
	e.cond = sync.NewCond(&e.mu)
	context.Retain()
	return e
}

// NewEvent creates a queue-owned event in the Queued state. The queue does
// not retain the event; the creating caller owns the initial reference.
func NewEvent(queue *CommandQueue) (*Event, error) {
	if queue == nil {
		return nil, cl.ErrInvalidCommandQueue
	}
	return newEvent(queue.context, queue, cl.Queued, false), nil
}

// NewUserEvent creates a user event in the Submitted state; only an
// explicit SetUserEventStatus moves it.
func NewUserEvent(context *Context) (*Event, error) {
	if context == nil {
		return nil, cl.ErrInvalidContext
	}
	return newEvent(context, nil, cl.Submitted, true), nil
}

// Context returns the owning context.
func (e *Event) Context() *Context { return e.context }

// Queue returns the owning queue, nil for user events.
func (e *Event) Queue() *CommandQueue { return e.queue }

// IsUserEvent reports whether the event is client-controlled.
func (e *Event) IsUserEvent() bool { return e.user }

// Status returns the current execution status.
func (e *Event) Status() cl.ExecStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// setStatus moves the status. Moves are one way: a value at or above the
// current status is ignored unless it is negative. Callbacks whose trigger
// boundary is crossed fire exactly once, outside the lock.
func (e *Event) setStatus(status cl.ExecStatus) {
	e.mu.Lock()
	if e.status < 0 || (status >= e.status && status >= 0) {
		e.mu.Unlock()
		return
	}
	e.status = status

	var fired []Callback
	for trigger, fns := range e.callbacks {
		if status <= trigger || status < 0 {
			fired = append(fired, fns...)
			delete(e.callbacks, trigger)
		}
	}
	if status.Done() {
		e.cond.Broadcast()
	}
	e.mu.Unlock()

	for _, fn := range fired {
		fn(status)
	}
}

// SetUserEventStatus completes a user event with Complete or a negative
// error. It fails on non-user events, on positive statuses other than
// Complete, and when the status was already set.
func (e *Event) SetUserEventStatus(status cl.ExecStatus) error {
	if !e.user {
		return cl.ErrInvalidEvent
	}
	if status > cl.Complete {
		return cl.ErrInvalidValue
	}
	e.mu.Lock()
	done := e.status.Done()
	e.mu.Unlock()
	if done {
		return cl.ErrInvalidOperation
	}
	e.setStatus(status)
	return nil
}

// SetCallback registers fn to fire when the status reaches trigger (or any
// error). If the boundary is already crossed, fn fires immediately on the
// calling thread.
func (e *Event) SetCallback(trigger cl.ExecStatus, fn Callback) error {
	if fn == nil {
		return cl.ErrInvalidValue
	}
	if trigger != cl.Complete && trigger != cl.Running && trigger != cl.Submitted {
		return cl.ErrInvalidValue
	}
	e.mu.Lock()
	if e.status <= trigger || e.status < 0 {
		status := e.status
		e.mu.Unlock()
		fn(status)
		return nil
	}
	e.callbacks[trigger] = append(e.callbacks[trigger], fn)
	e.mu.Unlock()
	return nil
}

// Wait blocks until the status is terminal and returns it.
func (e *Event) Wait() cl.ExecStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.status.Done() {
		e.cond.Wait()
	}
	return e.status
}

// WaitForEvents blocks until every event is terminal. It fails if any event
// ended with an error.
func WaitForEvents(events []*Event) error {
	if len(events) == 0 {
		return cl.ErrInvalidValue
	}
	failed := false
	for _, e := range events {
		if e == nil {
			return cl.ErrInvalidEvent
		}
		if e.Wait() < 0 {
			failed = true
		}
	}
	if failed {
		return cl.ErrExecStatusErrorForEventsInWaitList
	}
	return nil
}

// Release decrements the count and destroys the event at zero.
func (e *Event) Release() {
	if e.object.release() {
		e.destroy()
	}
}

func (e *Event) destroy() {
	e.context.Release()
	e.callbacks = nil
}
