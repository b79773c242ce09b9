package driver

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemyung/clmtl/cl"
)

func TestEvent_UserEventLifecycle(t *testing.T) {
	context := testContext(t)
	event, err := NewUserEvent(context)
	require.NoError(t, err)
	defer event.Release()

	assert.Equal(t, cl.Submitted, event.Status())
	assert.True(t, event.IsUserEvent())
	assert.Nil(t, event.Queue())

	require.NoError(t, event.SetUserEventStatus(cl.Complete))
	assert.Equal(t, cl.Complete, event.Status())

	// Terminal statuses are final.
	assert.Equal(t, int32(cl.ErrInvalidOperation), cl.Code(event.SetUserEventStatus(cl.Complete)))
}

func TestEvent_UserEventRejectsPositiveStatus(t *testing.T) {
	context := testContext(t)
	event, err := NewUserEvent(context)
	require.NoError(t, err)
	defer event.Release()

	assert.Equal(t, int32(cl.ErrInvalidValue), cl.Code(event.SetUserEventStatus(cl.Running)))
}

func TestEvent_StatusMonotone(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)
	event, err := NewEvent(queue)
	require.NoError(t, err)
	defer event.Release()

	assert.Equal(t, cl.Queued, event.Status())
	event.setStatus(cl.Running)
	assert.Equal(t, cl.Running, event.Status())

	// Upward moves are ignored; negative is always allowed.
	event.setStatus(cl.Submitted)
	assert.Equal(t, cl.Running, event.Status())
	event.setStatus(cl.ExecStatus(cl.ErrOutOfResources))
	assert.Equal(t, cl.ExecStatus(cl.ErrOutOfResources), event.Status())
	event.setStatus(cl.Complete)
	assert.Equal(t, cl.ExecStatus(cl.ErrOutOfResources), event.Status())
}

func TestEvent_CallbackFiresExactlyOnce(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)
	event, err := NewEvent(queue)
	require.NoError(t, err)
	defer event.Release()

	var fired atomic.Int32
	require.NoError(t, event.SetCallback(cl.Complete, func(cl.ExecStatus) { fired.Add(1) }))

	event.setStatus(cl.Running)
	assert.Equal(t, int32(0), fired.Load())
	event.setStatus(cl.Complete)
	event.setStatus(cl.Complete)
	assert.Equal(t, int32(1), fired.Load())
}

func TestEvent_CallbackOnCrossedBoundaryFiresImmediately(t *testing.T) {
	context := testContext(t)
	event, err := NewUserEvent(context)
	require.NoError(t, err)
	defer event.Release()

	var got atomic.Int32
	require.NoError(t, event.SetCallback(cl.Submitted, func(s cl.ExecStatus) { got.Store(int32(s)) }))
	assert.Equal(t, int32(cl.Submitted), got.Load())
}

func TestEvent_CallbackSeesNegativeStatus(t *testing.T) {
	context := testContext(t)
	event, err := NewUserEvent(context)
	require.NoError(t, err)
	defer event.Release()

	var got atomic.Int32
	require.NoError(t, event.SetCallback(cl.Complete, func(s cl.ExecStatus) { got.Store(int32(s)) }))
	require.NoError(t, event.SetUserEventStatus(cl.ExecStatus(cl.ErrOutOfResources)))
	assert.Equal(t, int32(cl.ErrOutOfResources), got.Load())
}

func TestEvent_WaitUnblocksOnComplete(t *testing.T) {
	context := testContext(t)
	event, err := NewUserEvent(context)
	require.NoError(t, err)
	defer event.Release()

	done := make(chan cl.ExecStatus, 1)
	go func() { done <- event.Wait() }()

	select {
	case <-done:
		t.Fatal("Wait returned before the event completed")
	case <-time.After(10 * time.Millisecond):
	}

	require.NoError(t, event.SetUserEventStatus(cl.Complete))
	select {
	case status := <-done:
		assert.Equal(t, cl.Complete, status)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock")
	}
}

func TestEvent_WaitForEventsPropagatesFailure(t *testing.T) {
	context := testContext(t)
	ok, err := NewUserEvent(context)
	require.NoError(t, err)
	defer ok.Release()
	bad, err := NewUserEvent(context)
	require.NoError(t, err)
	defer bad.Release()

	require.NoError(t, ok.SetUserEventStatus(cl.Complete))
	require.NoError(t, bad.SetUserEventStatus(cl.ExecStatus(cl.ErrOutOfResources)))

	err = WaitForEvents([]*Event{ok, bad})
	assert.Equal(t, int32(cl.ErrExecStatusErrorForEventsInWaitList), cl.Code(err))
	assert.NoError(t, WaitForEvents([]*Event{ok}))
}
