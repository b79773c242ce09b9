package driver

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/mtl"
	"github.com/daemyung/clmtl/spirv"
)

// command is one entry of the pending list: the event edges attached to it
// and the closure that encodes it into a native batch.
type command struct {
	waits   []*Event
	signals []*Event
	armed   bool
	encode  func(b *batch) error
}

// batch is one native command buffer under construction. At most one
// encoder is open at a time; adjacent compatible commands share it.
type batch struct {
	cb        mtl.CommandBuffer
	compute   mtl.ComputeCommandEncoder
	blit      mtl.BlitCommandEncoder
	copybacks []func()
	releases  []func()
	signals   []*Event
}

func (b *batch) blitEncoder() mtl.BlitCommandEncoder {
	if b.compute != nil {
		b.compute.EndEncoding()
		b.compute = nil
	}
	if b.blit == nil {
		b.blit = b.cb.BlitCommandEncoder()
	}
	return b.blit
}

func (b *batch) computeEncoder() mtl.ComputeCommandEncoder {
	if b.blit != nil {
		b.blit.EndEncoding()
		b.blit = nil
	}
	if b.compute == nil {
		b.compute = b.cb.ComputeCommandEncoder()
	}
	return b.compute
}

func (b *batch) end() {
	if b.compute != nil {
		b.compute.EndEncoding()
		b.compute = nil
	}
	if b.blit != nil {
		b.blit.EndEncoding()
		b.blit = nil
	}
}

// CommandQueue collects enqueued commands and submits them to the native
// device in enqueue order. A queue is externally synchronized: concurrent
// enqueues on the same queue are not supported. Flush may additionally be
// re-entered from event callbacks, so the internals still lock.
type CommandQueue struct {
	handle
	object

	context    *Context
	device     *Device
	properties cl.QueueProperties
	native     mtl.CommandQueue

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []*command
	nextWaits []*Event
	inflight  int
}

// NewCommandQueue creates a queue on the context's device. Out-of-order
// execution is accepted in the property bits but never enabled.
func NewCommandQueue(context *Context, device *Device, properties cl.QueueProperties) (*CommandQueue, error) {
	if context == nil {
		return nil, cl.ErrInvalidContext
	}
	if device == nil || device != context.device {
		return nil, cl.ErrInvalidDevice
	}
	q := &CommandQueue{
		handle:     newHandle(),
		context:    context,
		device:     device,
		properties: properties,
		native:     device.Native().NewCommandQueue(),
	}
	q.object.init()
	q.cond = sync.NewCond(&q.mu)
	context.Retain()
	return q, nil
}

// Context returns the owning context.
func (q *CommandQueue) Context() *Context { return q.context }

// Device returns the queue's device.
func (q *CommandQueue) Device() *Device { return q.device }

// Properties returns the property bits the queue was created with.
func (q *CommandQueue) Properties() cl.QueueProperties { return q.properties }

// EnqueueWaitEvent attaches an inbound edge: the next data command does not
// begin until the event completes.
func (q *CommandQueue) EnqueueWaitEvent(event *Event) error {
	if event == nil {
		return cl.ErrInvalidEvent
	}
	q.mu.Lock()
	q.nextWaits = append(q.nextWaits, event)
	q.mu.Unlock()
	return nil
}

// EnqueueSignalEvent attaches an outbound edge to the most recently
// enqueued command; the event tracks that command's progress. With nothing
// pending the event completes with the next flush.
func (q *CommandQueue) EnqueueSignalEvent(event *Event) error {
	if event == nil {
		return cl.ErrInvalidEvent
	}
	q.mu.Lock()
	if n := len(q.pending); n > 0 {
		q.pending[n-1].signals = append(q.pending[n-1].signals, event)
	} else {
		q.pending = append(q.pending, &command{
			waits:   q.takeWaitsLocked(),
			signals: []*Event{event},
		})
	}
	q.mu.Unlock()
	return nil
}

func (q *CommandQueue) takeWaitsLocked() []*Event {
	waits := q.nextWaits
	q.nextWaits = nil
	return waits
}

func (q *CommandQueue) enqueue(encode func(b *batch) error) {
	q.mu.Lock()
	q.pending = append(q.pending, &command{waits: q.takeWaitsLocked(), encode: encode})
	q.mu.Unlock()
}

// EnqueueBarrier orders everything enqueued after it behind everything
// enqueued before it, including any pending wait edges.
func (q *CommandQueue) EnqueueBarrier() {
	q.enqueue(nil)
}

// Flush seals the pending commands into a native batch and submits it.
// Commands whose wait edges are not yet complete are withheld, and the
// queue resubmits itself when the gating event fires.
func (q *CommandQueue) Flush() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.flushLocked()
}

func (q *CommandQueue) flushLocked() error {
	var b *batch
	var firstErr error

	for len(q.pending) > 0 {
		cmd := q.pending[0]

		var failed cl.ExecStatus
		var gate *Event
		for _, e := range cmd.waits {
			if st := e.Status(); st < 0 {
				failed = st
				break
			} else if st > 0 {
				gate = e
				break
			}
		}
		if gate != nil {
			if !cmd.armed {
				cmd.armed = true
				// Re-flush off the callback thread; callbacks run outside
				// the event lock but possibly on this very call stack.
				_ = gate.SetCallback(cl.Complete, func(cl.ExecStatus) { go func() { _ = q.Flush() }() })
			}
			break
		}

		q.pending = q.pending[1:]
		if failed < 0 {
			// Upstream failure propagates; the command never executes.
			for _, e := range cmd.signals {
				e.setStatus(failed)
			}
			continue
		}

		if cmd.encode != nil || len(cmd.signals) > 0 {
			if b == nil {
				b = &batch{cb: q.native.CommandBuffer()}
			}
		}
		if cmd.encode != nil {
			err := encodeCommand(cmd, b)
			if err != nil {
				for _, e := range cmd.signals {
					e.setStatus(cl.ExecStatus(cl.Code(err)))
				}
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		if b != nil {
			b.signals = append(b.signals, cmd.signals...)
		}
	}

	if b != nil {
		b.end()
		q.submitLocked(b)
	}
	return firstErr
}

// encodeCommand runs the encode closure, catching the panics the native
// encoders raise on misuse and mapping them to an error.
func encodeCommand(cmd *command, b *batch) error {
	var err error
	if caught := exceptions.TryCatch[error](func() { err = cmd.encode(b) }); caught != nil {
		return errors.WithMessage(cl.ErrOutOfResources, caught.Error())
	}
	return err
}

func (q *CommandQueue) submitLocked(b *batch) {
	signals := b.signals
	copybacks := b.copybacks
	releases := b.releases

	for _, e := range signals {
		e.setStatus(cl.Submitted)
	}
	b.cb.AddScheduledHandler(func() {
		for _, e := range signals {
			e.setStatus(cl.Running)
		}
	})
	b.cb.AddCompletedHandler(func(err error) {
		if err == nil {
			for _, fn := range copybacks {
				fn()
			}
		}
		for _, fn := range releases {
			fn()
		}
		status := cl.Complete
		if err != nil {
			klog.Warningf("batch execution failed: %v", err)
			status = cl.ExecStatus(cl.ErrOutOfResources)
		}
		for _, e := range signals {
			e.setStatus(status)
		}
		q.mu.Lock()
		q.inflight--
		q.cond.Broadcast()
		q.mu.Unlock()
	})

	q.inflight++
	klog.V(1).Infof("submitting batch with %d signals", len(signals))
	b.cb.Commit()
}

// WaitIdle blocks until every submitted batch has completed.
func (q *CommandQueue) WaitIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.inflight > 0 {
		q.cond.Wait()
	}
}

// Finish flushes and waits idle.
func (q *CommandQueue) Finish() error {
	err := q.Flush()
	q.WaitIdle()
	return err
}

func (q *CommandQueue) finishIf(blocking bool) error {
	if !blocking {
		return nil
	}
	return q.Finish()
}

// Release decrements the count and destroys the queue at zero. Outstanding
// work completes first.
func (q *CommandQueue) Release() {
	if q.object.release() {
		q.destroy()
	}
}

func (q *CommandQueue) destroy() {
	_ = q.Finish()
	q.native.Release()
	q.context.Release()
}

// dispatchArg pairs a binding with the snapshot of its argument taken at
// enqueue time, so later SetArg calls do not affect an enqueued dispatch.
type dispatchArg struct {
	binding spirv.Binding
	arg     Arg
}

// EnqueueDispatch enqueues a kernel execution over the global work size.
// A nil local size lets the driver pick one; a provided local size must
// match the kernel's compile-time size when that exists, divide the global
// size, and fit the pipeline's thread bound.
func (q *CommandQueue) EnqueueDispatch(kernel *Kernel, global cl.Size, local *cl.Size) error {
	if kernel == nil {
		return cl.ErrInvalidKernel
	}
	if global.Total() == 0 {
		return cl.ErrInvalidGlobalWorkSize
	}

	required := kernel.RequiredWorkGroupSize()
	var lsize cl.Size
	switch {
	case local != nil:
		if !required.IsZero() && required != *local {
			return cl.ErrInvalidWorkGroupSize
		}
		lsize = *local
	case !required.IsZero():
		lsize = required
	default:
		lsize = chooseLocalSize(global, kernel.WorkGroupSize())
	}
	if lsize.Total() == 0 || uint64(kernel.WorkGroupSize()) < lsize.Total() {
		return cl.ErrInvalidWorkGroupSize
	}
	if global.W%lsize.W != 0 || global.H%lsize.H != 0 || global.D%lsize.D != 0 {
		return cl.ErrInvalidWorkGroupSize
	}

	// Snapshot and validate the argument table now; the defines the local
	// arguments contributed are baked into the pipeline state.
	args := kernel.Args()
	encoded := make([]dispatchArg, 0, len(kernel.Bindings()))
	for _, binding := range kernel.Bindings() {
		arg := args[binding.Ordinal]
		if !arg.Set {
			return cl.ErrInvalidKernelArgs
		}
		switch binding.Kind {
		case spirv.ArgKindPod, spirv.ArgKindPodUBO, spirv.ArgKindPodPushConstant:
			if arg.Size != int(binding.Size) {
				return cl.ErrInvalidArgSize
			}
		case spirv.ArgKindBuffer, spirv.ArgKindBufferUBO:
			if arg.Buffer == nil {
				return cl.ErrInvalidKernelArgs
			}
		case spirv.ArgKindSampledImage, spirv.ArgKindStorageImage:
			if arg.Image == nil {
				return cl.ErrInvalidKernelArgs
			}
		case spirv.ArgKindSampler:
			if arg.Sampler == nil {
				return cl.ErrInvalidKernelArgs
			}
		}
		encoded = append(encoded, dispatchArg{binding: binding, arg: arg})
	}

	ps, err := kernel.GetPipelineState(lsize)
	if err != nil {
		return err
	}

	groups := [3]int{
		int(global.W / lsize.W),
		int(global.H / lsize.H),
		int(global.D / lsize.D),
	}
	threads := [3]int{int(lsize.W), int(lsize.H), int(lsize.D)}

	q.enqueue(func(b *batch) error {
		enc := b.computeEncoder()
		enc.SetComputePipelineState(ps)
		for _, da := range encoded {
			index := int(da.binding.Index)
			switch da.binding.Kind {
			case spirv.ArgKindPod, spirv.ArgKindPodUBO, spirv.ArgKindPodPushConstant:
				enc.SetBytes(da.arg.Data[:da.arg.Size], index)
			case spirv.ArgKindBuffer, spirv.ArgKindBufferUBO:
				enc.SetBuffer(da.arg.Buffer.Native(), da.arg.Buffer.Origin(), index)
			case spirv.ArgKindSampledImage, spirv.ArgKindStorageImage:
				enc.SetTexture(da.arg.Image.Native(), index)
			case spirv.ArgKindSampler:
				enc.SetSamplerState(da.arg.Sampler.Native(), index)
			case spirv.ArgKindLocal:
				// Realized as a specialization define at pipeline lookup.
			}
		}
		enc.DispatchThreadgroups(groups, threads)
		return nil
	})
	return nil
}

// chooseLocalSize picks a one dimensional workgroup that divides the global
// size and fits the pipeline's thread bound.
func chooseLocalSize(global cl.Size, maxTotal int) cl.Size {
	w := int(global.W)
	if w > maxTotal {
		w = maxTotal
	}
	for ; w > 1; w-- {
		if int(global.W)%w == 0 {
			break
		}
	}
	return cl.Size{W: uint32(w), H: 1, D: 1}
}
