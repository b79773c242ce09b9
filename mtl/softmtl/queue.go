package softmtl

import (
	"runtime"

	"github.com/gomlx/exceptions"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/daemyung/clmtl/mtl"
)

// CommandQueue executes command buffers in commit order on a background
// goroutine, matching the in-order behavior of a native serial queue.
type CommandQueue struct {
	device *Device
	ch     chan *CommandBuffer
}

var _ mtl.CommandQueue = (*CommandQueue)(nil)

func newCommandQueue(d *Device) *CommandQueue {
	q := &CommandQueue{device: d, ch: make(chan *CommandBuffer, 64)}
	go q.run()
	return q
}

func (q *CommandQueue) run() {
	for cb := range q.ch {
		cb.execute()
	}
}

// CommandBuffer implements mtl.CommandQueue.
func (q *CommandQueue) CommandBuffer() mtl.CommandBuffer {
	return &CommandBuffer{queue: q, done: make(chan struct{})}
}

// Release implements mtl.CommandQueue. Committed buffers still drain.
func (q *CommandQueue) Release() {
	close(q.ch)
}

// CommandBuffer is a batch of recorded steps.
type CommandBuffer struct {
	queue     *CommandQueue
	steps     []func()
	scheduled []func()
	completed []func(error)
	done      chan struct{}
	err       error
}

var _ mtl.CommandBuffer = (*CommandBuffer)(nil)

func (cb *CommandBuffer) execute() {
	for _, fn := range cb.scheduled {
		fn()
	}
	for _, step := range cb.steps {
		if cb.err = exceptions.TryCatch[error](step); cb.err != nil {
			klog.V(1).Infof("command buffer failed: %v", cb.err)
			break
		}
	}
	for _, fn := range cb.completed {
		fn(cb.err)
	}
	close(cb.done)
}

// AddScheduledHandler implements mtl.CommandBuffer.
func (cb *CommandBuffer) AddScheduledHandler(fn func()) {
	cb.scheduled = append(cb.scheduled, fn)
}

// AddCompletedHandler implements mtl.CommandBuffer.
func (cb *CommandBuffer) AddCompletedHandler(fn func(error)) {
	cb.completed = append(cb.completed, fn)
}

// Commit implements mtl.CommandBuffer.
func (cb *CommandBuffer) Commit() {
	cb.queue.ch <- cb
}

// WaitUntilCompleted implements mtl.CommandBuffer.
func (cb *CommandBuffer) WaitUntilCompleted() error {
	<-cb.done
	return cb.err
}

// ComputeCommandEncoder implements mtl.CommandBuffer.
func (cb *CommandBuffer) ComputeCommandEncoder() mtl.ComputeCommandEncoder {
	return &computeEncoder{cb: cb, bind: newBindings()}
}

// BlitCommandEncoder implements mtl.CommandBuffer.
func (cb *CommandBuffer) BlitCommandEncoder() mtl.BlitCommandEncoder {
	return &blitEncoder{cb: cb}
}

type bindings struct {
	pods     map[int][]byte
	buffers  map[int][]byte
	textures map[int]*Texture
	samplers map[int]*SamplerState
}

func newBindings() *bindings {
	return &bindings{
		pods:     map[int][]byte{},
		buffers:  map[int][]byte{},
		textures: map[int]*Texture{},
		samplers: map[int]*SamplerState{},
	}
}

func (b *bindings) clone() *bindings {
	c := newBindings()
	for k, v := range b.pods {
		c.pods[k] = v
	}
	for k, v := range b.buffers {
		c.buffers[k] = v
	}
	for k, v := range b.textures {
		c.textures[k] = v
	}
	for k, v := range b.samplers {
		c.samplers[k] = v
	}
	return c
}

type computeEncoder struct {
	cb   *CommandBuffer
	ps   *ComputePipelineState
	bind *bindings
}

var _ mtl.ComputeCommandEncoder = (*computeEncoder)(nil)

func (e *computeEncoder) SetComputePipelineState(ps mtl.ComputePipelineState) {
	p, ok := ps.(*ComputePipelineState)
	if !ok {
		exceptions.Panicf("pipeline state is not a %q backend pipeline", BackendName)
	}
	e.ps = p
}

func (e *computeEncoder) SetBytes(data []byte, index int) {
	buf := make([]byte, len(data))
	copy(buf, data)
	e.bind.pods[index] = buf
}

func (e *computeEncoder) SetBuffer(buf mtl.Buffer, offset, index int) {
	b, ok := buf.(*Buffer)
	if !ok {
		exceptions.Panicf("buffer is not a %q backend buffer", BackendName)
	}
	if offset < 0 || offset > len(b.data) {
		exceptions.Panicf("buffer offset %d out of range [0, %d]", offset, len(b.data))
	}
	e.bind.buffers[index] = b.data[offset:]
}

func (e *computeEncoder) SetTexture(tex mtl.Texture, index int) {
	t, ok := tex.(*Texture)
	if !ok {
		exceptions.Panicf("texture is not a %q backend texture", BackendName)
	}
	e.bind.textures[index] = t
}

func (e *computeEncoder) SetSamplerState(s mtl.SamplerState, index int) {
	ss, ok := s.(*SamplerState)
	if !ok {
		exceptions.Panicf("sampler is not a %q backend sampler", BackendName)
	}
	e.bind.samplers[index] = ss
}

func (e *computeEncoder) DispatchThreadgroups(groups, threadsPerGroup [3]int) {
	if e.ps == nil {
		exceptions.Panicf("dispatch without a pipeline state")
	}
	ps := e.ps
	bind := e.bind.clone()
	e.cb.steps = append(e.cb.steps, func() {
		dispatch(ps, bind, groups, threadsPerGroup)
	})
}

func (e *computeEncoder) EndEncoding() {}

func dispatch(ps *ComputePipelineState, bind *bindings, groups, threadsPerGroup [3]int) {
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for gz := 0; gz < groups[2]; gz++ {
		for gy := 0; gy < groups[1]; gy++ {
			for gx := 0; gx < groups[0]; gx++ {
				group := [3]int{gx, gy, gz}
				eg.Go(func() error {
					return exceptions.TryCatch[error](func() {
						runGroup(ps, bind, group, groups, threadsPerGroup)
					})
				})
			}
		}
	}
	if err := eg.Wait(); err != nil {
		panic(err)
	}
}

func runGroup(ps *ComputePipelineState, bind *bindings, group, groups, threadsPerGroup [3]int) {
	inv := &Invocation{
		GroupID:    group,
		GroupCount: groups,
		GroupSize:  threadsPerGroup,
		ps:         ps,
		bind:       bind,
	}
	for lz := 0; lz < threadsPerGroup[2]; lz++ {
		for ly := 0; ly < threadsPerGroup[1]; ly++ {
			for lx := 0; lx < threadsPerGroup[0]; lx++ {
				inv.LocalID = [3]int{lx, ly, lz}
				ps.fn(inv)
			}
		}
	}
}

// Invocation is the execution context handed to a registered kernel, once
// per work item.
type Invocation struct {
	GroupID    [3]int
	LocalID    [3]int
	GroupCount [3]int
	GroupSize  [3]int

	ps   *ComputePipelineState
	bind *bindings
}

// GlobalID returns the work item's global id along dim.
func (inv *Invocation) GlobalID(dim int) int {
	return inv.GroupID[dim]*inv.GroupSize[dim] + inv.LocalID[dim]
}

// GlobalSize returns the global work size along dim.
func (inv *Invocation) GlobalSize(dim int) int {
	return inv.GroupCount[dim] * inv.GroupSize[dim]
}

// Bytes returns the POD bytes bound at the slot.
func (inv *Invocation) Bytes(index int) []byte {
	data, ok := inv.bind.pods[index]
	if !ok {
		exceptions.Panicf("no bytes bound at index %d", index)
	}
	return data
}

// Buffer returns the buffer contents bound at the slot, from its offset on.
func (inv *Invocation) Buffer(index int) []byte {
	data, ok := inv.bind.buffers[index]
	if !ok {
		exceptions.Panicf("no buffer bound at index %d", index)
	}
	return data
}

// Texture returns the texture bound at the slot.
func (inv *Invocation) Texture(index int) *Texture {
	tex, ok := inv.bind.textures[index]
	if !ok {
		exceptions.Panicf("no texture bound at index %d", index)
	}
	return tex
}

// Constant returns a function-constant value; the workgroup dimensions are
// at ids 0, 1 and 2.
func (inv *Invocation) Constant(id int) uint32 {
	return inv.ps.constants[id]
}

// SpecConstant returns a specialization value that entered through the
// shader-source defines, typically a local-memory element count.
func (inv *Invocation) SpecConstant(id uint32) (uint32, bool) {
	v, ok := inv.ps.defines[id]
	return v, ok
}

type blitEncoder struct {
	cb *CommandBuffer
}

var _ mtl.BlitCommandEncoder = (*blitEncoder)(nil)

func softBuffer(buf mtl.Buffer) *Buffer {
	b, ok := buf.(*Buffer)
	if !ok {
		exceptions.Panicf("buffer is not a %q backend buffer", BackendName)
	}
	return b
}

func softTexture(tex mtl.Texture) *Texture {
	t, ok := tex.(*Texture)
	if !ok {
		exceptions.Panicf("texture is not a %q backend texture", BackendName)
	}
	return t
}

func (e *blitEncoder) CopyBuffer(src mtl.Buffer, srcOffset int, dst mtl.Buffer, dstOffset int, size int) {
	s, d := softBuffer(src), softBuffer(dst)
	e.cb.steps = append(e.cb.steps, func() {
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	})
}

func (e *blitEncoder) FillBuffer(dst mtl.Buffer, offset, size int, value byte) {
	d := softBuffer(dst)
	e.cb.steps = append(e.cb.steps, func() {
		region := d.data[offset : offset+size]
		for i := range region {
			region[i] = value
		}
	})
}

func (e *blitEncoder) CopyBufferToTexture(src mtl.Buffer, srcOffset, bytesPerRow, bytesPerImage int,
	size [3]int, dst mtl.Texture, origin [3]int) {
	s, d := softBuffer(src), softTexture(dst)
	e.cb.steps = append(e.cb.steps, func() {
		d.ReplaceRegion(mtl.Region{
			X: origin[0], Y: origin[1], Z: origin[2],
			W: size[0], H: size[1], D: size[2],
		}, s.data[srcOffset:], bytesPerRow, bytesPerImage)
	})
}

func (e *blitEncoder) CopyTextureToBuffer(src mtl.Texture, origin, size [3]int,
	dst mtl.Buffer, dstOffset, bytesPerRow, bytesPerImage int) {
	s, d := softTexture(src), softBuffer(dst)
	e.cb.steps = append(e.cb.steps, func() {
		s.GetBytes(d.data[dstOffset:], bytesPerRow, bytesPerImage, mtl.Region{
			X: origin[0], Y: origin[1], Z: origin[2],
			W: size[0], H: size[1], D: size[2],
		})
	})
}

func (e *blitEncoder) CopyTexture(src mtl.Texture, srcOrigin [3]int, size [3]int,
	dst mtl.Texture, dstOrigin [3]int) {
	s, d := softTexture(src), softTexture(dst)
	e.cb.steps = append(e.cb.steps, func() {
		tmp := make([]byte, size[0]*size[1]*size[2]*s.desc.ElemSize)
		rowBytes := size[0] * s.desc.ElemSize
		imageBytes := rowBytes * size[1]
		s.GetBytes(tmp, rowBytes, imageBytes, mtl.Region{
			X: srcOrigin[0], Y: srcOrigin[1], Z: srcOrigin[2],
			W: size[0], H: size[1], D: size[2],
		})
		d.ReplaceRegion(mtl.Region{
			X: dstOrigin[0], Y: dstOrigin[1], Z: dstOrigin[2],
			W: size[0], H: size[1], D: size[2],
		}, tmp, rowBytes, imageBytes)
	})
}

func (e *blitEncoder) EndEncoding() {}
