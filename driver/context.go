package driver

import (
	"github.com/daemyung/clmtl/cl"
)

// Context binds the objects a client creates to a device. Descendants
// (queues, programs, memory objects, samplers, events) retain their context,
// so it outlives them regardless of the order the client releases handles.
type Context struct {
	handle
	object

	device  *Device
	formats []cl.ImageFormat
}

// NewContext creates a context on the device.
func NewContext(device *Device) (*Context, error) {
	if device == nil {
		return nil, cl.ErrInvalidDevice
	}
	c := &Context{handle: newHandle(), device: device, formats: supportedFormats()}
	c.object.init()
	return c, nil
}

// Device returns the context's device.
func (c *Context) Device() *Device { return c.device }

// SupportedImageFormats returns the formats images can be created with.
// Every supported format is readable and writable, so the flags are not
// consulted; only the buffer kind yields an empty result.
func (c *Context) SupportedImageFormats(flags cl.MemFlags, kind cl.ImageKind) []cl.ImageFormat {
	if kind == cl.MemObjectBuffer {
		return nil
	}
	out := make([]cl.ImageFormat, len(c.formats))
	copy(out, c.formats)
	return out
}

// SupportsImageFormat reports whether images of the format can be created.
func (c *Context) SupportsImageFormat(format cl.ImageFormat) bool {
	_, ok := nativePixelFormat(format)
	return ok
}

// Release decrements the count and destroys the context at zero.
func (c *Context) Release() {
	if c.object.release() {
		c.destroy()
	}
}

func (c *Context) destroy() {
	// The device is a process singleton; nothing to tear down.
	c.device = nil
}
