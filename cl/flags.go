package cl

// MemFlags describe the access and host-pointer behavior of a memory object.
type MemFlags uint64

const (
	MemReadWrite    MemFlags = 1 << 0
	MemWriteOnly    MemFlags = 1 << 1
	MemReadOnly     MemFlags = 1 << 2
	MemUseHostPtr   MemFlags = 1 << 3
	MemAllocHostPtr MemFlags = 1 << 4
	MemCopyHostPtr  MemFlags = 1 << 5
)

// HasAny reports whether any of the given bits are set.
func (f MemFlags) HasAny(bits MemFlags) bool { return f&bits != 0 }

// MapFlags select the access mode of a mapped region.
type MapFlags uint64

const (
	MapRead  MapFlags = 1 << 0
	MapWrite MapFlags = 1 << 1
)

// HasAny reports whether any of the given bits are set.
func (f MapFlags) HasAny(bits MapFlags) bool { return f&bits != 0 }

// QueueProperties is the property bitset of a command queue. The driver
// accepts but never enables out-of-order execution.
type QueueProperties uint64

const (
	QueueOutOfOrderExecMode QueueProperties = 1 << 0
	QueueProfilingEnable    QueueProperties = 1 << 1
)

// HasAny reports whether any of the given bits are set.
func (p QueueProperties) HasAny(bits QueueProperties) bool { return p&bits != 0 }

// DeviceType selects device families during platform enumeration.
type DeviceType uint64

const (
	DeviceTypeDefault     DeviceType = 1 << 0
	DeviceTypeCPU         DeviceType = 1 << 1
	DeviceTypeGPU         DeviceType = 1 << 2
	DeviceTypeAccelerator DeviceType = 1 << 3
	DeviceTypeAll         DeviceType = 0xFFFFFFFF
)
