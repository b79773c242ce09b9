package cl

// AddressingMode selects how out-of-range image coordinates are resolved.
type AddressingMode uint32

const (
	AddressNone           AddressingMode = 0x1130
	AddressClampToEdge    AddressingMode = 0x1131
	AddressClamp          AddressingMode = 0x1132
	AddressRepeat         AddressingMode = 0x1133
	AddressMirroredRepeat AddressingMode = 0x1134
)

// FilterMode selects the sampling filter.
type FilterMode uint32

const (
	FilterNearest FilterMode = 0x1140
	FilterLinear  FilterMode = 0x1141
)
