// Package cl holds the host-API value types shared by every layer of the
// driver: the numeric error codes, flag bitsets, image formats, workgroup
// sizes and execution statuses of the OpenCL 1.2 surface.
//
// The package is dependency-free on purpose: the spirv, clc, mtl and driver
// packages all speak these types without pulling each other in.
package cl

// Version of the OpenCL surface the driver implements.
const (
	VersionString  = "OpenCL 1.2"
	CVersionString = "OpenCL C 1.2"
)
