package cl

import (
	"errors"
	"strconv"
)

// Error is a host-API error code. The numeric values are returned verbatim
// across the ABI, so they must match the OpenCL headers exactly.
//
// Success is represented by a nil error, never by a sentinel value.
type Error int32

const (
	ErrDeviceNotFound                     Error = -1
	ErrDeviceNotAvailable                 Error = -2
	ErrCompilerNotAvailable               Error = -3
	ErrMemObjectAllocationFailure         Error = -4
	ErrOutOfResources                     Error = -5
	ErrOutOfHostMemory                    Error = -6
	ErrImageFormatNotSupported            Error = -10
	ErrBuildProgramFailure                Error = -11
	ErrMapFailure                         Error = -12
	ErrExecStatusErrorForEventsInWaitList Error = -14

	ErrInvalidValue                 Error = -30
	ErrInvalidDeviceType            Error = -31
	ErrInvalidPlatform              Error = -32
	ErrInvalidDevice                Error = -33
	ErrInvalidContext               Error = -34
	ErrInvalidQueueProperties       Error = -35
	ErrInvalidCommandQueue          Error = -36
	ErrInvalidHostPtr               Error = -37
	ErrInvalidMemObject             Error = -38
	ErrInvalidImageFormatDescriptor Error = -39
	ErrInvalidImageSize             Error = -40
	ErrInvalidSampler               Error = -41
	ErrInvalidBinary                Error = -42
	ErrInvalidBuildOptions          Error = -43
	ErrInvalidProgram               Error = -44
	ErrInvalidProgramExecutable     Error = -45
	ErrInvalidKernelName            Error = -46
	ErrInvalidKernelDefinition      Error = -47
	ErrInvalidKernel                Error = -48
	ErrInvalidArgIndex              Error = -49
	ErrInvalidArgValue              Error = -50
	ErrInvalidArgSize               Error = -51
	ErrInvalidKernelArgs            Error = -52
	ErrInvalidWorkDimension         Error = -53
	ErrInvalidWorkGroupSize         Error = -54
	ErrInvalidWorkItemSize          Error = -55
	ErrInvalidGlobalOffset          Error = -56
	ErrInvalidEventWaitList         Error = -57
	ErrInvalidEvent                 Error = -58
	ErrInvalidOperation             Error = -59
	ErrInvalidBufferSize            Error = -61
	ErrInvalidGlobalWorkSize        Error = -63
)

var errorNames = map[Error]string{
	ErrDeviceNotFound:                     "CL_DEVICE_NOT_FOUND",
	ErrDeviceNotAvailable:                 "CL_DEVICE_NOT_AVAILABLE",
	ErrCompilerNotAvailable:               "CL_COMPILER_NOT_AVAILABLE",
	ErrMemObjectAllocationFailure:         "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	ErrOutOfResources:                     "CL_OUT_OF_RESOURCES",
	ErrOutOfHostMemory:                    "CL_OUT_OF_HOST_MEMORY",
	ErrImageFormatNotSupported:            "CL_IMAGE_FORMAT_NOT_SUPPORTED",
	ErrBuildProgramFailure:                "CL_BUILD_PROGRAM_FAILURE",
	ErrMapFailure:                         "CL_MAP_FAILURE",
	ErrExecStatusErrorForEventsInWaitList: "CL_EXEC_STATUS_ERROR_FOR_EVENTS_IN_WAIT_LIST",
	ErrInvalidValue:                       "CL_INVALID_VALUE",
	ErrInvalidDeviceType:                  "CL_INVALID_DEVICE_TYPE",
	ErrInvalidPlatform:                    "CL_INVALID_PLATFORM",
	ErrInvalidDevice:                      "CL_INVALID_DEVICE",
	ErrInvalidContext:                     "CL_INVALID_CONTEXT",
	ErrInvalidQueueProperties:             "CL_INVALID_QUEUE_PROPERTIES",
	ErrInvalidCommandQueue:                "CL_INVALID_COMMAND_QUEUE",
	ErrInvalidHostPtr:                     "CL_INVALID_HOST_PTR",
	ErrInvalidMemObject:                   "CL_INVALID_MEM_OBJECT",
	ErrInvalidImageFormatDescriptor:       "CL_INVALID_IMAGE_FORMAT_DESCRIPTOR",
	ErrInvalidImageSize:                   "CL_INVALID_IMAGE_SIZE",
	ErrInvalidSampler:                     "CL_INVALID_SAMPLER",
	ErrInvalidBinary:                      "CL_INVALID_BINARY",
	ErrInvalidBuildOptions:                "CL_INVALID_BUILD_OPTIONS",
	ErrInvalidProgram:                     "CL_INVALID_PROGRAM",
	ErrInvalidProgramExecutable:           "CL_INVALID_PROGRAM_EXECUTABLE",
	ErrInvalidKernelName:                  "CL_INVALID_KERNEL_NAME",
	ErrInvalidKernelDefinition:            "CL_INVALID_KERNEL_DEFINITION",
	ErrInvalidKernel:                      "CL_INVALID_KERNEL",
	ErrInvalidArgIndex:                    "CL_INVALID_ARG_INDEX",
	ErrInvalidArgValue:                    "CL_INVALID_ARG_VALUE",
	ErrInvalidArgSize:                     "CL_INVALID_ARG_SIZE",
	ErrInvalidKernelArgs:                  "CL_INVALID_KERNEL_ARGS",
	ErrInvalidWorkDimension:               "CL_INVALID_WORK_DIMENSION",
	ErrInvalidWorkGroupSize:               "CL_INVALID_WORK_GROUP_SIZE",
	ErrInvalidWorkItemSize:                "CL_INVALID_WORK_ITEM_SIZE",
	ErrInvalidGlobalOffset:                "CL_INVALID_GLOBAL_OFFSET",
	ErrInvalidEventWaitList:               "CL_INVALID_EVENT_WAIT_LIST",
	ErrInvalidEvent:                       "CL_INVALID_EVENT",
	ErrInvalidOperation:                   "CL_INVALID_OPERATION",
	ErrInvalidBufferSize:                  "CL_INVALID_BUFFER_SIZE",
	ErrInvalidGlobalWorkSize:              "CL_INVALID_GLOBAL_WORK_SIZE",
}

// Error implements the error interface.
func (e Error) Error() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return "CL_ERROR(" + strconv.FormatInt(int64(e), 10) + ")"
}

// Code returns the numeric value returned across the ABI, unwrapping any
// context added to the code on its way up. A nil error maps to CL_SUCCESS
// (0); an error that carries no code maps to CL_OUT_OF_HOST_MEMORY, the
// catch-all of the host API.
func Code(err error) int32 {
	if err == nil {
		return 0
	}
	var e Error
	if errors.As(err, &e) {
		return int32(e)
	}
	return int32(ErrOutOfHostMemory)
}
