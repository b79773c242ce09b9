//go:build !darwin || !cgo

// Package metal implements the mtl device interface over Metal.framework.
// On platforms without Metal this stub keeps the package importable; the
// constructor reports that no device exists.
package metal

import (
	"github.com/pkg/errors"

	"github.com/daemyung/clmtl/mtl"
)

// BackendName to use in the device-selection environment variable.
const BackendName = "metal"

// New always fails off darwin.
func New(_ string) (mtl.Device, error) {
	return nil, errors.New("Metal is not available on this platform")
}
