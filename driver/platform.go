package driver

import "sync"

// Platform is the process-wide singleton the loader enumerates first. It
// only carries the static identification strings; the interesting state
// lives on the Device.
type Platform struct {
	handle
	object
}

var (
	platformOnce sync.Once
	platform     *Platform
)

// GetPlatform returns the singleton platform.
func GetPlatform() *Platform {
	platformOnce.Do(func() {
		platform = &Platform{handle: newHandle()}
		platform.object.init()
	})
	return platform
}

// Profile implements the platform info query.
func (p *Platform) Profile() string { return "FULL_PROFILE" }

// Version implements the platform info query.
func (p *Platform) Version() string { return "OpenCL 1.2 clmtl" }

// Name implements the platform info query.
func (p *Platform) Name() string { return "clmtl" }

// Vendor implements the platform info query.
func (p *Platform) Vendor() string { return "clmtl" }

// Extensions implements the platform info query. The driver reports the ICD
// extension only.
func (p *Platform) Extensions() string { return "cl_khr_icd" }

// Release never destroys the platform; the singleton lives for the process.
func (p *Platform) Release() {
	p.object.release()
}
