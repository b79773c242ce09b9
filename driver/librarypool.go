package driver

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/mtl"
)

type libraryKey struct {
	program *Program
	defines string
}

// LibraryPool memoizes native libraries by (program, specialization-macro
// text). The same program is compiled repeatedly with differing local-memory
// sizes realized as preprocessor defines; the pool keeps that linear instead
// of quadratic.
type LibraryPool struct {
	device mtl.Device

	mu   sync.Mutex
	libs map[libraryKey]mtl.Library
}

func newLibraryPool(device mtl.Device) *LibraryPool {
	return &LibraryPool{device: device, libs: map[libraryKey]mtl.Library{}}
}

// At returns the native library for the program specialized with the macro
// text, compiling it on first use.
func (p *LibraryPool) At(program *Program, defines string) (mtl.Library, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := libraryKey{program: program, defines: defines}
	if lib, ok := p.libs[key]; ok {
		return lib, nil
	}

	lib, err := p.device.NewLibrary(defines + program.NativeSource())
	if err != nil {
		return nil, errors.WithMessage(cl.ErrBuildProgramFailure, err.Error())
	}
	klog.V(2).Infof("compiled library for program %p with %d bytes of defines", program, len(defines))
	p.libs[key] = lib
	return lib, nil
}

// Purge drops and releases every library compiled from the program; called
// when the program is destroyed.
func (p *LibraryPool) Purge(program *Program) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, lib := range p.libs {
		if key.program == program {
			lib.Release()
			delete(p.libs, key)
		}
	}
}
