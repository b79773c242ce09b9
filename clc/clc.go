// Package clc is the compiler driver: it turns OpenCL C source into the
// portable compute IR and cross-translates that IR into native shader
// source. The default toolchain shells out to the clspv and spirv-cross
// executables; tests and embedders can register their own.
package clc

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Toolchain is one configured compiler pipeline.
type Toolchain interface {
	// Compile turns OpenCL C source into portable IR. The returned log
	// carries the compiler diagnostics whether or not the compile
	// succeeded.
	Compile(source string, options []string) (ir []uint32, log string, err error)

	// Translate cross-translates portable IR into native shader source.
	Translate(ir []uint32) (source string, err error)
}

// Constructor builds a toolchain from a config string.
type Constructor func(config string) (Toolchain, error)

var (
	registered      = map[string]Constructor{}
	firstRegistered string
)

// Register makes a toolchain constructor available under the given name.
func Register(name string, ctor Constructor) {
	if len(registered) == 0 {
		firstRegistered = name
	}
	registered[name] = ctor
}

// ToolchainEnv is the environment variable selecting the toolchain. The
// format is "<name>" or "<name>:<config>".
const ToolchainEnv = "CLMTL_TOOLCHAIN"

// New opens a toolchain. An empty config selects ToolchainEnv if set, else
// the first registered toolchain.
func New(config string) (Toolchain, error) {
	if config == "" {
		config = os.Getenv(ToolchainEnv)
	}
	if len(registered) == 0 {
		return nil, errors.New("no toolchains registered")
	}
	name := firstRegistered
	if idx := strings.Index(config, ":"); idx != -1 {
		name, config = config[:idx], config[idx+1:]
	} else if config != "" {
		name, config = config, ""
	}
	ctor, ok := registered[name]
	if !ok {
		return nil, errors.Errorf("unknown toolchain %q", name)
	}
	return ctor(config)
}

// ParseOptions splits a build-option string the way the host API specifies:
// whitespace separated, with "-D name" and "-D name=value" kept intact as
// two tokens.
func ParseOptions(options string) []string {
	return strings.Fields(options)
}

// Defines extracts the preprocessor definitions from parsed options,
// accepting both "-Dname[=value]" and "-D name[=value]".
func Defines(options []string) map[string]string {
	defines := map[string]string{}
	for i := 0; i < len(options); i++ {
		opt := options[i]
		var def string
		switch {
		case opt == "-D" && i+1 < len(options):
			i++
			def = options[i]
		case strings.HasPrefix(opt, "-D"):
			def = opt[2:]
		default:
			continue
		}
		if name, value, found := strings.Cut(def, "="); found {
			defines[name] = value
		} else if def != "" {
			defines[def] = "1"
		}
	}
	return defines
}
