package clc

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/daemyung/clmtl/spirv"
)

// ToolchainName of the exec toolchain.
const ToolchainName = "exec"

func init() {
	Register(ToolchainName, newExecToolchain)
}

// baselineOptions are always passed to the IR compiler, ahead of the user's:
// the language version, the argument-info metadata the Reflector depends on,
// and switches for the features the runtime does not implement.
var baselineOptions = []string{
	"-cl-std=CL1.2",
	"-cl-kernel-arg-info",
	"-cl-single-precision-constant",
	"-global-offset=false",
	"-inline-entry-points",
}

// compileTimeout bounds a single external compiler run.
const compileTimeout = time.Minute

// ExecToolchain drives the clspv and spirv-cross executables through
// temporary files.
type ExecToolchain struct {
	ClspvPath      string
	SpirvCrossPath string
}

var _ Toolchain = (*ExecToolchain)(nil)

// newExecToolchain resolves the executables. The config may override the
// clspv path; spirv-cross is found next to it or on PATH.
func newExecToolchain(config string) (Toolchain, error) {
	tc := &ExecToolchain{ClspvPath: "clspv", SpirvCrossPath: "spirv-cross"}
	if config != "" {
		tc.ClspvPath = config
		sibling := filepath.Join(filepath.Dir(config), "spirv-cross")
		if _, err := os.Stat(sibling); err == nil {
			tc.SpirvCrossPath = sibling
		}
	}
	return tc, nil
}

func (tc *ExecToolchain) run(name string, args ...string) (stderr string, err error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(err, "%s not found", name)
	}
	ctx, cancel := context.WithTimeout(context.Background(), compileTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, args...)
	var buf bytes.Buffer
	cmd.Stderr = &buf
	klog.V(2).Infof("running %s %s", path, strings.Join(args, " "))
	err = cmd.Run()
	return buf.String(), errors.Wrapf(err, "%s failed", name)
}

// Compile implements Toolchain.
func (tc *ExecToolchain) Compile(source string, options []string) ([]uint32, string, error) {
	dir, err := os.MkdirTemp("", "clmtl-clc-")
	if err != nil {
		return nil, "", errors.Wrap(err, "cannot create scratch directory")
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "program.cl")
	out := filepath.Join(dir, "program.spv")
	if err := os.WriteFile(in, []byte(source), 0o600); err != nil {
		return nil, "", errors.Wrap(err, "cannot write source")
	}

	args := append([]string{}, baselineOptions...)
	args = append(args, options...)
	args = append(args, in, "-o", out)
	log, err := tc.run(tc.ClspvPath, args...)
	if err != nil {
		if log == "" {
			log = err.Error()
		}
		return nil, log, err
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		return nil, log, errors.Wrap(err, "compiler produced no output")
	}
	ir, err := spirv.WordsFromBytes(raw)
	if err != nil {
		return nil, log, err
	}
	return ir, log, nil
}

// Translate implements Toolchain.
func (tc *ExecToolchain) Translate(ir []uint32) (string, error) {
	dir, err := os.MkdirTemp("", "clmtl-clc-")
	if err != nil {
		return "", errors.Wrap(err, "cannot create scratch directory")
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "program.spv")
	out := filepath.Join(dir, "program.metal")
	if err := os.WriteFile(in, spirv.BytesFromWords(ir), 0o600); err != nil {
		return "", errors.Wrap(err, "cannot write binary")
	}

	stderr, err := tc.run(tc.SpirvCrossPath, "--msl", "--msl-version", "20000", in, "--output", out)
	if err != nil {
		return "", errors.WithMessage(err, stderr)
	}

	source, err := os.ReadFile(out)
	if err != nil {
		return "", errors.Wrap(err, "translator produced no output")
	}
	return string(source), nil
}
