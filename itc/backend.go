package itc

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// BuildOpts controls the backend driver.
type BuildOpts struct {
	// Output is the binary path. Defaults to the source name without its
	// extension.
	Output string
	// Release selects -O2; the default is -O0.
	Release bool
	// KeepIR leaves the .ll file next to the output binary.
	KeepIR bool
	// CC overrides the C compiler. Defaults to $ITC_CC, then "cc". The
	// compiler must understand LLVM IR input (clang does).
	CC string
}

// Build emits LLVM IR for the lowered program and hands it to the external C
// compiler to produce a native binary.
func (ctx *Context) Build(sourcePath string, opts BuildOpts) error {
	if _, err := ctx.EntryFunction(); err != nil {
		return err
	}
	ir := EmitLLVM(ctx.Types, ctx.Program)

	out := opts.Output
	if out == "" {
		out = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	}
	irPath := out + ".ll"
	if !opts.KeepIR {
		dir, err := os.MkdirTemp("", "itc")
		if err != nil {
			return errors.E("create build dir", err)
		}
		defer os.RemoveAll(dir) // nolint: errcheck
		irPath = filepath.Join(dir, filepath.Base(out)+".ll")
	}
	if err := os.WriteFile(irPath, []byte(ir), 0644); err != nil {
		return errors.E("write "+irPath, err)
	}

	cc := opts.CC
	if cc == "" {
		cc = os.Getenv("ITC_CC")
	}
	if cc == "" {
		cc = "cc"
	}
	level := "-O0"
	if opts.Release {
		level = "-O2"
	}
	args := []string{level, "-o", out, irPath}
	log.Debug.Printf("%s %s", cc, strings.Join(args, " "))
	cmd := exec.Command(cc, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.E(cc+" "+strings.Join(args, " "), err)
	}
	return nil
}
