// Package toolchain invokes the C++ compiler for builds and syntax checks.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"cppexec/internal/sandbox/result"
	appErr "cppexec/pkg/errors"
	"cppexec/pkg/utils/yamlutil"
)

const (
	defaultCompiler       = "g++"
	defaultStandard       = "c++17"
	defaultCompileTimeout = 10 * time.Second
)

// Toolchain compiles prepared sources and runs syntax-only checks.
type Toolchain interface {
	// Compile builds sourcePath into binaryPath. Success is determined by
	// the compiler process exit status.
	Compile(ctx context.Context, sourcePath, binaryPath string) (result.CompileResult, error)
	// CheckSyntax runs the compiler in syntax-only mode. Empty diagnostic
	// output means the source is valid.
	CheckSyntax(ctx context.Context, sourcePath string) (string, error)
}

// Config controls compiler invocation.
type Config struct {
	Compiler       string            `yaml:"compiler"`
	Standard       string            `yaml:"standard"`
	CompileTimeout yamlutil.Duration `yaml:"compileTimeout"`
}

// GCC invokes g++ with a fixed argument vector. User-controlled content is
// only ever passed as distinct argv entries, never through a shell.
type GCC struct {
	cfg Config
}

// NewGCC creates a GCC toolchain with defaults applied.
func NewGCC(cfg Config) *GCC {
	if cfg.Compiler == "" {
		cfg.Compiler = defaultCompiler
	}
	if cfg.Standard == "" {
		cfg.Standard = defaultStandard
	}
	if cfg.CompileTimeout <= 0 {
		cfg.CompileTimeout = yamlutil.Duration(defaultCompileTimeout)
	}
	return &GCC{cfg: cfg}
}

func compileArgs(standard, sourcePath, binaryPath string) []string {
	return []string{"-std=" + standard, "-O2", "-Wall", "-Wextra", "-o", binaryPath, sourcePath}
}

func syntaxArgs(standard, sourcePath string) []string {
	return []string{"-std=" + standard, "-fsyntax-only", sourcePath}
}

// Compile builds the prepared source. The compile stage runs under its own
// timeout so a pathological source cannot hold a pipeline slot forever.
func (g *GCC) Compile(ctx context.Context, sourcePath, binaryPath string) (result.CompileResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CompileTimeout.Duration())
	defer cancel()

	cmd := exec.CommandContext(ctx, g.cfg.Compiler, compileArgs(g.cfg.Standard, sourcePath, binaryPath)...)
	var diag bytes.Buffer
	cmd.Stdout = &diag
	cmd.Stderr = &diag

	err := cmd.Run()
	if err == nil {
		return result.CompileResult{OK: true, ExitCode: 0, Diagnostics: diag.String()}, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return result.CompileResult{
			OK:          false,
			ExitCode:    -1,
			Diagnostics: fmt.Sprintf("compilation timed out after %s", g.cfg.CompileTimeout.Duration()),
		}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result.CompileResult{
			OK:          false,
			ExitCode:    exitErr.ExitCode(),
			Diagnostics: diag.String(),
		}, nil
	}

	// The compiler could not be spawned at all.
	return result.CompileResult{}, appErr.Wrapf(err, appErr.SandboxError, "invoke %s: %v", g.cfg.Compiler, err)
}

// CheckSyntax validates the source without producing an artifact.
func (g *GCC) CheckSyntax(ctx context.Context, sourcePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CompileTimeout.Duration())
	defer cancel()

	cmd := exec.CommandContext(ctx, g.cfg.Compiler, syntaxArgs(g.cfg.Standard, sourcePath)...)
	var diag bytes.Buffer
	cmd.Stdout = &diag
	cmd.Stderr = &diag

	err := cmd.Run()
	if err == nil {
		return diag.String(), nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("syntax check timed out after %s", g.cfg.CompileTimeout.Duration()), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if diag.Len() == 0 {
			return fmt.Sprintf("%s exited with status %d", g.cfg.Compiler, exitErr.ExitCode()), nil
		}
		return diag.String(), nil
	}

	return "", appErr.Wrapf(err, appErr.SandboxError, "invoke %s: %v", g.cfg.Compiler, err)
}
