//go:build linux

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"cppexec/internal/sandbox/result"
	"cppexec/internal/sandbox/spec"
	appErr "cppexec/pkg/errors"
	"cppexec/pkg/utils/logger"
	"cppexec/pkg/utils/yamlutil"

	"go.uber.org/zap"
)

const (
	defaultStdoutStderrMaxBytes int64 = 64 * 1024
	defaultMemoryPollInterval         = 50 * time.Millisecond
)

type linuxEngine struct {
	cfg Config
}

// NewEngine creates a Linux sandbox engine.
func NewEngine(cfg Config) (Engine, error) {
	if cfg.StdoutStderrMaxBytes <= 0 {
		cfg.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if cfg.MemoryPollInterval <= 0 {
		cfg.MemoryPollInterval = yamlutil.Duration(defaultMemoryPollInterval)
	}
	return &linuxEngine{cfg: cfg}, nil
}

func (e *linuxEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}

	// The child always gets a stdin stream. Writing the file even for empty
	// input means a program that reads stdin sees immediate EOF instead of
	// blocking for its whole time budget.
	if err := os.WriteFile(runSpec.StdinPath, []byte(runSpec.Stdin), 0644); err != nil {
		return result.RunResult{}, appErr.Wrapf(err, appErr.SandboxError, "write stdin file: %v", err)
	}

	cgroupPath := ""
	cgroupCleanup := func() {}
	if e.cfg.EnableCgroup {
		var err error
		cgroupPath, cgroupCleanup, err = createRunCgroup(e.cfg.CgroupRoot, filepath.Base(runSpec.WorkDir))
		if err != nil {
			return result.RunResult{}, appErr.Wrapf(err, appErr.SandboxError, "create cgroup: %v", err)
		}
		if err := applyCgroupLimits(cgroupPath, runSpec.Limits); err != nil {
			cgroupCleanup()
			return result.RunResult{}, appErr.Wrapf(err, appErr.SandboxError, "apply cgroup limits: %v", err)
		}
	}
	defer cgroupCleanup()

	cmd, closeFiles, helperStderr, err := e.buildCommand(ctx, runSpec)
	if err != nil {
		return result.RunResult{}, err
	}
	defer closeFiles()

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return result.RunResult{}, appErr.Wrapf(err, appErr.SandboxError, "start sandboxed process: %v", err)
	}

	if e.cfg.EnableCgroup {
		if err := addProcessToCgroup(cgroupPath, cmd.Process.Pid); err != nil {
			logger.Warn(ctx, "add process to cgroup failed", zap.String("cgroup", cgroupPath), zap.Error(err))
		}
	}

	var timedOut atomic.Bool
	var memKilled atomic.Bool
	done := make(chan struct{})
	go e.watchdog(cmd.Process.Pid, runSpec.Limits, cgroupPath, &timedOut, &memKilled, done)

	waitErr := cmd.Wait()
	close(done)

	wallTime := time.Since(start)
	stdout, stdoutTruncated := readLimitedFile(runSpec.StdoutPath, e.cfg.StdoutStderrMaxBytes)
	stderr, _ := readLimitedFile(runSpec.StderrPath, e.cfg.StdoutStderrMaxBytes)

	runResult := result.RunResult{
		ExitCode:        exitCodeFromState(waitErr, cmd.ProcessState),
		WallTimeSeconds: wallTime.Seconds(),
		PeakMemoryKB:    memoryPeakKB(cgroupPath, cmd.ProcessState),
		Stdout:          stdout,
		Stderr:          stderr,
		OutputTruncated: stdoutTruncated,
	}

	switch {
	case timedOut.Load():
		runResult.Cause = result.CauseTimedOut
	case memKilled.Load() || wasOomKilled(cgroupPath):
		runResult.Cause = result.CauseMemoryKilled
	case signalFromState(cmd.ProcessState) > 0:
		runResult.Cause = result.CauseCrashed
		runResult.Signal = signalFromState(cmd.ProcessState)
	default:
		runResult.Cause = result.CauseCompleted
	}

	if waitErr != nil && helperStderr != nil && helperStderr.Len() > 0 {
		logger.Warn(ctx, "sandbox helper stderr", zap.String("stderr", helperStderr.String()))
	}

	return runResult, nil
}

// buildCommand wires the child either through the sandbox-init helper (which
// applies rlimits and seccomp before exec) or as a direct exec with file-backed
// standard streams. Both paths use argument vectors only; user content never
// reaches a shell.
func (e *linuxEngine) buildCommand(ctx context.Context, runSpec spec.RunSpec) (*exec.Cmd, func(), *bytes.Buffer, error) {
	noop := func() {}

	if e.cfg.HelperPath != "" {
		req := initRequest{
			Cmd:            runSpec.Cmd,
			WorkDir:        runSpec.WorkDir,
			StdinPath:      runSpec.StdinPath,
			StdoutPath:     runSpec.StdoutPath,
			StderrPath:     runSpec.StderrPath,
			MemoryMB:       runSpec.Limits.MemoryMB,
			CPUTimeSeconds: runSpec.Limits.WallTimeSeconds,
			OutputLimitMB:  (e.cfg.StdoutStderrMaxBytes + 1024*1024 - 1) / (1024 * 1024),
			SeccompProfile: e.cfg.SeccompProfile,
			EnableSeccomp:  e.cfg.EnableSeccomp,
		}
		stdinPipe, err := jsonToPipe(req)
		if err != nil {
			return nil, noop, nil, appErr.Wrapf(err, appErr.SandboxError, "encode init request: %v", err)
		}
		cmd := exec.CommandContext(ctx, e.cfg.HelperPath)
		cmd.Stdin = stdinPipe
		cmd.SysProcAttr = sandboxSysProcAttr()
		var helperStderr bytes.Buffer
		cmd.Stderr = &helperStderr
		return cmd, func() { _ = stdinPipe.Close() }, &helperStderr, nil
	}

	stdinFile, err := os.Open(runSpec.StdinPath)
	if err != nil {
		return nil, noop, nil, appErr.Wrapf(err, appErr.SandboxError, "open stdin file: %v", err)
	}
	stdoutFile, err := os.OpenFile(runSpec.StdoutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		_ = stdinFile.Close()
		return nil, noop, nil, appErr.Wrapf(err, appErr.SandboxError, "open stdout file: %v", err)
	}
	stderrFile, err := os.OpenFile(runSpec.StderrPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		_ = stdinFile.Close()
		_ = stdoutFile.Close()
		return nil, noop, nil, appErr.Wrapf(err, appErr.SandboxError, "open stderr file: %v", err)
	}

	cmd := exec.CommandContext(ctx, runSpec.Cmd[0], runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	cmd.Stdin = stdinFile
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	cmd.SysProcAttr = sandboxSysProcAttr()
	closeFiles := func() {
		_ = stdinFile.Close()
		_ = stdoutFile.Close()
		_ = stderrFile.Close()
	}
	return cmd, closeFiles, nil, nil
}

// watchdog enforces the wall-clock and memory ceilings. On either violation
// the entire process group is killed so children spawned by the target are
// reclaimed too.
func (e *linuxEngine) watchdog(pid int, limits spec.ResourceLimits, cgroupPath string, timedOut, memKilled *atomic.Bool, done <-chan struct{}) {
	var wallTimer <-chan time.Time
	if limits.WallTimeSeconds > 0 {
		wallTimer = time.After(limits.WallTime())
	}
	memTicker := time.NewTicker(e.cfg.MemoryPollInterval.Duration())
	defer memTicker.Stop()

	for {
		select {
		case <-done:
			return
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(pid)
			return
		case <-memTicker.C:
			if limits.MemoryMB <= 0 {
				continue
			}
			usageKB := memoryUsageKB(cgroupPath, pid)
			if usageKB > limits.MemoryMB*1024 {
				memKilled.Store(true)
				killProcessGroup(pid)
				return
			}
		}
	}
}

func sandboxSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if len(runSpec.Cmd) == 0 {
		return appErr.New(appErr.SandboxError).WithMessage("command is required")
	}
	if runSpec.WorkDir == "" {
		return appErr.New(appErr.SandboxError).WithMessage("work dir is required")
	}
	if runSpec.StdinPath == "" || runSpec.StdoutPath == "" || runSpec.StderrPath == "" {
		return appErr.New(appErr.SandboxError).WithMessage("stdio paths are required")
	}
	return nil
}

func jsonToPipe(req initRequest) (io.ReadCloser, error) {
	reader, writer := io.Pipe()
	go func() {
		enc := json.NewEncoder(writer)
		err := enc.Encode(req)
		_ = writer.CloseWithError(err)
	}()
	return reader, nil
}

func exitCodeFromState(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func signalFromState(state *os.ProcessState) int {
	if state == nil {
		return 0
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return int(status.Signal())
	}
	return 0
}

// memoryUsageKB reads current resident memory, preferring cgroup accounting
// and falling back to /proc for the direct-exec path.
func memoryUsageKB(cgroupPath string, pid int) int64 {
	if cgroupPath != "" {
		if val, err := readCgroupInt(cgroupPath, "memory.current"); err == nil {
			return val / 1024
		}
	}
	return procRSSKB(pid)
}

func procRSSKB(pid int) int64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return pages * int64(os.Getpagesize()) / 1024
}

func memoryPeakKB(cgroupPath string, state *os.ProcessState) int64 {
	if cgroupPath != "" {
		if val, err := readCgroupInt(cgroupPath, "memory.peak"); err == nil && val > 0 {
			return val / 1024
		}
	}
	if state == nil {
		return 0
	}
	if usage, ok := state.SysUsage().(*syscall.Rusage); ok {
		return usage.Maxrss
	}
	return 0
}

func readLimitedFile(path string, maxBytes int64) (string, bool) {
	file, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return "", false
	}
	if int64(len(data)) > maxBytes {
		return string(data[:maxBytes]), true
	}
	return string(data), false
}
