// Package service orchestrates the execution pipeline: workspace allocation,
// source preparation, compilation, sandboxed execution and outcome
// classification.
package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cppexec/internal/executor/metrics"
	"cppexec/internal/executor/model"
	"cppexec/internal/sandbox/result"
	"cppexec/internal/sandbox/source"
	"cppexec/internal/sandbox/spec"
	"cppexec/internal/sandbox/toolchain"
	"cppexec/internal/sandbox/workspace"
	appErr "cppexec/pkg/errors"
	"cppexec/pkg/utils/logger"

	"go.uber.org/zap"
)

const serviceName = "cpp-executor"

// Config holds executor service settings.
type Config struct {
	Defaults      spec.Defaults
	Toolchain     toolchain.Config
	MaxConcurrent int
}

// ExecutorService runs the compile+execute pipeline for one request at a
// time per admission token. All mutable state is request-scoped; the service
// itself only holds immutable configuration and stateless collaborators.
type ExecutorService struct {
	cfg        Config
	workspaces *workspace.Manager
	toolchain  toolchain.Toolchain
	engine     Engine
	limiter    *TokenLimiter
}

// Engine is the sandbox abstraction the service drives. It mirrors
// engine.Engine and exists here so tests can substitute a fake.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}

// NewExecutorService wires the pipeline collaborators.
func NewExecutorService(cfg Config, ws *workspace.Manager, tc toolchain.Toolchain, eng Engine) *ExecutorService {
	return &ExecutorService{
		cfg:        cfg,
		workspaces: ws,
		toolchain:  tc,
		engine:     eng,
		limiter:    NewTokenLimiter(cfg.MaxConcurrent),
	}
}

// Execute runs one submission through the full pipeline and always returns a
// well-formed result; pipeline failures are folded into the payload, never
// propagated as a crash.
func (s *ExecutorService) Execute(ctx context.Context, req model.ExecutionRequest) model.ExecutionResult {
	limits := spec.Resolve(s.cfg.Defaults, req.Timeout)

	// Cheap pre-admission rejection: no file I/O, no toolchain, no token.
	if err := source.CheckSize(req.Code, limits); err != nil {
		metrics.ExecutionsTotal.WithLabelValues(model.StatusError).Inc()
		return model.ExecutionResult{Error: err.Error(), Status: model.StatusError}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		metrics.ExecutionsTotal.WithLabelValues(model.StatusError).Inc()
		return executionFailure(0, "Execution failed: service is shutting down")
	}
	defer s.limiter.Release()
	metrics.ExecutionsInFlight.Inc()
	defer metrics.ExecutionsInFlight.Dec()

	start := time.Now()
	res := s.runPipeline(ctx, req, limits, start)
	metrics.ExecutionsTotal.WithLabelValues(res.Status).Inc()
	metrics.PipelineDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	return res
}

func (s *ExecutorService) runPipeline(ctx context.Context, req model.ExecutionRequest, limits spec.ResourceLimits, start time.Time) model.ExecutionResult {
	ws, err := s.workspaces.Allocate()
	if err != nil {
		logger.Error(ctx, "workspace allocation failed", zap.Error(err))
		return executionFailure(elapsed(start), "Execution failed: could not allocate workspace")
	}
	defer s.workspaces.Release(ws)

	code := req.Code
	if !source.HasMainFunction(code) {
		code = source.WrapMain(code)
	}
	prepared := source.Prepare(code)
	if err := os.WriteFile(ws.SourcePath, []byte(prepared), 0644); err != nil {
		logger.Error(ctx, "write source failed", zap.Error(err))
		return executionFailure(elapsed(start), "Execution failed: could not write source file")
	}

	compileStart := time.Now()
	compileRes, err := s.toolchain.Compile(ctx, ws.SourcePath, ws.BinaryPath)
	metrics.PipelineDuration.WithLabelValues("compile").Observe(time.Since(compileStart).Seconds())
	if err != nil {
		logger.Error(ctx, "compiler invocation failed", zap.Error(err))
		return executionFailure(elapsed(start), "Execution failed: "+appErr.GetError(err).Error())
	}
	if !compileRes.OK {
		logger.Info(ctx, "compilation rejected",
			zap.Int("exit_code", compileRes.ExitCode),
			zap.Int("diagnostic_bytes", len(compileRes.Diagnostics)))
		return model.ExecutionResult{
			Error:         "Compilation error: " + model.SanitizeText(strings.TrimSpace(compileRes.Diagnostics)),
			ExecutionTime: elapsed(start),
			Status:        model.StatusError,
		}
	}

	runStart := time.Now()
	runRes, err := s.engine.Run(ctx, spec.RunSpec{
		Cmd:        []string{ws.BinaryPath},
		WorkDir:    ws.RootDir,
		Stdin:      req.Input,
		StdinPath:  ws.StdinPath,
		StdoutPath: ws.StdoutPath,
		StderrPath: ws.StderrPath,
		Limits:     limits,
	})
	metrics.PipelineDuration.WithLabelValues("run").Observe(time.Since(runStart).Seconds())
	if err != nil {
		logger.Error(ctx, "sandbox run failed", zap.Error(err))
		return executionFailure(elapsed(start), "Execution failed: "+appErr.GetError(err).Error())
	}

	res := classify(runRes, limits)
	res.ExecutionTime = elapsed(start)
	logger.Info(ctx, "execution finished",
		zap.String("status", res.Status),
		zap.String("cause", string(runRes.Cause)),
		zap.Int("exit_code", runRes.ExitCode),
		zap.Float64("wall_seconds", runRes.WallTimeSeconds),
		zap.Int64("peak_memory_kb", runRes.PeakMemoryKB))
	return res
}

// classify maps raw termination signals to a final status. It relies only on
// the explicit cause recorded by the engine; program output is never searched
// for marker text, since a program may legitimately print anything.
func classify(runRes result.RunResult, limits spec.ResourceLimits) model.ExecutionResult {
	switch runRes.Cause {
	case result.CauseTimedOut:
		return model.ExecutionResult{
			Output: fmt.Sprintf("Code execution timed out after %d seconds", limits.WallTimeSeconds),
			Status: model.StatusTimeout,
		}
	case result.CauseMemoryKilled:
		return model.ExecutionResult{
			Error:  fmt.Sprintf("Memory limit of %d MB exceeded", limits.MemoryMB),
			Status: model.StatusError,
		}
	case result.CauseCrashed:
		// A signal death is reported as an error outcome, with the signal
		// surfaced alongside anything the program wrote.
		errText := model.SanitizeText(runRes.Stderr)
		if errText != "" {
			errText += "\n"
		}
		errText += "process terminated by signal " + strconv.Itoa(runRes.Signal)
		return model.ExecutionResult{
			Output: model.SanitizeText(runRes.Stdout),
			Error:  errText,
			Status: model.StatusError,
		}
	default:
		// Completed, with whatever exit code the program chose. A non-zero
		// exit is ordinary program behavior, not an error condition.
		return model.ExecutionResult{
			Output: model.SanitizeText(runRes.Stdout),
			Error:  model.SanitizeText(runRes.Stderr),
			Status: model.StatusSuccess,
		}
	}
}

// Validate syntax-checks a submission without ever running untrusted code.
func (s *ExecutorService) Validate(ctx context.Context, code string) model.ValidationResult {
	limits := spec.Resolve(s.cfg.Defaults, 0)
	if err := source.CheckSize(code, limits); err != nil {
		metrics.ValidationsTotal.WithLabelValues("false").Inc()
		return model.NewValidationResult(false, err.Error())
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		metrics.ValidationsTotal.WithLabelValues("false").Inc()
		return model.NewValidationResult(false, "Validation error: service is shutting down")
	}
	defer s.limiter.Release()

	res := s.runSyntaxCheck(ctx, code)
	metrics.ValidationsTotal.WithLabelValues(strconv.FormatBool(res.IsValid)).Inc()
	return res
}

func (s *ExecutorService) runSyntaxCheck(ctx context.Context, code string) model.ValidationResult {
	ws, err := s.workspaces.Allocate()
	if err != nil {
		logger.Error(ctx, "workspace allocation failed", zap.Error(err))
		return model.NewValidationResult(false, "Validation error: could not allocate workspace")
	}
	defer s.workspaces.Release(ws)

	if !source.HasMainFunction(code) {
		code = source.WrapMain(code)
	}
	if err := os.WriteFile(ws.SourcePath, []byte(source.Prepare(code)), 0644); err != nil {
		logger.Error(ctx, "write source failed", zap.Error(err))
		return model.NewValidationResult(false, "Validation error: could not write source file")
	}

	diag, err := s.toolchain.CheckSyntax(ctx, ws.SourcePath)
	if err != nil {
		logger.Error(ctx, "syntax check invocation failed", zap.Error(err))
		return model.NewValidationResult(false, "Validation error: "+appErr.GetError(err).Error())
	}

	diag = strings.TrimSpace(diag)
	if diag == "" {
		return model.NewValidationResult(true)
	}
	return model.NewValidationResult(false, model.SanitizeText(diag))
}

// Info reports static service metadata.
func (s *ExecutorService) Info() model.ServiceInfo {
	limits := spec.Resolve(s.cfg.Defaults, 0)
	compiler := s.cfg.Toolchain.Compiler
	if compiler == "" {
		compiler = "g++"
	}
	standard := s.cfg.Toolchain.Standard
	if standard == "" {
		standard = "c++17"
	}
	return model.ServiceInfo{
		Service:            serviceName,
		Language:           "cpp",
		Compiler:           compiler,
		Standard:           standard,
		MaxExecutionTime:   limits.WallTimeSeconds,
		MaxMemoryMB:        limits.MemoryMB,
		MaxCodeSizeKB:      limits.CodeSizeKB,
		AvailableLibraries: source.PreludeHeaders,
	}
}

func executionFailure(execTime float64, msg string) model.ExecutionResult {
	return model.ExecutionResult{
		Error:         msg,
		ExecutionTime: execTime,
		Status:        model.StatusError,
	}
}

func elapsed(start time.Time) float64 {
	return time.Since(start).Seconds()
}
