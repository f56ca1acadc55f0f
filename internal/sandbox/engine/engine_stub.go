//go:build !linux

package engine

import (
	"context"

	"cppexec/internal/sandbox/result"
	"cppexec/internal/sandbox/spec"
	appErr "cppexec/pkg/errors"
)

type stubEngine struct{}

func NewEngine(cfg Config) (Engine, error) {
	return &stubEngine{}, nil
}

func (s *stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	return result.RunResult{}, appErr.New(appErr.SandboxError).WithMessage("sandbox engine is only supported on linux")
}
