package engine

import (
	"context"

	"cppexec/internal/sandbox/result"
	"cppexec/internal/sandbox/spec"
	"cppexec/pkg/utils/yamlutil"
)

// Engine executes a compiled artifact inside an isolated sandbox.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}

// Config controls sandbox engine behavior.
type Config struct {
	CgroupRoot           string            `yaml:"cgroupRoot"`
	HelperPath           string            `yaml:"helperPath"`
	SeccompProfile       string            `yaml:"seccompProfile"`
	StdoutStderrMaxBytes int64             `yaml:"stdoutStderrMaxBytes"`
	MemoryPollInterval   yamlutil.Duration `yaml:"memoryPollInterval"`
	EnableCgroup         bool              `yaml:"enableCgroup"`
	EnableSeccomp        bool              `yaml:"enableSeccomp"`
}
