// Package spec defines the execution specification and resource limits.
package spec

import "time"

// Default and ceiling values for per-request resource limits.
const (
	DefaultWallTimeSeconds = 30
	MaxWallTimeSeconds     = 60
	DefaultMemoryMB        = 128
	DefaultCodeSizeKB      = 50
)

// ResourceLimits describes hard limits enforced on one request. A value is
// resolved once at request start and never mutated afterwards; concurrent
// requests each carry their own copy.
type ResourceLimits struct {
	WallTimeSeconds int
	MemoryMB        int64
	CodeSizeKB      int64
}

// Defaults holds the configured baseline limits a request starts from.
type Defaults struct {
	WallTimeSeconds int
	MemoryMB        int64
	CodeSizeKB      int64
}

// Resolve produces the immutable limits for one request. A positive timeout
// override replaces the default wall-clock budget, clamped to the hard ceiling.
func Resolve(d Defaults, timeoutSeconds int) ResourceLimits {
	limits := ResourceLimits{
		WallTimeSeconds: d.WallTimeSeconds,
		MemoryMB:        d.MemoryMB,
		CodeSizeKB:      d.CodeSizeKB,
	}
	if limits.WallTimeSeconds <= 0 {
		limits.WallTimeSeconds = DefaultWallTimeSeconds
	}
	if limits.MemoryMB <= 0 {
		limits.MemoryMB = DefaultMemoryMB
	}
	if limits.CodeSizeKB <= 0 {
		limits.CodeSizeKB = DefaultCodeSizeKB
	}
	if timeoutSeconds > 0 {
		limits.WallTimeSeconds = timeoutSeconds
		if limits.WallTimeSeconds > MaxWallTimeSeconds {
			limits.WallTimeSeconds = MaxWallTimeSeconds
		}
	}
	return limits
}

// WallTime returns the wall-clock budget as a duration.
func (l ResourceLimits) WallTime() time.Duration {
	return time.Duration(l.WallTimeSeconds) * time.Second
}

// RunSpec is the execution specification for one compiled artifact.
type RunSpec struct {
	Cmd        []string
	WorkDir    string
	Stdin      string
	StdinPath  string
	StdoutPath string
	StderrPath string
	Limits     ResourceLimits
}
