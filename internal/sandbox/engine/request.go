package engine

// initRequest is the wire format handed to the sandbox-init helper on stdin.
// The helper applies rlimits and the optional seccomp filter, redirects I/O,
// then execs the artifact.
type initRequest struct {
	Cmd            []string `json:"cmd"`
	WorkDir        string   `json:"workDir"`
	StdinPath      string   `json:"stdinPath"`
	StdoutPath     string   `json:"stdoutPath"`
	StderrPath     string   `json:"stderrPath"`
	MemoryMB       int64    `json:"memoryMB"`
	CPUTimeSeconds int      `json:"cpuTimeSeconds"`
	OutputLimitMB  int64    `json:"outputLimitMB"`
	SeccompProfile string   `json:"seccompProfile,omitempty"`
	EnableSeccomp  bool     `json:"enableSeccomp"`
}
