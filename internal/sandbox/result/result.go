// Package result defines sandbox execution results.
package result

// TerminationCause explains why the child process stopped.
type TerminationCause string

const (
	CauseCompleted    TerminationCause = "completed"
	CauseTimedOut     TerminationCause = "timedOut"
	CauseMemoryKilled TerminationCause = "killedByMemoryLimit"
	CauseCrashed      TerminationCause = "crashed"
)

// RunResult captures raw sandbox execution data. Classification into a final
// status happens in the service layer, driven only by these explicit signals.
type RunResult struct {
	ExitCode        int
	Signal          int
	Cause           TerminationCause
	WallTimeSeconds float64
	PeakMemoryKB    int64
	Stdout          string
	Stderr          string
	OutputTruncated bool
}

// CompileResult contains compilation outcomes. OK is determined by the
// compiler process exit status, never by probing for an artifact file.
type CompileResult struct {
	OK          bool
	ExitCode    int
	Diagnostics string
}
