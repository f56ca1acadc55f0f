package errors

import "net/http"

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Execution pipeline errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007

	// ========== Execution Pipeline Errors (13000-13999) ==========

	// Input (13000-13099)
	CodeTooLarge  ErrorCode = 13002
	InputTooLarge ErrorCode = 13003

	// Pipeline (13100-13199)
	WorkspaceError      ErrorCode = 13100
	SandboxError        ErrorCode = 13101
	CompilationError    ErrorCode = 13102
	TimeLimitExceeded   ErrorCode = 13104
	MemoryLimitExceeded ErrorCode = 13105
	OutputLimitExceeded ErrorCode = 13106
)

var codeMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid request parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests",
	ServiceUnavailable:  "Service unavailable",

	CodeTooLarge:  "Code size exceeds maximum allowed size",
	InputTooLarge: "Input size exceeds maximum allowed size",

	WorkspaceError:      "Failed to allocate execution workspace",
	SandboxError:        "Sandbox execution failed",
	CompilationError:    "Compilation error",
	TimeLimitExceeded:   "Code execution timed out",
	MemoryLimitExceeded: "Memory limit exceeded",
	OutputLimitExceeded: "Output limit exceeded",
}

var codeHTTPStatus = map[ErrorCode]int{
	Success:             http.StatusOK,
	InternalServerError: http.StatusInternalServerError,
	InvalidParams:       http.StatusBadRequest,
	NotFound:            http.StatusNotFound,
	TooManyRequests:     http.StatusTooManyRequests,
	ServiceUnavailable:  http.StatusServiceUnavailable,

	CodeTooLarge:  http.StatusBadRequest,
	InputTooLarge: http.StatusBadRequest,

	WorkspaceError:      http.StatusInternalServerError,
	SandboxError:        http.StatusInternalServerError,
	CompilationError:    http.StatusOK,
	TimeLimitExceeded:   http.StatusOK,
	MemoryLimitExceeded: http.StatusOK,
	OutputLimitExceeded: http.StatusOK,
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the HTTP status code for the error code.
// Pipeline outcomes (compile error, timeout, memory kill) are terminal results
// reported inside a well-formed payload, so they map to 200.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := codeHTTPStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}
