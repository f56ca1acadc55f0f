// Package model defines the request and response payloads of the executor.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Execution statuses reported on the wire.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// ExecutionRequest is one code execution submission. Immutable once bound.
type ExecutionRequest struct {
	Code    string `json:"code" binding:"required"`
	Input   string `json:"input_data"`
	Timeout int    `json:"timeout"`
}

// UnmarshalJSON accepts stdin under both "input_data" and the "inputData"
// variant the platform backend sends; "input_data" wins when both are set.
func (r *ExecutionRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		Code       string  `json:"code"`
		InputSnake *string `json:"input_data"`
		InputCamel *string `json:"inputData"`
		Timeout    int     `json:"timeout"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Code = wire.Code
	r.Timeout = wire.Timeout
	switch {
	case wire.InputSnake != nil:
		r.Input = *wire.InputSnake
	case wire.InputCamel != nil:
		r.Input = *wire.InputCamel
	default:
		r.Input = ""
	}
	return nil
}

// ValidationRequest is one syntax validation submission.
type ValidationRequest struct {
	Code string `json:"code" binding:"required"`
}

// ExecutionResult is the wire payload of one execution.
type ExecutionResult struct {
	Output        string  `json:"output"`
	Error         string  `json:"error"`
	ExecutionTime float64 `json:"execution_time"`
	Status        string  `json:"status"`
}

// ValidationResult is the wire payload of one validation. Warnings is always
// present (currently empty, compiler warnings are not separated from errors).
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewValidationResult builds a result with non-nil slices so the payload
// always carries arrays, never null.
func NewValidationResult(valid bool, errs ...string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{IsValid: valid, Errors: errs, Warnings: []string{}}
}

// ServiceInfo describes the executor for the info endpoint.
type ServiceInfo struct {
	Service            string   `json:"service"`
	Language           string   `json:"language"`
	Compiler           string   `json:"compiler"`
	Standard           string   `json:"standard"`
	MaxExecutionTime   int      `json:"max_execution_time"`
	MaxMemoryMB        int64    `json:"max_memory_mb"`
	MaxCodeSizeKB      int64    `json:"max_code_size_kb"`
	AvailableLibraries []string `json:"available_libraries"`
}

// SanitizeText makes captured program output safe to carry in a JSON string.
// Valid UTF-8 (including control characters, quotes and backslashes) passes
// through untouched and is escaped by the JSON encoder; bytes that are not
// valid UTF-8 are rewritten as visible \xNN escapes instead of being passed
// through or silently replaced.
func SanitizeText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, `\x%02x`, s[i])
			i++
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}
