package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExecutionResultRoundTripsArbitraryBytes(t *testing.T) {
	payloads := []string{
		"plain line\n",
		`quotes " and \ backslashes`,
		"control\tchars\r\nand\x00nul\x1b[31m",
		"unicode: héllo wörld ☃",
	}
	for _, p := range payloads {
		res := ExecutionResult{Output: SanitizeText(p), Status: StatusSuccess}

		data, err := json.Marshal(res)
		if err != nil {
			t.Fatalf("marshal %q: %v", p, err)
		}

		var decoded ExecutionResult
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal %q: %v", p, err)
		}
		if decoded.Output != p {
			t.Fatalf("output not preserved: %q != %q", decoded.Output, p)
		}
	}
}

func TestExecutionRequestBindsSnakeCaseInput(t *testing.T) {
	var req ExecutionRequest
	body := `{"code":"int main(){}","input_data":"7\n","timeout":10}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Input != "7\n" {
		t.Fatalf("input = %q", req.Input)
	}
	if req.Code != "int main(){}" || req.Timeout != 10 {
		t.Fatalf("request = %+v", req)
	}
}

func TestExecutionRequestAcceptsCamelCaseInput(t *testing.T) {
	var req ExecutionRequest
	if err := json.Unmarshal([]byte(`{"code":"c","inputData":"stdin text"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Input != "stdin text" {
		t.Fatalf("input = %q", req.Input)
	}

	// When both keys are present the canonical one wins.
	req = ExecutionRequest{}
	if err := json.Unmarshal([]byte(`{"code":"c","input_data":"a","inputData":"b"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Input != "a" {
		t.Fatalf("input = %q", req.Input)
	}
}

func TestWireKeysAreSnakeCase(t *testing.T) {
	data, err := json.Marshal(ExecutionResult{ExecutionTime: 0.5, Status: StatusSuccess})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"execution_time":0.5`) {
		t.Fatalf("execution result payload: %s", data)
	}

	data, err = json.Marshal(NewValidationResult(true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"is_valid":true`) {
		t.Fatalf("validation payload: %s", data)
	}
}

func TestSanitizeTextEscapesInvalidUTF8(t *testing.T) {
	raw := "ok\xff\xfebytes"
	clean := SanitizeText(raw)

	if strings.Contains(clean, "\xff") {
		t.Fatalf("invalid byte passed through: %q", clean)
	}
	if !strings.Contains(clean, `\xff`) || !strings.Contains(clean, `\xfe`) {
		t.Fatalf("invalid bytes not escaped: %q", clean)
	}

	// The sanitized form must survive JSON encoding without error.
	if _, err := json.Marshal(ExecutionResult{Output: clean}); err != nil {
		t.Fatalf("sanitized output still unmarshalable: %v", err)
	}
}

func TestSanitizeTextLeavesValidTextAlone(t *testing.T) {
	s := "héllo\n\tworld \"quoted\""
	if SanitizeText(s) != s {
		t.Fatalf("valid UTF-8 was altered")
	}
}

func TestValidationResultAlwaysCarriesArrays(t *testing.T) {
	data, err := json.Marshal(NewValidationResult(true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, `"errors":[]`) {
		t.Fatalf("errors not an empty array: %s", body)
	}
	if !strings.Contains(body, `"warnings":[]`) {
		t.Fatalf("warnings not an empty array: %s", body)
	}
}
