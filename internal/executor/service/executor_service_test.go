package service

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"cppexec/internal/executor/model"
	"cppexec/internal/sandbox/result"
	"cppexec/internal/sandbox/spec"
	"cppexec/internal/sandbox/toolchain"
	"cppexec/internal/sandbox/workspace"
)

type fakeToolchain struct {
	mu           sync.Mutex
	compileCalls int
	syntaxCalls  int
	compileRes   result.CompileResult
	compileErr   error
	syntaxDiag   string
	syntaxErr    error
}

func (f *fakeToolchain) Compile(ctx context.Context, sourcePath, binaryPath string) (result.CompileResult, error) {
	f.mu.Lock()
	f.compileCalls++
	f.mu.Unlock()
	return f.compileRes, f.compileErr
}

func (f *fakeToolchain) CheckSyntax(ctx context.Context, sourcePath string) (string, error) {
	f.mu.Lock()
	f.syntaxCalls++
	f.mu.Unlock()
	return f.syntaxDiag, f.syntaxErr
}

func (f *fakeToolchain) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.compileCalls, f.syntaxCalls
}

type fakeEngine struct {
	mu       sync.Mutex
	runSpecs []spec.RunSpec
	res      result.RunResult
	err      error
	delay    time.Duration
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	f.mu.Lock()
	f.runSpecs = append(f.runSpecs, runSpec)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.res, f.err
}

func (f *fakeEngine) specs() []spec.RunSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]spec.RunSpec, len(f.runSpecs))
	copy(out, f.runSpecs)
	return out
}

func newTestService(t *testing.T, tc toolchain.Toolchain, eng Engine) *ExecutorService {
	t.Helper()
	return NewExecutorService(Config{
		Defaults:      spec.Defaults{WallTimeSeconds: 30, MemoryMB: 128, CodeSizeKB: 50},
		MaxConcurrent: 4,
	}, workspace.NewManager(t.TempDir()), tc, eng)
}

func TestExecuteRejectsOversizedCodeWithoutToolchain(t *testing.T) {
	tc := &fakeToolchain{}
	svc := newTestService(t, tc, &fakeEngine{})

	code := strings.Repeat("a", 50*1024+1)
	res := svc.Execute(context.Background(), model.ExecutionRequest{Code: code})

	if res.Status != model.StatusError {
		t.Fatalf("status = %q", res.Status)
	}
	if !strings.Contains(res.Error, "exceeds maximum allowed size") {
		t.Fatalf("error = %q", res.Error)
	}
	if compiles, _ := tc.calls(); compiles != 0 {
		t.Fatalf("toolchain invoked %d times for oversized code", compiles)
	}
}

func TestExecuteSuccessForwardsOutput(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{OK: true}}
	eng := &fakeEngine{res: result.RunResult{
		Cause:           result.CauseCompleted,
		ExitCode:        0,
		Stdout:          "Hello, World!\n",
		WallTimeSeconds: 0.01,
	}}
	svc := newTestService(t, tc, eng)

	res := svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main() { return 0; }"})

	if res.Status != model.StatusSuccess {
		t.Fatalf("status = %q, error = %q", res.Status, res.Error)
	}
	if res.Output != "Hello, World!\n" {
		t.Fatalf("output = %q", res.Output)
	}
	if res.ExecutionTime < 0 {
		t.Fatalf("execution time = %f", res.ExecutionTime)
	}
}

func TestExecuteCompileErrorCarriesDiagnostics(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{
		OK:          false,
		ExitCode:    1,
		Diagnostics: "main.cpp:23:5: error: expected ';' before 'return'",
	}}
	eng := &fakeEngine{}
	svc := newTestService(t, tc, eng)

	res := svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main() { int x = 1 return 0; }"})

	if res.Status != model.StatusError {
		t.Fatalf("status = %q", res.Status)
	}
	if !strings.HasPrefix(res.Error, "Compilation error: ") {
		t.Fatalf("error = %q", res.Error)
	}
	if !strings.Contains(res.Error, "expected ';'") {
		t.Fatalf("diagnostic lost: %q", res.Error)
	}
	if len(eng.specs()) != 0 {
		t.Fatalf("runner invoked despite compile failure")
	}
}

func TestExecuteTimeoutIgnoresProgramOutput(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{OK: true}}
	// The program printed the word "timeout" before being killed; the
	// classification must come from the watchdog flag, not that text.
	eng := &fakeEngine{res: result.RunResult{
		Cause:           result.CauseTimedOut,
		ExitCode:        -1,
		Stdout:          "fake timeout marker printed by program\n",
		WallTimeSeconds: 30.01,
	}}
	svc := newTestService(t, tc, eng)

	res := svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main() { for(;;); }"})

	if res.Status != model.StatusTimeout {
		t.Fatalf("status = %q", res.Status)
	}
	if res.Output != "Code execution timed out after 30 seconds" {
		t.Fatalf("output = %q", res.Output)
	}
}

func TestExecuteCompletedWithTimeoutWordIsSuccess(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{OK: true}}
	eng := &fakeEngine{res: result.RunResult{
		Cause:  result.CauseCompleted,
		Stdout: "connection timeout handling done\n",
	}}
	svc := newTestService(t, tc, eng)

	res := svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main() { return 0; }"})

	if res.Status != model.StatusSuccess {
		t.Fatalf("program printing 'timeout' misclassified as %q", res.Status)
	}
	if res.Output != "connection timeout handling done\n" {
		t.Fatalf("output = %q", res.Output)
	}
}

func TestExecuteMemoryKill(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{OK: true}}
	eng := &fakeEngine{res: result.RunResult{
		Cause:    result.CauseMemoryKilled,
		ExitCode: -1,
	}}
	svc := newTestService(t, tc, eng)

	res := svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main() { return 0; }"})

	if res.Status != model.StatusError {
		t.Fatalf("status = %q", res.Status)
	}
	if !strings.Contains(res.Error, "Memory limit of 128 MB exceeded") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestExecuteSignalDeathIsError(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{OK: true}}
	eng := &fakeEngine{res: result.RunResult{
		Cause:    result.CauseCrashed,
		ExitCode: -1,
		Signal:   11,
		Stdout:   "partial output\n",
	}}
	svc := newTestService(t, tc, eng)

	res := svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main() { *(int*)0 = 1; }"})

	if res.Status != model.StatusError {
		t.Fatalf("segfaulted program classified as %q", res.Status)
	}
	if !strings.Contains(res.Error, "process terminated by signal 11") {
		t.Fatalf("error = %q", res.Error)
	}
	if res.Output != "partial output\n" {
		t.Fatalf("output = %q", res.Output)
	}
}

func TestExecuteNonZeroExitIsSuccess(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{OK: true}}
	eng := &fakeEngine{res: result.RunResult{
		Cause:    result.CauseCompleted,
		ExitCode: 3,
		Stdout:   "partial work\n",
		Stderr:   "gave up\n",
	}}
	svc := newTestService(t, tc, eng)

	res := svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main() { return 3; }"})

	if res.Status != model.StatusSuccess {
		t.Fatalf("non-zero exit classified as %q", res.Status)
	}
	if res.Output != "partial work\n" {
		t.Fatalf("output = %q", res.Output)
	}
	if res.Error != "gave up\n" {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestExecuteTimeoutOverrideClampedPerRequest(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{OK: true}}
	eng := &fakeEngine{res: result.RunResult{Cause: result.CauseCompleted}}
	svc := newTestService(t, tc, eng)

	svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main(){}", Timeout: 120})
	svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main(){}", Timeout: 5})
	svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main(){}"})

	specs := eng.specs()
	if len(specs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(specs))
	}
	if got := specs[0].Limits.WallTimeSeconds; got != spec.MaxWallTimeSeconds {
		t.Fatalf("override not clamped: %d", got)
	}
	if got := specs[1].Limits.WallTimeSeconds; got != 5 {
		t.Fatalf("override not applied: %d", got)
	}
	if got := specs[2].Limits.WallTimeSeconds; got != 30 {
		t.Fatalf("default not kept: %d", got)
	}
}

func TestConcurrentExecutionsNeverShareWorkspace(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{OK: true}}
	eng := &fakeEngine{
		res:   result.RunResult{Cause: result.CauseCompleted},
		delay: 20 * time.Millisecond,
	}
	svc := newTestService(t, tc, eng)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := svc.Execute(context.Background(), model.ExecutionRequest{Code: "int main() { return 0; }"})
			if res.Status != model.StatusSuccess {
				t.Errorf("status = %q, error = %q", res.Status, res.Error)
			}
		}()
	}
	wg.Wait()

	specs := eng.specs()
	if len(specs) != n {
		t.Fatalf("expected %d runs, got %d", n, len(specs))
	}
	seen := make(map[string]bool, n)
	for _, s := range specs {
		if seen[s.WorkDir] {
			t.Fatalf("workspace shared between concurrent requests: %s", s.WorkDir)
		}
		seen[s.WorkDir] = true
	}
}

func TestExecuteWritesPreparedSource(t *testing.T) {
	tc := &fakeToolchain{compileRes: result.CompileResult{OK: true}}
	var captured string
	eng := &fakeEngine{res: result.RunResult{Cause: result.CauseCompleted}}
	svc := newTestService(t, tc, eng)

	// Capture the source while the workspace still exists.
	svc.toolchain = toolchainFunc(func(ctx context.Context, sourcePath, binaryPath string) (result.CompileResult, error) {
		data, err := os.ReadFile(sourcePath)
		if err != nil {
			t.Errorf("read prepared source: %v", err)
		}
		captured = string(data)
		return result.CompileResult{OK: true}, nil
	})

	code := `cout << "hi" << endl;`
	svc.Execute(context.Background(), model.ExecutionRequest{Code: code})

	if !strings.Contains(captured, "#include <iostream>") {
		t.Fatalf("prelude missing from prepared source")
	}
	if !strings.Contains(captured, code) {
		t.Fatalf("user code missing from prepared source")
	}
	if !strings.Contains(captured, "int main() {") {
		t.Fatalf("bare snippet was not wrapped in main")
	}
}

type toolchainFunc func(ctx context.Context, sourcePath, binaryPath string) (result.CompileResult, error)

func (f toolchainFunc) Compile(ctx context.Context, sourcePath, binaryPath string) (result.CompileResult, error) {
	return f(ctx, sourcePath, binaryPath)
}

func (f toolchainFunc) CheckSyntax(ctx context.Context, sourcePath string) (string, error) {
	return "", nil
}

func TestValidateValidCode(t *testing.T) {
	tc := &fakeToolchain{syntaxDiag: ""}
	svc := newTestService(t, tc, &fakeEngine{})

	res := svc.Validate(context.Background(), "int main() { return 0; }")

	if !res.IsValid {
		t.Fatalf("valid code rejected: %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("errors = %v", res.Errors)
	}
	if res.Warnings == nil || len(res.Warnings) != 0 {
		t.Fatalf("warnings must be an empty list")
	}
}

func TestValidateInvalidCode(t *testing.T) {
	tc := &fakeToolchain{syntaxDiag: "main.cpp:23:1: error: expected declaration"}
	svc := newTestService(t, tc, &fakeEngine{})

	res := svc.Validate(context.Background(), "int main() {")

	if res.IsValid {
		t.Fatalf("invalid code accepted")
	}
	if len(res.Errors) == 0 || res.Errors[0] == "" {
		t.Fatalf("expected a non-empty diagnostic entry, got %v", res.Errors)
	}
	if !strings.Contains(res.Errors[0], "expected declaration") {
		t.Fatalf("diagnostic lost: %v", res.Errors)
	}
}

func TestValidateRejectsOversizedCode(t *testing.T) {
	tc := &fakeToolchain{}
	svc := newTestService(t, tc, &fakeEngine{})

	res := svc.Validate(context.Background(), strings.Repeat("a", 50*1024+1))

	if res.IsValid {
		t.Fatalf("oversized code accepted")
	}
	if _, syntaxCalls := tc.calls(); syntaxCalls != 0 {
		t.Fatalf("toolchain invoked for oversized code")
	}
}
