package interp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/store"
	"github.com/dshills/orchestrator-core/telemetry"
)

type fakeLLM struct {
	result LLMResult
	err    error
	got    LLMRequest
}

func (f *fakeLLM) Invoke(_ context.Context, req LLMRequest) (LLMResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeCheckpoint struct {
	emitted  []core.CheckpointSummary
	approval ApprovalResult
	err      error
}

func (f *fakeCheckpoint) EmitCheckpoint(_ context.Context, summary core.CheckpointSummary) error {
	f.emitted = append(f.emitted, summary)
	return nil
}

func (f *fakeCheckpoint) WaitForApproval(_ context.Context, _ string, _ int) (ApprovalResult, error) {
	return f.approval, f.err
}

type fakeTestRunner struct {
	testResult core.TestResult
	typeCheck  TypeCheckResult
	schema     SchemaValidationResult
	err        error
}

func (f *fakeTestRunner) RunTests(context.Context, string, bool) (core.TestResult, error) {
	return f.testResult, f.err
}

func (f *fakeTestRunner) CheckTypes(context.Context) (TypeCheckResult, error) {
	return f.typeCheck, f.err
}

func (f *fakeTestRunner) ValidateSchema(context.Context, string, string) (SchemaValidationResult, error) {
	return f.schema, f.err
}

func newTestInterpreter(t *testing.T, llm *fakeLLM, cp *fakeCheckpoint, tr *fakeTestRunner) (*Interpreter, string) {
	t.Helper()
	dir := t.TempDir()
	deps := Deps{
		LLM:        llm,
		Checkpoint: cp,
		TestRunner: tr,
		Store:      store.NewMemoryStore(),
		Telemetry:  telemetry.NewNull(),
		WorkDir:    dir,
	}
	return New(deps), dir
}

func TestExecuteInvokeLLMFillsResult(t *testing.T) {
	llm := &fakeLLM{result: LLMResult{Content: "hello", TokensUsed: 12}}
	interp, _ := newTestInterpreter(t, llm, &fakeCheckpoint{}, &fakeTestRunner{})

	results, err := interp.Execute(context.Background(), []core.Effect{
		{Kind: core.EffInvokeLLM, Prompt: "write code", MaxTokens: 4000},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if llm.got.Prompt != "write code" {
		t.Errorf("adapter received prompt %q, want %q", llm.got.Prompt, "write code")
	}
	if results[0].LLM.Content != "hello" {
		t.Errorf("LLM.Content = %q, want %q", results[0].LLM.Content, "hello")
	}
}

func TestExecuteInvokeLLMEstimatesTokensWhenAdapterOmitsThem(t *testing.T) {
	llm := &fakeLLM{result: LLMResult{Content: "12345678"}}
	interp, _ := newTestInterpreter(t, llm, &fakeCheckpoint{}, &fakeTestRunner{})

	results, err := interp.Execute(context.Background(), []core.Effect{{Kind: core.EffInvokeLLM, Prompt: "x"}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if results[0].LLM.TokensUsed != 2 {
		t.Errorf("TokensUsed = %d, want 2 (ceil(8/4))", results[0].LLM.TokensUsed)
	}
}

func TestExecuteWriteFileThenReadFileRoundtrips(t *testing.T) {
	interp, dir := newTestInterpreter(t, &fakeLLM{}, &fakeCheckpoint{}, &fakeTestRunner{})

	results, err := interp.Execute(context.Background(), []core.Effect{
		{Kind: core.EffWriteFile, Path: "src/main.go", Content: "package main\n"},
	})
	if err != nil {
		t.Fatalf("write Execute() error = %v", err)
	}
	if results[0].Hash == "" {
		t.Error("expected a non-empty content hash")
	}
	if _, err := os.Stat(filepath.Join(dir, "src", "main.go")); err != nil {
		t.Errorf("file not written to workDir: %v", err)
	}

	results, err = interp.Execute(context.Background(), []core.Effect{
		{Kind: core.EffReadFile, Path: "src/main.go"},
	})
	if err != nil {
		t.Fatalf("read Execute() error = %v", err)
	}
	if results[0].Data != "package main\n" {
		t.Errorf("Data = %q, want %q", results[0].Data, "package main\n")
	}
}

func TestExecuteWriteFileRejectsPathEscapingWorkDir(t *testing.T) {
	interp, _ := newTestInterpreter(t, &fakeLLM{}, &fakeCheckpoint{}, &fakeTestRunner{})

	_, err := interp.Execute(context.Background(), []core.Effect{
		{Kind: core.EffWriteFile, Path: "../../etc/passwd", Content: "x"},
	})
	if !errors.Is(err, ErrPathEscapesWorkDir) {
		t.Errorf("err = %v, want ErrPathEscapesWorkDir", err)
	}
}

func TestExecuteRunTestsRecordsResult(t *testing.T) {
	tr := &fakeTestRunner{testResult: core.TestResult{
		Passed: true, TestsTotal: 10, TestsPassed: 10, HasCoverage: true, Coverage: 0.92,
	}}
	interp, _ := newTestInterpreter(t, &fakeLLM{}, &fakeCheckpoint{}, tr)

	results, err := interp.Execute(context.Background(), []core.Effect{
		{Kind: core.EffRunTests, TestPattern: "./...", WantCoverage: true},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !results[0].TestResult.Passed || results[0].TestResult.Coverage != 0.92 {
		t.Errorf("TestResult = %+v, want Passed=true Coverage=0.92", results[0].TestResult)
	}
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	tr := &fakeTestRunner{err: errors.New("runner unavailable")}
	interp, _ := newTestInterpreter(t, &fakeLLM{}, &fakeCheckpoint{}, tr)

	effects := []core.Effect{
		{Kind: core.EffLog, Level: core.LogInfo, Message: "starting"},
		{Kind: core.EffRunTests, TestPattern: "./..."},
		{Kind: core.EffLog, Level: core.LogInfo, Message: "unreachable"},
	}
	results, err := interp.Execute(context.Background(), effects)
	if err == nil {
		t.Fatal("expected an error from the failing RunTests effect")
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want exactly 1 (the successful Log before the failure)", len(results))
	}
}

func TestExecuteEmitCheckpointThenWaitForApproval(t *testing.T) {
	cp := &fakeCheckpoint{approval: ApprovalResult{Approved: true}}
	interp, _ := newTestInterpreter(t, &fakeLLM{}, cp, &fakeTestRunner{})

	summary := core.CheckpointSummary{ID: "cp-1", Phase: core.PhaseDesign}
	_, err := interp.Execute(context.Background(), []core.Effect{
		{Kind: core.EffEmitCheckpoint, Summary: summary},
		{Kind: core.EffWaitForApproval, CheckpointID: "cp-1", TimeoutMs: 1000},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(cp.emitted) != 1 || cp.emitted[0].ID != "cp-1" {
		t.Errorf("emitted = %+v, want one summary with ID cp-1", cp.emitted)
	}
}

func TestExecutePersistEventAssignsIncreasingIndices(t *testing.T) {
	interp, _ := newTestInterpreter(t, &fakeLLM{}, &fakeCheckpoint{}, &fakeTestRunner{})
	ctx := WithRunID(context.Background(), "run-1")

	results, err := interp.Execute(ctx, []core.Effect{
		{Kind: core.EffPersistEvent, Event: core.Event{Kind: core.EvtInitialized}},
	})
	if err != nil {
		t.Fatalf("first persist error = %v", err)
	}
	if results[0].EventIndex != 0 {
		t.Errorf("first EventIndex = %d, want 0", results[0].EventIndex)
	}

	results, err = interp.Execute(ctx, []core.Effect{
		{Kind: core.EffPersistEvent, Event: core.Event{Kind: core.EvtTurnStarted}},
	})
	if err != nil {
		t.Fatalf("second persist error = %v", err)
	}
	if results[0].EventIndex != 1 {
		t.Errorf("second EventIndex = %d, want 1", results[0].EventIndex)
	}
}

func TestExecuteStartSpanThenEndSpanClearsTracking(t *testing.T) {
	interp, _ := newTestInterpreter(t, &fakeLLM{}, &fakeCheckpoint{}, &fakeTestRunner{})

	results, err := interp.Execute(context.Background(), []core.Effect{
		{Kind: core.EffStartSpan, SpanName: "turn"},
	})
	if err != nil {
		t.Fatalf("start span error = %v", err)
	}
	id := results[0].SpanID
	if id == "" {
		t.Fatal("expected a non-empty span id")
	}

	if _, err := interp.Execute(context.Background(), []core.Effect{
		{Kind: core.EffEndSpan, SpanID: id, SpanOK: true},
	}); err != nil {
		t.Fatalf("end span error = %v", err)
	}

	if _, err := interp.Execute(context.Background(), []core.Effect{
		{Kind: core.EffEndSpan, SpanID: id, SpanOK: true},
	}); err == nil {
		t.Error("expected an error ending an already-ended span")
	}
}
