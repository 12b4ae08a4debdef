package interp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/store"
	"github.com/dshills/orchestrator-core/telemetry"
)

// Deps bundles every adapter and backend an Interpreter needs. Each field
// is an interface, so tests can substitute fakes without reaching for a
// mocking library — the teacher's own tests do the same (see
// graph/model/mock.go's MockChatModel).
type Deps struct {
	LLM        LLMAdapter
	Checkpoint CheckpointAdapter
	TestRunner TestRunnerAdapter
	Store      store.EventStore
	Telemetry  telemetry.Telemetry
	WorkDir    string

	// Retry, if set, wraps every effect dispatch in bounded retry with
	// exponential backoff before the error surfaces to the orchestrator
	// as an ErrorOccurred event. Nil disables retries entirely, matching
	// the interpreter's original single-attempt behavior.
	Retry *RetryPolicy
}

// Result is the typed outcome of executing a single Effect. Only the
// fields relevant to the originating Effect's Kind are populated, the
// same flat-tagged-struct convention core.Effect itself uses.
type Result struct {
	Kind core.EffectKind

	// InvokeLLM
	LLM LLMResult

	// WriteFile / ReadFile
	Path string
	Hash string
	Data string

	// ListDirectory
	Entries []string

	// RunTests
	TestResult core.TestResult

	// CheckTypes
	TypeCheck TypeCheckResult

	// ValidateSchema
	SchemaCheck SchemaValidationResult

	// StartSpan
	SpanID string

	// EmitCheckpoint / WaitForApproval
	Approval ApprovalResult

	// PersistEvent
	EventIndex int64
}

// ErrPathEscapesWorkDir is returned when a WriteFile/ReadFile/DeleteFile
// effect's path resolves outside Deps.WorkDir (spec §4.4 policy: reject).
var ErrPathEscapesWorkDir = errors.New("path escapes workDir")

// Interpreter executes effects sequentially against Deps, wrapping each
// in a telemetry span named "effect.<kind>" per spec §4.4.
type Interpreter struct {
	deps Deps

	spans map[string]telemetry.Span
	ctx   map[string]context.Context
}

// New builds an Interpreter over deps.
func New(deps Deps) *Interpreter {
	return &Interpreter{
		deps:  deps,
		spans: make(map[string]telemetry.Span),
		ctx:   make(map[string]context.Context),
	}
}

// Execute runs effects in order, stopping at the first failure (spec
// §4.4: "the first failure aborts the batch").
func (i *Interpreter) Execute(ctx context.Context, effects []core.Effect) ([]Result, error) {
	results := make([]Result, 0, len(effects))
	for _, eff := range effects {
		res, err := i.executeOne(ctx, eff)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (i *Interpreter) executeOne(ctx context.Context, eff core.Effect) (Result, error) {
	spanCtx, span := i.deps.Telemetry.StartSpan(ctx, "effect."+string(eff.Kind), nil)
	start := time.Now()

	res, err := i.dispatchWithRetry(spanCtx, eff)

	status := "success"
	if err != nil {
		status = "error"
	}
	i.deps.Telemetry.RecordMetric("effect_duration_ms", float64(time.Since(start).Milliseconds()), map[string]string{
		"kind": string(eff.Kind), "status": status,
	})
	span.End(err == nil, errMessage(err))

	return res, err
}

// dispatchWithRetry re-attempts a failing dispatch per i.deps.Retry before
// giving up, with exponential backoff and jitter between attempts (spec
// supplement: retry/backoff policy for adapter errors, grounded on the
// teacher's graph/policy.go computeBackoff). A nil Retry policy, or a
// policy that classifies the error as non-retryable, preserves the
// original one-attempt-and-fail behavior.
func (i *Interpreter) dispatchWithRetry(ctx context.Context, eff core.Effect) (Result, error) {
	policy := i.deps.Retry
	if policy == nil {
		return i.dispatch(ctx, eff)
	}

	var res Result
	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		res, err = i.dispatch(ctx, eff)
		if err == nil || !policy.retryable(err) {
			return res, err
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}

		delay := computeBackoff(attempt, policy.BaseDelay, policy.MaxDelay, nil)
		i.deps.Telemetry.RecordMetric("effect_retry", 1, map[string]string{"kind": string(eff.Kind)})
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(delay):
		}
	}
	return res, err
}

func (i *Interpreter) dispatch(ctx context.Context, eff core.Effect) (Result, error) {
	switch eff.Kind {
	case core.EffInvokeLLM:
		return i.invokeLLM(ctx, eff)
	case core.EffWriteFile:
		return i.writeFile(eff)
	case core.EffReadFile:
		return i.readFile(eff)
	case core.EffDeleteFile:
		return i.deleteFile(eff)
	case core.EffListDirectory:
		return i.listDirectory(eff)
	case core.EffRunTests:
		return i.runTests(ctx, eff)
	case core.EffCheckTypes:
		return i.checkTypes(ctx)
	case core.EffValidateSchema:
		return i.validateSchema(ctx, eff)
	case core.EffStartSpan:
		return i.startSpan(ctx, eff)
	case core.EffEndSpan:
		return i.endSpan(eff)
	case core.EffRecordMetric:
		i.deps.Telemetry.RecordMetric(eff.MetricName, eff.Value, eff.Tags)
		return Result{Kind: eff.Kind}, nil
	case core.EffLog:
		i.deps.Telemetry.Log(eff.Level, eff.Message, eff.Context)
		return Result{Kind: eff.Kind}, nil
	case core.EffEmitCheckpoint:
		return i.emitCheckpoint(ctx, eff)
	case core.EffWaitForApproval:
		return i.waitForApproval(ctx, eff)
	case core.EffPersistEvent:
		return i.persistEvent(ctx, eff)
	case core.EffCreateSnapshot:
		return i.createSnapshot(ctx, eff)
	default:
		return Result{}, fmt.Errorf("interp: unknown effect kind %q", eff.Kind)
	}
}

func (i *Interpreter) invokeLLM(ctx context.Context, eff core.Effect) (Result, error) {
	out, err := i.deps.LLM.Invoke(ctx, LLMRequest{
		Prompt:       eff.Prompt,
		SystemPrompt: eff.SystemPrompt,
		MaxTokens:    eff.MaxTokens,
		Temperature:  eff.Temperature,
		HasTemp:      eff.HasTemp,
	})
	if err != nil {
		return Result{}, fmt.Errorf("invoke llm: %w", err)
	}
	if out.TokensUsed == 0 {
		out.TokensUsed = estimateTokens(out.Content)
	}
	return Result{Kind: eff.Kind, LLM: out}, nil
}

// estimateTokens is the spec's fallback when an adapter doesn't report a
// token count: ceil(len/4).
func estimateTokens(content string) int {
	return (len(content) + 3) / 4
}

func (i *Interpreter) resolvePath(path string) (string, error) {
	abs := filepath.Join(i.deps.WorkDir, path)
	rel, err := filepath.Rel(i.deps.WorkDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", ErrPathEscapesWorkDir
	}
	return abs, nil
}

func (i *Interpreter) writeFile(eff core.Effect) (Result, error) {
	abs, err := i.resolvePath(eff.Path)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Result{}, fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(abs, []byte(eff.Content), 0o644); err != nil {
		return Result{}, fmt.Errorf("write file: %w", err)
	}
	sum := sha256.Sum256([]byte(eff.Content))
	return Result{Kind: eff.Kind, Path: eff.Path, Hash: hex.EncodeToString(sum[:])}, nil
}

func (i *Interpreter) readFile(eff core.Effect) (Result, error) {
	abs, err := i.resolvePath(eff.Path)
	if err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, fmt.Errorf("read file: %w", err)
	}
	return Result{Kind: eff.Kind, Path: eff.Path, Data: string(data)}, nil
}

func (i *Interpreter) deleteFile(eff core.Effect) (Result, error) {
	abs, err := i.resolvePath(eff.Path)
	if err != nil {
		return Result{}, err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return Result{}, fmt.Errorf("delete file: %w", err)
	}
	return Result{Kind: eff.Kind, Path: eff.Path}, nil
}

func (i *Interpreter) listDirectory(eff core.Effect) (Result, error) {
	abs, err := i.resolvePath(eff.Path)
	if err != nil {
		return Result{}, err
	}

	var entries []string
	if eff.Recursive {
		err = filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				rel, _ := filepath.Rel(abs, p)
				entries = append(entries, rel)
			}
			return nil
		})
	} else {
		var dirEntries []os.DirEntry
		dirEntries, err = os.ReadDir(abs)
		for _, d := range dirEntries {
			entries = append(entries, d.Name())
		}
	}
	if err != nil {
		return Result{}, fmt.Errorf("list directory: %w", err)
	}
	return Result{Kind: eff.Kind, Entries: entries}, nil
}

func (i *Interpreter) runTests(ctx context.Context, eff core.Effect) (Result, error) {
	result, err := i.deps.TestRunner.RunTests(ctx, eff.TestPattern, eff.WantCoverage)
	if err != nil {
		return Result{}, fmt.Errorf("run tests: %w", err)
	}

	tags := map[string]string{}
	i.deps.Telemetry.RecordMetric("tests_total", float64(result.TestsTotal), tags)
	i.deps.Telemetry.RecordMetric("tests_passed", float64(result.TestsPassed), tags)
	i.deps.Telemetry.RecordMetric("tests_failed", float64(result.TestsFailed), tags)
	if result.HasCoverage {
		i.deps.Telemetry.RecordMetric("coverage", result.Coverage, tags)
	}

	return Result{Kind: eff.Kind, TestResult: result}, nil
}

func (i *Interpreter) checkTypes(ctx context.Context) (Result, error) {
	result, err := i.deps.TestRunner.CheckTypes(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("check types: %w", err)
	}
	i.deps.Telemetry.RecordMetric("type_check_passed", boolToFloat(result.Passed), nil)
	return Result{Kind: core.EffCheckTypes, TypeCheck: result}, nil
}

func (i *Interpreter) validateSchema(ctx context.Context, eff core.Effect) (Result, error) {
	result, err := i.deps.TestRunner.ValidateSchema(ctx, eff.SchemaPath, eff.DataPath)
	if err != nil {
		return Result{}, fmt.Errorf("validate schema: %w", err)
	}
	return Result{Kind: eff.Kind, SchemaCheck: result}, nil
}

func (i *Interpreter) startSpan(ctx context.Context, eff core.Effect) (Result, error) {
	spanCtx, span := i.deps.Telemetry.StartSpan(ctx, eff.SpanName, eff.SpanAttrs)
	id := fmt.Sprintf("%s-%d", eff.SpanName, time.Now().UnixNano())
	i.spans[id] = span
	i.ctx[id] = spanCtx
	return Result{Kind: eff.Kind, SpanID: id}, nil
}

func (i *Interpreter) endSpan(eff core.Effect) (Result, error) {
	span, ok := i.spans[eff.SpanID]
	if !ok {
		return Result{}, fmt.Errorf("interp: unknown span id %q", eff.SpanID)
	}
	span.End(eff.SpanOK, eff.SpanError)
	delete(i.spans, eff.SpanID)
	delete(i.ctx, eff.SpanID)
	return Result{Kind: eff.Kind}, nil
}

func (i *Interpreter) emitCheckpoint(ctx context.Context, eff core.Effect) (Result, error) {
	if err := i.deps.Checkpoint.EmitCheckpoint(ctx, eff.Summary); err != nil {
		return Result{}, fmt.Errorf("emit checkpoint: %w", err)
	}
	return Result{Kind: eff.Kind}, nil
}

func (i *Interpreter) waitForApproval(ctx context.Context, eff core.Effect) (Result, error) {
	timeout := time.Duration(eff.TimeoutMs) * time.Millisecond
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := i.deps.Checkpoint.WaitForApproval(waitCtx, eff.CheckpointID, eff.TimeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("wait for approval: %w", err)
	}
	return Result{Kind: eff.Kind, Approval: result}, nil
}

func (i *Interpreter) persistEvent(ctx context.Context, eff core.Effect) (Result, error) {
	events, err := i.deps.Store.LoadEvents(ctx, runIDFromContext(ctx))
	var expectedIndex int64
	if err == nil {
		expectedIndex = int64(len(events))
	} else if err != store.ErrNotFound {
		return Result{}, fmt.Errorf("count existing events: %w", err)
	}

	if err := i.deps.Store.AppendEvents(ctx, runIDFromContext(ctx), expectedIndex, []core.Event{eff.Event}); err != nil {
		return Result{}, fmt.Errorf("persist event: %w", err)
	}
	return Result{Kind: eff.Kind, EventIndex: expectedIndex}, nil
}

func (i *Interpreter) createSnapshot(ctx context.Context, eff core.Effect) (Result, error) {
	snap := store.Snapshot{
		RunID:     runIDFromContext(ctx),
		AtIndex:   eff.AtEventIndex,
		State:     eff.State,
		CreatedAt: time.Now(),
	}
	if err := i.deps.Store.SaveSnapshot(ctx, snap); err != nil {
		return Result{}, fmt.Errorf("create snapshot: %w", err)
	}
	return Result{Kind: eff.Kind}, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type runIDKey struct{}

// WithRunID attaches runID to ctx so persistEvent/createSnapshot know
// which run's log to append to without threading it through every Effect.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func runIDFromContext(ctx context.Context) string {
	runID, _ := ctx.Value(runIDKey{}).(string)
	return runID
}
