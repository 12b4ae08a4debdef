package interp

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/store"
	"github.com/dshills/orchestrator-core/telemetry"
)

// flakyLLM fails the first failCount calls, then returns result.
type flakyLLM struct {
	failCount int
	calls     int
	result    LLMResult
}

func (f *flakyLLM) Invoke(context.Context, LLMRequest) (LLMResult, error) {
	f.calls++
	if f.calls <= f.failCount {
		return LLMResult{}, errors.New("transient provider error")
	}
	return f.result, nil
}

func TestRetryPolicyRecoversFromTransientError(t *testing.T) {
	llm := &flakyLLM{failCount: 2, result: LLMResult{Content: "ok"}}
	deps := Deps{
		LLM:        llm,
		Checkpoint: &fakeCheckpoint{},
		TestRunner: &fakeTestRunner{},
		Store:      store.NewMemoryStore(),
		Telemetry:  telemetry.NewNull(),
		WorkDir:    t.TempDir(),
		Retry:      &RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
	in := New(deps)

	results, err := in.Execute(context.Background(), []core.Effect{{Kind: core.EffInvokeLLM, Prompt: "go"}})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil after recovering within MaxAttempts", err)
	}
	if llm.calls != 3 {
		t.Fatalf("calls = %d, want 3 (2 failures + 1 success)", llm.calls)
	}
	if results[0].LLM.Content != "ok" {
		t.Fatalf("LLM.Content = %q, want %q", results[0].LLM.Content, "ok")
	}
}

func TestRetryPolicyGivesUpAfterMaxAttempts(t *testing.T) {
	llm := &flakyLLM{failCount: 10}
	deps := Deps{
		LLM:        llm,
		Checkpoint: &fakeCheckpoint{},
		TestRunner: &fakeTestRunner{},
		Store:      store.NewMemoryStore(),
		Telemetry:  telemetry.NewNull(),
		WorkDir:    t.TempDir(),
		Retry:      &RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}
	in := New(deps)

	_, err := in.Execute(context.Background(), []core.Effect{{Kind: core.EffInvokeLLM, Prompt: "go"}})
	if err == nil {
		t.Fatalf("expected Execute() to fail once MaxAttempts is exhausted")
	}
	if llm.calls != 2 {
		t.Fatalf("calls = %d, want 2 (MaxAttempts)", llm.calls)
	}
}

func TestNilRetryPolicyMakesOneAttempt(t *testing.T) {
	llm := &flakyLLM{failCount: 1}
	deps := Deps{
		LLM:        llm,
		Checkpoint: &fakeCheckpoint{},
		TestRunner: &fakeTestRunner{},
		Store:      store.NewMemoryStore(),
		Telemetry:  telemetry.NewNull(),
		WorkDir:    t.TempDir(),
	}
	in := New(deps)

	_, err := in.Execute(context.Background(), []core.Effect{{Kind: core.EffInvokeLLM, Prompt: "go"}})
	if err == nil {
		t.Fatalf("expected an error with no retry policy configured")
	}
	if llm.calls != 1 {
		t.Fatalf("calls = %d, want 1 with retries disabled", llm.calls)
	}
}

func TestRetryPolicyRetryableFilterStopsRetrying(t *testing.T) {
	llm := &flakyLLM{failCount: 10}
	deps := Deps{
		LLM:        llm,
		Checkpoint: &fakeCheckpoint{},
		TestRunner: &fakeTestRunner{},
		Store:      store.NewMemoryStore(),
		Telemetry:  telemetry.NewNull(),
		WorkDir:    t.TempDir(),
		Retry: &RetryPolicy{
			MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
			Retryable: func(error) bool { return false },
		},
	}
	in := New(deps)

	_, err := in.Execute(context.Background(), []core.Effect{{Kind: core.EffInvokeLLM, Prompt: "go"}})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if llm.calls != 1 {
		t.Fatalf("calls = %d, want 1: Retryable returning false must stop after the first attempt", llm.calls)
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	valid := &RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	zeroAttempts := &RetryPolicy{MaxAttempts: 0}
	if err := zeroAttempts.Validate(); !errors.Is(err, ErrInvalidRetryPolicy) {
		t.Fatalf("Validate() = %v, want ErrInvalidRetryPolicy", err)
	}

	inverted := &RetryPolicy{MaxAttempts: 1, BaseDelay: 10 * time.Second, MaxDelay: time.Second}
	if err := inverted.Validate(); !errors.Is(err, ErrInvalidRetryPolicy) {
		t.Fatalf("Validate() = %v, want ErrInvalidRetryPolicy for MaxDelay < BaseDelay", err)
	}
}

func TestComputeBackoffCapsAtMaxDelay(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := 100 * time.Millisecond
	maxDelay := 500 * time.Millisecond

	for attempt := 0; attempt < 10; attempt++ {
		d := computeBackoff(attempt, base, maxDelay, rng)
		if d < 0 || d > maxDelay+base {
			t.Fatalf("attempt %d: backoff %v out of expected bounds [0, %v]", attempt, d, maxDelay+base)
		}
	}
}
