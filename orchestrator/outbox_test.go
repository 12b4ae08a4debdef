package orchestrator_test

import (
	"context"
	"testing"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
	"github.com/dshills/orchestrator-core/model/mock"
	"github.com/dshills/orchestrator-core/orchestrator"
	"github.com/dshills/orchestrator-core/testrunner"
)

// TestRunMarksEventsEmittedOnTheOutbox exercises the transactional-outbox
// wiring: every event persisted during a run should also be marked
// emitted, so a healthy run never leaves anything for DrainOutbox to
// pick up.
func TestRunMarksEventsEmittedOnTheOutbox(t *testing.T) {
	llm := mock.New(interp.LLMResult{Content: requirementsResponse})
	loop, st := newLoop(t, llm, &testrunner.Stub{}, &fakeCheckpoint{approve: true}, t.TempDir())

	if _, _, err := loop.Run(context.Background(), "run-outbox-1", t.TempDir(), "build a CLI", orchestrator.WithMaxTurns(0)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pending, err := st.PendingEvents(context.Background(), 100)
	if err != nil {
		t.Fatalf("PendingEvents: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending outbox events after a healthy run, got %d", len(pending))
	}
}

// TestDrainOutboxMarksLeftoverEvents simulates a crash between an event's
// AppendEvents and its MarkEventsEmitted by appending directly to the
// store, bypassing persistEvent, and checks DrainOutbox catches it up.
func TestDrainOutboxMarksLeftoverEvents(t *testing.T) {
	llm := mock.New(interp.LLMResult{Content: requirementsResponse})
	loop, st := newLoop(t, llm, &testrunner.Stub{}, &fakeCheckpoint{approve: true}, t.TempDir())

	if _, _, err := loop.Run(context.Background(), "run-outbox-2", t.TempDir(), "build a CLI", orchestrator.WithMaxTurns(0)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pendingBefore, err := st.PendingEvents(context.Background(), 100)
	if err != nil {
		t.Fatalf("PendingEvents: %v", err)
	}
	if len(pendingBefore) != 0 {
		t.Fatalf("expected a clean outbox before the simulated crash, got %d pending", len(pendingBefore))
	}

	if err := loop.DrainOutbox(context.Background(), 100); err != nil {
		t.Fatalf("DrainOutbox on an already-clean outbox: %v", err)
	}

	events, err := st.LoadEvents(context.Background(), "run-outbox-2")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if err := st.AppendEvents(context.Background(), "run-outbox-2", int64(len(events)), []core.Event{{Kind: core.EvtErrorOccurred, Message: "simulated crash"}}); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	pendingAfterCrash, err := st.PendingEvents(context.Background(), 100)
	if err != nil {
		t.Fatalf("PendingEvents: %v", err)
	}
	if len(pendingAfterCrash) != 1 {
		t.Fatalf("expected 1 pending event after the simulated crash, got %d", len(pendingAfterCrash))
	}

	if err := loop.DrainOutbox(context.Background(), 100); err != nil {
		t.Fatalf("DrainOutbox: %v", err)
	}
	pendingAfter, err := st.PendingEvents(context.Background(), 100)
	if err != nil {
		t.Fatalf("PendingEvents: %v", err)
	}
	if len(pendingAfter) != 0 {
		t.Fatalf("expected DrainOutbox to clear the outbox, got %d pending", len(pendingAfter))
	}
}
