package core

import "testing"

func TestCheckpointIdempotencyKeyStableAcrossRedecision(t *testing.T) {
	a := checkpointIdempotencyKey(PhaseImplementation, 3, 0.75)
	b := checkpointIdempotencyKey(PhaseImplementation, 3, 0.75)
	if a != b {
		t.Fatalf("same (phase, turn, score) produced different keys: %q vs %q", a, b)
	}
	if a[:7] != "sha256:" {
		t.Fatalf("key = %q, want sha256: prefix", a)
	}
}

func TestCheckpointIdempotencyKeyDiffersOnTurn(t *testing.T) {
	a := checkpointIdempotencyKey(PhaseImplementation, 3, 0.75)
	b := checkpointIdempotencyKey(PhaseImplementation, 4, 0.75)
	if a == b {
		t.Fatalf("expected different turns to produce different keys")
	}
}

func TestDecideRequestCheckpointSetsIdempotencyKey(t *testing.T) {
	s := State{Phase: PhaseTesting, Turn: 7, Confidence: Confidence{TypesSafe: true, SchemaValid: true, TestsPass: true, ChecklistComplete: true, Coverage: 90}}
	effects := Decide(Command{Kind: CmdRequestCheckpoint}, s)

	var summary *CheckpointSummary
	for _, e := range effects {
		if e.Kind == EffEmitCheckpoint {
			summary = &e.Summary
		}
	}
	if summary == nil {
		t.Fatalf("expected an EmitCheckpoint effect")
	}
	if summary.IdempotencyKey == "" {
		t.Fatalf("expected a non-empty idempotency key")
	}
	want := checkpointIdempotencyKey(s.Phase, s.Turn, s.Confidence.Score())
	if summary.IdempotencyKey != want {
		t.Fatalf("idempotency key = %q, want %q", summary.IdempotencyKey, want)
	}
}
