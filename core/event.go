package core

import "time"

// EventKind tags the variant of an Event.
type EventKind string

const (
	EvtInitialized            EventKind = "initialized"
	EvtPhaseStarted           EventKind = "phase_started"
	EvtPhaseCompleted         EventKind = "phase_completed"
	EvtTurnStarted            EventKind = "turn_started"
	EvtTurnCompleted          EventKind = "turn_completed"
	EvtArtifactCreated        EventKind = "artifact_created"
	EvtArtifactUpdated        EventKind = "artifact_updated"
	EvtChecklistItemCompleted EventKind = "checklist_item_completed"
	EvtTestsPassed            EventKind = "tests_passed"
	EvtTestsFailed            EventKind = "tests_failed"
	EvtTypeCheckPassed        EventKind = "type_check_passed"
	EvtTypeCheckFailed        EventKind = "type_check_failed"
	EvtConfidenceUpdated      EventKind = "confidence_updated"
	EvtCheckpointCreated      EventKind = "checkpoint_created"
	EvtCheckpointApproved     EventKind = "checkpoint_approved"
	EvtCheckpointRejected     EventKind = "checkpoint_rejected"
	EvtConvergenceReached     EventKind = "convergence_reached"
	EvtBudgetExhausted        EventKind = "budget_exhausted"
	EvtErrorOccurred          EventKind = "error_occurred"
)

// Event is an immutable fact derived from a (Command, []Effect, []Result)
// triple by the orchestrator's mapping step (spec §8 table), always
// carrying the timestamp at which it was derived. Evolve never reads a
// clock; every timestamp-bearing field here comes from the orchestrator.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	// Initialized
	Prompt    string
	Budgets   []TurnBudget
	Checklist []ChecklistItem

	// PhaseStarted / PhaseCompleted / BudgetExhausted / Timeout-derived
	Phase     Phase
	TurnsUsed int
	Budget    TurnBudget // PhaseStarted: the replacement budget entry for Phase

	// TurnStarted
	Turn int

	// ArtifactCreated / ArtifactUpdated
	Artifact Artifact

	// ChecklistItemCompleted
	ItemID   string
	Evidence string

	// TestsPassed / TestsFailed
	HasCoverage bool
	Coverage    float64

	// TypeCheckFailed
	TypeErrors []string

	// ConfidenceUpdated / ConvergenceReached
	Confidence Confidence

	// CheckpointCreated
	CheckpointSummary CheckpointSummary

	// CheckpointApproved / CheckpointRejected
	CheckpointID string
	Reason       string

	// ErrorOccurred
	Message     string
	Recoverable bool
}

// Checklist items referenced by ID on ChecklistItemCompleted carry their
// evidence via the ItemID/Evidence fields above, consumed by Evolve.
