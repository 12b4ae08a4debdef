// Package core provides the functional core of the orchestrator: a closed
// set of types plus the pure decide/evolve functions that drive a
// multi-phase, event-sourced generation run.
//
// Nothing in this package performs I/O or reads the system clock. Timestamps
// arrive as event fields, stamped by the caller (see orchestrator.Loop.Run),
// never read with time.Now() inside decide or evolve.
package core

import "time"

// Phase is a stage in the fixed waterfall sequence a run progresses
// through. Ordering is total and fixed; there is no regression.
type Phase string

// PhaseOrder is the fixed, total ordering of phases. A run's current phase
// index within this slice never decreases.
var PhaseOrder = []Phase{
	PhaseRequirements,
	PhaseDesign,
	PhaseImplementation,
	PhaseTesting,
	PhaseDocumentation,
	PhaseVerification,
}

const (
	PhaseRequirements   Phase = "requirements"
	PhaseDesign         Phase = "design"
	PhaseImplementation Phase = "implementation"
	PhaseTesting        Phase = "testing"
	PhaseDocumentation  Phase = "documentation"
	PhaseVerification   Phase = "verification"
)

// PhaseIndex returns p's position in PhaseOrder, or -1 if p is unknown.
func PhaseIndex(p Phase) int {
	for i, candidate := range PhaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// NextPhase returns the phase following p, and false if p is terminal or
// unknown.
func NextPhase(p Phase) (Phase, bool) {
	idx := PhaseIndex(p)
	if idx < 0 || idx == len(PhaseOrder)-1 {
		return "", false
	}
	return PhaseOrder[idx+1], true
}

// ChecklistItem is a single unit of required work within a phase. Created
// only by Initialize handling; mutated only by completion, which is
// monotonic — once Completed is true it never reverts to false.
type ChecklistItem struct {
	ID          string    `json:"id"`
	Phase       Phase     `json:"phase"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Evidence    string    `json:"evidence,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// Artifact is a produced file, identified for lookup by Path within a run.
// Hash is updated whenever the artifact is rewritten.
type Artifact struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Hash      string    `json:"hash"`
	Phase     Phase     `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TurnBudget bounds the number of turns a phase may consume.
// usedTurns <= maxTurns must hold; equality is budget exhaustion.
type TurnBudget struct {
	Phase     Phase `json:"phase"`
	MaxTurns  int   `json:"max_turns"`
	UsedTurns int   `json:"used_turns"`
}

// Exhausted reports whether the budget has no turns remaining.
func (b TurnBudget) Exhausted() bool {
	return b.UsedTurns >= b.MaxTurns
}

// Confidence is the quality signal the decider and evolver use to judge
// convergence. OverallScore is derived by Score(); it is cached on the
// struct so callers can read it without recomputing, but evolve always
// recomputes and overwrites it after a mutating event.
type Confidence struct {
	TypesSafe         bool    `json:"types_safe"`
	SchemaValid       bool    `json:"schema_valid"`
	TestsPass         bool    `json:"tests_pass"`
	Coverage          float64 `json:"coverage"`
	ChecklistComplete bool    `json:"checklist_complete"`
	OverallScore      float64 `json:"overall_score"`
}

// Score computes the deterministic, total confidence score described in
// spec §4.1:
//
//	typesSafe=false            -> 0.0
//	schemaValid=false          -> 0.0
//	testsPass=false            -> 0.3 (hard cap)
//	otherwise                  -> 0.5 + min(coverage/80,1.0)*0.25 + (0.25 if checklistComplete)
//
// The result is clamped to [0.0, 1.0].
func (c Confidence) Score() float64 {
	if !c.TypesSafe {
		return 0.0
	}
	if !c.SchemaValid {
		return 0.0
	}
	if !c.TestsPass {
		return 0.3
	}

	score := 0.5
	coverageRatio := c.Coverage / 80.0
	if coverageRatio > 1.0 {
		coverageRatio = 1.0
	}
	if coverageRatio < 0 {
		coverageRatio = 0
	}
	score += coverageRatio * 0.25
	if c.ChecklistComplete {
		score += 0.25
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// CheckpointSummary is the externally-visible snapshot shown to an
// approver during the checkpoint rendezvous (spec §4.6). IdempotencyKey
// is derived only from (Phase, Turn, ConfidenceScore) — unlike ID, which
// is a fresh uuid every time RequestCheckpoint is decided — so a consumer
// downstream of EmitCheckpoint can recognize a replayed checkpoint for
// the same logical (phase, turn, score) as the same checkpoint even
// though its ID differs (spec supplement: exactly-once checkpoint
// idempotency key).
type CheckpointSummary struct {
	ID                string    `json:"id"`
	Phase             Phase     `json:"phase"`
	Turn              int       `json:"turn"`
	ChecklistComplete int       `json:"checklist_complete"`
	ChecklistTotal    int       `json:"checklist_total"`
	ArtifactCount     int       `json:"artifact_count"`
	ConfidenceScore   float64   `json:"confidence_score"`
	IdempotencyKey    string    `json:"idempotency_key"`
	CreatedAt         time.Time `json:"created_at"`
}

// State is the aggregate driven by decide/evolve. It is always replaced,
// never mutated in place, so that callers holding an old State value see
// a consistent snapshot.
type State struct {
	Phase               Phase               `json:"phase"`
	Turn                int                 `json:"turn"`
	Prompt              string              `json:"prompt"`
	Checklist           []ChecklistItem     `json:"checklist"`
	Artifacts           []Artifact          `json:"artifacts"`
	Budgets             []TurnBudget        `json:"budgets"`
	Confidence          Confidence          `json:"confidence"`
	PendingCheckpoint   *CheckpointSummary  `json:"pending_checkpoint,omitempty"`
	LastApprovedCheckpoint *CheckpointSummary `json:"last_approved_checkpoint,omitempty"`
	ConvergenceStreak   int                 `json:"convergence_streak"`
	Converged           bool                `json:"converged"`
	StartedAt           time.Time           `json:"started_at"`
	LastActivityAt      time.Time           `json:"last_activity_at"`
}

// Initialized reports whether Initialize has already been applied to this
// state (spec §4.2: "Initialize on an already-initialized state").
func (s State) Initialized() bool {
	return s.Turn > 0 || len(s.Checklist) > 0
}

// Budget returns the TurnBudget entry for phase p and whether it was
// found. Every valid State carries exactly one entry per Phase in
// PhaseOrder (invariant, spec §3).
func (s State) Budget(p Phase) (TurnBudget, bool) {
	for _, b := range s.Budgets {
		if b.Phase == p {
			return b, true
		}
	}
	return TurnBudget{}, false
}

// PhaseItems returns the checklist items belonging to phase p.
func (s State) PhaseItems(p Phase) []ChecklistItem {
	var items []ChecklistItem
	for _, item := range s.Checklist {
		if item.Phase == p {
			items = append(items, item)
		}
	}
	return items
}

// PhaseComplete reports whether phase p has at least one checklist item
// and all of them are completed.
func (s State) PhaseComplete(p Phase) bool {
	items := s.PhaseItems(p)
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !item.Completed {
			return false
		}
	}
	return true
}

// ArtifactByPath looks up an artifact by its path, returning its index in
// s.Artifacts or -1 if not present.
func (s State) ArtifactByPath(path string) int {
	for i, a := range s.Artifacts {
		if a.Path == path {
			return i
		}
	}
	return -1
}

// DefaultMaxTurnsPerPhase is the budget the orchestrator assigns to every
// phase when it handles Initialize; no option changes it.
const DefaultMaxTurnsPerPhase = 50

// NewInitialState returns the zero-value State for a fresh run: no phase
// set, no turns taken, no checklist. Callers should apply an Initialized
// event (via Evolve) to populate phase/budgets/prompt rather than setting
// fields directly.
func NewInitialState() State {
	return State{}
}
