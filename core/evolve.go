package core

import "time"

// Evolve is the pure state-transition function: given a prior State and
// an Event, it returns the next State. Evolve performs no I/O and reads
// no clock; every event already carries the timestamp to stamp into
// LastActivityAt. Replay is defined as events.fold(initialState, Evolve)
// and must be reproducible byte-for-byte (spec §4.3).
func Evolve(s State, e Event) State {
	next := applyEvent(s, e)
	next.LastActivityAt = e.Timestamp
	return next
}

// Replay folds a slice of events over an initial state, in order.
func Replay(events []Event, initial State) State {
	s := initial
	for _, e := range events {
		s = Evolve(s, e)
	}
	return s
}

// ReplayUntil folds only the first k events over initial.
func ReplayUntil(events []Event, initial State, k int) State {
	if k > len(events) {
		k = len(events)
	}
	return Replay(events[:k], initial)
}

func applyEvent(s State, e Event) State {
	switch e.Kind {
	case EvtInitialized:
		s.Prompt = e.Prompt
		s.Checklist = e.Checklist
		s.Budgets = e.Budgets
		s.Phase = PhaseRequirements
		s.Turn = 0
		s.StartedAt = e.Timestamp
		return s

	case EvtPhaseStarted:
		s.Phase = e.Phase
		s.Budgets = replaceBudget(s.Budgets, e.Budget)
		return s

	case EvtPhaseCompleted:
		s.Budgets = withUsedTurns(s.Budgets, e.Phase, e.TurnsUsed)
		if nextPhase, ok := NextPhase(s.Phase); ok {
			s.Phase = nextPhase
		}
		return s

	case EvtTurnStarted:
		s.Turn = e.Turn
		return s

	case EvtTurnCompleted:
		s.Budgets = incrementUsedTurns(s.Budgets, e.Phase)
		return s

	case EvtArtifactCreated:
		s.Artifacts = append(append([]Artifact{}, s.Artifacts...), e.Artifact)
		return s

	case EvtArtifactUpdated:
		artifacts := append([]Artifact{}, s.Artifacts...)
		for i := range artifacts {
			if artifacts[i].ID == e.Artifact.ID {
				artifacts[i].Hash = e.Artifact.Hash
				artifacts[i].UpdatedAt = e.Artifact.UpdatedAt
				break
			}
		}
		s.Artifacts = artifacts
		return s

	case EvtChecklistItemCompleted:
		s.Checklist = completeChecklistItem(s.Checklist, e.ItemID, e.Evidence, e.Timestamp)
		s.Confidence.ChecklistComplete = allCompleted(s.Checklist)
		s.Confidence.OverallScore = s.Confidence.Score()
		return s

	case EvtTestsPassed:
		s.Confidence.TestsPass = true
		if e.HasCoverage {
			s.Confidence.Coverage = e.Coverage
		}
		s.ConvergenceStreak++
		s.Confidence.OverallScore = s.Confidence.Score()
		s.Converged = HasConverged(s)
		return s

	case EvtTestsFailed:
		s.Confidence.TestsPass = false
		if e.HasCoverage {
			s.Confidence.Coverage = e.Coverage
		}
		s.ConvergenceStreak = 0
		s.Confidence.OverallScore = s.Confidence.Score()
		return s

	case EvtTypeCheckPassed:
		s.Confidence.TypesSafe = true
		s.Confidence.OverallScore = s.Confidence.Score()
		return s

	case EvtTypeCheckFailed:
		s.Confidence.TypesSafe = false
		s.ConvergenceStreak = 0
		s.Confidence.OverallScore = s.Confidence.Score()
		return s

	case EvtConfidenceUpdated:
		s.Confidence = e.Confidence
		s.Confidence.OverallScore = s.Confidence.Score()
		s.Converged = HasConverged(s)
		return s

	case EvtCheckpointCreated:
		summary := e.CheckpointSummary
		s.PendingCheckpoint = &summary
		return s

	case EvtCheckpointApproved:
		if s.PendingCheckpoint == nil || s.PendingCheckpoint.ID != e.CheckpointID {
			return s // id mismatch: idempotent no-op under replay collisions
		}
		approved := *s.PendingCheckpoint
		s.LastApprovedCheckpoint = &approved
		s.PendingCheckpoint = nil
		return s

	case EvtCheckpointRejected:
		if s.PendingCheckpoint == nil || s.PendingCheckpoint.ID != e.CheckpointID {
			return s
		}
		s.PendingCheckpoint = nil
		return s

	case EvtConvergenceReached:
		s.Converged = true
		s.Confidence.OverallScore = e.Confidence.OverallScore
		return s

	case EvtBudgetExhausted:
		s.Budgets = withUsedTurns(s.Budgets, e.Phase, e.TurnsUsed)
		return s

	case EvtErrorOccurred:
		return s // only lastActivityAt bumps, handled by caller

	default:
		return s
	}
}

func replaceBudget(budgets []TurnBudget, b TurnBudget) []TurnBudget {
	out := make([]TurnBudget, len(budgets))
	copy(out, budgets)
	for i := range out {
		if out[i].Phase == b.Phase {
			out[i] = b
			return out
		}
	}
	return append(out, b)
}

func withUsedTurns(budgets []TurnBudget, p Phase, used int) []TurnBudget {
	out := make([]TurnBudget, len(budgets))
	copy(out, budgets)
	for i := range out {
		if out[i].Phase == p {
			out[i].UsedTurns = used
			return out
		}
	}
	return out
}

func incrementUsedTurns(budgets []TurnBudget, p Phase) []TurnBudget {
	out := make([]TurnBudget, len(budgets))
	copy(out, budgets)
	for i := range out {
		if out[i].Phase == p {
			out[i].UsedTurns++
			return out
		}
	}
	return out
}

func completeChecklistItem(items []ChecklistItem, id, evidence string, at time.Time) []ChecklistItem {
	out := make([]ChecklistItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID == id {
			if out[i].Completed {
				break
			}
			out[i].Completed = true
			out[i].Evidence = evidence
			out[i].CompletedAt = at
			break
		}
	}
	return out
}

func allCompleted(items []ChecklistItem) bool {
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
