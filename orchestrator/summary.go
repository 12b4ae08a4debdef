package orchestrator

import "github.com/dshills/orchestrator-core/core"

// StopReason names why the loop exited, surfaced in Summary so a caller
// can distinguish "done" from "gave up" without re-deriving it from State.
type StopReason string

const (
	StopConverged   StopReason = "converged"
	StopMaxTurns    StopReason = "max_turns"
	StopContextDone StopReason = "context_done"
)

// Summary is the aggregated run report spec §6 pairs with the final
// State: "run(options) -> {final state, aggregated summary}". A converged
// run reports zero errors; a non-converged run that exhausted maxTurns
// still exits cleanly with Converged=false and the accumulated
// error/warn counts (spec §7, "user-visible behavior").
type Summary struct {
	Converged  bool
	StopReason StopReason

	FinalPhase      core.Phase
	TotalTurns      int
	ConfidenceScore float64

	ArtifactCount     int
	ChecklistComplete int
	ChecklistTotal    int
	EventsPersisted   int64

	ErrorCount int
	WarnCount  int

	// TotalTokens sums the tokens of every LLM call: Initialize's
	// requirements extraction and each turn's response. TotalCostUSD
	// and CostByModel only account for models present in core's pricing
	// table (core.CostForCall); an unpriced model still contributes to
	// TotalTokens but not to the dollar figures (spec supplement: cost/token
	// accounting).
	TotalTokens  int
	TotalCostUSD float64
	CostByModel  map[string]float64
}

func buildSummary(s core.State, reason StopReason, eventsPersisted int64, errorCount, warnCount, totalTokens int, totalCostUSD float64, costByModel map[string]float64) Summary {
	completed, total := 0, 0
	for _, item := range s.Checklist {
		total++
		if item.Completed {
			completed++
		}
	}
	return Summary{
		Converged:         s.Converged,
		StopReason:        reason,
		FinalPhase:        s.Phase,
		TotalTurns:        s.Turn,
		ConfidenceScore:   s.Confidence.OverallScore,
		ArtifactCount:     len(s.Artifacts),
		ChecklistComplete: completed,
		ChecklistTotal:    total,
		EventsPersisted:   eventsPersisted,
		ErrorCount:        errorCount,
		WarnCount:         warnCount,
		TotalTokens:       totalTokens,
		TotalCostUSD:      totalCostUSD,
		CostByModel:       costByModel,
	}
}
