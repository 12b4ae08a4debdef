package orchestrator

import (
	"time"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
)

// deriveEvents is the orchestrator's half of spec §8's "(effect, result,
// state) -> events" mapping. A handful of cases (WriteFile, RunTests,
// CheckTypes, EmitCheckpoint) map directly off a single effect's result
// via effectEvent; everything else — Initialize populating the checklist
// from the LLM's requirements-extraction response, a turn's LLM response
// driving a ProcessLLMResponse follow-up, phase advancement, and the
// checkpoint approve/reject rendezvous — needs the issuing command's own
// context, so it is derived here instead. followUps are additional
// commands the loop must process before this command is considered done
// (e.g. StartTurn's response feeding ProcessLLMResponse).
func deriveEvents(cmd core.Command, before core.State, effects []core.Effect, results []interp.Result, now time.Time) ([]core.Event, []core.Command) {
	var events []core.Event
	var followUps []core.Command
	sim := before

	for i, res := range results {
		if i >= len(effects) {
			break
		}
		eff := effects[i]

		if ev, ok := effectEvent(eff, res, sim, now); ok {
			events = append(events, ev)
			next := core.Evolve(sim, ev)
			if isConfidenceTrigger(ev.Kind) {
				events = append(events, confidenceFollowUps(sim, next, now)...)
			}
			sim = next

			switch eff.Kind {
			case core.EffWriteFile:
				followUps = append(followUps, core.Command{Kind: core.CmdRecordArtifact, ArtifactPath: res.Path, ArtifactHash: res.Hash})
			case core.EffRunTests:
				followUps = append(followUps, core.Command{Kind: core.CmdRecordTestResult, TestResult: res.TestResult})
			case core.EffCheckTypes:
				followUps = append(followUps, core.Command{Kind: core.CmdRecordTypeCheck, TypeCheckPassed: res.TypeCheck.Passed, TypeCheckErrors: res.TypeCheck.Errors})
			}
		}

		if eff.Kind == core.EffWaitForApproval {
			if res.Approval.Approved {
				followUps = append(followUps, core.Command{Kind: core.CmdApproveCheckpoint, CheckpointID: eff.CheckpointID})
			} else {
				followUps = append(followUps, core.Command{Kind: core.CmdRejectCheckpoint, CheckpointID: eff.CheckpointID, RejectReason: res.Approval.Reason})
			}
		}
	}

	switch cmd.Kind {
	case core.CmdInitialize:
		if res, ok := llmResult(effects, results); ok {
			items, err := parseChecklistItems(res.Content, now, newID)
			if err != nil {
				items = nil // decoding error: proceed with an empty checklist rather than abort (spec §7)
			}
			budgets := defaultBudgets()
			events = append(events,
				core.Event{Kind: core.EvtInitialized, Timestamp: now, Prompt: cmd.Prompt, Budgets: budgets, Checklist: items},
				core.Event{Kind: core.EvtPhaseStarted, Timestamp: now, Phase: core.PhaseRequirements, Budget: budgets[0]},
			)
		}

	case core.CmdStartTurn:
		if res, ok := llmResult(effects, results); ok {
			events = append(events, core.Event{Kind: core.EvtTurnStarted, Timestamp: now, Turn: before.Turn + 1})
			followUps = append(followUps, core.Command{Kind: core.CmdProcessLLMResponse, LLMResponse: core.LLMResponse{
				Content: res.Content, ToolUses: res.ToolUses, TokensUsed: res.TokensUsed,
				Model: res.Model, InputTokens: res.InputTokens, OutputTokens: res.OutputTokens,
			}})
		} else if budget, ok := before.Budget(before.Phase); ok && budget.Exhausted() {
			events = append(events, core.Event{Kind: core.EvtBudgetExhausted, Timestamp: now, Phase: before.Phase, TurnsUsed: budget.UsedTurns})
		}

	case core.CmdProcessLLMResponse:
		for _, c := range parseChecklistCompletions(cmd.LLMResponse.Content) {
			followUps = append(followUps, core.Command{Kind: core.CmdCompleteChecklistItem, ItemID: c.ItemID, Evidence: c.Evidence})
		}
		events = append(events, core.Event{Kind: core.EvtTurnCompleted, Timestamp: now, Phase: before.Phase})

	case core.CmdAdvancePhase:
		if next, ok := core.NextPhase(before.Phase); ok && before.PhaseComplete(before.Phase) {
			budget, _ := before.Budget(before.Phase)
			nextBudget, _ := before.Budget(next)
			events = append(events,
				core.Event{Kind: core.EvtPhaseCompleted, Timestamp: now, Phase: before.Phase, TurnsUsed: budget.UsedTurns},
				core.Event{Kind: core.EvtPhaseStarted, Timestamp: now, Phase: next, Budget: nextBudget},
			)
		}

	case core.CmdApproveCheckpoint:
		if before.PendingCheckpoint != nil {
			events = append(events, core.Event{Kind: core.EvtCheckpointApproved, Timestamp: now, CheckpointID: cmd.CheckpointID})
		}

	case core.CmdRejectCheckpoint:
		if before.PendingCheckpoint != nil {
			events = append(events, core.Event{Kind: core.EvtCheckpointRejected, Timestamp: now, CheckpointID: cmd.CheckpointID, Reason: cmd.RejectReason})
		}

	case core.CmdCompleteChecklistItem:
		for _, item := range before.Checklist {
			if item.ID == cmd.ItemID && !item.Completed {
				events = append(events, core.Event{Kind: core.EvtChecklistItemCompleted, Timestamp: now, ItemID: cmd.ItemID, Evidence: cmd.Evidence})
				break
			}
		}

	case core.CmdError:
		events = append(events, core.Event{Kind: core.EvtErrorOccurred, Timestamp: now, Message: cmd.ErrorMessage, Recoverable: cmd.ErrorRecoverable})
	}

	return events, followUps
}

func llmResult(effects []core.Effect, results []interp.Result) (interp.LLMResult, bool) {
	for i, eff := range effects {
		if eff.Kind != core.EffInvokeLLM {
			continue
		}
		if i >= len(results) {
			return interp.LLMResult{}, false
		}
		return results[i].LLM, true
	}
	return interp.LLMResult{}, false
}

func defaultBudgets() []core.TurnBudget {
	budgets := make([]core.TurnBudget, len(core.PhaseOrder))
	for i, p := range core.PhaseOrder {
		budgets[i] = core.TurnBudget{Phase: p, MaxTurns: core.DefaultMaxTurnsPerPhase}
	}
	return budgets
}
