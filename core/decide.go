package core

import (
	"strconv"

	"github.com/google/uuid"
)

// NewCheckpointID generates a fresh checkpoint identifier. It is a package
// variable rather than a hard call to uuid.New() so tests can substitute a
// deterministic generator; production code leaves it at its default.
//
// Checkpoint-id freshness is the one place Decide is intentionally not
// reproducible run-over-run: replay never re-invokes Decide (only Evolve
// runs during resume, spec §4.5), so a fresh id here cannot desynchronize
// a replayed State.
var NewCheckpointID = func() string { return uuid.New().String() }

// DefaultCheckpointTimeoutMs is the WaitForApproval timeout Decide attaches
// to every RequestCheckpoint (spec §4.6).
const DefaultCheckpointTimeoutMs = 300_000

// Decide is the pure decision function: given a Command and the State it
// applies against, it returns the ordered list of Effects the interpreter
// should execute. Decide performs no I/O and reads no clock; it is
// deterministic given its inputs and never mutates s.
func Decide(cmd Command, s State) []Effect {
	switch cmd.Kind {
	case CmdInitialize:
		return decideInitialize(cmd, s)
	case CmdAdvancePhase:
		return decideAdvancePhase(s)
	case CmdStartTurn:
		return decideStartTurn(s)
	case CmdProcessLLMResponse:
		return decideProcessLLMResponse(cmd, s)
	case CmdRecordArtifact:
		return decideRecordArtifact(cmd, s)
	case CmdRecordTestResult:
		return decideRecordTestResult(cmd, s)
	case CmdRecordTypeCheck:
		return decideRecordTypeCheck(cmd)
	case CmdCompleteChecklistItem:
		return decideCompleteChecklistItem(cmd, s)
	case CmdRequestCheckpoint:
		return decideRequestCheckpoint(s)
	case CmdApproveCheckpoint:
		return decideApproveRejectCheckpoint(s, "checkpoint_approved")
	case CmdRejectCheckpoint:
		return decideApproveRejectCheckpoint(s, "checkpoint_rejected")
	case CmdTimeout:
		return decideTimeout(cmd)
	case CmdError:
		return decideError(cmd)
	default:
		return []Effect{logEffect(LogWarn, "unknown command", map[string]any{"kind": string(cmd.Kind)})}
	}
}

func decideInitialize(cmd Command, s State) []Effect {
	if s.Initialized() {
		return []Effect{logEffect(LogWarn, "initialize ignored: session already initialized", nil)}
	}

	return []Effect{
		logEffect(LogInfo, "initializing session", map[string]any{"prompt": cmd.Prompt}),
		{Kind: EffStartSpan, SpanName: "session", SpanAttrs: map[string]string{"prompt": cmd.Prompt}},
		{
			Kind:      EffInvokeLLM,
			Prompt:    requirementsExtractionPrompt(cmd.Prompt),
			MaxTokens: RequirementsExtractionMaxTokens,
		},
	}
}

func decideAdvancePhase(s State) []Effect {
	if !s.PhaseComplete(s.Phase) {
		return []Effect{logEffect(LogWarn, "advance_phase ignored: checklist incomplete", map[string]any{"phase": string(s.Phase)})}
	}

	if _, ok := NextPhase(s.Phase); !ok {
		return []Effect{logEffect(LogWarn, "advance_phase ignored: already at final phase", map[string]any{"phase": string(s.Phase)})}
	}

	return []Effect{
		logEffect(LogInfo, "phase complete", map[string]any{"phase": string(s.Phase)}),
		metricEffect("phase_completed", 1, map[string]string{"phase": string(s.Phase)}),
	}
}

func decideStartTurn(s State) []Effect {
	if HasConverged(s) {
		return []Effect{logEffect(LogInfo, "start_turn ignored: already converged", nil)}
	}

	budget, ok := s.Budget(s.Phase)
	if ok && budget.Exhausted() {
		return []Effect{
			logEffect(LogWarn, "turn budget exhausted", map[string]any{"phase": string(s.Phase), "max_turns": budget.MaxTurns}),
			metricEffect("budget_exhausted", 1, map[string]string{"phase": string(s.Phase)}),
		}
	}

	return []Effect{
		{Kind: EffStartSpan, SpanName: "turn", SpanAttrs: map[string]string{"phase": string(s.Phase), "turn": strconv.Itoa(s.Turn)}},
		logEffect(LogInfo, "starting turn", map[string]any{"phase": string(s.Phase), "turn": s.Turn}),
		{
			Kind:      EffInvokeLLM,
			Prompt:    phasePromptBuilder(s),
			MaxTokens: PhaseTurnMaxTokens,
		},
	}
}

func decideProcessLLMResponse(cmd Command, s State) []Effect {
	effects := []Effect{
		logEffect(LogInfo, "processing llm response", map[string]any{"phase": string(s.Phase)}),
		metricEffect("tokens_used", float64(cmd.LLMResponse.TokensUsed), map[string]string{"phase": string(s.Phase)}),
	}

	for _, tu := range cmd.LLMResponse.ToolUses {
		if tu.Kind != "write_file" {
			continue
		}
		if tu.Path == "" || tu.Content == "" {
			continue // malformed tool-use input, silently skipped (spec §4.2)
		}
		effects = append(effects, Effect{Kind: EffWriteFile, Path: tu.Path, Content: tu.Content})
	}

	if s.Phase == PhaseImplementation || s.Phase == PhaseTesting {
		effects = append(effects,
			Effect{Kind: EffRunTests, WantCoverage: true},
			Effect{Kind: EffCheckTypes},
		)
	}

	return effects
}

func decideRecordArtifact(cmd Command, s State) []Effect {
	existing := s.ArtifactByPath(cmd.ArtifactPath) >= 0
	if existing {
		return []Effect{
			logEffect(LogInfo, "artifact updated", map[string]any{"path": cmd.ArtifactPath, "hash": cmd.ArtifactHash}),
			metricEffect("artifact_updated", 1, map[string]string{"phase": string(s.Phase)}),
		}
	}
	return []Effect{
		logEffect(LogInfo, "artifact created", map[string]any{"path": cmd.ArtifactPath, "hash": cmd.ArtifactHash}),
		metricEffect("artifact_created", 1, map[string]string{"phase": string(s.Phase)}),
	}
}

func decideRecordTestResult(cmd Command, s State) []Effect {
	r := cmd.TestResult
	effects := []Effect{
		logEffect(LogInfo, "test results recorded", map[string]any{
			"total": r.TestsTotal, "passed": r.TestsPassed, "failed": r.TestsFailed,
		}),
		metricEffect("tests_total", float64(r.TestsTotal), nil),
		metricEffect("tests_passed", float64(r.TestsPassed), nil),
		metricEffect("tests_failed", float64(r.TestsFailed), nil),
	}
	if r.HasCoverage {
		effects = append(effects, metricEffect("coverage", r.Coverage, nil))
	}

	next := s.Confidence
	next.TestsPass = r.Passed
	if r.HasCoverage {
		next.Coverage = r.Coverage
	}
	effects = append(effects, metricEffect("confidence", next.Score(), nil))

	return effects
}

func decideRecordTypeCheck(cmd Command) []Effect {
	effects := []Effect{
		metricEffect("type_check_passed", boolToFloat(cmd.TypeCheckPassed), nil),
	}
	if cmd.TypeCheckPassed {
		effects = append(effects, logEffect(LogInfo, "type check passed", nil))
		return effects
	}

	errs := cmd.TypeCheckErrors
	if len(errs) > 5 {
		errs = errs[:5]
	}
	effects = append(effects, logEffect(LogError, "type check failed", map[string]any{"errors": errs}))
	return effects
}

func decideCompleteChecklistItem(cmd Command, s State) []Effect {
	var item *ChecklistItem
	for i := range s.Checklist {
		if s.Checklist[i].ID == cmd.ItemID {
			item = &s.Checklist[i]
			break
		}
	}

	if item == nil {
		return []Effect{logEffect(LogWarn, "complete_checklist_item ignored: unknown id", map[string]any{"item_id": cmd.ItemID})}
	}
	if item.Completed {
		return []Effect{logEffect(LogInfo, "complete_checklist_item ignored: already completed", map[string]any{"item_id": cmd.ItemID})}
	}

	return []Effect{
		logEffect(LogInfo, "checklist item completed", map[string]any{"item_id": cmd.ItemID}),
		metricEffect("checklist_item_completed", 1, map[string]string{"phase": string(item.Phase)}),
	}
}

func decideRequestCheckpoint(s State) []Effect {
	if s.PendingCheckpoint != nil {
		return []Effect{logEffect(LogWarn, "request_checkpoint ignored: checkpoint already pending", nil)}
	}

	completed, total := 0, 0
	for _, item := range s.PhaseItems(s.Phase) {
		total++
		if item.Completed {
			completed++
		}
	}

	score := s.Confidence.Score()
	summary := CheckpointSummary{
		ID:                NewCheckpointID(),
		Phase:             s.Phase,
		Turn:              s.Turn,
		ChecklistComplete: completed,
		ChecklistTotal:    total,
		ArtifactCount:     len(s.Artifacts),
		ConfidenceScore:   score,
		IdempotencyKey:    checkpointIdempotencyKey(s.Phase, s.Turn, score),
	}

	return []Effect{
		logEffect(LogInfo, "requesting checkpoint", map[string]any{"checkpoint_id": summary.ID}),
		{Kind: EffEmitCheckpoint, Summary: summary},
		{Kind: EffWaitForApproval, CheckpointID: summary.ID, TimeoutMs: DefaultCheckpointTimeoutMs},
	}
}

func decideApproveRejectCheckpoint(s State, metric string) []Effect {
	if s.PendingCheckpoint == nil {
		return []Effect{logEffect(LogWarn, "checkpoint response ignored: no checkpoint pending", nil)}
	}
	return []Effect{
		logEffect(LogInfo, metric, map[string]any{"checkpoint_id": s.PendingCheckpoint.ID}),
		metricEffect(metric, 1, nil),
	}
}

func decideTimeout(cmd Command) []Effect {
	return []Effect{
		logEffect(LogError, "phase timeout", map[string]any{"phase": string(cmd.TimeoutPhase)}),
		metricEffect("phase_timeout", 1, map[string]string{"phase": string(cmd.TimeoutPhase)}),
	}
}

func decideError(cmd Command) []Effect {
	return []Effect{
		logEffect(LogError, cmd.ErrorMessage, map[string]any{"recoverable": cmd.ErrorRecoverable}),
		metricEffect("errors_total", 1, map[string]string{"recoverable": boolToTag(cmd.ErrorRecoverable)}),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func boolToTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

