package core

import "testing"

// TestDecideHandlesEveryCommandKind enumerates every CommandKind and checks
// Decide doesn't panic and returns a non-nil effect slice for at least the
// happy path. This is the determinism-contract smoke test referenced in
// command.go's doc comment: every kind must be switched on explicitly, not
// fall through to the default branch.
func TestDecideHandlesEveryCommandKind(t *testing.T) {
	kinds := []CommandKind{
		CmdInitialize, CmdAdvancePhase, CmdStartTurn, CmdProcessLLMResponse,
		CmdRecordArtifact, CmdRecordTestResult, CmdRecordTypeCheck,
		CmdCompleteChecklistItem, CmdRequestCheckpoint, CmdApproveCheckpoint,
		CmdRejectCheckpoint, CmdTimeout, CmdError,
	}

	for _, k := range kinds {
		effects := Decide(Command{Kind: k}, State{Budgets: budgetsFor(50)})
		if effects == nil {
			t.Errorf("Decide(%q, ...) returned nil effects", k)
		}
		if len(effects) == 1 && effects[0].Kind == EffLog && effects[0].Message == "unknown command" {
			t.Errorf("Decide(%q, ...) fell through to the default branch", k)
		}
	}
}

func TestDecideUnknownCommandLogsWarning(t *testing.T) {
	effects := Decide(Command{Kind: "bogus"}, State{})
	if len(effects) != 1 || effects[0].Kind != EffLog {
		t.Fatalf("expected a single log effect, got %+v", effects)
	}
	if effects[0].Level != LogWarn {
		t.Errorf("level = %q, want %q", effects[0].Level, LogWarn)
	}
}

func TestDecideInitializeProducesLLMInvocation(t *testing.T) {
	effects := Decide(Command{Kind: CmdInitialize, Prompt: "build a CLI"}, NewInitialState())

	var sawInvoke bool
	for _, e := range effects {
		if e.Kind == EffInvokeLLM {
			sawInvoke = true
			if e.MaxTokens != RequirementsExtractionMaxTokens {
				t.Errorf("maxTokens = %d, want %d", e.MaxTokens, RequirementsExtractionMaxTokens)
			}
		}
	}
	if !sawInvoke {
		t.Error("expected an InvokeLLM effect")
	}
}

func TestDecideInitializeIgnoredWhenAlreadyInitialized(t *testing.T) {
	s := State{Turn: 3}
	effects := Decide(Command{Kind: CmdInitialize, Prompt: "again"}, s)

	for _, e := range effects {
		if e.Kind == EffInvokeLLM {
			t.Error("re-initializing an initialized session must not invoke the LLM")
		}
	}
}

func TestDecideStartTurnSkipsWhenConverged(t *testing.T) {
	s := State{
		ConvergenceStreak: 5,
		Confidence:        Confidence{TypesSafe: true, SchemaValid: true, TestsPass: true, Coverage: 100, ChecklistComplete: true},
		Budgets:           budgetsFor(50),
	}

	effects := Decide(Command{Kind: CmdStartTurn}, s)

	for _, e := range effects {
		if e.Kind == EffInvokeLLM {
			t.Error("start_turn on a converged state must not invoke the LLM")
		}
	}
}

func TestDecideStartTurnSkipsWhenBudgetExhausted(t *testing.T) {
	s := State{
		Phase:   PhaseImplementation,
		Budgets: []TurnBudget{{Phase: PhaseImplementation, MaxTurns: 5, UsedTurns: 5}},
	}

	effects := Decide(Command{Kind: CmdStartTurn}, s)

	for _, e := range effects {
		if e.Kind == EffInvokeLLM {
			t.Error("start_turn on an exhausted budget must not invoke the LLM")
		}
		if e.Kind == EffRecordMetric && e.MetricName == "budget_exhausted" {
			return
		}
	}
	t.Error("expected a budget_exhausted metric effect")
}

func TestDecideAdvancePhaseRequiresCompleteChecklist(t *testing.T) {
	s := State{
		Phase: PhaseRequirements,
		Checklist: []ChecklistItem{
			{ID: "r1", Phase: PhaseRequirements, Completed: false},
		},
	}

	effects := Decide(Command{Kind: CmdAdvancePhase}, s)
	for _, e := range effects {
		if e.Kind == EffRecordMetric && e.MetricName == "phase_completed" {
			t.Error("must not report phase_completed while checklist incomplete")
		}
	}
}

func TestDecideRequestCheckpointSingleFlight(t *testing.T) {
	prevNew := NewCheckpointID
	defer func() { NewCheckpointID = prevNew }()
	NewCheckpointID = func() string { return "cp-fixed" }

	effects := Decide(Command{Kind: CmdRequestCheckpoint}, State{Phase: PhaseImplementation})

	var sawEmit, sawWait bool
	for _, e := range effects {
		if e.Kind == EffEmitCheckpoint {
			sawEmit = true
			if e.Summary.ID != "cp-fixed" {
				t.Errorf("checkpoint id = %q, want cp-fixed", e.Summary.ID)
			}
		}
		if e.Kind == EffWaitForApproval {
			sawWait = true
			if e.TimeoutMs != DefaultCheckpointTimeoutMs {
				t.Errorf("timeoutMs = %d, want %d", e.TimeoutMs, DefaultCheckpointTimeoutMs)
			}
		}
	}
	if !sawEmit || !sawWait {
		t.Fatalf("expected both EmitCheckpoint and WaitForApproval effects, got %+v", effects)
	}

	// A second request while one is already pending must be rejected
	// instead of emitting a second checkpoint (spec §4.6 single-flight).
	pending := CheckpointSummary{ID: "cp-fixed", Phase: PhaseImplementation}
	again := Decide(Command{Kind: CmdRequestCheckpoint}, State{Phase: PhaseImplementation, PendingCheckpoint: &pending})
	for _, e := range again {
		if e.Kind == EffEmitCheckpoint {
			t.Error("must not emit a second checkpoint while one is pending")
		}
	}
}

func TestDecideProcessLLMResponseWritesFilesAndSkipsMalformed(t *testing.T) {
	cmd := Command{
		Kind: CmdProcessLLMResponse,
		LLMResponse: LLMResponse{
			ToolUses: []ToolUse{
				{Kind: "write_file", Path: "main.go", Content: "package main"},
				{Kind: "write_file", Path: "", Content: "missing path"},
				{Kind: "write_file", Path: "incomplete.go", Content: ""},
				{Kind: "read_file", Path: "ignored.go", Content: "not a write"},
			},
		},
	}

	effects := Decide(cmd, State{Phase: PhaseDesign})

	var writes int
	for _, e := range effects {
		if e.Kind == EffWriteFile {
			writes++
			if e.Path != "main.go" {
				t.Errorf("unexpected write path %q", e.Path)
			}
		}
	}
	if writes != 1 {
		t.Errorf("writes = %d, want 1 (malformed tool-uses must be skipped)", writes)
	}
}

func TestDecideProcessLLMResponseTriggersTestsDuringImplementation(t *testing.T) {
	effects := Decide(Command{Kind: CmdProcessLLMResponse}, State{Phase: PhaseImplementation})

	var sawTests, sawTypes bool
	for _, e := range effects {
		if e.Kind == EffRunTests {
			sawTests = true
		}
		if e.Kind == EffCheckTypes {
			sawTypes = true
		}
	}
	if !sawTests || !sawTypes {
		t.Error("implementation-phase turns must run tests and type checks")
	}
}

func TestDecideProcessLLMResponseSkipsTestsOutsideImplementationAndTesting(t *testing.T) {
	effects := Decide(Command{Kind: CmdProcessLLMResponse}, State{Phase: PhaseRequirements})

	for _, e := range effects {
		if e.Kind == EffRunTests {
			t.Error("requirements-phase turns must not run tests")
		}
	}
}

func TestDecideCompleteChecklistItemUnknownID(t *testing.T) {
	effects := Decide(Command{Kind: CmdCompleteChecklistItem, ItemID: "missing"}, State{})
	if len(effects) != 1 || effects[0].Kind != EffLog || effects[0].Level != LogWarn {
		t.Fatalf("expected a single warn log for unknown item id, got %+v", effects)
	}
}
