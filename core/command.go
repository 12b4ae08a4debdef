package core

// CommandKind tags the variant of a Command. Exhaustive handling in
// Decide's switch is checked by the determinism contract test
// (core/decide_test.go), which enumerates every kind.
type CommandKind string

const (
	CmdInitialize             CommandKind = "initialize"
	CmdAdvancePhase           CommandKind = "advance_phase"
	CmdStartTurn              CommandKind = "start_turn"
	CmdProcessLLMResponse     CommandKind = "process_llm_response"
	CmdRecordArtifact         CommandKind = "record_artifact"
	CmdRecordTestResult       CommandKind = "record_test_result"
	CmdRecordTypeCheck        CommandKind = "record_type_check"
	CmdCompleteChecklistItem  CommandKind = "complete_checklist_item"
	CmdRequestCheckpoint      CommandKind = "request_checkpoint"
	CmdApproveCheckpoint      CommandKind = "approve_checkpoint"
	CmdRejectCheckpoint       CommandKind = "reject_checkpoint"
	CmdTimeout                CommandKind = "timeout"
	CmdError                  CommandKind = "error"
)

// Command is a tagged record describing caller intent. Only the fields
// relevant to Kind are populated; Decide ignores the rest. This mirrors
// the teacher's Next{To,Many,Terminal} tagged-struct routing type rather
// than a closed interface hierarchy, since every variant here is a flat
// bag of optional scalars.
type Command struct {
	Kind CommandKind

	// Initialize
	Prompt string

	// ProcessLLMResponse
	LLMResponse LLMResponse

	// RecordArtifact
	ArtifactPath string
	ArtifactHash string

	// RecordTestResult
	TestResult TestResult

	// RecordTypeCheck
	TypeCheckPassed bool
	TypeCheckErrors []string

	// CompleteChecklistItem
	ItemID   string
	Evidence string

	// RejectCheckpoint
	RejectReason string

	// ApproveCheckpoint / RejectCheckpoint
	CheckpointID string

	// Timeout
	TimeoutPhase Phase

	// Error
	ErrorMessage     string
	ErrorRecoverable bool
}

// LLMResponse is the payload of a ProcessLLMResponse command: the
// InvokeLLM effect's result, as produced by the interpreter from an
// LLMAdapter call. Model/InputTokens/OutputTokens pass the adapter's
// usage breakdown through to the orchestrator's cost tally; Decide itself
// never looks at them.
type LLMResponse struct {
	Content      string
	ToolUses     []ToolUse
	TokensUsed   int
	Model        string
	InputTokens  int
	OutputTokens int
}

// ToolUse is a single tool invocation requested by the LLM inside a chat
// response. Only Kind == "write_file" tool-uses with both Path and
// Content present are turned into WriteFile effects (spec §4.2);
// malformed ones are silently skipped.
type ToolUse struct {
	Kind    string
	Path    string
	Content string
}

// TestResult is the payload of a RecordTestResult command.
type TestResult struct {
	Passed      bool
	TestsTotal  int
	TestsPassed int
	TestsFailed int
	HasCoverage bool
	Coverage    float64
}
