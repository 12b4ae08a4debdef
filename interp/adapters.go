// Package interp is the effect interpreter: the impure shell that turns a
// core.Effect into real I/O against a small set of adapter interfaces,
// producing a typed Result the orchestrator folds back into Commands.
//
// Nothing in core ever imports this package; the dependency runs one way,
// interp -> core, matching the teacher's split between graph (pure
// reducers/nodes) and graph/store, graph/model (impure backends).
package interp

import (
	"context"

	"github.com/dshills/orchestrator-core/core"
)

// LLMAdapter invokes a chat model. Grounded on the teacher's
// graph/model.ChatModel interface: one blocking call per turn, no
// streaming, because the orchestrator needs the complete response before
// it can decide on tool uses.
type LLMAdapter interface {
	Invoke(ctx context.Context, req LLMRequest) (LLMResult, error)
}

// LLMRequest carries everything Decide put into an EffInvokeLLM effect.
type LLMRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	HasTemp      bool
}

// LLMResult is the adapter's response, converted by the orchestrator into
// a core.LLMResponse payload for a ProcessLLMResponse command. Model,
// InputTokens, and OutputTokens feed the orchestrator's cost tally
// (core.CostForCall); an adapter that can't report the input/output split
// leaves them zero and only TokensUsed is trustworthy.
type LLMResult struct {
	Content      string
	ToolUses     []core.ToolUse
	TokensUsed   int
	Model        string
	InputTokens  int
	OutputTokens int
}

// CheckpointAdapter implements the rendezvous protocol of spec §4.6: make
// a checkpoint summary externally visible, then block until an approver
// responds or the timeout elapses.
type CheckpointAdapter interface {
	EmitCheckpoint(ctx context.Context, summary core.CheckpointSummary) error
	WaitForApproval(ctx context.Context, checkpointID string, timeoutMs int) (ApprovalResult, error)
}

// ApprovalResult is what WaitForApproval resolves to: either an explicit
// approve/reject from the approver, or a timeout (Approved=false,
// Reason="timeout") if none arrived in time.
type ApprovalResult struct {
	Approved bool
	Reason   string
}

// TestRunnerAdapter delegates test execution, type checking, and schema
// validation to an external tool. Grounded on the teacher's graph/tool
// package's one-method-per-capability adapters (HTTPTool.Call, etc.).
type TestRunnerAdapter interface {
	RunTests(ctx context.Context, pattern string, wantCoverage bool) (core.TestResult, error)
	CheckTypes(ctx context.Context) (TypeCheckResult, error)
	ValidateSchema(ctx context.Context, schemaPath, dataPath string) (SchemaValidationResult, error)
}

// TypeCheckResult is CheckTypes's response.
type TypeCheckResult struct {
	Passed bool
	Errors []string
}

// SchemaValidationResult is ValidateSchema's response.
type SchemaValidationResult struct {
	Valid  bool
	Errors []string
}
