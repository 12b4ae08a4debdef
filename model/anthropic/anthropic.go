// Package anthropic adapts Anthropic's Claude API to interp.LLMAdapter.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
)

// writeFileToolName must match the "write_file" constant core/decide.go
// checks against when turning a ToolUse into a WriteFile effect.
const writeFileToolName = "write_file"

// Adapter implements interp.LLMAdapter for Claude. Unlike the teacher's
// graph/model/anthropic.ChatModel, there is no conversation history to
// thread through: the orchestrator embeds the entire turn's context into
// a single prompt string (core/prompts.go), so Invoke makes exactly one
// user-message request per call.
type Adapter struct {
	apiKey    string
	modelName string
	client    anthropicClient
}

// anthropicClient is narrowed to the one call this adapter needs, mirroring
// the teacher's own interface-behind-struct seam for testability.
type anthropicClient interface {
	createMessage(ctx context.Context, req interp.LLMRequest) (interp.LLMResult, error)
}

// New builds an Anthropic-backed LLMAdapter. An empty modelName defaults to
// Claude Sonnet.
func New(apiKey, modelName string) *Adapter {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &Adapter{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Invoke implements interp.LLMAdapter.
func (a *Adapter) Invoke(ctx context.Context, req interp.LLMRequest) (interp.LLMResult, error) {
	if ctx.Err() != nil {
		return interp.LLMResult{}, ctx.Err()
	}
	out, err := a.client.createMessage(ctx, req)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return interp.LLMResult{}, apiErr
		}
		return interp.LLMResult{}, err
	}
	return out, nil
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createMessage(ctx context.Context, req interp.LLMRequest) (interp.LLMResult, error) {
	if c.apiKey == "" {
		return interp.LLMResult{}, errors.New("anthropic: API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
		Tools: []anthropicsdk.ToolUnionParam{writeFileTool()},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.HasTemp {
		params.Temperature = anthropicsdk.Float(req.Temperature)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return interp.LLMResult{}, fmt.Errorf("anthropic: %w", err)
	}

	return convertResponse(resp, c.modelName), nil
}

// writeFileTool describes the orchestrator's single tool: writing an
// artifact file to workDir. Grounded on the spec's closed tool vocabulary
// (core.ToolUse only ever carries Kind="write_file").
func writeFileTool() anthropicsdk.ToolUnionParam {
	return anthropicsdk.ToolUnionParam{
		OfTool: &anthropicsdk.ToolParam{
			Name:        writeFileToolName,
			Description: anthropicsdk.String("Write or overwrite a file at a path relative to the workspace root."),
			InputSchema: anthropicsdk.ToolInputSchemaParam{
				Properties: map[string]any{
					"path":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
				Required: []string{"path", "content"},
			},
		},
	}
}

func convertResponse(resp *anthropicsdk.Message, modelName string) interp.LLMResult {
	out := interp.LLMResult{
		TokensUsed:   int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		Model:        modelName,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}

	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Content != "" {
				out.Content += "\n"
			}
			out.Content += b.Text
		case anthropicsdk.ToolUseBlock:
			if b.Name != writeFileToolName {
				continue
			}
			path, content, ok := extractWriteFileArgs(b.Input)
			if !ok {
				continue
			}
			out.ToolUses = append(out.ToolUses, core.ToolUse{Kind: writeFileToolName, Path: path, Content: content})
		}
	}

	return out
}

func extractWriteFileArgs(input any) (path, content string, ok bool) {
	m, isMap := input.(map[string]any)
	if !isMap {
		return "", "", false
	}
	path, pathOK := m["path"].(string)
	content, contentOK := m["content"].(string)
	return path, content, pathOK && contentOK
}

// apiError represents a translated Anthropic API error. The teacher keeps
// its own anthropicError type for the same reason: preserve the provider's
// classification without leaking the SDK's error type into core.
type apiError struct {
	Type    string
	Message string
}

func (e *apiError) Error() string {
	return e.Type + ": " + e.Message
}
