// Package openai adapts OpenAI's Chat Completions API to interp.LLMAdapter.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
)

const writeFileToolName = "write_file"

// Adapter implements interp.LLMAdapter against OpenAI's API. Each call is
// a single-turn completion; there is no conversation history to carry
// because core/prompts.go already folds the relevant history into one
// prompt string per turn.
type Adapter struct {
	apiKey    string
	modelName string
	client    openaiClient
}

type openaiClient interface {
	createChatCompletion(ctx context.Context, req interp.LLMRequest) (interp.LLMResult, error)
}

// New builds an OpenAI-backed LLMAdapter. An empty modelName defaults to
// gpt-4o.
func New(apiKey, modelName string) *Adapter {
	if modelName == "" {
		modelName = "gpt-4o"
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
	return a.client.createChatCompletion(ctx, req)
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createChatCompletion(ctx context.Context, req interp.LLMRequest) (interp.LLMResult, error) {
	if c.apiKey == "" {
		return interp.LLMResult{}, errors.New("openai: API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	var messages []openaisdk.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(req.Prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: messages,
		Tools:    []openaisdk.ChatCompletionToolParam{writeFileTool()},
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(req.MaxTokens))
	}
	if req.HasTemp {
		params.Temperature = openaisdk.Float(req.Temperature)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return interp.LLMResult{}, fmt.Errorf("openai: %w", err)
	}

	return convertResponse(resp, c.modelName), nil
}

func writeFileTool() openaisdk.ChatCompletionToolParam {
	return openaisdk.ChatCompletionToolParam{
		Function: shared.FunctionDefinitionParam{
			Name:        writeFileToolName,
			Description: openaisdk.String("Write or overwrite a file at a path relative to the workspace root."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"path":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
				"required": []string{"path", "content"},
			},
		},
	}
}

func convertResponse(resp *openaisdk.ChatCompletion, modelName string) interp.LLMResult {
	out := interp.LLMResult{
		TokensUsed:   int(resp.Usage.TotalTokens),
		Model:        modelName,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	if len(resp.Choices) == 0 {
		return out
	}

	msg := resp.Choices[0].Message
	out.Content = msg.Content

	for _, tc := range msg.ToolCalls {
		if tc.Function.Name != writeFileToolName {
			continue
		}
		path, content, ok := parseWriteFileArgs(tc.Function.Arguments)
		if !ok {
			continue
		}
		out.ToolUses = append(out.ToolUses, core.ToolUse{Kind: writeFileToolName, Path: path, Content: content})
	}
	return out
}

// parseWriteFileArgs decodes the JSON-encoded arguments string OpenAI
// returns for a function call into the two fields the write_file tool
// requires.
func parseWriteFileArgs(jsonArgs string) (path, content string, ok bool) {
	var decoded struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(jsonArgs), &decoded); err != nil {
		return "", "", false
	}
	if decoded.Path == "" {
		return "", "", false
	}
	return decoded.Path, decoded.Content, true
}
