// Package google adapts Google's Gemini API to interp.LLMAdapter.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
)

const writeFileToolName = "write_file"

// Adapter implements interp.LLMAdapter against Gemini. Grounded on the
// teacher's graph/model/google.ChatModel, narrowed from arbitrary message
// histories to the orchestrator's single-prompt-per-turn contract.
type Adapter struct {
	apiKey    string
	modelName string
	client    googleClient
}

type googleClient interface {
	generateContent(ctx context.Context, req interp.LLMRequest) (interp.LLMResult, error)
}

// New builds a Gemini-backed LLMAdapter. An empty modelName defaults to
// gemini-2.5-flash.
func New(apiKey, modelName string) *Adapter {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
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
	out, err := a.client.generateContent(ctx, req)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return interp.LLMResult{}, safetyErr
		}
		return interp.LLMResult{}, err
	}
	return out, nil
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, req interp.LLMRequest) (interp.LLMResult, error) {
	if c.apiKey == "" {
		return interp.LLMResult{}, errors.New("google: API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return interp.LLMResult{}, fmt.Errorf("google: new client: %w", err)
	}
	defer func() { _ = client.Close() }()

	model := client.GenerativeModel(c.modelName)
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		model.MaxOutputTokens = &maxTokens
	}
	if req.HasTemp {
		temp := float32(req.Temperature)
		model.Temperature = &temp
	}
	model.Tools = []*genai.Tool{writeFileTool()}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		if blocked := asSafetyBlock(err); blocked != nil {
			return interp.LLMResult{}, blocked
		}
		return interp.LLMResult{}, fmt.Errorf("google: %w", err)
	}

	return convertResponse(resp, c.modelName), nil
}

func writeFileTool() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        writeFileToolName,
				Description: "Write or overwrite a file at a path relative to the workspace root.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"path":    {Type: genai.TypeString},
						"content": {Type: genai.TypeString},
					},
					Required: []string{"path", "content"},
				},
			},
		},
	}
}

func convertResponse(resp *genai.GenerateContentResponse, modelName string) interp.LLMResult {
	out := interp.LLMResult{Model: modelName}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Content != "" {
				out.Content += "\n"
			}
			out.Content += string(p)
		case genai.FunctionCall:
			if p.Name != writeFileToolName {
				continue
			}
			path, content, ok := extractWriteFileArgs(p.Args)
			if !ok {
				continue
			}
			out.ToolUses = append(out.ToolUses, core.ToolUse{Kind: writeFileToolName, Path: path, Content: content})
		}
	}
	return out
}

func extractWriteFileArgs(args map[string]any) (path, content string, ok bool) {
	path, pathOK := args["path"].(string)
	content, contentOK := args["content"].(string)
	return path, content, pathOK && contentOK
}

// SafetyFilterError describes a Gemini response blocked by the provider's
// content safety filters, grounded on the teacher's documented error
// pattern for the same situation.
type SafetyFilterError struct {
	Category string
}

func (e *SafetyFilterError) Error() string {
	return "google: content blocked by safety filter: " + e.Category
}

func asSafetyBlock(err error) *SafetyFilterError {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &SafetyFilterError{Category: "blocked"}
	}
	return nil
}
