package models

import (
	"context"
	"encoding/json"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
)

// DefaultAnthropicModel is used when no override is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

const defaultMaxTokens = 4096

// Anthropic implements agent.ChatModel over the Anthropic Messages API. Tool
// declarations use encoding A: a flat array of {name, description,
// input_schema} objects; tool calls arrive as content blocks terminated by a
// tool_use stop reason.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	tools     []anthropic.ToolUnionParam
}

// NewAnthropic builds the adapter with the static tool definitions rendered
// into Anthropic wire shape once at construction.
func NewAnthropic(apiKey, model string, specs []agent.ToolSpec) *Anthropic {
	if strings.TrimSpace(model) == "" {
		model = DefaultAnthropicModel
	}
	return &Anthropic{
		client:    anthropic.NewClient(anthropicopt.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: defaultMaxTokens,
		tools:     anthropicTools(specs),
	}
}

func (a *Anthropic) Mode() string { return ModeAnthropic }

func (a *Anthropic) SendTurn(ctx context.Context, prompt agent.PromptContext, history []agent.Message) (*agent.TurnResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(ModeAnthropic, prompt)},
		},
		Messages: toAnthropicMessages(history),
		Tools:    a.tools,
	}

	var msg *anthropic.Message
	err := withRetry(ctx, func() error {
		var callErr error
		msg, callErr = a.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return normalizeAnthropic(msg), nil
}

func normalizeAnthropic(msg *anthropic.Message) *agent.TurnResult {
	var text strings.Builder
	var calls []agent.ToolCall

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			calls = append(calls, agent.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: json.RawMessage(variant.JSON.Input.Raw()),
			})
		}
	}

	usage := &agent.Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}

	if msg.StopReason == anthropic.StopReasonToolUse {
		// A tool_use stop with no tool block would loop forever; degrade to a
		// final answer instead.
		if len(calls) == 0 {
			return &agent.TurnResult{Kind: agent.TurnFinal, Text: agent.FallbackMessage, Usage: usage}
		}
		return &agent.TurnResult{Kind: agent.TurnToolCalls, Text: text.String(), Calls: calls, Usage: usage}
	}
	return &agent.TurnResult{Kind: agent.TurnFinal, Text: text.String(), Usage: usage}
}

// toAnthropicMessages converts the neutral history into Anthropic wire shape.
// Assistant echoes are rebuilt as text plus tool_use blocks; consecutive tool
// results are folded into a single user turn of tool_result blocks, which is
// the format the API requires after a tool_use response.
func toAnthropicMessages(history []agent.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) == 0 {
			return
		}
		out = append(out, anthropic.NewUserMessage(pendingResults...))
		pendingResults = nil
	}

	for _, msg := range history {
		switch msg.Role {
		case agent.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		case agent.RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				var input any
				if err := json.Unmarshal(call.Arguments, &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Input: input,
						Name:  call.Name,
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		default:
			flushResults()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flushResults()
	return out
}

// anthropicTools renders the shared tool specs in encoding A.
func anthropicTools(specs []agent.ToolSpec) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		param := anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: anthropicInputSchema(spec.InputSchema),
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &param})
	}
	return tools
}

func anthropicInputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	param := anthropic.ToolInputSchemaParam{
		Properties: schema["properties"],
	}
	if required, ok := schema["required"]; ok {
		param.ExtraFields = map[string]any{"required": required}
	}
	return param
}
