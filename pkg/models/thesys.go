package models

import (
	"context"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
)

// Thesys C1 speaks the OpenAI chat-completions protocol from a custom base
// URL.
const (
	DefaultThesysModel   = "c1/anthropic/claude-sonnet-4/v-20250815"
	DefaultThesysBaseURL = "https://api.thesys.dev/v1/embed"
)

// Thesys implements agent.ChatModel over the Thesys C1 API. Tool declarations
// use encoding B: {type:"function", function:{name, description, parameters}};
// tool calls arrive as a parallel array with a tool_calls finish reason.
type Thesys struct {
	client *openai.Client
	model  string
	tools  []openai.Tool
}

// NewThesys builds the adapter with the static tool definitions rendered into
// OpenAI wire shape once at construction.
func NewThesys(apiKey, model string, specs []agent.ToolSpec) *Thesys {
	if strings.TrimSpace(model) == "" {
		model = DefaultThesysModel
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = DefaultThesysBaseURL
	return &Thesys{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		tools:  openaiTools(specs),
	}
}

func (t *Thesys) Mode() string { return ModeThesys }

func (t *Thesys) SendTurn(ctx context.Context, prompt agent.PromptContext, history []agent.Message) (*agent.TurnResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(ModeThesys, prompt),
	})
	messages = append(messages, toOpenAIMessages(history)...)

	req := openai.ChatCompletionRequest{
		Model:     t.model,
		Messages:  messages,
		MaxTokens: defaultMaxTokens,
		Tools:     t.tools,
	}

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, func() error {
		var callErr error
		resp, callErr = t.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return normalizeOpenAI(&resp)
}

func normalizeOpenAI(resp *openai.ChatCompletionResponse) (*agent.TurnResult, error) {
	if len(resp.Choices) == 0 {
		return nil, &BackendError{Err: errNoChoices}
	}
	choice := resp.Choices[0]
	usage := &agent.Usage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}

	if choice.FinishReason == openai.FinishReasonToolCalls && len(choice.Message.ToolCalls) > 0 {
		calls := make([]agent.ToolCall, 0, len(choice.Message.ToolCalls))
		for _, call := range choice.Message.ToolCalls {
			calls = append(calls, agent.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			})
		}
		return &agent.TurnResult{
			Kind:  agent.TurnToolCalls,
			Text:  choice.Message.Content,
			Calls: calls,
			Usage: usage,
		}, nil
	}

	text := choice.Message.Content
	// A tool_calls finish with an empty call list would loop forever; degrade
	// to a final answer instead.
	if text == "" {
		text = agent.FallbackMessage
	}
	return &agent.TurnResult{Kind: agent.TurnFinal, Text: text, Usage: usage}, nil
}

func toOpenAIMessages(history []agent.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case agent.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case agent.RoleAssistant:
			converted := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				})
			}
			out = append(out, converted)
		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}
	return out
}

// openaiTools renders the shared tool specs in encoding B.
func openaiTools(specs []agent.ToolSpec) []openai.Tool {
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.InputSchema,
			},
		})
	}
	return tools
}
