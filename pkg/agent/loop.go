package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// ExhaustedMessage is reported when the model keeps requesting tools past the
// iteration cap.
const ExhaustedMessage = "Nombre maximum d'itérations atteint."

// DefaultMaxIterations bounds how many tool-call rounds a single chat request
// may perform. Nothing prevents a model from requesting tools forever; the cap
// turns that liveness risk into an observable outcome.
const DefaultMaxIterations = 10

// Loop owns the bounded iterate-call-tools-reinject cycle for one chat
// request. It holds no per-request state between calls to Run.
type Loop struct {
	model         ChatModel
	executor      *Executor
	maxIterations int
	turnTimeout   time.Duration
	budget        time.Duration
	logger        *slog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxIterations overrides the tool-round cap.
func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithTurnTimeout bounds each individual model call.
func WithTurnTimeout(d time.Duration) LoopOption {
	return func(l *Loop) { l.turnTimeout = d }
}

// WithBudget bounds the wall-clock time of a whole request. The iteration cap
// alone does not bound time if a single call hangs.
func WithBudget(d time.Duration) LoopOption {
	return func(l *Loop) { l.budget = d }
}

// WithLoopLogger sets the loop logger.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop wires a model adapter and a tool executor into a loop.
func NewLoop(model ChatModel, executor *Executor, opts ...LoopOption) *Loop {
	l := &Loop{
		model:         model,
		executor:      executor,
		maxIterations: DefaultMaxIterations,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Outcome is the terminal result of a chat request. Iteration exhaustion is a
// reported outcome with Success=false, not an error.
type Outcome struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Usage      *Usage `json:"usage,omitempty"`
	Iterations int    `json:"iterations"`
	Mode       string `json:"mode"`
}

// Run executes the agent loop over the caller-supplied conversation. The
// iteration counter increases only on tool-call turns; a final answer
// terminates immediately. Tool calls within a round run sequentially in the
// order received, because the history is a single ordered log that must pair
// each call with its result before the next model turn.
func (l *Loop) Run(ctx context.Context, prompt PromptContext, incoming []Message) (*Outcome, error) {
	if l.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.budget)
		defer cancel()
	}

	history := normalizeHistory(incoming)
	iterations := 0

	for {
		turn, err := l.sendTurn(ctx, prompt, history)
		if err != nil {
			return nil, err
		}

		if turn.Kind == TurnFinal {
			text := strings.TrimSpace(turn.Text)
			if text == "" {
				text = FallbackMessage
			}
			return &Outcome{
				Success:    true,
				Message:    text,
				Usage:      turn.Usage,
				Iterations: iterations,
				Mode:       l.model.Mode(),
			}, nil
		}

		if iterations >= l.maxIterations {
			l.logger.Warn("iteration cap reached", "iterations", iterations, "mode", l.model.Mode())
			return &Outcome{
				Success:    false,
				Message:    ExhaustedMessage,
				Iterations: l.maxIterations,
				Mode:       l.model.Mode(),
			}, nil
		}
		iterations++
		l.logger.Debug("tool calls requested", "iteration", iterations, "calls", len(turn.Calls))

		// The assistant turn must be echoed into history before any tool
		// result, in whatever shape the active backend requires.
		history = append(history, Message{
			Role:      RoleAssistant,
			Content:   turn.Text,
			ToolCalls: turn.Calls,
		})
		for _, call := range turn.Calls {
			result := l.executor.Execute(ctx, call.Name, call.Arguments)
			history = append(history, Message{
				Role:       RoleTool,
				ToolCallID: call.ID,
				Content:    string(result),
			})
		}
	}
}

func (l *Loop) sendTurn(ctx context.Context, prompt PromptContext, history []Message) (*TurnResult, error) {
	if l.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.turnTimeout)
		defer cancel()
	}
	return l.model.SendTurn(ctx, prompt, history)
}

// normalizeHistory restricts caller-supplied turns to user/assistant roles;
// anything else is treated as user content. System and tool turns are only
// ever produced inside the loop.
func normalizeHistory(incoming []Message) []Message {
	history := make([]Message, 0, len(incoming))
	for _, msg := range incoming {
		role := RoleUser
		if msg.Role == RoleAssistant {
			role = RoleAssistant
		}
		history = append(history, Message{Role: role, Content: msg.Content})
	}
	return history
}
