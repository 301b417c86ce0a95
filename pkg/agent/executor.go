package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Executor dispatches tool calls and converts every outcome, including store
// failures and panics, into a uniform JSON envelope. No error crosses this
// boundary: failures become conversation content the model can react to.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor wraps a registry. A nil logger disables executor logging.
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{registry: registry, logger: logger}
}

type toolFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Execute runs the named tool and returns the serialized result envelope.
func (e *Executor) Execute(ctx context.Context, name string, arguments json.RawMessage) json.RawMessage {
	tool, _, ok := e.registry.Lookup(name)
	if !ok {
		return failure(fmt.Sprintf("Unknown tool: %s", name))
	}

	args := map[string]any{}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return failure(fmt.Sprintf("invalid tool arguments: %v", err))
		}
	}

	resp, err := e.invoke(ctx, tool, ToolRequest{Arguments: args})
	if err != nil {
		e.logger.Warn("tool execution failed", "tool", name, "error", err)
		return failure(err.Error())
	}

	payload, err := json.Marshal(resp.Payload)
	if err != nil {
		e.logger.Warn("tool result not serializable", "tool", name, "error", err)
		return failure(fmt.Sprintf("tool result not serializable: %v", err))
	}
	return payload
}

// invoke shields the loop from panicking tools.
func (e *Executor) invoke(ctx context.Context, tool Tool, req ToolRequest) (resp ToolResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Invoke(ctx, req)
}

func failure(message string) json.RawMessage {
	payload, err := json.Marshal(toolFailure{Success: false, Error: message})
	if err != nil {
		return json.RawMessage(`{"success":false,"error":"tool failure"}`)
	}
	return payload
}
