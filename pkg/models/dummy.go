package models

import (
	"context"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
)

// Dummy is a scripted model implementation useful for tests and local runs
// without API calls. It replays the configured turns in order and keeps
// returning a final fallback once the script is exhausted.
type Dummy struct {
	ModeName string
	Turns    []agent.TurnResult

	// History records every history slice SendTurn received, for assertions.
	History [][]agent.Message

	next int
}

// NewDummy builds a scripted model.
func NewDummy(mode string, turns ...agent.TurnResult) *Dummy {
	if mode == "" {
		mode = "dummy"
	}
	return &Dummy{ModeName: mode, Turns: turns}
}

func (d *Dummy) Mode() string { return d.ModeName }

func (d *Dummy) SendTurn(_ context.Context, _ agent.PromptContext, history []agent.Message) (*agent.TurnResult, error) {
	snapshot := make([]agent.Message, len(history))
	copy(snapshot, history)
	d.History = append(d.History, snapshot)

	if d.next >= len(d.Turns) {
		return &agent.TurnResult{Kind: agent.TurnFinal, Text: agent.FallbackMessage}, nil
	}
	turn := d.Turns[d.next]
	d.next++
	return &turn, nil
}

var _ agent.ChatModel = (*Dummy)(nil)
