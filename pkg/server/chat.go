package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
	"github.com/comptaline/as400-ai-backend/pkg/models"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	UserID    string        `json:"user_id"`
	CompanyID string        `json:"company_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Messages array is required"})
		return
	}

	history := make([]agent.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, agent.Message{Role: m.Role, Content: m.Content})
	}

	prompt := agent.PromptContext{UserID: req.UserID, CompanyID: req.CompanyID}
	outcome, err := s.loop.Run(r.Context(), prompt, history)
	if err != nil {
		s.logger.Error("chat turn failed", "error", err)
		var backendErr *models.BackendError
		if errors.As(err, &backendErr) {
			status := http.StatusBadGateway
			if backendErr.Transient {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, errorBody{
				Error:   "AI backend unavailable",
				Message: "Le service IA est temporairement indisponible.",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Internal server error",
			Message: "Une erreur interne est survenue.",
		})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}
