package server

import (
	"net/http"
	"time"
)

type healthBody struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Mode      string `json:"mode"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{
		Status:    "ok",
		Service:   serviceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		Mode:      s.displayMode,
	})
}
