package httpapi

import (
	"encoding/json"
	"net/http"

	"fablab-backend-go/internal/services"
)

const msgInternal = "Erreur interne du serveur"

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// writeError maps a service error to its status. Anything else is a 500,
// logged, and described in "details" outside production.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if serr, ok := services.AsServiceError(err); ok {
		WriteError(w, serr.Status, serr.Message)
		return
	}
	logFrom(r, s.Log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	body := ErrorResponse{Error: msgInternal}
	if !s.Config.IsProduction() {
		body.Details = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, body)
}

// respond writes payload with status, or the error if err is set.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, payload interface{}, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, status, payload)
}
