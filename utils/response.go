package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Envelope is the body shape of every JSON response
type Envelope struct {
	Data    interface{}       `json:"data,omitempty"`
	Count   *int              `json:"count,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON writes body with the given status code
func RespondJSON(w http.ResponseWriter, code int, body Envelope) {
	response, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

// RespondError writes {"error": message}
func RespondError(w http.ResponseWriter, code int, message string) {
	RespondJSON(w, code, Envelope{Error: message})
}
