package httpserver

import (
	"encoding/json"
	"net/http"
)

type errorEnvelope struct {
	Error string `json:"error"`
}

// WriteJSON сериализует payload и пишет его с указанным статусом.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError возвращает ошибку в едином формате {"error": "..."}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorEnvelope{Error: message})
}

// SetCORSHeaders проставляет разрешающие CORS-заголовки.
// Ответы сервиса потребляет iframe-мост курса, origin заранее неизвестен.
func SetCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
