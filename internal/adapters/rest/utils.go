package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"property-import-service/internal/core/domain"
)

// WriteJSONError отправляет JSON-ответ с полем "error" и заданным статусом
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// RespondWithJSON отправляет JSON-ответ
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to marshal JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// statusForError сопоставляет доменные ошибки с HTTP-кодами
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrFileRequired), errors.Is(err, domain.ErrNotCSV):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrPropertyNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTenantRequired), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError 5xx не раскрывают текст внутренней ошибки
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		WriteJSONError(w, code, fallback)
		return
	}
	WriteJSONError(w, code, err.Error())
}
