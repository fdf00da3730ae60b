package httputils

import (
	"encoding/json"
	"errors"
	"net/http"

	"tush00nka/schoolconnect_chat/api/response"
	"tush00nka/schoolconnect_chat/internal/pkg/apperr"

	"github.com/rs/zerolog/log"
)

func ResponseError(w http.ResponseWriter, errorCode int, errorMessage string) {
	ResponseJSON(w, errorCode, response.ErrorResponse{
		Message: errorMessage,
	})
}

// ResponseAppError переводит ошибку apperr в HTTP статус.
// Внутренние ошибки логируются, клиент видит только общий текст.
func ResponseAppError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		message = "internal error"
	}

	ResponseJSON(w, status, response.ErrorResponse{
		Message: message,
		Code:    apperr.Code(err),
	})
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func ResponseJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}
