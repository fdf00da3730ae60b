package httputils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tush00nka/schoolconnect_chat/api/response"
	"tush00nka/schoolconnect_chat/internal/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseAppError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{apperr.Validation("room name cannot be empty"), http.StatusBadRequest, "validation", "validation error: room name cannot be empty"},
		{apperr.NotFound("room %s not found", "r1"), http.StatusNotFound, "not_found", "not found: room r1 not found"},
		{apperr.Forbidden("not a member"), http.StatusForbidden, "forbidden", "forbidden: not a member"},
		{errors.New("connection refused"), http.StatusInternalServerError, "internal", "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rr := httptest.NewRecorder()
			ResponseAppError(rr, tt.err)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body response.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}
