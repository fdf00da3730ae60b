package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tush00nka/schoolconnect_chat/internal/pkg/auth"
	"tush00nka/schoolconnect_chat/internal/pkg/httputils"

	"github.com/rs/zerolog/log"
)

type ctxKey struct{}

// Identity пользователь запроса из проверенного токена
type Identity struct {
	UserID      string
	DisplayName string
	SchoolID    string
}

// IdentityFrom достает identity, положенную Authenticate
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Enroller обновляет справочник школ по токену
type Enroller interface {
	Enroll(ctx context.Context, userID, schoolID, displayName string) error
}

// Authenticate проверяет токен и кладет identity в контекст запроса
func Authenticate(tokens *auth.Manager, directory Enroller) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := auth.TokenFromRequest(r)
			if err != nil {
				httputils.ResponseError(w, http.StatusUnauthorized, "missing or malformed token")
				return
			}

			claims, err := tokens.ValidateToken(tokenStr)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "token has expired"
				}
				httputils.ResponseError(w, http.StatusUnauthorized, msg)
				return
			}

			id := Identity{
				UserID:      claims.UserID,
				DisplayName: claims.DisplayName,
				SchoolID:    claims.SchoolID,
			}

			if id.SchoolID != "" && directory != nil {
				if err := directory.Enroll(r.Context(), id.UserID, id.SchoolID, id.DisplayName); err != nil {
					log.Warn().Err(err).Str("user_id", id.UserID).Msg("failed to update school directory")
				}
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging пишет строку на запрос. Websocket пропускается: Hijack нужен исходный writer.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
