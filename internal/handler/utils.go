package handler

import (
	"net/http"

	"tush00nka/schoolconnect_chat/internal/pkg/httputils"
	"tush00nka/schoolconnect_chat/internal/ws"
)

type PongResponse struct {
	Message string `json:"message"`
}

// Ping
// @Summary Пингануть сервер
// @Description Пингануть сервер
// @Tags system
// @Produce json
// @Success 200 {object} PongResponse
// @Router /ping [get]
func Ping(w http.ResponseWriter, r *http.Request) {
	httputils.ResponseJSON(w, http.StatusOK, PongResponse{Message: "Pong"})
}

// StatsSource источник статистики рассылки
type StatsSource interface {
	GetStats() ws.HubStats
}

// Stats
// @Summary Статистика соединений
// @Tags system
// @Produce json
// @Success 200 {object} ws.HubStats
// @Router /stats [get]
func Stats(source StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputils.ResponseJSON(w, http.StatusOK, source.GetStats())
	}
}
