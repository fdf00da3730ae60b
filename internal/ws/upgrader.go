package ws

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
)

// NewUpgrader разрешает только перечисленные origins; в development любые
func NewUpgrader(allowedOrigins []string, development bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Не браузер
			if origin == "" {
				return true
			}

			// Для разработки разрешаем все
			if development {
				return true
			}

			return slices.Contains(allowedOrigins, origin)
		},
	}
}
