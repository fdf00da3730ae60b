package handler

import (
	"net/http"

	"tush00nka/schoolconnect_chat/internal/ws"

	"github.com/gorilla/mux"
)

type WSHandler struct {
	gateway *ws.Gateway
}

func NewWSHandler(gateway *ws.Gateway) *WSHandler {
	return &WSHandler{gateway: gateway}
}

func (h *WSHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/rooms/{id}", h.connect).Methods("GET")
}

// @Summary Connect to room
// @Description Websocket for live room traffic. Token via ?token= or Authorization header.
// @Description Non-members receive {"type":"error","code":"forbidden"} and close code 1008.
// @ID connect-room
// @Tags realtime
// @Param id path string true "Room ID"
// @Param token query string false "Bearer token"
// @Success 101
// @Failure 401 {object} response.ErrorResponse
// @Router /ws/rooms/{id} [get]
func (h *WSHandler) connect(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	h.gateway.Serve(w, r, mux.Vars(r)["id"], ws.Identity{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
	})
}
