package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tush00nka/schoolconnect_chat/internal/model"
	"tush00nka/schoolconnect_chat/internal/pkg/apperr"
	"tush00nka/schoolconnect_chat/internal/pkg/httputils"
	"tush00nka/schoolconnect_chat/internal/service"

	"github.com/gorilla/mux"
)

type RoomHandler struct {
	rooms    service.RoomService
	messages service.MessageService
}

func NewRoomHandler(rooms service.RoomService, messages service.MessageService) *RoomHandler {
	return &RoomHandler{rooms: rooms, messages: messages}
}

func (h *RoomHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/rooms", h.createRoom).Methods("POST", "OPTIONS")
	router.HandleFunc("/rooms", h.listRooms).Methods("GET", "OPTIONS")
	router.HandleFunc("/rooms/{id}/messages", h.getMessages).Methods("GET", "OPTIONS")
	router.HandleFunc("/rooms/{id}/messages", h.postMessage).Methods("POST", "OPTIONS")
}

type createRoomRequest struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	SchoolID  string   `json:"schoolId"`
	CreatorID string   `json:"creatorId"`
	Members   []string `json:"members"`
}

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// @Summary Create room
// @Description Create a school-wide, public or secret room. The creator is always a member.
// @ID create-room
// @Tags rooms
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param roomData body createRoomRequest true "Room data"
// @Success 201 {object} CreateRoomResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /rooms [post]
func (h *RoomHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var request createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	r.Body.Close()

	if request.CreatorID == "" {
		request.CreatorID = id.UserID
	}
	if request.SchoolID == "" {
		request.SchoolID = id.SchoolID
	}
	if request.CreatorID != id.UserID || request.SchoolID != id.SchoolID {
		httputils.ResponseAppError(w, apperr.Forbidden("rooms can only be created as yourself in your school"))
		return
	}

	kind, ok := model.ParseRoomKind(request.Kind)
	if !ok {
		kind = model.RoomKind(request.Kind)
	}

	room, err := h.rooms.CreateRoom(r.Context(), request.CreatorID, request.SchoolID, request.Name, kind, request.Members)
	if err != nil {
		httputils.ResponseAppError(w, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusCreated, CreateRoomResponse{RoomID: room.ID})
}

// @Summary List rooms
// @Description Rooms of the caller's school visible to the user. Secret rooms only for members.
// @ID list-rooms
// @Tags rooms
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param userId query string false "User ID, defaults to the caller"
// @Success 200 {object} []model.RoomSummary
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /rooms [get]
func (h *RoomHandler) listRooms(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = id.UserID
	}
	if userID != id.UserID {
		httputils.ResponseAppError(w, apperr.Forbidden("cannot list rooms of another user"))
		return
	}

	summaries, err := h.rooms.ListRoomSummaries(r.Context(), userID, id.SchoolID)
	if err != nil {
		httputils.ResponseAppError(w, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, summaries)
}

// @Summary Get messages
// @Description Room history in ascending sequence order
// @ID get-messages
// @Tags messages
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Room ID"
// @Param before query int false "Only messages with sequence below this value"
// @Param limit query int false "Page size, default 50, max 200"
// @Success 200 {object} []model.ChatMessage
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /rooms/{id}/messages [get]
func (h *RoomHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	if err := h.authorize(r, roomID); err != nil {
		httputils.ResponseAppError(w, err)
		return
	}

	q := r.URL.Query()
	before, err := parseUint(q.Get("before"))
	if err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "before must be a non-negative integer")
		return
	}
	limit, err := parseUint(q.Get("limit"))
	if err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	messages, err := h.messages.History(r.Context(), roomID, before, int(min(limit, service.MaxHistoryLimit)))
	if err != nil {
		httputils.ResponseAppError(w, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, messages)
}

type postMessageRequest struct {
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

// @Summary Post message
// @Description Append a message to the room and broadcast it to live connections
// @ID post-message
// @Tags messages
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Room ID"
// @Param messageData body postMessageRequest true "Message"
// @Success 201 {object} model.ChatMessage
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /rooms/{id}/messages [post]
func (h *RoomHandler) postMessage(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	roomID := mux.Vars(r)["id"]

	var request postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	r.Body.Close()

	if err := h.authorize(r, roomID); err != nil {
		httputils.ResponseAppError(w, err)
		return
	}

	msg, err := h.messages.Append(r.Context(), roomID, id.UserID, id.DisplayName, request.Body, request.Attachments)
	if err != nil {
		httputils.ResponseAppError(w, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusCreated, msg)
}

// authorize пускает к комнате только участников
func (h *RoomHandler) authorize(r *http.Request, roomID string) error {
	id, _ := IdentityFrom(r.Context())

	ok, err := h.rooms.IsMember(r.Context(), roomID, id.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("user %s is not a member of room %s", id.UserID, roomID)
	}

	return nil
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
