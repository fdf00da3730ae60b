package service

import (
	"context"

	"tush00nka/schoolconnect_chat/internal/model"
)

type RoomService interface {
	CreateRoom(ctx context.Context, creatorID, schoolID, name string, kind model.RoomKind, initialMembers []string) (*model.ChatRoom, error)
	GetRoom(ctx context.Context, roomID string) (*model.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID, schoolID string) ([]model.ChatRoom, error)
	ListRoomSummaries(ctx context.Context, userID, schoolID string) ([]model.RoomSummary, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	AddMember(ctx context.Context, roomID, userID string) error
	Enroll(ctx context.Context, userID, schoolID, displayName string) error
}

// MessageService журнал сообщений комнат
type MessageService interface {
	Append(ctx context.Context, roomID, senderID, senderName, body string, attachments []string) (*model.ChatMessage, error)
	History(ctx context.Context, roomID string, beforeSequence uint64, limit int) ([]model.ChatMessage, error)
}

// Publisher получает каждое сообщение после коммита, строго в порядке sequence комнаты.
// Publish не должен блокироваться.
type Publisher interface {
	Publish(msg model.ChatMessage)
}
