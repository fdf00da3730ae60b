package model

import "time"

// ChatMessage сообщение комнаты. SenderName денормализовано на момент записи.
type ChatMessage struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	RoomID      string    `json:"roomId" gorm:"size:36;not null;uniqueIndex:idx_messages_room_seq,priority:1"`
	SenderID    string    `json:"senderId" gorm:"size:64;not null"`
	SenderName  string    `json:"senderName"`
	Body        string    `json:"body"`
	Attachments []string  `json:"attachments" gorm:"serializer:json"`
	Sequence    uint64    `json:"sequence" gorm:"not null;uniqueIndex:idx_messages_room_seq,priority:2"`
	CreatedAt   time.Time `json:"createdAt"`
}
