package model

import (
	"strings"
	"time"
)

// RoomKind вид комнаты
type RoomKind string

const (
	RoomKindSchool RoomKind = "school" // вся школа, членство вычисляется
	RoomKindPublic RoomKind = "public" // публичная группа
	RoomKindSecret RoomKind = "secret" // закрытая группа, список участников исчерпывающий
)

// ParseRoomKind разбирает вид комнаты, допускает синонимы из клиента
func ParseRoomKind(s string) (RoomKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "school", "school-wide", "school_wide":
		return RoomKindSchool, true
	case "public", "public-group", "public_group":
		return RoomKindPublic, true
	case "secret", "secret-group", "secret_group":
		return RoomKindSecret, true
	}
	return "", false
}

func (k RoomKind) Valid() bool {
	switch k {
	case RoomKindSchool, RoomKindPublic, RoomKindSecret:
		return true
	}
	return false
}

// ImplicitMembership true для комнат, где членство не хранится
func (k RoomKind) ImplicitMembership() bool {
	return k == RoomKindSchool
}

type ChatRoom struct {
	ID           string       `json:"id" gorm:"primaryKey;size:36"`
	Name         string       `json:"name" gorm:"not null"`
	Kind         RoomKind     `json:"kind" gorm:"size:16;not null;index:idx_rooms_school_kind,priority:2"`
	SchoolID     string       `json:"schoolId" gorm:"size:64;not null;index:idx_rooms_school_kind,priority:1"`
	CreatorID    string       `json:"creatorId" gorm:"size:64;not null"`
	Members      []RoomMember `json:"-" gorm:"foreignKey:RoomID"`
	LastSequence uint64       `json:"-" gorm:"not null;default:0"`
	CreatedAt    time.Time    `json:"createdAt" gorm:"index"`
}

// MemberIDs идентификаторы явных участников
func (r *ChatRoom) MemberIDs() []string {
	ids := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

type RoomMember struct {
	RoomID    string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"primaryKey;size:64;index"`
	CreatedAt time.Time
}

// RoomSummary элемент списка комнат
type RoomSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Kind        RoomKind `json:"kind"`
	MemberCount int64    `json:"memberCount"`
}
