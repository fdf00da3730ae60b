package service

import (
	"context"

	"tush00nka/schoolconnect_chat/internal/model"
	"tush00nka/schoolconnect_chat/internal/repository"
)

// membershipPolicy стратегия проверки членства для вида комнаты
type membershipPolicy interface {
	isMember(ctx context.Context, room *model.ChatRoom, userID string) (bool, error)
	memberCount(ctx context.Context, room *model.ChatRoom) (int64, error)
}

// explicitMembership список участников хранится и является исчерпывающим
type explicitMembership struct {
	rooms repository.RoomRepository
}

func (p explicitMembership) isMember(ctx context.Context, room *model.ChatRoom, userID string) (bool, error) {
	return p.rooms.IsMember(ctx, room.ID, userID)
}

func (p explicitMembership) memberCount(ctx context.Context, room *model.ChatRoom) (int64, error) {
	return p.rooms.CountMembers(ctx, room.ID)
}

// schoolMembership участник - любой пользователь школы комнаты
type schoolMembership struct {
	directory repository.DirectoryRepository
}

func (p schoolMembership) isMember(ctx context.Context, room *model.ChatRoom, userID string) (bool, error) {
	schoolID, ok, err := p.directory.SchoolOf(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	return schoolID == room.SchoolID, nil
}

func (p schoolMembership) memberCount(ctx context.Context, room *model.ChatRoom) (int64, error) {
	return p.directory.CountSchool(ctx, room.SchoolID)
}
