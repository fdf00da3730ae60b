package repository

import (
	"context"
	"errors"
	"fmt"

	"tush00nka/schoolconnect_chat/internal/model"
	"tush00nka/schoolconnect_chat/internal/pkg/apperr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoomRepository interface {
	Create(ctx context.Context, room *model.ChatRoom, memberIDs []string) error
	GetByID(ctx context.Context, roomID string) (*model.ChatRoom, error)
	ListForUser(ctx context.Context, userID, schoolID string) ([]model.ChatRoom, error)
	AddMember(ctx context.Context, roomID, userID string) error
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	CountMembers(ctx context.Context, roomID string) (int64, error)
}

type roomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

// Create сохраняет комнату и её участников в одной транзакции
func (r *roomRepository) Create(ctx context.Context, room *model.ChatRoom, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(room).Error; err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}

		if len(memberIDs) == 0 {
			return nil
		}

		members := make([]model.RoomMember, 0, len(memberIDs))
		for _, userID := range memberIDs {
			members = append(members, model.RoomMember{RoomID: room.ID, UserID: userID})
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
			return fmt.Errorf("failed to add room members: %w", err)
		}
		room.Members = members

		return nil
	})
}

func (r *roomRepository) GetByID(ctx context.Context, roomID string) (*model.ChatRoom, error) {
	var room model.ChatRoom
	err := r.db.WithContext(ctx).Preload("Members").Where("id = ?", roomID).Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("room %s", roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

// ListForUser школьные комнаты школы и группы, где пользователь состоит явно
func (r *roomRepository) ListForUser(ctx context.Context, userID, schoolID string) ([]model.ChatRoom, error) {
	memberOf := r.db.Model(&model.RoomMember{}).Select("room_id").Where("user_id = ?", userID)

	var rooms []model.ChatRoom
	err := r.db.WithContext(ctx).
		Where("school_id = ?", schoolID).
		Where(r.db.Where("kind = ?", model.RoomKindSchool).Or("id IN (?)", memberOf)).
		Order("created_at DESC").
		Order("id ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	return rooms, nil
}

// AddMember идемпотентно добавляет участника
func (r *roomRepository) AddMember(ctx context.Context, roomID, userID string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ChatRoom{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}
	if count == 0 {
		return apperr.NotFound("room %s", roomID)
	}

	member := model.RoomMember{RoomID: roomID, UserID: userID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

func (r *roomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

func (r *roomRepository) CountMembers(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.RoomMember{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}
