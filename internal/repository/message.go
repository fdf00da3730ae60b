package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"tush00nka/schoolconnect_chat/internal/model"
	"tush00nka/schoolconnect_chat/internal/pkg/apperr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	Append(ctx context.Context, msg *model.ChatMessage) error
	History(ctx context.Context, roomID string, beforeSequence uint64, limit int) ([]model.ChatMessage, error)
	LastSequence(ctx context.Context, roomID string) (uint64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Append назначает следующий номер в комнате и пишет сообщение.
// Счётчик хранится в строке комнаты, строка блокируется до конца транзакции.
func (r *messageRepository) Append(ctx context.Context, msg *model.ChatMessage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room model.ChatRoom
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "last_sequence").
			Where("id = ?", msg.RoomID).
			Take(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("room %s", msg.RoomID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock room: %w", err)
		}

		next := room.LastSequence + 1
		if err := tx.Model(&model.ChatRoom{}).Where("id = ?", room.ID).Update("last_sequence", next).Error; err != nil {
			return fmt.Errorf("failed to advance sequence: %w", err)
		}

		msg.Sequence = next
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}

		return nil
	})
	if err != nil {
		msg.Sequence = 0
		return err
	}

	return nil
}

// History до limit сообщений с sequence < beforeSequence (0 - без границы), по возрастанию
func (r *messageRepository) History(ctx context.Context, roomID string, beforeSequence uint64, limit int) ([]model.ChatMessage, error) {
	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if beforeSequence > 0 {
		query = query.Where("sequence < ?", beforeSequence)
	}

	var messages []model.ChatMessage
	if err := query.Order("sequence DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	slices.Reverse(messages)
	for i := range messages {
		if messages[i].Attachments == nil {
			messages[i].Attachments = []string{}
		}
	}

	return messages, nil
}

func (r *messageRepository) LastSequence(ctx context.Context, roomID string) (uint64, error) {
	var room model.ChatRoom
	err := r.db.WithContext(ctx).Select("id", "last_sequence").Where("id = ?", roomID).Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.NotFound("room %s", roomID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last sequence: %w", err)
	}
	return room.LastSequence, nil
}
