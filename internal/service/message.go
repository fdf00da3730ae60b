package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"tush00nka/schoolconnect_chat/internal/model"
	"tush00nka/schoolconnect_chat/internal/pkg/apperr"
	"tush00nka/schoolconnect_chat/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
	MaxBodyLength       = 4000
	MaxAttachments      = 10
)

// messageService реализация MessageService
type messageService struct {
	messages  repository.MessageRepository
	cache     repository.HistoryCache
	publisher Publisher
	locks     *roomLocks
	now       func() time.Time
}

// NewMessageService создает журнал сообщений. publisher может быть nil.
func NewMessageService(
	messages repository.MessageRepository,
	cache repository.HistoryCache,
	publisher Publisher,
) MessageService {
	if cache == nil {
		cache = repository.NewHistoryCache(nil, 0)
	}
	return &messageService{
		messages:  messages,
		cache:     cache,
		publisher: publisher,
		locks:     newRoomLocks(),
		now:       time.Now,
	}
}

// Append проверяет сообщение, назначает sequence и отдает его publisher.
// Проверка выполняется до записи, поэтому отклоненное сообщение не расходует номер.
func (s *messageService) Append(
	ctx context.Context,
	roomID, senderID, senderName, body string,
	attachments []string,
) (*model.ChatMessage, error) {
	if err := validateMessage(roomID, senderID, body, attachments); err != nil {
		return nil, err
	}

	if strings.TrimSpace(senderName) == "" {
		senderName = senderID
	}

	msg := &model.ChatMessage{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		SenderID:    senderID,
		SenderName:  senderName,
		Body:        body,
		Attachments: append([]string{}, attachments...),
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	}

	unlock := s.locks.lock(roomID)
	if err := s.messages.Append(ctx, msg); err != nil {
		unlock()
		return nil, err
	}
	// Publish под мьютексом комнаты: порядок публикации = порядок sequence
	if s.publisher != nil {
		s.publisher.Publish(*msg)
	}
	unlock()

	if err := s.cache.Put(ctx, *msg); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to cache message")
	}

	return msg, nil
}

func validateMessage(roomID, senderID, body string, attachments []string) error {
	if roomID == "" {
		return apperr.Validation("roomId cannot be empty")
	}
	if senderID == "" {
		return apperr.Validation("senderId cannot be empty")
	}
	if strings.TrimSpace(body) == "" && len(attachments) == 0 {
		return apperr.Validation("message must have a body or attachments")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return apperr.Validation("message body exceeds %d characters", MaxBodyLength)
	}
	if len(attachments) > MaxAttachments {
		return apperr.Validation("at most %d attachments are allowed", MaxAttachments)
	}
	for _, url := range attachments {
		if strings.TrimSpace(url) == "" {
			return apperr.Validation("attachment url cannot be empty")
		}
	}
	return nil
}

// History возвращает страницу истории по возрастанию sequence.
// Кеш используется, только если страница в нем полная и без пропусков.
func (s *messageService) History(ctx context.Context, roomID string, beforeSequence uint64, limit int) ([]model.ChatMessage, error) {
	if roomID == "" {
		return nil, apperr.Validation("roomId cannot be empty")
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	last, err := s.messages.LastSequence(ctx, roomID)
	if err != nil {
		return nil, err
	}

	before := beforeSequence
	if before == 0 || before > last+1 {
		before = last + 1
	}
	if before <= 1 {
		return []model.ChatMessage{}, nil
	}

	cached, err := s.cache.Range(ctx, roomID, before, limit)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("history cache unavailable")
	} else if completePage(cached, before, limit) {
		return cached, nil
	}

	messages, err := s.messages.History(ctx, roomID, before, limit)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, messages...); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to backfill history cache")
	}

	return messages, nil
}

// completePage страница из кеша совпадает с тем, что вернула бы БД:
// заканчивается на before-1, без пропусков, и либо полная, либо начинается с первого сообщения
func completePage(page []model.ChatMessage, before uint64, limit int) bool {
	if len(page) == 0 || page[len(page)-1].Sequence != before-1 {
		return false
	}
	for i := 1; i < len(page); i++ {
		if page[i].Sequence != page[i-1].Sequence+1 {
			return false
		}
	}
	return len(page) == limit || page[0].Sequence == 1
}
