package service

import (
	"context"
	"strings"
	"time"

	"tush00nka/schoolconnect_chat/internal/model"
	"tush00nka/schoolconnect_chat/internal/pkg/apperr"
	"tush00nka/schoolconnect_chat/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// roomService реализация RoomService
type roomService struct {
	rooms     repository.RoomRepository
	directory repository.DirectoryRepository
	policies  map[model.RoomKind]membershipPolicy
	lookups   singleflight.Group // схлопывает одновременные чтения одной комнаты
	now       func() time.Time
}

// NewRoomService создает новый экземпляр RoomService
func NewRoomService(rooms repository.RoomRepository, directory repository.DirectoryRepository) RoomService {
	explicit := explicitMembership{rooms: rooms}
	return &roomService{
		rooms:     rooms,
		directory: directory,
		policies: map[model.RoomKind]membershipPolicy{
			model.RoomKindSchool: schoolMembership{directory: directory},
			model.RoomKindPublic: explicit,
			model.RoomKindSecret: explicit,
		},
		now: time.Now,
	}
}

// CreateRoom создает комнату. Создатель всегда становится участником,
// для школьной комнаты участники не сохраняются.
func (s *roomService) CreateRoom(
	ctx context.Context,
	creatorID, schoolID, name string,
	kind model.RoomKind,
	initialMembers []string,
) (*model.ChatRoom, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("room name cannot be empty")
	}
	if !kind.Valid() {
		return nil, apperr.Validation("invalid room kind %q", kind)
	}

	creatorID = strings.TrimSpace(creatorID)
	schoolID = strings.TrimSpace(schoolID)
	if creatorID == "" {
		return nil, apperr.Validation("creatorId cannot be empty")
	}
	if schoolID == "" {
		return nil, apperr.Validation("schoolId cannot be empty")
	}

	var members []string
	if !kind.ImplicitMembership() {
		members = uniqueMembers(creatorID, initialMembers)
	}

	room := &model.ChatRoom{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		SchoolID:  schoolID,
		CreatorID: creatorID,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	if err := s.rooms.Create(ctx, room, members); err != nil {
		return nil, err
	}

	log.Info().
		Str("room_id", room.ID).
		Str("kind", string(kind)).
		Str("school_id", schoolID).
		Int("members", len(members)).
		Msg("room created")

	return room, nil
}

func uniqueMembers(creatorID string, initial []string) []string {
	seen := map[string]bool{creatorID: true}
	members := []string{creatorID}
	for _, userID := range initial {
		userID = strings.TrimSpace(userID)
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		members = append(members, userID)
	}
	return members
}

// GetRoom возвращает комнату по ID
func (s *roomService) GetRoom(ctx context.Context, roomID string) (*model.ChatRoom, error) {
	if roomID == "" {
		return nil, apperr.Validation("roomId cannot be empty")
	}

	// Поиск общий для всех ожидающих, отмена первого вызывающего его не прерывает
	lookupCtx := context.WithoutCancel(ctx)
	v, err, _ := s.lookups.Do(roomID, func() (any, error) {
		return s.rooms.GetByID(lookupCtx, roomID)
	})
	if err != nil {
		return nil, err
	}

	// Копия, чтобы вызывающие не делили одну структуру
	room := *v.(*model.ChatRoom)
	return &room, nil
}

// ListRoomsForUser комнаты школы, видимые пользователю
func (s *roomService) ListRoomsForUser(ctx context.Context, userID, schoolID string) ([]model.ChatRoom, error) {
	if userID == "" {
		return nil, apperr.Validation("userId cannot be empty")
	}
	if schoolID == "" {
		return []model.ChatRoom{}, nil
	}

	return s.rooms.ListForUser(ctx, userID, schoolID)
}

// ListRoomSummaries список комнат с числом участников
func (s *roomService) ListRoomSummaries(ctx context.Context, userID, schoolID string) ([]model.RoomSummary, error) {
	rooms, err := s.ListRoomsForUser(ctx, userID, schoolID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.RoomSummary, 0, len(rooms))
	for i := range rooms {
		count, err := s.policy(rooms[i].Kind).memberCount(ctx, &rooms[i])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, model.RoomSummary{
			ID:          rooms[i].ID,
			Name:        rooms[i].Name,
			Kind:        rooms[i].Kind,
			MemberCount: count,
		})
	}

	return summaries, nil
}

// IsMember проверяет членство по стратегии вида комнаты
func (s *roomService) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}

	return s.policy(room.Kind).isMember(ctx, room, userID)
}

// AddMember идемпотентно добавляет участника в групповую комнату
func (s *roomService) AddMember(ctx context.Context, roomID, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperr.Validation("userId cannot be empty")
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Kind.ImplicitMembership() {
		return apperr.Validation("membership of school rooms is implicit")
	}

	return s.rooms.AddMember(ctx, roomID, userID)
}

// Enroll обновляет справочник школ данными identity
func (s *roomService) Enroll(ctx context.Context, userID, schoolID, displayName string) error {
	if userID == "" || schoolID == "" {
		return apperr.Validation("userId and schoolId are required")
	}

	return s.directory.Upsert(ctx, &model.SchoolMember{
		UserID:      userID,
		SchoolID:    schoolID,
		DisplayName: displayName,
	})
}

func (s *roomService) policy(kind model.RoomKind) membershipPolicy {
	if p, ok := s.policies[kind]; ok {
		return p
	}
	// Неизвестный вид из БД трактуем как закрытую группу
	return s.policies[model.RoomKindSecret]
}
