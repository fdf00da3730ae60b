package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"tush00nka/schoolconnect_chat/internal/pkg/apperr"
)

// ErrRegistryClosed реестр остановлен вместе с хабом
var ErrRegistryClosed = errors.New("connection registry is closed")

// MembershipChecker проверка членства при регистрации
type MembershipChecker interface {
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// RegistryStats статистика реестра
type RegistryStats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Registry живые соединения по комнатам. Глобальный мьютекс держится
// только на поиск набора, у каждого набора своя блокировка.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*roomSet
	checker  MembershipChecker
	closed   bool
	shutdown chan struct{}
	stopOnce sync.Once
}

type roomSet struct {
	mu    sync.RWMutex
	conns map[*Client]struct{}
	dead  bool // набор удален из реестра, регистрация должна взять новый
}

// NewRegistry создает реестр. Пустые наборы удаляются раз в cleanupInterval.
func NewRegistry(checker MembershipChecker, cleanupInterval time.Duration) *Registry {
	r := &Registry{
		rooms:    make(map[string]*roomSet),
		checker:  checker,
		shutdown: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go r.cleanupLoop(cleanupInterval)
	}

	return r
}

// Register добавляет соединение в комнату, если пользователь в ней состоит
func (r *Registry) Register(ctx context.Context, roomID, userID string, client *Client) error {
	ok, err := r.checker.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("user %s is not a member of room %s", userID, roomID)
	}

	for {
		set := r.getOrCreate(roomID)
		if set == nil {
			return apperr.Transport(ErrRegistryClosed)
		}

		set.mu.Lock()
		if set.dead {
			// Набор удалили между поиском и блокировкой
			set.mu.Unlock()
			continue
		}
		set.conns[client] = struct{}{}
		set.mu.Unlock()

		return nil
	}
}

// getOrCreate возвращает nil после drain
func (r *Registry) getOrCreate(roomID string) *roomSet {
	r.mu.RLock()
	set, exists := r.rooms[roomID]
	closed := r.closed
	r.mu.RUnlock()

	if closed {
		return nil
	}
	if exists {
		return set
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	// Двойная проверка
	if set, exists := r.rooms[roomID]; exists {
		return set
	}

	set = &roomSet{conns: make(map[*Client]struct{})}
	r.rooms[roomID] = set

	return set
}

// Unregister удаляет соединение. Повторный вызов ничего не делает.
func (r *Registry) Unregister(roomID string, client *Client) bool {
	r.mu.RLock()
	set, exists := r.rooms[roomID]
	r.mu.RUnlock()

	if !exists {
		return false
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	if _, ok := set.conns[client]; !ok {
		return false
	}
	delete(set.conns, client)

	return true
}

// ConnectionsFor снимок живых соединений комнаты
func (r *Registry) ConnectionsFor(roomID string) []*Client {
	r.mu.RLock()
	set, exists := r.rooms[roomID]
	r.mu.RUnlock()

	if !exists {
		return nil
	}

	set.mu.RLock()
	defer set.mu.RUnlock()

	clients := make([]*Client, 0, len(set.conns))
	for client := range set.conns {
		clients = append(clients, client)
	}

	return clients
}

// Stats возвращает число комнат и соединений
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{}
	for _, set := range r.rooms {
		set.mu.RLock()
		if n := len(set.conns); n > 0 {
			stats.Rooms++
			stats.Connections += n
		}
		set.mu.RUnlock()
	}

	return stats
}

// drain закрывает реестр, удаляет все наборы и возвращает их соединения
func (r *Registry) drain() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	var clients []*Client
	for roomID, set := range r.rooms {
		set.mu.Lock()
		for client := range set.conns {
			clients = append(clients, client)
		}
		set.conns = make(map[*Client]struct{})
		set.dead = true
		set.mu.Unlock()
		delete(r.rooms, roomID)
	}

	return clients
}

// Stop останавливает сборщик
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.shutdown) })
}

// cleanupLoop периодически очищает пустые комнаты
func (r *Registry) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.shutdown:
			return
		case <-ticker.C:
			r.cleanupEmptyRooms()
		}
	}
}

// cleanupEmptyRooms удаляет пустые наборы и помечает их мертвыми
func (r *Registry) cleanupEmptyRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for roomID, set := range r.rooms {
		set.mu.Lock()
		if len(set.conns) == 0 {
			set.dead = true
			delete(r.rooms, roomID)
			removed++
		}
		set.mu.Unlock()
	}

	return removed
}
