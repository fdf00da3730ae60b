package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tush00nka/schoolconnect_chat/internal/model"

	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// HubOptions опции хаба
type HubOptions struct {
	EnableMetrics   bool
	CleanupInterval time.Duration
}

// Hub рассылает сообщения комнат их живым соединениям
type Hub struct {
	registry     *Registry
	options      HubOptions
	metrics      *Metrics
	shutdownOnce sync.Once
}

// HubStats статистика хаба
type HubStats struct {
	Rooms              int   `json:"rooms"`
	Connections        int   `json:"connections"`
	ActiveConnections  int64 `json:"activeConnections"`
	MessagesPublished  int64 `json:"messagesPublished"`
	FramesDelivered    int64 `json:"framesDelivered"`
	ConnectionsEvicted int64 `json:"connectionsEvicted"`
}

// Metrics метрики
type Metrics struct {
	MessagesPublished  atomic.Int64
	FramesDelivered    atomic.Int64
	ConnectionsEvicted atomic.Int64
	Connections        atomic.Int64 // зарегистрированные сейчас
}

// NewHub создает новый хаб
func NewHub(checker MembershipChecker, options ...HubOptions) *Hub {
	opts := HubOptions{
		EnableMetrics:   true,
		CleanupInterval: 5 * time.Minute,
	}

	if len(options) > 0 {
		opts = options[0]
	}

	hub := &Hub{
		registry: NewRegistry(checker, opts.CleanupInterval),
		options:  opts,
	}

	if opts.EnableMetrics {
		hub.metrics = &Metrics{}
	}

	return hub
}

// Registry реестр соединений хаба
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register регистрирует соединение в комнате
func (h *Hub) Register(ctx context.Context, roomID, userID string, client *Client) error {
	if err := h.registry.Register(ctx, roomID, userID, client); err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.Connections.Inc()
	}

	return nil
}

// Unregister снимает соединение с комнаты
func (h *Hub) Unregister(roomID string, client *Client) {
	if h.registry.Unregister(roomID, client) && h.metrics != nil {
		h.metrics.Connections.Dec()
	}
}

// Publish отдает сообщение каждому соединению комнаты ровно один раз.
// Не блокируется: переполненное соединение закрывается и снимается с комнаты.
func (h *Hub) Publish(msg model.ChatMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("room_id", msg.RoomID).Msg("hub: failed to marshal message")
		return
	}

	if h.metrics != nil {
		h.metrics.MessagesPublished.Inc()
	}

	for _, client := range h.registry.ConnectionsFor(msg.RoomID) {
		if client.offer(msg.Sequence, data) {
			if h.metrics != nil {
				h.metrics.FramesDelivered.Inc()
			}
			continue
		}

		h.evict(msg.RoomID, client)
	}
}

// evict закрывает медленного или закрытого получателя
func (h *Hub) evict(roomID string, client *Client) {
	wasOpen := !client.IsClosed()
	client.Close()
	h.Unregister(roomID, client)

	if wasOpen {
		if h.metrics != nil {
			h.metrics.ConnectionsEvicted.Inc()
		}
		log.Warn().
			Str("room_id", roomID).
			Str("client_id", client.ID).
			Str("user_id", client.UserID).
			Msg("hub: send queue overflow, connection closed")
	}
}

// GetStats возвращает статистику хаба
func (h *Hub) GetStats() HubStats {
	reg := h.registry.Stats()
	stats := HubStats{
		Rooms:       reg.Rooms,
		Connections: reg.Connections,
	}

	if h.metrics != nil {
		stats.ActiveConnections = h.metrics.Connections.Load()
		stats.MessagesPublished = h.metrics.MessagesPublished.Load()
		stats.FramesDelivered = h.metrics.FramesDelivered.Load()
		stats.ConnectionsEvicted = h.metrics.ConnectionsEvicted.Load()
	}

	return stats
}

// Shutdown закрывает все соединения и останавливает сборщик
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.registry.Stop()

		clients := h.registry.drain()
		for _, client := range clients {
			client.Close()
		}
		if h.metrics != nil {
			h.metrics.Connections.Sub(int64(len(clients)))
		}

		log.Info().Int("connections", len(clients)).Msg("hub stopped")
	})
}
