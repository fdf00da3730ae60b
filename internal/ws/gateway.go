package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tush00nka/schoolconnect_chat/internal/pkg/apperr"
	"tush00nka/schoolconnect_chat/internal/service"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Identity проверенный пользователь соединения
type Identity struct {
	UserID      string
	DisplayName string
}

// GatewayOptions опции шлюза
type GatewayOptions struct {
	SendBuffer     int
	HistoryReplay  int // сколько последних сообщений отправить при подключении
	RateLimit      int // входящих фреймов в секунду, 0 - по умолчанию
	AllowedOrigins []string
	Development    bool
}

// Gateway ведет websocket соединение через Connecting -> Authorized -> Streaming -> Closed
type Gateway struct {
	hub      *Hub
	messages service.MessageService
	upgrader *websocket.Upgrader
	options  GatewayOptions
}

// NewGateway создает шлюз
func NewGateway(hub *Hub, messages service.MessageService, options GatewayOptions) *Gateway {
	return &Gateway{
		hub:      hub,
		messages: messages,
		upgrader: NewUpgrader(options.AllowedOrigins, options.Development),
		options:  options,
	}
}

// Serve обслуживает соединение до закрытия. Блокируется.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, roomID string, id Identity) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		log.Debug().Err(err).Str("room_id", roomID).Msg("websocket upgrade failed")
		return
	}

	// Незавершенный Append не должен отменяться вместе с запросом
	ctx := context.WithoutCancel(r.Context())
	client := NewClient(ctx, conn, roomID, id.UserID, id.DisplayName, g.options.SendBuffer)
	if g.options.RateLimit > 0 {
		client.SetRateLimit(g.options.RateLimit)
	}

	logger := log.With().
		Str("room_id", roomID).
		Str("user_id", id.UserID).
		Str("client_id", client.ID).
		Logger()

	if err := g.hub.Register(ctx, roomID, id.UserID, client); err != nil {
		g.refuse(client, err)
		logger.Info().Err(err).Msg("connection refused")
		return
	}
	client.setState(StateAuthorized)

	defer func() {
		g.hub.Unregister(roomID, client)
		client.Close()
		logger.Debug().Msg("connection closed")
	}()

	if err := g.replay(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("join replay failed")
		return
	}

	client.setState(StateStreaming)
	logger.Debug().Msg("connection streaming")

	go func() {
		if err := client.WritePump(); err != nil {
			logger.Debug().Err(err).Msg("write pump stopped")
		}
	}()

	client.ReadPump(func(c *Client, frame InFrame) {
		g.handleIncoming(ctx, c, frame)
	})
}

// refuse отправляет фрейм ошибки и закрывает соединение
func (g *Gateway) refuse(client *Client, cause error) {
	code := errorCode(cause)
	closeCode := websocket.ClosePolicyViolation
	if code == ErrorCodeInternal {
		closeCode = websocket.CloseInternalServerErr
	}

	// Без фрейма ошибки клиент все равно получает код закрытия
	var writeErr error
	if data, err := json.Marshal(ErrorFrame{Type: "error", Code: code, Message: publicMessage(cause)}); err != nil {
		log.Error().Err(err).Str("client_id", client.ID).Msg("failed to marshal error frame")
	} else {
		writeErr = client.writeFrame(data)
	}
	if writeErr == nil {
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeCode, code),
			time.Now().Add(writeWait))
	}

	client.Close()
}

// replay пишет последние сообщения напрямую, до запуска WritePump.
// Живые фреймы с уже отправленными sequence затем пропускаются.
func (g *Gateway) replay(ctx context.Context, client *Client) error {
	if g.options.HistoryReplay <= 0 {
		return nil
	}

	history, err := g.messages.History(ctx, client.RoomID, 0, g.options.HistoryReplay)
	if err != nil {
		return err
	}

	for _, msg := range history {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := client.writeFrame(data); err != nil {
			return apperr.Transport(err)
		}
	}

	if len(history) > 0 {
		client.SkipThrough(history[len(history)-1].Sequence)
	}

	return nil
}

func (g *Gateway) handleIncoming(ctx context.Context, c *Client, frame InFrame) {
	if !c.CheckRateLimit() {
		c.SendError(ErrorCodeRateLimited, "too many messages")
		return
	}

	_, err := g.messages.Append(ctx, c.RoomID, c.UserID, c.DisplayName, frame.Body, frame.Attachments)
	if err != nil {
		c.SendError(errorCode(err), publicMessage(err))
		if errorCode(err) == ErrorCodeInternal {
			log.Error().Err(err).Str("room_id", c.RoomID).Msg("append failed")
		}
	}
}

func errorCode(err error) string {
	switch code := apperr.Code(err); code {
	case ErrorCodeForbidden, ErrorCodeValidation, ErrorCodeNotFound:
		return code
	default:
		return ErrorCodeInternal
	}
}

func publicMessage(err error) string {
	if errorCode(err) == ErrorCodeInternal {
		return "internal error"
	}
	return err.Error()
}
