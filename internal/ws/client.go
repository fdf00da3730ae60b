package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// Константы
const (
	writeWait             = 10 * time.Second
	pongWait              = 60 * time.Second
	pingPeriod            = (pongWait * 9) / 10
	maxMessageSize        = 64 * 1024 // 64KB
	defaultSendBufferSize = 256
	defaultRateInterval   = 100 * time.Millisecond // 10 сообщений в секунду
)

// State состояние соединения
type State int32

const (
	StateConnecting State = iota
	StateAuthorized
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorized:
		return "authorized"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Код ошибки во фрейме
const (
	ErrorCodeForbidden   = "forbidden"
	ErrorCodeValidation  = "validation"
	ErrorCodeNotFound    = "not_found"
	ErrorCodeRateLimited = "rate_limited"
	ErrorCodeBadFrame    = "bad_frame"
	ErrorCodeInternal    = "internal"
)

// ErrorFrame исходящий фрейм с ошибкой
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// InFrame входящий фрейм
type InFrame struct {
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`
}

// outbound элемент очереди отправки. seq == 0 у служебных фреймов.
type outbound struct {
	seq  uint64
	data []byte
}

// Client представляет WebSocket соединение
type Client struct {
	ID          string
	UserID      string
	DisplayName string
	RoomID      string
	ctx         context.Context
	cancel      context.CancelFunc
	conn        *websocket.Conn
	send        chan outbound
	mu          sync.RWMutex
	isClosed    bool
	rateLimit   *RateLimiter
	skipThrough atomic.Uint64
	state       atomic.Int32
}

// RateLimiter ограничитель частоты сообщений
type RateLimiter struct {
	mu       sync.Mutex
	lastSent time.Time
	interval time.Duration
}

// NewRateLimiter создает новый ограничитель
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		lastSent: time.Now().Add(-interval),
	}
}

// Allow проверяет, можно ли отправить сообщение
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSent) >= rl.interval {
		rl.lastSent = now
		return true
	}

	return false
}

// NewClient создает нового клиента. conn может быть nil (тесты рассылки).
func NewClient(ctx context.Context, conn *websocket.Conn, roomID, userID, displayName string, sendBuffer int) *Client {
	ctx, cancel := context.WithCancel(ctx)
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBufferSize
	}

	return &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		RoomID:      roomID,
		ctx:         ctx,
		cancel:      cancel,
		conn:        conn,
		send:        make(chan outbound, sendBuffer),
		rateLimit:   NewRateLimiter(defaultRateInterval),
	}
}

// SetRateLimit устанавливает лимит на частоту сообщений
func (c *Client) SetRateLimit(limitPerSecond int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	interval := time.Second / time.Duration(limitPerSecond)
	c.rateLimit = NewRateLimiter(interval)
}

// CheckRateLimit проверяет лимит частоты
func (c *Client) CheckRateLimit() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.rateLimit.Allow()
}

// State текущее состояние соединения
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// SkipThrough живые фреймы с sequence <= seq уже отправлены при подключении
func (c *Client) SkipThrough(seq uint64) {
	c.skipThrough.Store(seq)
}

// Done закрывается вместе с клиентом
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// ReadPump читает фреймы от клиента, пока соединение живо
func (c *Client) ReadPump(handleIncoming func(*Client, InFrame)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("client read error")
			}
			return
		}

		var frame InFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.SendError(ErrorCodeBadFrame, "frame must be a JSON object {body, attachments}")
			continue
		}

		handleIncoming(c, frame)
	}
}

// WritePump отправляет фреймы из очереди, по одному сообщению на фрейм
func (c *Client) WritePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return nil
		case out, ok := <-c.send:
			if !ok {
				// Канал закрыт
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}

			if out.seq != 0 && out.seq <= c.skipThrough.Load() {
				continue
			}

			if err := c.writeFrame(out.data); err != nil {
				return err
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// writeFrame пишет напрямую в соединение; до запуска WritePump
func (c *Client) writeFrame(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// offer ставит фрейм в очередь без блокировки. false - очередь полна или клиент закрыт.
func (c *Client) offer(seq uint64, data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.isClosed {
		return false
	}

	select {
	case c.send <- outbound{seq: seq, data: data}:
		return true
	default:
		return false
	}
}

// SendJSON отправляет служебный JSON фрейм
func (c *Client) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("client marshal error")
		return false
	}

	return c.SendRaw(data)
}

// SendRaw отправляет сырые данные
func (c *Client) SendRaw(data []byte) bool {
	return c.offer(0, data)
}

// SendError отправляет фрейм ошибки только этому соединению
func (c *Client) SendError(code, message string) bool {
	return c.SendJSON(ErrorFrame{Type: "error", Code: code, Message: message})
}

// Close закрывает соединение и освобождает очередь
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return
	}

	c.isClosed = true
	c.setState(StateClosed)
	c.cancel()
	close(c.send)
	if c.conn != nil {
		c.conn.Close()
	}
}

// IsClosed проверяет, закрыто ли соединение
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isClosed
}
