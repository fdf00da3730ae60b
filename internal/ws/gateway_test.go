package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tush00nka/schoolconnect_chat/internal/model"
	"tush00nka/schoolconnect_chat/internal/repository"
	"tush00nka/schoolconnect_chat/internal/service"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type gatewayFixture struct {
	db       *gorm.DB
	hub      *Hub
	rooms    service.RoomService
	messages service.MessageService
	server   *httptest.Server
}

func newGatewayFixture(t *testing.T, replay int) *gatewayFixture {
	t.Helper()

	db, err := repository.NewSQLiteDB(":memory:", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	rooms := service.NewRoomService(repository.NewRoomRepository(db), repository.NewDirectoryRepository(db))
	hub := NewHub(rooms, HubOptions{EnableMetrics: true})
	messages := service.NewMessageService(repository.NewMessageRepository(db), nil, hub)
	gw := NewGateway(hub, messages, GatewayOptions{
		SendBuffer:    16,
		HistoryReplay: replay,
		RateLimit:     1000,
		Development:   true,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gw.Serve(w, r, q.Get("room"), Identity{UserID: q.Get("user"), DisplayName: q.Get("name")})
	}))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	t.Cleanup(server.Close)
	t.Cleanup(hub.Shutdown)

	return &gatewayFixture{db: db, hub: hub, rooms: rooms, messages: messages, server: server}
}

func (f *gatewayFixture) dial(t *testing.T, roomID, userID string) *websocket.Conn {
	t.Helper()

	q := url.Values{"room": {roomID}, "user": {userID}, "name": {userID}}
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?" + q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func (f *gatewayFixture) waitConnections(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.hub.GetStats().Connections == n
	}, 2*time.Second, 10*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) model.ChatMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg model.ChatMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readError(t *testing.T, conn *websocket.Conn) ErrorFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame ErrorFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected frame %s", data)
}

func TestGatewayBothMembersReceiveExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t, 0)

	room, err := f.rooms.CreateRoom(ctx, "A", "plano_east", "Algebra Study", model.RoomKindPublic, []string{"A", "B"})
	require.NoError(t, err)

	a := f.dial(t, room.ID, "A")
	b := f.dial(t, room.ID, "B")
	f.waitConnections(t, 2)

	require.NoError(t, a.WriteJSON(InFrame{Body: "test"}))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, "test", msg.Body)
		assert.Equal(t, "A", msg.SenderID)
		assert.Equal(t, room.ID, msg.RoomID)
		assert.EqualValues(t, 1, msg.Sequence)
		assert.Equal(t, []string{}, msg.Attachments)
	}
	for _, conn := range []*websocket.Conn{a, b} {
		assertSilent(t, conn)
	}
}

func TestGatewayRefusesNonMember(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t, 0)

	room, err := f.rooms.CreateRoom(ctx, "A", "plano_east", "Algebra Study", model.RoomKindPublic, []string{"A", "B"})
	require.NoError(t, err)

	c := f.dial(t, room.ID, "C")

	frame := readError(t, c)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, ErrorCodeForbidden, frame.Code)

	_, _, err = c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)

	assert.Zero(t, f.hub.GetStats().Connections)

	var count int64
	require.NoError(t, f.db.Model(&model.ChatMessage{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGatewayUnknownRoom(t *testing.T) {
	f := newGatewayFixture(t, 0)

	conn := f.dial(t, "no-such-room", "A")

	frame := readError(t, conn)
	assert.Equal(t, ErrorCodeNotFound, frame.Code)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestGatewayRefusesAfterShutdown(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t, 0)

	room, err := f.rooms.CreateRoom(ctx, "A", "plano_east", "Algebra Study", model.RoomKindPublic, []string{"A"})
	require.NoError(t, err)

	f.hub.Shutdown()
	conn := f.dial(t, room.ID, "A")

	frame := readError(t, conn)
	assert.Equal(t, ErrorCodeInternal, frame.Code)
	assert.Equal(t, "internal error", frame.Message)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "got %v", err)
	assert.Zero(t, f.hub.GetStats().ActiveConnections)
}

func TestGatewayJoinReplayThenLive(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t, 2)

	room, err := f.rooms.CreateRoom(ctx, "A", "katy", "Chem", model.RoomKindSecret, []string{"B"})
	require.NoError(t, err)
	for _, body := range []string{"one", "two", "three"} {
		_, err := f.messages.Append(ctx, room.ID, "A", "Ann", body, nil)
		require.NoError(t, err)
	}

	b := f.dial(t, room.ID, "B")

	first := readMessage(t, b)
	second := readMessage(t, b)
	assert.EqualValues(t, 2, first.Sequence)
	assert.EqualValues(t, 3, second.Sequence)
	assert.Equal(t, "three", second.Body)

	f.waitConnections(t, 1)
	_, err = f.messages.Append(ctx, room.ID, "A", "Ann", "four", nil)
	require.NoError(t, err)

	live := readMessage(t, b)
	assert.EqualValues(t, 4, live.Sequence)
	assertSilent(t, b)
}

func TestGatewayRejectedFrameOnlyToSender(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t, 0)

	room, err := f.rooms.CreateRoom(ctx, "A", "utd", "CS", model.RoomKindPublic, []string{"B"})
	require.NoError(t, err)

	a := f.dial(t, room.ID, "A")
	b := f.dial(t, room.ID, "B")
	f.waitConnections(t, 2)

	require.NoError(t, a.WriteJSON(InFrame{Body: "   "}))
	frame := readError(t, a)
	assert.Equal(t, ErrorCodeValidation, frame.Code)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, a.WriteJSON(InFrame{Attachments: []string{"https://cdn.example/lab.pdf"}}))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.EqualValues(t, 1, msg.Sequence, "rejected frame consumes no sequence")
		assert.Equal(t, []string{"https://cdn.example/lab.pdf"}, msg.Attachments)
	}
}

func TestGatewayDisconnectUnregisters(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t, 0)

	room, err := f.rooms.CreateRoom(ctx, "A", "rice", "Band", model.RoomKindPublic, nil)
	require.NoError(t, err)

	a := f.dial(t, room.ID, "A")
	f.waitConnections(t, 1)

	require.NoError(t, a.Close())
	f.waitConnections(t, 0)

	_, err = f.messages.Append(ctx, room.ID, "A", "Ann", "still stored", nil)
	require.NoError(t, err)
	history, err := f.messages.History(ctx, room.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
