package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/buconnects/server/config"
	"github.com/buconnects/server/models"
)

type chatServer struct {
	hub *Hub
	db  *gorm.DB
	url string
}

func newChatServer(t *testing.T, mode string, origins []string) *chatServer {
	t.Helper()
	db, err := config.OpenDatabase(sqlite.Open(filepath.Join(t.TempDir(), "chat.db")), "silent")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, config.Migrate(db, models.All()...))

	hub := startHub(t, mode)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", Handler(hub, db, origins))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &chatServer{hub: hub, db: db, url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"}
}

func (s *chatServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	before := s.hub.ClientCount()
	conn, _, err := websocket.DefaultDialer.Dial(s.url+"?userId="+userID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return s.hub.ClientCount() > before }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, data string) {
	t.Helper()
	frame := fmt.Sprintf(`{"event":"send_message","data":%s}`, data)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func read(t *testing.T, conn *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var env struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &env))
	return env.Event, env.Data
}

func TestChatPersistsAndBroadcastsToAll(t *testing.T) {
	s := newChatServer(t, config.ChatDeliveryAll, []string{"*"})
	alice := s.dial(t, "1")
	bob := s.dial(t, "2")
	carol := s.dial(t, "")

	send(t, alice, `{"sender":1,"receiver":2,"message":"hello"}`)

	for _, conn := range []*websocket.Conn{alice, bob, carol} {
		event, data := read(t, conn)
		assert.Equal(t, EventReceiveMessage, event)
		assert.EqualValues(t, 1, data["sender"])
		assert.EqualValues(t, 2, data["receiver"])
		assert.Equal(t, "hello", data["message"])
		assert.EqualValues(t, 1, data["id"])
	}

	var stored models.Message
	require.NoError(t, s.db.First(&stored, 1).Error)
	assert.Equal(t, models.Identifier("1"), stored.Sender)
	assert.Equal(t, models.Identifier("2"), stored.Receiver)
	assert.Equal(t, "hello", stored.Message)
}

func TestChatPreservesSendOrder(t *testing.T) {
	s := newChatServer(t, config.ChatDeliveryAll, []string{"*"})
	alice := s.dial(t, "1")
	bob := s.dial(t, "2")

	for i := 0; i < 5; i++ {
		send(t, alice, fmt.Sprintf(`{"sender":"1","receiver":"2","message":"m%d"}`, i))
	}
	for i := 0; i < 5; i++ {
		_, data := read(t, bob)
		assert.Equal(t, fmt.Sprintf("m%d", i), data["message"])
		assert.EqualValues(t, i+1, data["id"])
	}
}

func TestChatDropsMalformedFrames(t *testing.T) {
	s := newChatServer(t, config.ChatDeliveryAll, []string{"*"})
	alice := s.dial(t, "1")

	send(t, alice, `{"sender":1,"receiver":2,"message":{"nested":true}}`)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"event":"typing","data":{}}`)))
	send(t, alice, `{"sender":1,"receiver":2,"message":"ok"}`)

	_, data := read(t, alice)
	assert.Equal(t, "ok", data["message"])

	var count int64
	s.db.Model(&models.Message{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestChatParticipantsDelivery(t *testing.T) {
	s := newChatServer(t, config.ChatDeliveryParticipants, []string{"*"})
	alice := s.dial(t, "1")
	bob := s.dial(t, "2")
	eve := s.dial(t, "3")

	send(t, alice, `{"sender":"1","receiver":"2","message":"psst"}`)
	_, data := read(t, alice)
	assert.Equal(t, "psst", data["message"])
	_, data = read(t, bob)
	assert.Equal(t, "psst", data["message"])

	require.NoError(t, eve.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := eve.ReadMessage()
	assert.Error(t, err)
}

func TestChatDisconnectUnregisters(t *testing.T) {
	s := newChatServer(t, config.ChatDeliveryAll, []string{"*"})
	conn := s.dial(t, "1")
	require.Equal(t, 1, s.hub.ClientCount())
	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginCheck(t *testing.T) {
	s := newChatServer(t, config.ChatDeliveryAll, []string{"http://localhost:5173"})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(s.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:5173")
	conn, _, err := websocket.DefaultDialer.Dial(s.url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestChatStoreFailureIsNotBroadcast(t *testing.T) {
	s := newChatServer(t, config.ChatDeliveryAll, []string{"*"})
	alice := s.dial(t, "1")
	bob := s.dial(t, "2")
	require.NoError(t, s.db.Migrator().DropTable(&models.Message{}))

	send(t, alice, `{"sender":1,"receiver":2,"message":"lost"}`)
	for _, conn := range []*websocket.Conn{alice, bob} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
		_, _, err := conn.ReadMessage()
		require.Error(t, err)
		var ne interface{ Timeout() bool }
		require.ErrorAs(t, err, &ne)
		assert.True(t, ne.Timeout())
	}
}

func TestChatKeepsServingAfterStoreFailure(t *testing.T) {
	s := newChatServer(t, config.ChatDeliveryAll, []string{"*"})
	alice := s.dial(t, "1")
	bob := s.dial(t, "2")
	require.NoError(t, s.db.Callback().Create().Before("gorm:create").Register("test:reject_lost", func(tx *gorm.DB) {
		if m, ok := tx.Statement.Dest.(*models.Message); ok && m.Message == "lost" {
			tx.AddError(errors.New("store unavailable"))
		}
	}))

	send(t, alice, `{"sender":1,"receiver":2,"message":"lost"}`)
	send(t, alice, `{"sender":1,"receiver":2,"message":"kept"}`)

	// Frames are handled in order, so the first delivery shows whether "lost" leaked.
	for _, conn := range []*websocket.Conn{alice, bob} {
		event, data := read(t, conn)
		assert.Equal(t, EventReceiveMessage, event)
		assert.Equal(t, "kept", data["message"])
	}
	var count int64
	s.db.Model(&models.Message{}).Count(&count)
	assert.EqualValues(t, 1, count)
}
