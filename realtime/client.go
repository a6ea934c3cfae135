package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/buconnects/server/models"
	"github.com/buconnects/server/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8 << 10
	persistTimeout = 5 * time.Second
)

// Event names on the wire.
const (
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one websocket connection attached to the hub.
type Client struct {
	hub    *Hub
	db     *gorm.DB
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

func newClient(hub *Hub, db *gorm.DB, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		db:     db,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		userID: userID,
	}
}

// readPump handles inbound frames one at a time. A frame is fully persisted and
// queued to every recipient before the next one is read.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				utils.Sugar.Infow("chat connection closed", "user_id", c.userID, "err", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			utils.Sugar.Debugw("malformed chat frame", "user_id", c.userID, "err", err)
			continue
		}
		switch env.Event {
		case EventSendMessage:
			c.handleSend(env.Data)
		default:
			utils.Sugar.Debugw("unknown chat event", "event", env.Event)
		}
	}
}

func (c *Client) handleSend(data json.RawMessage) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		utils.Sugar.Debugw("malformed send_message payload", "err", err)
		return
	}
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		utils.Sugar.Debugw("malformed send_message payload", "err", err)
		return
	}
	msg.ID = 0
	msg.CreatedAt = time.Time{}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.db.WithContext(ctx).Create(&msg).Error; err != nil {
		utils.Sugar.Errorw("persist chat message failed", "sender", msg.Sender, "receiver", msg.Receiver, "err", err)
		return
	}

	fields["id"] = json.RawMessage(strconv.FormatUint(uint64(msg.ID), 10))
	out, err := encodeEvent(EventReceiveMessage, fields)
	if err != nil {
		utils.Sugar.Errorw("encode receive_message failed", "err", err)
		return
	}
	c.hub.Broadcast(Delivery{Sender: string(msg.Sender), Receiver: string(msg.Receiver), Payload: out})
}

func encodeEvent(name string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: raw})
}

// writePump drains the send queue onto the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
