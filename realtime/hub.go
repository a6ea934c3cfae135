package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buconnects/server/config"
	"github.com/buconnects/server/utils"
)

const (
	sendQueueSize  = 256
	publishTimeout = 2 * time.Second
)

// Delivery is one encoded event together with the participants it concerns.
type Delivery struct {
	Sender   string
	Receiver string
	Payload  []byte
}

type broadcastReq struct {
	delivery Delivery
	done     chan struct{}
}

// Hub owns the set of connected clients. Register, unregister and broadcast
// requests are serialized through Run, so every client observes events in the
// order the hub accepted them.
type Hub struct {
	mode string

	clients map[*Client]struct{}
	byUser  map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastReq

	relay *Relay
	count atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a Hub with the given delivery mode. Anything other than
// config.ChatDeliveryParticipants delivers every event to every client.
func NewHub(mode string) *Hub {
	if mode != config.ChatDeliveryParticipants {
		mode = config.ChatDeliveryAll
	}
	return &Hub{
		mode:       mode,
		clients:    make(map[*Client]struct{}),
		byUser:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastReq),
		stop:       make(chan struct{}),
	}
}

// Mode reports the delivery mode in effect.
func (h *Hub) Mode() string { return h.mode }

// ClientCount reports how many clients are currently registered.
func (h *Hub) ClientCount() int { return int(h.count.Load()) }

// Run processes hub requests until Stop is called. On stop every client's send
// queue is closed, which makes its writer close the connection.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case req := <-h.broadcast:
			h.fanOut(req.delivery)
			close(req.done)
		case <-h.stop:
			for c := range h.clients {
				h.remove(c)
			}
			return
		}
	}
}

// Stop shuts the hub down. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast delivers d to the local clients selected by the delivery mode and
// returns once it sits in their send queues. With a relay attached the event is
// then published for the other processes.
func (h *Hub) Broadcast(d Delivery) {
	if !h.deliverLocal(d) {
		return
	}
	if h.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.relay.publish(ctx, d); err != nil {
			utils.Sugar.Warnw("chat relay publish failed", "err", err)
		}
	}
}

func (h *Hub) deliverLocal(d Delivery) bool {
	req := broadcastReq{delivery: d, done: make(chan struct{})}
	select {
	case h.broadcast <- req:
	case <-h.stop:
		return false
	}
	select {
	case <-req.done:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
	}
}

func (h *Hub) add(c *Client) {
	h.clients[c] = struct{}{}
	if c.userID != "" {
		set, ok := h.byUser[c.userID]
		if !ok {
			set = make(map[*Client]struct{})
			h.byUser[c.userID] = set
		}
		set[c] = struct{}{}
	}
	h.count.Store(int64(len(h.clients)))
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if set, ok := h.byUser[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	close(c.send)
	h.count.Store(int64(len(h.clients)))
}

func (h *Hub) fanOut(d Delivery) {
	if h.mode == config.ChatDeliveryAll {
		for c := range h.clients {
			h.enqueue(c, d.Payload)
		}
		return
	}
	for c := range h.byUser[d.Sender] {
		h.enqueue(c, d.Payload)
	}
	if d.Receiver == d.Sender {
		return
	}
	for c := range h.byUser[d.Receiver] {
		h.enqueue(c, d.Payload)
	}
}

// enqueue never blocks: a client whose queue is full is evicted.
func (h *Hub) enqueue(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		utils.Sugar.Warnw("evicting slow chat client", "user_id", c.userID)
		h.remove(c)
	}
}
