package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/buconnects/server/utils"
)

// RelayChannel is the Redis pub/sub channel carrying chat events between processes.
const RelayChannel = "chat:receive_message"

type relayFrame struct {
	Origin   string          `json:"origin"`
	Sender   string          `json:"sender"`
	Receiver string          `json:"receiver"`
	Payload  json.RawMessage `json:"payload"`
}

// Relay forwards hub broadcasts to other processes over Redis and replays
// theirs to the local hub. Frames published by this process are skipped.
type Relay struct {
	rdb    *redis.Client
	hub    *Hub
	origin string
}

// NewRelay attaches a relay to hub. Start must be called to receive frames.
func NewRelay(rdb *redis.Client, hub *Hub) *Relay {
	r := &Relay{rdb: rdb, hub: hub, origin: uuid.NewString()}
	hub.relay = r
	return r
}

// Origin is the id this process tags its frames with.
func (r *Relay) Origin() string { return r.origin }

// Start subscribes to RelayChannel and replays remote frames until ctx is done.
// It returns once the subscription is confirmed.
func (r *Relay) Start(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, RelayChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", RelayChannel, err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.replay(msg.Payload)
			}
		}
	}()
	return nil
}

func (r *Relay) replay(raw string) {
	var f relayFrame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		utils.Sugar.Warnw("malformed relay frame", "err", err)
		return
	}
	if f.Origin == r.origin {
		return
	}
	r.hub.deliverLocal(Delivery{Sender: f.Sender, Receiver: f.Receiver, Payload: f.Payload})
}

func (r *Relay) publish(ctx context.Context, d Delivery) error {
	b, err := json.Marshal(relayFrame{
		Origin:   r.origin,
		Sender:   d.Sender,
		Receiver: d.Receiver,
		Payload:  d.Payload,
	})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, RelayChannel, b).Err()
}
