package chat

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const bridgeChannel = "relay-events"

// BridgeEnvelope carries one already-persisted event between instances.
// Room addresses every connection in a room; Users addresses every
// connection of the listed users. Origin lets an instance skip its own
// publications.
type BridgeEnvelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room,omitempty"`
	Users   []string        `json:"users,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge fans committed events out across server instances through
// Redis pub/sub. Presence stays per-instance; only messages and pin
// updates travel.
type Bridge struct {
	redis  *redis.Client
	origin string
}

func NewBridge(redisClient *redis.Client) *Bridge {
	return &Bridge{
		redis:  redisClient,
		origin: uuid.NewString(),
	}
}

func (b *Bridge) Publish(ctx context.Context, env BridgeEnvelope) error {
	env.Origin = b.origin
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, bridgeChannel, data).Err()
}

// Run subscribes to the bridge channel and replays events from other
// instances into the hub. It returns when ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, hub *Hub) {
	pubsub := b.redis.Subscribe(ctx, bridgeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env BridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("bridge: bad envelope: %v", err)
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			hub.DeliverRemote(env)
		}
	}
}
