package notify

import (
	"context"
	"encoding/json"
	"fmt"

	platformredis "auditflow/internal/platform/redis"
)

// RedisLivePublisher pushes live events over Redis pub/sub. The socket layer
// (out of scope) subscribes to the same channel names and forwards to
// connected clients.
type RedisLivePublisher struct {
	client *platformredis.Client
}

func NewRedisLivePublisher(client *platformredis.Client) *RedisLivePublisher {
	return &RedisLivePublisher{client: client}
}

type liveEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (p *RedisLivePublisher) Publish(ctx context.Context, channel Channel, eventName string, payload any) error {
	body, err := json.Marshal(liveEnvelope{Event: eventName, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	if err := p.client.Publish(ctx, string(channel), body).Err(); err != nil {
		return fmt.Errorf("publish live event: %w", err)
	}
	return nil
}
