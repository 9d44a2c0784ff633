package fanout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zfogg/showcase/backend/internal/logger"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel engagement updates go out on
const DefaultChannel = "engagement:updates"

// Publisher is the slice of the Redis client the relay needs
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisRelay republishes updates as JSON so other processes can follow them
type RedisRelay struct {
	pub     Publisher
	channel string
	timeout time.Duration
}

func NewRedisRelay(pub Publisher, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{pub: pub, channel: channel, timeout: 2 * time.Second}
}

// Listener returns the fan-out listener that publishes each update
func (r *RedisRelay) Listener() Listener {
	return func(u Update) {
		payload, err := json.Marshal(u)
		if err != nil {
			logger.ErrorWithFields("Failed to encode engagement update", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.pub.Publish(ctx, r.channel, payload); err != nil {
			logger.Log.Warn("Failed to relay engagement update",
				zap.String("channel", r.channel),
				logger.WithPostID(u.PostID),
				zap.Error(err),
			)
		}
	}
}

// DecodeUpdate parses a payload produced by RedisRelay
func DecodeUpdate(payload []byte) (Update, error) {
	var u Update
	err := json.Unmarshal(payload, &u)
	return u, err
}
