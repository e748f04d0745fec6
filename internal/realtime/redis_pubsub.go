package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// EventsChannel carries cross-instance events such as ads_updated.
	EventsChannel = "cinestream:events"

	publishTimeout = 5 * time.Second
	// Events older than this are dropped on receipt (e.g. replayed after a long reconnect).
	staleAfter = time.Minute
)

// busEnvelope is what goes over the Redis channel.
type busEnvelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin"`
	SentAt time.Time       `json:"sent_at"`
}

// RedisPubSub implements EventBus on a Redis channel shared by every server instance.
type RedisPubSub struct {
	client *redis.Client
	origin string
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisPubSub creates the bus. The origin tag (hostname plus a random suffix) shows up in
// logs so an operator can tell which instance changed the playlist.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	host, _ := os.Hostname()
	return &RedisPubSub{
		client: client,
		origin: host + "-" + uuid.NewString()[:8],
		now:    time.Now,
		logger: logger,
	}
}

// Publish sends event with its JSON payload to every subscribed instance, this one included.
func (r *RedisPubSub) Publish(ctx context.Context, event string, payload []byte) error {
	body, err := json.Marshal(busEnvelope{Event: event, Data: payload, Origin: r.origin, SentAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, EventsChannel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Subscribe calls handler for every event on EventsChannel until cancel is called.
func (r *RedisPubSub) Subscribe(handler func(event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, EventsChannel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", EventsChannel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				env, ok := r.decode(msg.Payload)
				if !ok {
					continue
				}
				handler(env.Event, env.Data)
			}
		}
	}()
	return cancelCtx, nil
}

func (r *RedisPubSub) decode(raw string) (busEnvelope, bool) {
	var env busEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Event == "" {
		r.logger.Warn("invalid bus event", zap.Error(err))
		return env, false
	}
	if age := r.now().Sub(env.SentAt); age > staleAfter {
		r.logger.Info("dropping stale bus event", zap.String("event", env.Event), zap.String("origin", env.Origin), zap.Duration("age", age))
		return env, false
	}
	r.logger.Debug("bus event", zap.String("event", env.Event), zap.String("origin", env.Origin))
	return env, true
}
