package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roomcast/adsync/internal/adsession"
)

const (
	snapshotKeyPrefix = "roomads:snapshot:"
	channelPrefix     = "roomads:room:"
)

// RoomChannel returns the pub/sub channel name for a room.
func RoomChannel(roomID string) string {
	return channelPrefix + roomID
}

func snapshotKey(roomID string) string {
	return snapshotKeyPrefix + roomID
}

// RedisStore is the Redis-backed snapshot store. It is the only variant
// that stays correct with more than one server process.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a snapshot store with the given snapshot TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

// Get returns the room's snapshot, defaulting to stopped when the key is
// absent or expired.
func (s *RedisStore) Get(ctx context.Context, roomID string) (adsession.RoomAdSnapshot, error) {
	raw, err := s.client.Get(ctx, snapshotKey(roomID)).Bytes()
	if err == redis.Nil {
		return adsession.NewSnapshot(), nil
	}
	if err != nil {
		return adsession.NewSnapshot(), fmt.Errorf("get snapshot: %w", err)
	}
	var snap adsession.RoomAdSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt value is unrecoverable; fall back to the default and
		// let the next write repair it.
		s.logger.Warn("corrupt snapshot in store", zap.String("room_id", roomID), zap.Error(err))
		return adsession.NewSnapshot(), nil
	}
	return snap, nil
}

// Set persists the snapshot and publishes it on the room channel inside a
// MULTI/EXEC transaction, so subscribers never observe a publish without
// the durable state behind it.
func (s *RedisStore) Set(ctx context.Context, roomID string, snap adsession.RoomAdSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, snapshotKey(roomID), data, s.ttl)
		p.Publish(ctx, RoomChannel(roomID), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// Subscribe opens a dedicated pub/sub connection bound to the room's
// channel. Pub/sub connections cannot serve ordinary commands, so every
// concurrent viewer gets its own. The returned cancel is idempotent.
// done is closed when the pump exits, whether cancelled or because the
// subscriber connection died.
func (s *RedisStore) Subscribe(roomID string, handler func(payload []byte)) (func(), <-chan struct{}, error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := s.client.Subscribe(ctx, RoomChannel(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}
	ch := pubsub.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					s.logger.Warn("room subscriber connection lost", zap.String("room_id", roomID))
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return cancelCtx, done, nil
}
