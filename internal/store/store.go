// Package store persists the latest room ad snapshot in Redis and
// publishes every write to the room's channel so stream endpoints on any
// instance can fan it out.
package store

import (
	"context"

	"github.com/roomcast/adsync/internal/adsession"
)

// Store is the shared snapshot store. Set is the only write path; it
// persists and publishes as one atomic operation.
type Store interface {
	// Get returns the room's snapshot, or the default stopped snapshot
	// when none is stored or it expired.
	Get(ctx context.Context, roomID string) (adsession.RoomAdSnapshot, error)
	// Set persists the snapshot with the store TTL and publishes the
	// serialized form on the room's channel.
	Set(ctx context.Context, roomID string, snap adsession.RoomAdSnapshot) error
	// Subscribe opens a dedicated subscriber connection on the room's
	// channel and invokes handler for every published payload. The
	// returned cancel tears the subscription down; calling it more than
	// once is safe. done is closed when the subscription ends for any
	// reason, including a lost connection, so callers can tell a dead
	// subscriber from a quiet room.
	Subscribe(roomID string, handler func(payload []byte)) (cancel func(), done <-chan struct{}, err error)
}
