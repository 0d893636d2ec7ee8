package core

import (
	"context"

	"github.com/dkeye/Jam/internal/domain"
)

// Frame is one encoded envelope ready for the wire.
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// RoomInfo is a read-only view of a room for APIs.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"client_count"`
}

// RecordingStore is the persistence gateway for recordings.
// An unconfigured backend returns empty results and nil errors.
type RecordingStore interface {
	List(ctx context.Context, username string) ([]domain.Recording, error)
	Save(ctx context.Context, rec domain.Recording) error
	Rename(ctx context.Context, username string, recordingTime int64, newName string) error
	Delete(ctx context.Context, username string, recordingTime int64) error
}

// BusMessage carries a room frame between relay instances.
type BusMessage struct {
	Origin  string        `json:"origin"`
	Room    domain.RoomID `json:"room"`
	Exclude SessionID     `json:"exclude,omitempty"`
	Frame   Frame         `json:"frame"`
}

// Bus fans room frames out to other relay processes.
type Bus interface {
	Publish(ctx context.Context, m BusMessage) error
	// Subscribe blocks until ctx is done, calling fn for every message.
	Subscribe(ctx context.Context, fn func(BusMessage))
	Close()
}
