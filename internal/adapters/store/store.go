// Package store holds the recording store implementations. Exactly one is
// picked at startup; callers only see core.RecordingStore.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
)

var ErrRecordingNotFound = errors.New("recording not found")

const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Options struct {
	Backend  string
	PGURL    string
	Table    string
	MaxConns int32
}

// Open builds the store named by opts.Backend. An empty backend means none.
func Open(ctx context.Context, opts Options) (core.RecordingStore, func(), error) {
	switch opts.Backend {
	case "", BackendNone:
		return NewNoop(), func() {}, nil
	case BackendMemory:
		return NewMemory(), func() {}, nil
	case BackendPostgres:
		pg, err := NewPostgres(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown recordings backend %q", opts.Backend)
	}
}

func sortRecordings(recs []domain.Recording) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].RecordingTime < recs[j].RecordingTime })
}
