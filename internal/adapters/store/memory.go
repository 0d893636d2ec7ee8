package store

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"github.com/dkeye/Jam/internal/domain"
)

type recKey struct {
	username string
	at       int64
}

// Memory keeps recordings in process memory.
type Memory struct {
	mu   sync.RWMutex
	recs map[recKey]domain.Recording
}

func NewMemory() *Memory {
	return &Memory{recs: make(map[recKey]domain.Recording)}
}

func (m *Memory) List(ctx context.Context, username string) ([]domain.Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Recording, 0)
	for k, r := range m.recs {
		if k.username == username {
			out = append(out, clone(r))
		}
	}
	sortRecordings(out)
	return out, nil
}

func (m *Memory) Save(ctx context.Context, rec domain.Recording) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[recKey{rec.Username, rec.RecordingTime}] = clone(rec)
	return nil
}

func (m *Memory) Rename(ctx context.Context, username string, recordingTime int64, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := recKey{username, recordingTime}
	r, ok := m.recs[k]
	if !ok {
		return ErrRecordingNotFound
	}
	r.Name = newName
	m.recs[k] = r
	return nil
}

func (m *Memory) Delete(ctx context.Context, username string, recordingTime int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := recKey{username, recordingTime}
	if _, ok := m.recs[k]; !ok {
		return ErrRecordingNotFound
	}
	delete(m.recs, k)
	return nil
}

func clone(r domain.Recording) domain.Recording {
	if r.Fields == nil {
		return r
	}
	fields := make(map[string]json.RawMessage, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = append(json.RawMessage(nil), v...)
	}
	r.Fields = fields
	return r
}
