package store

import (
	"context"

	"github.com/dkeye/Jam/internal/domain"
)

// Noop is used when no backend is configured. Everything succeeds and
// nothing is kept.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) List(context.Context, string) ([]domain.Recording, error) {
	return []domain.Recording{}, nil
}

func (Noop) Save(context.Context, domain.Recording) error { return nil }

func (Noop) Rename(context.Context, string, int64, string) error { return nil }

func (Noop) Delete(context.Context, string, int64) error { return nil }
