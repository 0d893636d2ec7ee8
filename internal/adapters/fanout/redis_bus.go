// Package fanout carries room frames between relay processes.
package fanout

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
)

const defaultPrefix = "jam:room:"

type RedisOptions struct {
	Addr   string
	DB     int
	Prefix string
}

type RedisBus struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisBus connects to redis and verifies connectivity
func NewRedisBus(ctx context.Context, opts RedisOptions) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	log.Info().Str("module", "fanout").Str("addr", opts.Addr).Msg("redis bus connected")
	return &RedisBus{rdb: rdb, prefix: prefix}, nil
}

// Publish sends a message to the redis channel for a room
func (b *RedisBus) Publish(ctx context.Context, m core.BusMessage) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel(m.Room), raw).Err()
}

// Subscribe listens to all room channels and invokes fn for each message
func (b *RedisBus) Subscribe(ctx context.Context, fn func(core.BusMessage)) {
	pubsub := b.rdb.PSubscribe(ctx, b.prefix+"*")
	defer func() { _ = pubsub.Close() }()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m, ok := decode(msg.Payload)
			if !ok {
				log.Warn().Str("module", "fanout").Str("channel", msg.Channel).Msg("bad bus message")
				continue
			}
			fn(m)
		}
	}
}

// Close shuts down the redis connection
func (b *RedisBus) Close() { _ = b.rdb.Close() }

func (b *RedisBus) channel(room domain.RoomID) string { return b.prefix + string(room) }

func decode(payload string) (core.BusMessage, bool) {
	var m core.BusMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return core.BusMessage{}, false
	}
	if m.Room == "" || m.Origin == "" {
		return core.BusMessage{}, false
	}
	return m, true
}
