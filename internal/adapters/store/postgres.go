package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/domain"
)

const defaultTable = "recordings"

type Postgres struct {
	pool  *pgxpool.Pool
	table string // sanitized identifier
}

// NewPostgres connects to postgres and returns a pool wrapper
func NewPostgres(ctx context.Context, opts Options) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(opts.PGURL)
	if err != nil {
		return nil, fmt.Errorf("parse pg url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	table := opts.Table
	if table == "" {
		table = defaultTable
	}
	log.Info().Str("module", "store").Str("table", table).Msg("postgres connected")
	return &Postgres{pool: pool, table: pgx.Identifier{table}.Sanitize()}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) List(ctx context.Context, username string) ([]domain.Recording, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT username, recording_time, name, data
		FROM %s
		WHERE username = $1
		ORDER BY recording_time
	`, p.table), username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Recording, 0)
	for rows.Next() {
		var (
			r    domain.Recording
			data []byte
		)
		if err := rows.Scan(&r.Username, &r.RecordingTime, &r.Name, &data); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &r.Fields); err != nil {
				return nil, fmt.Errorf("recording %d data: %w", r.RecordingTime, err)
			}
			if len(r.Fields) == 0 {
				r.Fields = nil
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Save inserts or replaces the recording under its key.
func (p *Postgres) Save(ctx context.Context, rec domain.Recording) error {
	data := []byte("{}")
	if len(rec.Fields) > 0 {
		b, err := json.Marshal(rec.Fields)
		if err != nil {
			return err
		}
		data = b
	}
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (username, recording_time, name, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username, recording_time)
		DO UPDATE SET name = EXCLUDED.name, data = EXCLUDED.data, updated_at = NOW()
	`, p.table), rec.Username, rec.RecordingTime, rec.Name, data)
	if err != nil {
		return err
	}
	log.Info().Str("module", "store").Str("username", rec.Username).Int64("recording_time", rec.RecordingTime).Msg("recording saved")
	return nil
}

func (p *Postgres) Rename(ctx context.Context, username string, recordingTime int64, newName string) error {
	ct, err := p.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET name = $3, updated_at = NOW()
		WHERE username = $1 AND recording_time = $2
	`, p.table), username, recordingTime, newName)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrRecordingNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, username string, recordingTime int64) error {
	ct, err := p.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE username = $1 AND recording_time = $2
	`, p.table), username, recordingTime)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrRecordingNotFound
	}
	return nil
}
