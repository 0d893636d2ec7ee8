package store

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate executes all embedded .sql files in name order, with the
// configured table name substituted for {{table}}.
func (p *Postgres) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return err
		}
		if _, err := p.pool.Exec(ctx, renderMigration(string(b), p.table)); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		log.Info().Str("module", "store").Str("file", e.Name()).Msg("migration applied")
	}
	return nil
}

func renderMigration(sql, table string) string {
	return strings.ReplaceAll(sql, "{{table}}", table)
}
