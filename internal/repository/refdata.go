package repository

import (
	"context"
	"database/sql"
	"fmt"

	"brawlmeta/internal/domain"

	"github.com/rs/zerolog"
)

// RefDataRepository persists the static reference data refreshed each
// scheduler cycle: the brawler catalog and the event rotation.
type RefDataRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRefDataRepository(sqlDB *sql.DB, logger zerolog.Logger) *RefDataRepository {
	return &RefDataRepository{db: sqlDB, logger: logger}
}

func (r *RefDataRepository) UpsertBrawlers(ctx context.Context, brawlers []domain.CachedBrawler) error {
	if len(brawlers) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, b := range brawlers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cached_brawlers (brawler_id, name, data, last_updated)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (brawler_id) DO UPDATE SET
				name = excluded.name,
				data = excluded.data,
				last_updated = excluded.last_updated`,
			b.BrawlerID, b.Name, string(b.Data), b.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert brawler %d: %w", b.BrawlerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit brawler catalog: %w", err)
	}

	r.logger.Info().Int("brawlers", len(brawlers)).Msg("brawler catalog refreshed")
	return nil
}

// ReplaceEventRotation clears the previous rotation and stores the new one.
func (r *RefDataRepository) ReplaceEventRotation(ctx context.Context, rotation domain.CachedEventRotation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_events`); err != nil {
		return fmt.Errorf("failed to clear event rotation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cached_events (rotation, last_updated) VALUES (?, ?)`,
		string(rotation.Rotation), rotation.LastUpdated,
	); err != nil {
		return fmt.Errorf("failed to insert event rotation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event rotation: %w", err)
	}

	r.logger.Info().Msg("event rotation refreshed")
	return nil
}

// BrawlerCount returns the catalog size.
func (r *RefDataRepository) BrawlerCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_brawlers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count brawlers: %w", err)
	}
	return n, nil
}

// FirstBrawler returns the lowest-ID catalogued brawler, used by the mid
// bracket seed strategy. Returns nil when the catalog is empty.
func (r *RefDataRepository) FirstBrawler(ctx context.Context) (*domain.CachedBrawler, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT brawler_id, name, data, last_updated
		FROM cached_brawlers ORDER BY brawler_id ASC LIMIT 1`)

	var b domain.CachedBrawler
	var data string
	err := row.Scan(&b.BrawlerID, &b.Name, &data, &b.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan brawler: %w", err)
	}
	b.Data = []byte(data)
	return &b, nil
}
