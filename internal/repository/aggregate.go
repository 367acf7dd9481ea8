package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"brawlmeta/internal/domain"

	"github.com/rs/zerolog"
)

type AggregateRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAggregateRepository(sqlDB *sql.DB, logger zerolog.Logger) *AggregateRepository {
	return &AggregateRepository{db: sqlDB, logger: logger}
}

// Insert persists the numeric aggregate and fills in its ID. The narrative
// columns stay NULL until the narrative worker writes them back.
func (r *AggregateRepository) Insert(ctx context.Context, agg *domain.GlobalMetaAggregate) error {
	payload, err := domain.MarshalPayload(agg.Data)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO global_meta_aggregates (timestamp, total_battles, total_players, data)
		VALUES (?, ?, ?, ?)`,
		agg.Timestamp, agg.TotalBattles, agg.TotalPlayers, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert aggregate: %w", err)
	}
	agg.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read aggregate id: %w", err)
	}

	r.logger.Info().
		Int64("aggregate_id", agg.ID).
		Int("total_battles", agg.TotalBattles).
		Msg("global aggregate persisted")
	return nil
}

// SetNarrative writes the asynchronously generated narrative onto an already
// committed aggregate.
func (r *AggregateRepository) SetNarrative(ctx context.Context, id int64, narrative string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE global_meta_aggregates SET narrative = ?, narrative_at = ? WHERE id = ?`,
		narrative, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set narrative: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("aggregate %d not found", id)
	}
	return nil
}

// Get returns one aggregate by ID.
func (r *AggregateRepository) Get(ctx context.Context, id int64) (*domain.GlobalMetaAggregate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, timestamp, total_battles, total_players, data, narrative, narrative_at
		FROM global_meta_aggregates WHERE id = ?`,
		id,
	)
	return scanAggregate(row)
}

// Latest returns the most recent aggregate, or nil when none exists.
func (r *AggregateRepository) Latest(ctx context.Context) (*domain.GlobalMetaAggregate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, timestamp, total_battles, total_players, data, narrative, narrative_at
		FROM global_meta_aggregates ORDER BY timestamp DESC LIMIT 1`,
	)
	agg, err := scanAggregate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return agg, err
}

func scanAggregate(row *sql.Row) (*domain.GlobalMetaAggregate, error) {
	var agg domain.GlobalMetaAggregate
	var payload []byte
	var narrative sql.NullString
	var narrativeAt sql.NullTime
	if err := row.Scan(&agg.ID, &agg.Timestamp, &agg.TotalBattles, &agg.TotalPlayers, &payload, &narrative, &narrativeAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan aggregate: %w", err)
	}
	if err := domain.UnmarshalPayload(payload, &agg.Data); err != nil {
		return nil, err
	}
	if narrative.Valid {
		agg.Narrative = narrative.String
	}
	if narrativeAt.Valid {
		t := narrativeAt.Time
		agg.NarrativeAt = &t
	}
	return &agg, nil
}
