package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"brawlmeta/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type TrendRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTrendRepository(sqlDB *sql.DB, logger zerolog.Logger) *TrendRepository {
	return &TrendRepository{db: sqlDB, logger: logger}
}

// AppendHistory inserts one trend row per brawler for this cycle. The table is
// append-only; nothing is updated.
func (r *TrendRepository) AppendHistory(ctx context.Context, entries []domain.BrawlerTrendHistory) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range entries {
		e := &entries[i]
		if err := e.Validate(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO brawler_trend_history
				(brawler_name, timestamp, pick_rate, win_rate, trend_direction, trend_strength, popularity_rank, performance_rank, games_analyzed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.BrawlerName, e.Timestamp, e.PickRate, e.WinRate, e.TrendDirection,
			e.TrendStrength, e.PopularityRank, e.PerformanceRank, e.GamesAnalyzed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trend history for %s: %w", e.BrawlerName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trend history: %w", err)
	}

	r.logger.Info().Int("brawlers", len(entries)).Msg("trend history appended")
	return nil
}

// LatestInWindow returns the most recent trend row for a brawler within
// [start, end], or nil when the brawler has no baseline there.
func (r *TrendRepository) LatestInWindow(ctx context.Context, brawlerName string, start, end time.Time) (*domain.BrawlerTrendHistory, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, brawler_name, timestamp, pick_rate, win_rate, trend_direction, trend_strength, popularity_rank, performance_rank, games_analyzed
		FROM brawler_trend_history
		WHERE brawler_name = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC
		LIMIT 1`,
		brawlerName, start, end,
	)

	var e domain.BrawlerTrendHistory
	err := row.Scan(&e.ID, &e.BrawlerName, &e.Timestamp, &e.PickRate, &e.WinRate, &e.TrendDirection, &e.TrendStrength, &e.PopularityRank, &e.PerformanceRank, &e.GamesAnalyzed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan trend history: %w", err)
	}
	return &e, nil
}

// InsertInsights persists validated insights, generating nanoid IDs.
func (r *TrendRepository) InsertInsights(ctx context.Context, insights []domain.GlobalTrendInsight) error {
	if len(insights) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range insights {
		ins := &insights[i]
		if err := ins.Validate(); err != nil {
			return err
		}
		if ins.ID == "" {
			ins.ID, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}
		data, err := domain.MarshalPayload(ins.Data)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO global_trend_insights
				(id, timestamp, insight_type, title, narrative, data, confidence_score, impact_level, is_active, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ins.ID, ins.Timestamp, ins.InsightType, ins.Title, ins.Narrative,
			string(data), ins.ConfidenceScore, ins.ImpactLevel, ins.IsActive, ins.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert insight %s: %w", ins.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insights: %w", err)
	}

	r.logger.Info().Int("insights", len(insights)).Msg("trend insights persisted")
	return nil
}

// DeactivateExpired soft-deactivates insights past their expiry. Rows are
// never deleted.
func (r *TrendRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE global_trend_insights SET is_active = 0
		WHERE expires_at < ? AND is_active = 1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate insights: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		r.logger.Info().Int64("deactivated", affected).Msg("expired insights deactivated")
	}
	return affected, nil
}

// ActiveInsights lists active insights newest first.
func (r *TrendRepository) ActiveInsights(ctx context.Context, limit int) ([]domain.GlobalTrendInsight, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, insight_type, title, narrative, data, confidence_score, impact_level, is_active, expires_at
		FROM global_trend_insights
		WHERE is_active = 1
		ORDER BY timestamp DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	var insights []domain.GlobalTrendInsight
	for rows.Next() {
		var ins domain.GlobalTrendInsight
		var data []byte
		if err := rows.Scan(&ins.ID, &ins.Timestamp, &ins.InsightType, &ins.Title, &ins.Narrative, &data, &ins.ConfidenceScore, &ins.ImpactLevel, &ins.IsActive, &ins.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		if err := domain.UnmarshalPayload(data, &ins.Data); err != nil {
			return nil, err
		}
		insights = append(insights, ins)
	}
	return insights, rows.Err()
}

// InsightCount reports total and active rows, used to verify soft deletion.
func (r *TrendRepository) InsightCount(ctx context.Context) (total, active int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM global_trend_insights`)
	if err := row.Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("failed to count insights: %w", err)
	}
	return total, active, nil
}
