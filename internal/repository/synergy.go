package repository

import (
	"context"
	"database/sql"
	"fmt"

	"brawlmeta/internal/domain"

	"github.com/rs/zerolog"
)

type SynergyRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSynergyRepository(sqlDB *sql.DB, logger zerolog.Logger) *SynergyRepository {
	return &SynergyRepository{db: sqlDB, logger: logger}
}

// UpsertBatch overwrites each pair's stored totals with the freshly recomputed
// window values. Rows are validated before they touch the database.
func (r *SynergyRepository) UpsertBatch(ctx context.Context, synergies []domain.BrawlerSynergy) error {
	if len(synergies) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range synergies {
		s := &synergies[i]
		if err := s.Validate(); err != nil {
			return err
		}
		bestModes, err := domain.MarshalPayload(s.BestModes)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO brawler_synergies (brawler_a, brawler_b, games_together, wins_together, win_rate, best_modes, quality, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (brawler_a, brawler_b) DO UPDATE SET
				games_together = excluded.games_together,
				wins_together = excluded.wins_together,
				win_rate = excluded.win_rate,
				best_modes = excluded.best_modes,
				quality = excluded.quality,
				last_updated = excluded.last_updated`,
			s.BrawlerA, s.BrawlerB, s.GamesTogether, s.WinsTogether, s.WinRate,
			string(bestModes), s.Quality, s.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert synergy (%s, %s): %w", s.BrawlerA, s.BrawlerB, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit synergies: %w", err)
	}

	r.logger.Info().Int("pairs", len(synergies)).Msg("synergy pairs persisted")
	return nil
}

// Get returns the stored row for a pair regardless of argument order.
func (r *SynergyRepository) Get(ctx context.Context, brawlerA, brawlerB string) (*domain.BrawlerSynergy, error) {
	if brawlerA > brawlerB {
		brawlerA, brawlerB = brawlerB, brawlerA
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, brawler_a, brawler_b, games_together, wins_together, win_rate, best_modes, quality, last_updated
		FROM brawler_synergies
		WHERE brawler_a = ? AND brawler_b = ?`,
		brawlerA, brawlerB,
	)

	var s domain.BrawlerSynergy
	var bestModes []byte
	err := row.Scan(&s.ID, &s.BrawlerA, &s.BrawlerB, &s.GamesTogether, &s.WinsTogether, &s.WinRate, &bestModes, &s.Quality, &s.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan synergy: %w", err)
	}
	if err := domain.UnmarshalPayload(bestModes, &s.BestModes); err != nil {
		return nil, err
	}
	return &s, nil
}

// Top returns the best pairs by win rate above a games floor.
func (r *SynergyRepository) Top(ctx context.Context, minGames, limit int) ([]domain.BrawlerSynergy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, brawler_a, brawler_b, games_together, wins_together, win_rate, best_modes, quality, last_updated
		FROM brawler_synergies
		WHERE games_together >= ?
		ORDER BY win_rate DESC
		LIMIT ?`,
		minGames, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list synergies: %w", err)
	}
	defer rows.Close()

	var synergies []domain.BrawlerSynergy
	for rows.Next() {
		var s domain.BrawlerSynergy
		var bestModes []byte
		if err := rows.Scan(&s.ID, &s.BrawlerA, &s.BrawlerB, &s.GamesTogether, &s.WinsTogether, &s.WinRate, &bestModes, &s.Quality, &s.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan synergy: %w", err)
		}
		if err := domain.UnmarshalPayload(bestModes, &s.BestModes); err != nil {
			return nil, err
		}
		synergies = append(synergies, s)
	}
	return synergies, rows.Err()
}
