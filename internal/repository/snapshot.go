package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"brawlmeta/internal/domain"

	"github.com/rs/zerolog"
)

type SnapshotRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSnapshotRepository(sqlDB *sql.DB, logger zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: sqlDB, logger: logger}
}

// Insert persists one snapshot and its brawler rows in a single transaction.
// The snapshot ID is filled in on success.
func (r *SnapshotRepository) Insert(ctx context.Context, snap *domain.MetaSnapshot, metas []domain.BrawlerMeta) error {
	payload, err := domain.MarshalPayload(snap.Data)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO meta_snapshots (timestamp, bracket_min, bracket_max, sample_size, players_analyzed, data)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.Timestamp, snap.BracketMin, snap.BracketMax, snap.SampleSize, snap.Players, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read snapshot id: %w", err)
	}

	for _, meta := range metas {
		bestModes, err := domain.MarshalPayload(meta.BestModes)
		if err != nil {
			return err
		}
		bestMaps, err := domain.MarshalPayload(meta.BestMaps)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO brawler_meta (snapshot_id, brawler_name, pick_rate, win_rate, avg_trophy_change, best_modes, best_maps)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			snapshotID, meta.BrawlerName, meta.PickRate, meta.WinRate, meta.AvgTrophyChange,
			string(bestModes), string(bestMaps),
		)
		if err != nil {
			return fmt.Errorf("failed to insert brawler meta for %s: %w", meta.BrawlerName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	snap.ID = snapshotID
	r.logger.Info().
		Int64("snapshot_id", snapshotID).
		Int("bracket_min", snap.BracketMin).
		Int("brawlers", len(metas)).
		Int("sample_size", snap.SampleSize).
		Msg("snapshot persisted")
	return nil
}

// ListSince returns snapshots created at or after the cutoff, newest first.
func (r *SnapshotRepository) ListSince(ctx context.Context, cutoff time.Time) ([]domain.MetaSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, bracket_min, bracket_max, sample_size, players_analyzed, data
		FROM meta_snapshots
		WHERE timestamp >= ?
		ORDER BY timestamp DESC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.MetaSnapshot
	for rows.Next() {
		var snap domain.MetaSnapshot
		var payload []byte
		if err := rows.Scan(&snap.ID, &snap.Timestamp, &snap.BracketMin, &snap.BracketMax, &snap.SampleSize, &snap.Players, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := domain.UnmarshalPayload(payload, &snap.Data); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// BrawlerMeta returns the child rows for one snapshot.
func (r *SnapshotRepository) BrawlerMeta(ctx context.Context, snapshotID int64) ([]domain.BrawlerMeta, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, snapshot_id, brawler_name, pick_rate, win_rate, avg_trophy_change, best_modes, best_maps
		FROM brawler_meta
		WHERE snapshot_id = ?`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list brawler meta: %w", err)
	}
	defer rows.Close()

	var metas []domain.BrawlerMeta
	for rows.Next() {
		var meta domain.BrawlerMeta
		var bestModes, bestMaps []byte
		if err := rows.Scan(&meta.ID, &meta.SnapshotID, &meta.BrawlerName, &meta.PickRate, &meta.WinRate, &meta.AvgTrophyChange, &bestModes, &bestMaps); err != nil {
			return nil, fmt.Errorf("failed to scan brawler meta: %w", err)
		}
		if err := domain.UnmarshalPayload(bestModes, &meta.BestModes); err != nil {
			return nil, err
		}
		if err := domain.UnmarshalPayload(bestMaps, &meta.BestMaps); err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// Prune deletes all but the newest keep snapshots for one bracket. Child rows
// cascade.
func (r *SnapshotRepository) Prune(ctx context.Context, bracket domain.TrophyBracket, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM meta_snapshots
		WHERE bracket_min = ? AND bracket_max = ?
		  AND id NOT IN (
			SELECT id FROM meta_snapshots
			WHERE bracket_min = ? AND bracket_max = ?
			ORDER BY timestamp DESC
			LIMIT ?
		  )`,
		bracket.Min, bracket.Max, bracket.Min, bracket.Max, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Info().
			Int("bracket_min", bracket.Min).
			Int64("deleted", deleted).
			Msg("pruned old snapshots")
	}
	return deleted, nil
}
