package service

import (
	"context"
	"sort"
	"time"

	"brawlmeta/internal/config"
	"brawlmeta/internal/constants"
	"brawlmeta/internal/domain"
	"brawlmeta/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var synergyPairsUpdated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "brawlmeta_synergy_pairs_updated_total",
	Help: "Synergy pairs written per extraction cycle.",
})

// SynergyExtractor mines recent snapshot compositions for brawler pairs and
// rewrites the synergy table each cycle.
type SynergyExtractor struct {
	snapshots *repository.SnapshotRepository
	synergies *repository.SynergyRepository
	cfg       *config.Config
	logger    zerolog.Logger
}

func NewSynergyExtractor(
	snapshots *repository.SnapshotRepository,
	synergies *repository.SynergyRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *SynergyExtractor {
	return &SynergyExtractor{
		snapshots: snapshots,
		synergies: synergies,
		cfg:       cfg,
		logger:    logger.With().Str("component", "synergy").Logger(),
	}
}

func (s *SynergyExtractor) Run(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("synergy extraction failed")
	}

	ticker := time.NewTicker(s.cfg.SynergyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("synergy extraction failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

type pairKey struct {
	a, b string
}

type pairStats struct {
	games int
	wins  int
	modes map[string]*modeTally
}

type modeTally struct {
	games int
	wins  int
}

// RunOnce extracts pairs from every composition in the synergy window. Each
// cycle recomputes pair totals from scratch, so the upsert overwrites rather
// than accumulates.
func (s *SynergyExtractor) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-constants.SynergyWindow)
	snapshots, err := s.snapshots.ListSince(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		s.logger.Warn().Msg("no recent snapshots, skipping synergy extraction")
		return nil
	}

	pairs := make(map[pairKey]*pairStats)
	for _, snap := range snapshots {
		for _, comp := range snap.Data.TopCompositions {
			extractPairs(pairs, comp)
		}
	}

	synergies := compileSynergies(pairs, time.Now().UTC())
	if len(synergies) == 0 {
		s.logger.Info().Int("snapshots", len(snapshots)).Msg("no pairs above minimum games")
		return nil
	}

	if err := s.synergies.UpsertBatch(ctx, synergies); err != nil {
		return err
	}
	synergyPairsUpdated.Add(float64(len(synergies)))
	s.logger.Info().
		Int("snapshots", len(snapshots)).
		Int("pairs", len(synergies)).
		Msg("synergy pairs updated")
	return nil
}

func extractPairs(pairs map[pairKey]*pairStats, comp domain.CompositionStat) {
	if len(comp.Brawlers) < 2 {
		return
	}
	for i := 0; i < len(comp.Brawlers); i++ {
		for j := i + 1; j < len(comp.Brawlers); j++ {
			a, b := comp.Brawlers[i], comp.Brawlers[j]
			if a == b {
				continue
			}
			if a > b {
				a, b = b, a
			}
			key := pairKey{a: a, b: b}
			stats := pairs[key]
			if stats == nil {
				stats = &pairStats{modes: make(map[string]*modeTally)}
				pairs[key] = stats
			}
			stats.games += comp.Games
			stats.wins += comp.Wins
			for mode, games := range comp.Modes {
				tally := stats.modes[mode]
				if tally == nil {
					tally = &modeTally{}
					stats.modes[mode] = tally
				}
				tally.games += games
				// Per-mode wins are not stored on a composition, so the
				// composition's overall win rate is applied to each mode.
				tally.wins += int(float64(games) * float64(comp.Wins) / float64(max(comp.Games, 1)))
			}
		}
	}
}

func compileSynergies(pairs map[pairKey]*pairStats, now time.Time) []domain.BrawlerSynergy {
	synergies := make([]domain.BrawlerSynergy, 0, len(pairs))
	for key, stats := range pairs {
		if stats.games < constants.MinSynergyGames {
			continue
		}

		quality := domain.QualityLow
		switch {
		case stats.games >= constants.SynergyQualityHigh:
			quality = domain.QualityHigh
		case stats.games >= constants.SynergyQualityMed:
			quality = domain.QualityMedium
		}

		bestModes := make([]domain.ModeStat, 0, len(stats.modes))
		for mode, tally := range stats.modes {
			if tally.games == 0 {
				continue
			}
			bestModes = append(bestModes, domain.ModeStat{
				Mode:    mode,
				WinRate: round2(float64(tally.wins) / float64(tally.games) * 100),
				Games:   tally.games,
			})
		}
		sort.Slice(bestModes, func(i, j int) bool {
			if bestModes[i].WinRate != bestModes[j].WinRate {
				return bestModes[i].WinRate > bestModes[j].WinRate
			}
			return bestModes[i].Mode < bestModes[j].Mode
		})
		if len(bestModes) > constants.TopBestModes {
			bestModes = bestModes[:constants.TopBestModes]
		}

		synergies = append(synergies, domain.BrawlerSynergy{
			BrawlerA:      key.a,
			BrawlerB:      key.b,
			GamesTogether: stats.games,
			WinsTogether:  stats.wins,
			WinRate:       round2(float64(stats.wins) / float64(stats.games) * 100),
			BestModes:     bestModes,
			Quality:       quality,
			LastUpdated:   now,
		})
	}

	sort.Slice(synergies, func(i, j int) bool {
		if synergies[i].BrawlerA != synergies[j].BrawlerA {
			return synergies[i].BrawlerA < synergies[j].BrawlerA
		}
		return synergies[i].BrawlerB < synergies[j].BrawlerB
	})
	return synergies
}
