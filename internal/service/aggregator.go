package service

import (
	"context"
	"math"
	"sort"
	"time"

	"brawlmeta/internal/config"
	"brawlmeta/internal/constants"
	"brawlmeta/internal/domain"
	"brawlmeta/internal/repository"
	"brawlmeta/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var aggregateCycles = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "brawlmeta_aggregator_cycles_total",
	Help: "Aggregation cycles by outcome.",
}, []string{"outcome"})

// Aggregator merges recent per-bracket snapshots into one global view and
// hands the stored aggregate to the narrative worker.
type Aggregator struct {
	snapshots  *repository.SnapshotRepository
	aggregates *repository.AggregateRepository
	narrative  *worker.NarrativeWorker
	cfg        *config.Config
	logger     zerolog.Logger
}

func NewAggregator(
	snapshots *repository.SnapshotRepository,
	aggregates *repository.AggregateRepository,
	narrative *worker.NarrativeWorker,
	cfg *config.Config,
	logger zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		snapshots:  snapshots,
		aggregates: aggregates,
		narrative:  narrative,
		cfg:        cfg,
		logger:     logger.With().Str("component", "aggregator").Logger(),
	}
}

func (a *Aggregator) Run(ctx context.Context) {
	if _, err := a.RunOnce(ctx); err != nil {
		a.logger.Error().Err(err).Msg("aggregation failed")
	}

	ticker := time.NewTicker(a.cfg.AggregatorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := a.RunOnce(ctx); err != nil {
				a.logger.Error().Err(err).Msg("aggregation failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce merges snapshots from the aggregation window. An empty window is
// not an error; nothing is stored and nil is returned.
func (a *Aggregator) RunOnce(ctx context.Context) (*domain.GlobalMetaAggregate, error) {
	cutoff := time.Now().UTC().Add(-constants.AggregationWindow)
	snapshots, err := a.snapshots.ListSince(ctx, cutoff)
	if err != nil {
		aggregateCycles.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(snapshots) == 0 {
		a.logger.Warn().Msg("no recent snapshots, skipping aggregation")
		aggregateCycles.WithLabelValues("empty").Inc()
		return nil, nil
	}

	payload, totalBattles, totalPlayers, err := a.merge(ctx, snapshots)
	if err != nil {
		aggregateCycles.WithLabelValues("error").Inc()
		return nil, err
	}

	agg := &domain.GlobalMetaAggregate{
		Timestamp:    time.Now().UTC(),
		TotalBattles: totalBattles,
		TotalPlayers: totalPlayers,
		Data:         *payload,
	}
	if err := a.aggregates.Insert(ctx, agg); err != nil {
		aggregateCycles.WithLabelValues("error").Inc()
		return nil, err
	}

	a.narrative.Enqueue(worker.Job{AggregateID: agg.ID, Payload: agg.Data})

	aggregateCycles.WithLabelValues("ok").Inc()
	a.logger.Info().
		Int64("aggregate_id", agg.ID).
		Int("snapshots", len(snapshots)).
		Int("battles", totalBattles).
		Int("brawlers", payload.BrawlersTracked).
		Msg("global aggregate stored")
	return agg, nil
}

type brawlerAccumulator struct {
	games         int
	wins          int
	appearances   int
	trophyChanges []float64
}

func (a *Aggregator) merge(ctx context.Context, snapshots []domain.MetaSnapshot) (*domain.AggregatePayload, int, int, error) {
	totalBattles := 0
	totalPlayers := 0
	brackets := make(map[[2]int]struct{})
	for _, snap := range snapshots {
		totalBattles += snap.SampleSize
		totalPlayers += snap.Players
		brackets[[2]int{snap.BracketMin, snap.BracketMax}] = struct{}{}
	}

	accs := make(map[string]*brawlerAccumulator)
	modeAccs := make(map[string]map[string]*brawlerAccumulator)
	for _, snap := range snapshots {
		metas, err := a.snapshots.BrawlerMeta(ctx, snap.ID)
		if err != nil {
			return nil, 0, 0, err
		}
		for _, meta := range metas {
			acc := accs[meta.BrawlerName]
			if acc == nil {
				acc = &brawlerAccumulator{}
				accs[meta.BrawlerName] = acc
			}

			// A bracket snapshot stores rates, not raw counts, so games are
			// reconstructed from pick rate and the snapshot's sample size.
			estGames := int(meta.PickRate / 100.0 * float64(snap.SampleSize))
			estWins := int(float64(estGames) * meta.WinRate / 100.0)
			acc.games += estGames
			acc.wins += estWins
			acc.appearances++
			if meta.AvgTrophyChange != 0 {
				acc.trophyChanges = append(acc.trophyChanges, meta.AvgTrophyChange)
			}

			for _, ms := range meta.BestModes {
				byBrawler := modeAccs[ms.Mode]
				if byBrawler == nil {
					byBrawler = make(map[string]*brawlerAccumulator)
					modeAccs[ms.Mode] = byBrawler
				}
				macc := byBrawler[meta.BrawlerName]
				if macc == nil {
					macc = &brawlerAccumulator{}
					byBrawler[meta.BrawlerName] = macc
				}
				macc.games += constants.ModeGamesEstimate
				macc.wins += int(float64(constants.ModeGamesEstimate) * ms.WinRate / 100.0)
			}
		}
	}

	top := make([]domain.GlobalBrawler, 0, len(accs))
	for name, acc := range accs {
		if acc.games == 0 {
			continue
		}
		avgTrophy := 0.0
		if len(acc.trophyChanges) > 0 {
			sum := 0.0
			for _, t := range acc.trophyChanges {
				sum += t
			}
			avgTrophy = sum / float64(len(acc.trophyChanges))
		}
		quality := domain.QualityLow
		switch {
		case acc.appearances >= constants.AggregateQualityTop:
			quality = domain.QualityHigh
		case acc.appearances >= constants.AggregateQualityMin:
			quality = domain.QualityMedium
		}
		top = append(top, domain.GlobalBrawler{
			Name:            name,
			Games:           acc.games,
			Wins:            acc.wins,
			WinRate:         round2(float64(acc.wins) / float64(acc.games) * 100),
			PickRate:        round2(float64(acc.games) / float64(totalBattles) * 100),
			AvgTrophyChange: round2(avgTrophy),
			Quality:         quality,
		})
	}

	sort.Slice(top, func(i, j int) bool {
		si := top[i].WinRate*0.6 + top[i].PickRate*0.4
		sj := top[j].WinRate*0.6 + top[j].PickRate*0.4
		if si != sj {
			return si > sj
		}
		return top[i].Name < top[j].Name
	})

	tracked := len(top)
	if len(top) > constants.TopGlobalBrawlers {
		top = top[:constants.TopGlobalBrawlers]
	}

	breakdown := make(map[string][]domain.ModeLeader, len(modeAccs))
	for mode, byBrawler := range modeAccs {
		leaders := make([]domain.ModeLeader, 0, len(byBrawler))
		for name, acc := range byBrawler {
			if acc.games == 0 {
				continue
			}
			leaders = append(leaders, domain.ModeLeader{
				Name:    name,
				WinRate: round2(float64(acc.wins) / float64(acc.games) * 100),
				Games:   acc.games,
			})
		}
		sort.Slice(leaders, func(i, j int) bool {
			if leaders[i].WinRate != leaders[j].WinRate {
				return leaders[i].WinRate > leaders[j].WinRate
			}
			return leaders[i].Name < leaders[j].Name
		})
		if len(leaders) > constants.TopModeLeaders {
			leaders = leaders[:constants.TopModeLeaders]
		}
		breakdown[mode] = leaders
	}

	return &domain.AggregatePayload{
		TopBrawlers:     top,
		BrawlersTracked: tracked,
		SnapshotCount:   len(snapshots),
		Brackets:        len(brackets),
		ModeBreakdown:   breakdown,
	}, totalBattles, totalPlayers, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
