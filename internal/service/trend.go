package service

import (
	"context"
	"fmt"
	"math"
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

var (
	trendEntriesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brawlmeta_trend_entries_total",
		Help: "Trend history rows appended.",
	})
	trendInsightsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brawlmeta_trend_insights_total",
		Help: "Trend insights created, by type.",
	}, []string{"type"})
)

// TrendDetector compares current brawler standings against a two to three day
// old baseline and records direction, strength and noteworthy shifts.
type TrendDetector struct {
	snapshots *repository.SnapshotRepository
	trends    *repository.TrendRepository
	cfg       *config.Config
	logger    zerolog.Logger
}

func NewTrendDetector(
	snapshots *repository.SnapshotRepository,
	trends *repository.TrendRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *TrendDetector {
	return &TrendDetector{
		snapshots: snapshots,
		trends:    trends,
		cfg:       cfg,
		logger:    logger.With().Str("component", "trends").Logger(),
	}
}

func (t *TrendDetector) Run(ctx context.Context) {
	if err := t.RunOnce(ctx); err != nil {
		t.logger.Error().Err(err).Msg("trend detection failed")
	}

	ticker := time.NewTicker(t.cfg.TrendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := t.RunOnce(ctx); err != nil {
				t.logger.Error().Err(err).Msg("trend detection failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// standing is one brawler's current cross-bracket position.
type standing struct {
	name            string
	winRate         float64
	pickRate        float64
	games           int
	performanceRank int
	popularityRank  int
}

func (t *TrendDetector) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()

	standings, err := t.currentStandings(ctx, now)
	if err != nil {
		return err
	}
	if len(standings) == 0 {
		t.logger.Warn().Msg("no recent snapshots, skipping trend detection")
		return nil
	}

	entries := make([]domain.BrawlerTrendHistory, 0, len(standings))
	insights := make([]domain.GlobalTrendInsight, 0)
	for _, st := range standings {
		baseline, err := t.trends.LatestInWindow(ctx, st.name,
			now.Add(-constants.TrendLookbackStart), now.Add(-constants.TrendLookbackEnd))
		if err != nil {
			return err
		}

		entry := classify(st, baseline, now)
		entries = append(entries, entry)

		if insight, ok := synthesizeInsight(entry, now); ok && insight.ConfidenceScore >= t.cfg.MinInsightConfidence {
			insights = append(insights, insight)
		}
	}

	if err := t.trends.AppendHistory(ctx, entries); err != nil {
		return err
	}
	trendEntriesWritten.Add(float64(len(entries)))

	if len(insights) > 0 {
		if err := t.trends.InsertInsights(ctx, insights); err != nil {
			return err
		}
		for _, ins := range insights {
			trendInsightsCreated.WithLabelValues(ins.InsightType).Inc()
		}
	}

	expired, err := t.trends.DeactivateExpired(ctx, now)
	if err != nil {
		return err
	}

	t.logger.Info().
		Int("brawlers", len(entries)).
		Int("insights", len(insights)).
		Int64("expired", expired).
		Msg("trend cycle finished")
	return nil
}

// currentStandings merges the aggregation window's snapshots into ranked
// per-brawler positions, the same estimation the aggregator uses.
func (t *TrendDetector) currentStandings(ctx context.Context, now time.Time) ([]*standing, error) {
	snapshots, err := t.snapshots.ListSince(ctx, now.Add(-constants.AggregationWindow))
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}

	type acc struct {
		games, wins, appearances int
		pickRateSum              float64
	}
	accs := make(map[string]*acc)
	for _, snap := range snapshots {
		metas, err := t.snapshots.BrawlerMeta(ctx, snap.ID)
		if err != nil {
			return nil, err
		}
		for _, meta := range metas {
			a := accs[meta.BrawlerName]
			if a == nil {
				a = &acc{}
				accs[meta.BrawlerName] = a
			}
			estGames := int(meta.PickRate / 100.0 * float64(snap.SampleSize))
			a.games += estGames
			a.wins += int(float64(estGames) * meta.WinRate / 100.0)
			a.pickRateSum += meta.PickRate
			a.appearances++
		}
	}

	standings := make([]*standing, 0, len(accs))
	for name, a := range accs {
		if a.games == 0 {
			continue
		}
		standings = append(standings, &standing{
			name:     name,
			winRate:  float64(a.wins) / float64(a.games) * 100,
			pickRate: a.pickRateSum / float64(a.appearances),
			games:    a.games,
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		si := standings[i].winRate*0.6 + standings[i].pickRate*0.4
		sj := standings[j].winRate*0.6 + standings[j].pickRate*0.4
		if si != sj {
			return si > sj
		}
		return standings[i].name < standings[j].name
	})
	for i, st := range standings {
		st.performanceRank = i + 1
	}

	byPopularity := make([]*standing, len(standings))
	copy(byPopularity, standings)
	sort.Slice(byPopularity, func(i, j int) bool {
		if byPopularity[i].pickRate != byPopularity[j].pickRate {
			return byPopularity[i].pickRate > byPopularity[j].pickRate
		}
		return byPopularity[i].name < byPopularity[j].name
	})
	for i, st := range byPopularity {
		st.popularityRank = i + 1
	}

	return standings, nil
}

// classify compares a standing against its baseline. No baseline means
// stable with zero strength.
func classify(st *standing, baseline *domain.BrawlerTrendHistory, now time.Time) domain.BrawlerTrendHistory {
	direction := domain.TrendStable
	strength := 0.0

	if baseline != nil {
		pickChange := st.pickRate - baseline.PickRate
		winChange := st.winRate - baseline.WinRate

		pickDelta := math.Abs(pickChange) / math.Max(baseline.PickRate, 1)
		winDelta := math.Abs(winChange) / math.Max(baseline.WinRate, 1)
		strength = math.Min((pickDelta+winDelta)/2, 1.0)

		switch {
		case pickChange > 2.0 || winChange > 3.0:
			direction = domain.TrendRising
		case pickChange < -2.0 || winChange < -3.0:
			direction = domain.TrendFalling
		}
	}

	return domain.BrawlerTrendHistory{
		BrawlerName:     st.name,
		Timestamp:       now,
		PickRate:        round2(st.pickRate),
		WinRate:         round2(st.winRate),
		TrendDirection:  direction,
		TrendStrength:   round3(strength),
		PopularityRank:  st.popularityRank,
		PerformanceRank: st.performanceRank,
		GamesAnalyzed:   st.games,
	}
}

// synthesizeInsight turns a strong enough trend entry into a stored insight.
func synthesizeInsight(entry domain.BrawlerTrendHistory, now time.Time) (domain.GlobalTrendInsight, bool) {
	if entry.TrendStrength <= 0.3 {
		return domain.GlobalTrendInsight{}, false
	}

	data := domain.InsightData{
		BrawlerName:   entry.BrawlerName,
		WinRate:       entry.WinRate,
		PickRate:      entry.PickRate,
		TrendStrength: entry.TrendStrength,
	}

	switch entry.TrendDirection {
	case domain.TrendRising:
		impact := domain.ImpactMedium
		if entry.TrendStrength > 0.5 {
			impact = domain.ImpactHigh
		}
		return domain.GlobalTrendInsight{
			Timestamp:   now,
			InsightType: domain.InsightBrawlerRise,
			Title:       fmt.Sprintf("%s on the Rise", entry.BrawlerName),
			Narrative: fmt.Sprintf(
				"**%s** is climbing fast in the current meta.\n\n"+
					"- **Win Rate**: %.1f%%\n- **Pick Rate**: %.1f%%\n- **Trend strength**: %.0f%%\n\n"+
					"This brawler is gaining in both popularity and performance. Now is the time to learn it.",
				entry.BrawlerName, entry.WinRate, entry.PickRate, entry.TrendStrength*100),
			Data:            data,
			ConfidenceScore: math.Min(entry.TrendStrength+0.3, 1.0),
			ImpactLevel:     impact,
			IsActive:        true,
			ExpiresAt:       now.Add(constants.InsightLifetime),
		}, true
	case domain.TrendFalling:
		return domain.GlobalTrendInsight{
			Timestamp:   now,
			InsightType: domain.InsightBrawlerFall,
			Title:       fmt.Sprintf("%s in Decline", entry.BrawlerName),
			Narrative: fmt.Sprintf(
				"**%s** is losing ground in the current meta.\n\n"+
					"- **Win Rate**: %.1f%%\n- **Pick Rate**: %.1f%%\n- **Trend strength**: %.0f%%\n\n"+
					"It may be worth exploring other options for now.",
				entry.BrawlerName, entry.WinRate, entry.PickRate, entry.TrendStrength*100),
			Data:            data,
			ConfidenceScore: math.Min(entry.TrendStrength+0.2, 1.0),
			ImpactLevel:     domain.ImpactMedium,
			IsActive:        true,
			ExpiresAt:       now.Add(constants.InsightLifetime),
		}, true
	}
	return domain.GlobalTrendInsight{}, false
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
