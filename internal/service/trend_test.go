package service

import (
	"context"
	"math"
	"testing"
	"time"

	"brawlmeta/internal/domain"
	"brawlmeta/internal/repository"

	"github.com/rs/zerolog"
)

func baselineEntry(pickRate, winRate float64) *domain.BrawlerTrendHistory {
	return &domain.BrawlerTrendHistory{
		BrawlerName: "Shelly",
		Timestamp:   time.Now().UTC().Add(-60 * time.Hour),
		PickRate:    pickRate,
		WinRate:     winRate,
	}
}

func TestClassifyWithoutBaseline(t *testing.T) {
	now := time.Now().UTC()
	entry := classify(&standing{name: "Shelly", pickRate: 10, winRate: 52, games: 100}, nil, now)

	if entry.TrendDirection != domain.TrendStable {
		t.Errorf("direction = %s, want stable", entry.TrendDirection)
	}
	if entry.TrendStrength != 0 {
		t.Errorf("strength = %v, want 0", entry.TrendStrength)
	}
}

func TestClassifyDirectionBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		pickRate  float64
		winRate   float64
		direction string
	}{
		{"pick gain at threshold", 12.0, 50, domain.TrendStable},
		{"pick gain above threshold", 12.01, 50, domain.TrendRising},
		{"win gain above threshold", 10, 53.01, domain.TrendRising},
		{"pick drop below threshold", 7.99, 50, domain.TrendFalling},
		{"win drop below threshold", 10, 46.99, domain.TrendFalling},
		{"small moves", 11, 51, domain.TrendStable},
	}

	now := time.Now().UTC()
	baseline := baselineEntry(10, 50)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := classify(&standing{name: "Shelly", pickRate: tc.pickRate, winRate: tc.winRate}, baseline, now)
			if entry.TrendDirection != tc.direction {
				t.Errorf("direction = %s, want %s", entry.TrendDirection, tc.direction)
			}
		})
	}
}

func TestClassifyStrength(t *testing.T) {
	now := time.Now().UTC()

	// Pick 10 -> 15 is a 50% relative move, win 50 -> 55 a 10% move.
	entry := classify(&standing{name: "Shelly", pickRate: 15, winRate: 55}, baselineEntry(10, 50), now)
	if math.Abs(entry.TrendStrength-0.3) > 0.001 {
		t.Errorf("strength = %v, want 0.3", entry.TrendStrength)
	}

	// Strength is capped at 1.
	entry = classify(&standing{name: "Shelly", pickRate: 40, winRate: 55}, baselineEntry(1, 1), now)
	if entry.TrendStrength != 1 {
		t.Errorf("strength = %v, want capped at 1", entry.TrendStrength)
	}
}

func TestSynthesizeInsight(t *testing.T) {
	now := time.Now().UTC()

	weak := domain.BrawlerTrendHistory{
		BrawlerName: "Shelly", TrendDirection: domain.TrendRising, TrendStrength: 0.3,
	}
	if _, ok := synthesizeInsight(weak, now); ok {
		t.Error("strength 0.3 must not produce an insight")
	}

	stable := domain.BrawlerTrendHistory{
		BrawlerName: "Shelly", TrendDirection: domain.TrendStable, TrendStrength: 0.9,
	}
	if _, ok := synthesizeInsight(stable, now); ok {
		t.Error("stable trends must not produce insights")
	}

	rising := domain.BrawlerTrendHistory{
		BrawlerName: "Shelly", TrendDirection: domain.TrendRising,
		TrendStrength: 0.6, PickRate: 12, WinRate: 56,
	}
	insight, ok := synthesizeInsight(rising, now)
	if !ok {
		t.Fatal("expected a rising insight")
	}
	if insight.InsightType != domain.InsightBrawlerRise {
		t.Errorf("type = %s, want %s", insight.InsightType, domain.InsightBrawlerRise)
	}
	if insight.ImpactLevel != domain.ImpactHigh {
		t.Errorf("impact = %s, want high for strength > 0.5", insight.ImpactLevel)
	}
	if math.Abs(insight.ConfidenceScore-0.9) > 0.001 {
		t.Errorf("confidence = %v, want 0.9", insight.ConfidenceScore)
	}
	if insight.ExpiresAt.Sub(now) != 72*time.Hour {
		t.Errorf("expiry = %v after now, want 72h", insight.ExpiresAt.Sub(now))
	}

	falling := domain.BrawlerTrendHistory{
		BrawlerName: "Shelly", TrendDirection: domain.TrendFalling,
		TrendStrength: 0.6, PickRate: 4, WinRate: 44,
	}
	insight, ok = synthesizeInsight(falling, now)
	if !ok {
		t.Fatal("expected a falling insight")
	}
	if insight.InsightType != domain.InsightBrawlerFall {
		t.Errorf("type = %s, want %s", insight.InsightType, domain.InsightBrawlerFall)
	}
	if insight.ImpactLevel != domain.ImpactMedium {
		t.Errorf("impact = %s, want medium for falling trends", insight.ImpactLevel)
	}
	if math.Abs(insight.ConfidenceScore-0.8) > 0.001 {
		t.Errorf("confidence = %v, want 0.8", insight.ConfidenceScore)
	}
	if err := insight.Validate(); err != nil {
		t.Errorf("insight failed validation: %v", err)
	}
}

func TestTrendDetectorRunOnce(t *testing.T) {
	db := openMemDB(t)
	snapshots := repository.NewSnapshotRepository(db, zerolog.Nop())
	trends := repository.NewTrendRepository(db, zerolog.Nop())
	detector := NewTrendDetector(snapshots, trends, testConfig(), zerolog.Nop())
	ctx := context.Background()
	now := time.Now().UTC()

	snap := &domain.MetaSnapshot{
		Timestamp: now, BracketMin: 0, BracketMax: 5000, SampleSize: 100, Players: 10,
	}
	if err := snapshots.Insert(ctx, snap, []domain.BrawlerMeta{
		{BrawlerName: "Shelly", PickRate: 12, WinRate: 56},
	}); err != nil {
		t.Fatal(err)
	}
	// Baseline from 60 hours ago with a much lower pick rate.
	if err := trends.AppendHistory(ctx, []domain.BrawlerTrendHistory{
		{BrawlerName: "Shelly", Timestamp: now.Add(-60 * time.Hour), PickRate: 4, WinRate: 50,
			TrendDirection: domain.TrendStable},
	}); err != nil {
		t.Fatal(err)
	}

	if err := detector.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	latest, err := trends.LatestInWindow(ctx, "Shelly", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil {
		t.Fatal("expected a new trend history row")
	}
	if latest.TrendDirection != domain.TrendRising {
		t.Errorf("direction = %s, want rising", latest.TrendDirection)
	}
	if latest.PopularityRank != 1 || latest.PerformanceRank != 1 {
		t.Errorf("ranks = %d/%d, want 1/1", latest.PopularityRank, latest.PerformanceRank)
	}

	active, err := trends.ActiveInsights(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("active insights = %d, want 1", len(active))
	}
	if active[0].Data.BrawlerName != "Shelly" {
		t.Errorf("insight brawler = %s, want Shelly", active[0].Data.BrawlerName)
	}
}
