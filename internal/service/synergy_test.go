package service

import (
	"testing"
	"time"

	"brawlmeta/internal/domain"
)

func TestExtractPairsCanonicalOrder(t *testing.T) {
	pairs := make(map[pairKey]*pairStats)
	extractPairs(pairs, domain.CompositionStat{
		Brawlers: []string{"Shelly", "Colt", "Poco"},
		Games:    10,
		Wins:     6,
		Modes:    map[string]int{"gemGrab": 10},
	})

	if len(pairs) != 3 {
		t.Fatalf("pairs = %d, want 3", len(pairs))
	}
	for key := range pairs {
		if key.a >= key.b {
			t.Errorf("pair %q/%q is not in canonical order", key.a, key.b)
		}
	}
	stats := pairs[pairKey{a: "Colt", b: "Shelly"}]
	if stats == nil {
		t.Fatal("expected Colt/Shelly pair")
	}
	if stats.games != 10 || stats.wins != 6 {
		t.Errorf("got %d games / %d wins, want 10/6", stats.games, stats.wins)
	}
}

func TestExtractPairsAccumulatesAcrossComps(t *testing.T) {
	pairs := make(map[pairKey]*pairStats)
	extractPairs(pairs, domain.CompositionStat{
		Brawlers: []string{"Colt", "Shelly", "Poco"}, Games: 4, Wins: 2,
	})
	extractPairs(pairs, domain.CompositionStat{
		Brawlers: []string{"Shelly", "Colt", "Bull"}, Games: 6, Wins: 5,
	})

	stats := pairs[pairKey{a: "Colt", b: "Shelly"}]
	if stats.games != 10 || stats.wins != 7 {
		t.Errorf("got %d games / %d wins, want 10/7", stats.games, stats.wins)
	}
}

func TestCompileSynergiesThresholdAndQuality(t *testing.T) {
	now := time.Now().UTC()
	pairs := map[pairKey]*pairStats{
		{a: "Bull", b: "Colt"}:   {games: 4, wins: 4, modes: map[string]*modeTally{}},
		{a: "Colt", b: "Shelly"}: {games: 25, wins: 15, modes: map[string]*modeTally{}},
		{a: "Poco", b: "Shelly"}: {games: 55, wins: 30, modes: map[string]*modeTally{}},
		{a: "Jessie", b: "Nita"}: {games: 5, wins: 1, modes: map[string]*modeTally{}},
	}

	synergies := compileSynergies(pairs, now)
	if len(synergies) != 3 {
		t.Fatalf("synergies = %d, want 3 (pairs under 5 games dropped)", len(synergies))
	}

	byPair := make(map[string]domain.BrawlerSynergy)
	for _, s := range synergies {
		if err := s.Validate(); err != nil {
			t.Errorf("invalid synergy %s/%s: %v", s.BrawlerA, s.BrawlerB, err)
		}
		byPair[s.BrawlerA+"/"+s.BrawlerB] = s
	}

	if got := byPair["Jessie/Nita"].Quality; got != domain.QualityLow {
		t.Errorf("5 games quality = %s, want low", got)
	}
	if got := byPair["Colt/Shelly"].Quality; got != domain.QualityMedium {
		t.Errorf("25 games quality = %s, want medium", got)
	}
	if got := byPair["Poco/Shelly"].Quality; got != domain.QualityHigh {
		t.Errorf("55 games quality = %s, want high", got)
	}
	if got := byPair["Colt/Shelly"].WinRate; got != 60 {
		t.Errorf("win rate = %v, want 60", got)
	}
}

func TestCompileSynergiesModeBreakdown(t *testing.T) {
	pairs := map[pairKey]*pairStats{
		{a: "Colt", b: "Shelly"}: {
			games: 20, wins: 10,
			modes: map[string]*modeTally{
				"gemGrab":   {games: 12, wins: 8},
				"brawlBall": {games: 8, wins: 2},
			},
		},
	}

	synergies := compileSynergies(pairs, time.Now().UTC())
	if len(synergies) != 1 {
		t.Fatalf("synergies = %d, want 1", len(synergies))
	}
	modes := synergies[0].BestModes
	if len(modes) != 2 {
		t.Fatalf("best modes = %d, want 2", len(modes))
	}
	if modes[0].Mode != "gemGrab" {
		t.Errorf("best mode = %s, want gemGrab first", modes[0].Mode)
	}
}
