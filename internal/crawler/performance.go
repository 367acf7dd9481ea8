package crawler

import (
	"sort"

	"brawlmeta/internal/constants"
	"brawlmeta/internal/domain"
)

// brawlerAliases maps internal/beta brawler names seen in battle logs to their
// release names before aggregation.
var brawlerAliases = map[string]string{
	"Trunk":  "Unknown (Beta)",
	"Pierce": "Unknown (Beta)",
	"Alli":   "Unknown (Beta)",
	"Gigi":   "Unknown (Beta)",
	"Hook":   "Gene",
	"Sniper": "Bea",
}

func normalizeBrawler(name string) string {
	if alias, ok := brawlerAliases[name]; ok {
		return alias
	}
	return name
}

type modeCounter struct {
	Games int
	Wins  int
}

// BrawlerPerformance accumulates one brawler's outcomes during a single crawl.
type BrawlerPerformance struct {
	Name          string
	TotalGames    int
	Wins          int
	Losses        int
	Draws         int
	TrophyChanges []int
	Modes         map[string]*modeCounter
	Maps          map[string]*modeCounter
}

func newBrawlerPerformance(name string) *BrawlerPerformance {
	return &BrawlerPerformance{
		Name:  name,
		Modes: make(map[string]*modeCounter),
		Maps:  make(map[string]*modeCounter),
	}
}

func (p *BrawlerPerformance) mode(name string) *modeCounter {
	c, ok := p.Modes[name]
	if !ok {
		c = &modeCounter{}
		p.Modes[name] = c
	}
	return c
}

func (p *BrawlerPerformance) gameMap(name string) *modeCounter {
	c, ok := p.Maps[name]
	if !ok {
		c = &modeCounter{}
		p.Maps[name] = c
	}
	return c
}

func (p *BrawlerPerformance) WinRate() float64 {
	if p.TotalGames == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.TotalGames) * 100
}

func (p *BrawlerPerformance) AvgTrophyChange() float64 {
	if len(p.TrophyChanges) == 0 {
		return 0
	}
	sum := 0
	for _, c := range p.TrophyChanges {
		sum += c
	}
	return float64(sum) / float64(len(p.TrophyChanges))
}

// BestModes returns the top modes by win rate, requiring a minimum sample.
func (p *BrawlerPerformance) BestModes(minGames int) []domain.ModeStat {
	stats := make([]domain.ModeStat, 0, len(p.Modes))
	for mode, c := range p.Modes {
		if c.Games >= minGames {
			stats = append(stats, domain.ModeStat{
				Mode:    mode,
				WinRate: round1(float64(c.Wins) / float64(c.Games) * 100),
				Games:   c.Games,
			})
		}
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].WinRate != stats[j].WinRate {
			return stats[i].WinRate > stats[j].WinRate
		}
		return stats[i].Mode < stats[j].Mode
	})
	if len(stats) > constants.TopBestModes {
		stats = stats[:constants.TopBestModes]
	}
	return stats
}

// BestMaps returns the top maps by win rate, requiring a minimum sample.
func (p *BrawlerPerformance) BestMaps(minGames int) []domain.MapStat {
	stats := make([]domain.MapStat, 0, len(p.Maps))
	for m, c := range p.Maps {
		if c.Games >= minGames {
			stats = append(stats, domain.MapStat{
				Map:     m,
				WinRate: round1(float64(c.Wins) / float64(c.Games) * 100),
				Games:   c.Games,
			})
		}
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].WinRate != stats[j].WinRate {
			return stats[i].WinRate > stats[j].WinRate
		}
		return stats[i].Map < stats[j].Map
	})
	if len(stats) > constants.TopBestMaps {
		stats = stats[:constants.TopBestMaps]
	}
	return stats
}

// CompKey is a canonically sorted 3-brawler composition key.
type CompKey [3]string

func compKeyFor(names [3]string) CompKey {
	sort.Strings(names[:])
	return CompKey(names)
}

// TeamComposition accumulates one 3-brawler lineup's outcomes during a crawl.
type TeamComposition struct {
	Brawlers CompKey
	Games    int
	Wins     int
	Modes    map[string]int
}

func newTeamComposition(key CompKey) *TeamComposition {
	return &TeamComposition{Brawlers: key, Modes: make(map[string]int)}
}

func (c *TeamComposition) WinRate() float64 {
	if c.Games == 0 {
		return 0
	}
	return float64(c.Wins) / float64(c.Games) * 100
}
