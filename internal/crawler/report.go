package crawler

import (
	"math"
	"sort"

	"brawlmeta/internal/constants"
	"brawlmeta/internal/domain"
)

// Report is a compiled, threshold-filtered snapshot of one crawl.
type Report struct {
	Payload            domain.SnapshotPayload
	Brawlers           []domain.BrawlerMeta // rows above the minimum-games threshold
	Battles            int
	Players            int
	BrawlerAppearances int
}

// BuildReport compiles a crawl result into a ranked report. Ordering is
// deterministic: ties break by pick rate, then by name.
func BuildReport(result *Result) *Report {
	totalAppearances := 0
	for _, perf := range result.Brawlers {
		totalAppearances += perf.TotalGames
	}

	rankings := make([]domain.RankedBrawler, 0, len(result.Brawlers))
	metas := make([]domain.BrawlerMeta, 0, len(result.Brawlers))
	for name, perf := range result.Brawlers {
		if perf.TotalGames < constants.MinBrawlerGames {
			continue
		}
		pickRate := 0.0
		if totalAppearances > 0 {
			pickRate = round2(float64(perf.TotalGames) / float64(totalAppearances) * 100)
		}
		bestModes := perf.BestModes(constants.MinModeGames)
		bestMaps := perf.BestMaps(constants.MinMapGames)

		rankings = append(rankings, domain.RankedBrawler{
			Name:            name,
			Games:           perf.TotalGames,
			PickRate:        pickRate,
			WinRate:         round2(perf.WinRate()),
			AvgTrophyChange: round1(perf.AvgTrophyChange()),
			BestModes:       bestModes,
			BestMaps:        bestMaps,
		})
		metas = append(metas, domain.BrawlerMeta{
			BrawlerName:     name,
			PickRate:        pickRate,
			WinRate:         round2(perf.WinRate()),
			AvgTrophyChange: round1(perf.AvgTrophyChange()),
			BestModes:       bestModes,
			BestMaps:        bestMaps,
		})
	}

	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].WinRate != rankings[j].WinRate {
			return rankings[i].WinRate > rankings[j].WinRate
		}
		if rankings[i].PickRate != rankings[j].PickRate {
			return rankings[i].PickRate > rankings[j].PickRate
		}
		return rankings[i].Name < rankings[j].Name
	})

	sort.Slice(metas, func(i, j int) bool {
		if metas[i].WinRate != metas[j].WinRate {
			return metas[i].WinRate > metas[j].WinRate
		}
		if metas[i].PickRate != metas[j].PickRate {
			return metas[i].PickRate > metas[j].PickRate
		}
		return metas[i].BrawlerName < metas[j].BrawlerName
	})

	tierList := buildTierList(rankings)

	if len(rankings) > constants.TopRankings {
		rankings = rankings[:constants.TopRankings]
	}

	return &Report{
		Payload: domain.SnapshotPayload{
			TierList:        tierList,
			Rankings:        rankings,
			TopCompositions: buildCompositions(result),
			ModeMeta:        buildModeMeta(result),
		},
		Brawlers:           metas,
		Battles:            result.Battles,
		Players:            len(result.Visited),
		BrawlerAppearances: totalAppearances,
	}
}

// buildTierList evaluates tiers in order against the filtered, sorted ranking.
func buildTierList(rankings []domain.RankedBrawler) domain.TierList {
	var tiers domain.TierList
	for _, b := range rankings {
		switch {
		case b.WinRate >= 55 && b.PickRate >= 3:
			if len(tiers.S) < 5 {
				tiers.S = append(tiers.S, b.Name)
			}
		case b.WinRate >= 50 && b.WinRate < 55 && b.PickRate >= 2:
			if len(tiers.A) < 8 {
				tiers.A = append(tiers.A, b.Name)
			}
		case b.WinRate >= 45 && b.WinRate < 50:
			if len(tiers.B) < 10 {
				tiers.B = append(tiers.B, b.Name)
			}
		}
	}
	return tiers
}

func buildCompositions(result *Result) []domain.CompositionStat {
	comps := make([]domain.CompositionStat, 0, len(result.Compositions))
	for key, comp := range result.Compositions {
		if comp.Games < constants.MinCompositionGames {
			continue
		}
		modes := make(map[string]int, len(comp.Modes))
		for mode, n := range comp.Modes {
			modes[mode] = n
		}
		comps = append(comps, domain.CompositionStat{
			Brawlers: []string{key[0], key[1], key[2]},
			Games:    comp.Games,
			Wins:     comp.Wins,
			WinRate:  round2(comp.WinRate()),
			Modes:    modes,
		})
	}

	sort.Slice(comps, func(i, j int) bool {
		if comps[i].WinRate != comps[j].WinRate {
			return comps[i].WinRate > comps[j].WinRate
		}
		if comps[i].Games != comps[j].Games {
			return comps[i].Games > comps[j].Games
		}
		return comps[i].Brawlers[0] < comps[j].Brawlers[0]
	})

	if len(comps) > constants.TopCompositions {
		comps = comps[:constants.TopCompositions]
	}
	return comps
}

func buildModeMeta(result *Result) map[string][]domain.ModeLeader {
	modeMeta := make(map[string][]domain.ModeLeader)
	for name, perf := range result.Brawlers {
		for mode, c := range perf.Modes {
			if c.Games < constants.MinModeGames {
				continue
			}
			modeMeta[mode] = append(modeMeta[mode], domain.ModeLeader{
				Name:    name,
				WinRate: round2(float64(c.Wins) / float64(c.Games) * 100),
				Games:   c.Games,
			})
		}
	}

	for mode := range modeMeta {
		leaders := modeMeta[mode]
		sort.Slice(leaders, func(i, j int) bool {
			if leaders[i].WinRate != leaders[j].WinRate {
				return leaders[i].WinRate > leaders[j].WinRate
			}
			return leaders[i].Name < leaders[j].Name
		})
		if len(leaders) > constants.TopModeLeaders {
			leaders = leaders[:constants.TopModeLeaders]
		}
		modeMeta[mode] = leaders
	}
	return modeMeta
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
