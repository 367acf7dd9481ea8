// Package crawler discovers players through shared matches and aggregates
// per-brawler and per-composition outcome counters for one trophy bracket.
package crawler

import (
	"context"
	"time"

	"brawlmeta/internal/api"
	"brawlmeta/internal/constants"
	"brawlmeta/internal/domain"

	"github.com/rs/zerolog"
)

// StatsSource is the slice of the upstream API the crawler needs.
type StatsSource interface {
	GetPlayer(ctx context.Context, tag string) (*api.Player, error)
	GetBattleLog(ctx context.Context, tag string) (*api.BattleLog, error)
}

// Params bounds a single crawl.
type Params struct {
	Seeds      []string
	Bracket    domain.TrophyBracket
	Depth      int // 1 = seeds only, 2 = seeds + their teammates
	MaxPlayers int
}

// Result is the best-effort aggregate of one crawl.
type Result struct {
	Brawlers     map[string]*BrawlerPerformance
	Compositions map[CompKey]*TeamComposition
	Battles      int
	Visited      map[string]struct{}
}

type Crawler struct {
	source StatsSource
	logger zerolog.Logger
}

func New(source StatsSource, logger zerolog.Logger) *Crawler {
	return &Crawler{
		source: source,
		logger: logger.With().Str("component", "crawler").Logger(),
	}
}

type queued struct {
	tag   string
	depth int
}

// Crawl runs a breadth-first traversal from the seed players. The visited set
// is owned by this invocation, so concurrent bracket crawls cannot corrupt
// each other. A fetch failure for one player is logged and skipped; Crawl
// always returns whatever it collected.
func (c *Crawler) Crawl(ctx context.Context, p Params) (*Result, error) {
	result := &Result{
		Brawlers:     make(map[string]*BrawlerPerformance),
		Compositions: make(map[CompKey]*TeamComposition),
		Visited:      make(map[string]struct{}),
	}

	queue := make([]queued, 0, len(p.Seeds))
	for _, seed := range p.Seeds {
		queue = append(queue, queued{tag: seed, depth: 1})
	}

	c.logger.Info().
		Int("seeds", len(p.Seeds)).
		Int("bracket_min", p.Bracket.Min).
		Int("bracket_max", p.Bracket.Max).
		Int("depth", p.Depth).
		Int("max_players", p.MaxPlayers).
		Msg("starting crawl")

	for len(queue) > 0 && len(result.Visited) < p.MaxPlayers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		next := queue[0]
		queue = queue[1:]

		clean, err := api.ValidateTag(next.tag)
		if err != nil {
			c.logger.Debug().Str("tag", next.tag).Msg("skipping malformed tag")
			continue
		}
		if _, seen := result.Visited[clean]; seen {
			continue
		}
		result.Visited[clean] = struct{}{}

		player, err := c.source.GetPlayer(ctx, clean)
		if err != nil {
			c.logger.Warn().Err(err).Str("tag", clean).Msg("failed to fetch player, skipping")
			continue
		}

		if !p.Bracket.Contains(player.Trophies) {
			c.logger.Debug().
				Str("tag", clean).
				Int("trophies", player.Trophies).
				Msg("player outside target bracket, skipping")
			continue
		}

		battleLog, err := c.source.GetBattleLog(ctx, clean)
		if err != nil {
			c.logger.Warn().Err(err).Str("tag", clean).Msg("failed to fetch battle log, skipping")
			continue
		}
		if battleLog == nil || len(battleLog.Items) == 0 {
			continue
		}

		discovered := c.analyzeBattles(clean, battleLog.Items, result)
		result.Battles += len(battleLog.Items)

		if next.depth < p.Depth {
			for _, tag := range discovered {
				if _, seen := result.Visited[tag]; !seen {
					queue = append(queue, queued{tag: tag, depth: next.depth + 1})
				}
			}
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(constants.PlayerPause):
		}
	}

	c.logger.Info().
		Int("players", len(result.Visited)).
		Int("battles", result.Battles).
		Int("brawlers", len(result.Brawlers)).
		Msg("crawl complete")

	return result, nil
}

// analyzeBattles folds one player's battle log into the result and returns the
// teammate tags discovered for the next traversal depth.
func (c *Crawler) analyzeBattles(playerTag string, battles []api.BattleItem, result *Result) []string {
	discovered := make([]string, 0)
	seen := make(map[string]struct{})

	for _, item := range battles {
		mode := item.Event.Mode
		if mode == "" {
			mode = item.Battle.Mode
		}
		if mode == "" {
			mode = "unknown"
		}
		mapName := item.Event.Map
		if mapName == "" {
			mapName = "unknown"
		}

		switch {
		case len(item.Battle.Teams) > 0:
			tags := c.analyzeTeamBattle(playerTag, &item, mode, mapName, result)
			for _, t := range tags {
				if _, dup := seen[t]; !dup {
					seen[t] = struct{}{}
					discovered = append(discovered, t)
				}
			}
		case len(item.Battle.Players) > 0:
			c.analyzeShowdown(playerTag, &item, mode, mapName, result)
		}
	}

	return discovered
}

func (c *Crawler) analyzeTeamBattle(playerTag string, item *api.BattleItem, mode, mapName string, result *Result) []string {
	battle := &item.Battle

	var myTeam []api.BattlePlayer
	for _, team := range battle.Teams {
		for _, p := range team {
			if cleanTag(p.Tag) == playerTag {
				myTeam = team
				break
			}
		}
		if myTeam != nil {
			break
		}
	}
	if myTeam == nil {
		return nil
	}

	isVictory := battle.Result == "victory"
	isDefeat := battle.Result == "defeat"

	discovered := make([]string, 0, len(myTeam))

	// Every teammate's brawler is credited with the outcome, not only the
	// crawled player's.
	for _, p := range myTeam {
		pTag := cleanTag(p.Tag)
		if pTag != "" && pTag != playerTag {
			discovered = append(discovered, pTag)
		}

		name := normalizeBrawler(p.Brawler.Name)
		if name == "" {
			name = "Unknown"
		}

		perf, ok := result.Brawlers[name]
		if !ok {
			perf = newBrawlerPerformance(name)
			result.Brawlers[name] = perf
		}

		perf.TotalGames++
		switch {
		case isVictory:
			perf.Wins++
			perf.mode(mode).Wins++
			perf.gameMap(mapName).Wins++
		case isDefeat:
			perf.Losses++
		default:
			perf.Draws++
		}
		perf.mode(mode).Games++
		perf.gameMap(mapName).Games++

		// The trophy delta in the log belongs to the crawled player only.
		if pTag == playerTag && battle.TrophyChange != nil {
			perf.TrophyChanges = append(perf.TrophyChanges, *battle.TrophyChange)
		}
	}

	if len(myTeam) == 3 {
		var names [3]string
		for i, p := range myTeam {
			names[i] = normalizeBrawler(p.Brawler.Name)
		}
		key := compKeyFor(names)

		comp, ok := result.Compositions[key]
		if !ok {
			comp = newTeamComposition(key)
			result.Compositions[key] = comp
		}
		comp.Games++
		comp.Modes[mode]++
		if isVictory {
			comp.Wins++
		}
	}

	return discovered
}

// analyzeShowdown credits only the crawled player's brawler; top-4 placement
// counts as a win.
func (c *Crawler) analyzeShowdown(playerTag string, item *api.BattleItem, mode, mapName string, result *Result) {
	battle := &item.Battle

	for _, p := range battle.Players {
		if cleanTag(p.Tag) != playerTag {
			continue
		}

		name := normalizeBrawler(p.Brawler.Name)
		if name == "" {
			name = "Unknown"
		}

		perf, ok := result.Brawlers[name]
		if !ok {
			perf = newBrawlerPerformance(name)
			result.Brawlers[name] = perf
		}

		perf.TotalGames++
		rank := battle.Rank
		if rank == 0 {
			rank = 10
		}
		if rank <= 4 {
			perf.Wins++
			perf.mode(mode).Wins++
			perf.gameMap(mapName).Wins++
		} else {
			perf.Losses++
		}
		perf.mode(mode).Games++
		perf.gameMap(mapName).Games++

		if battle.TrophyChange != nil {
			perf.TrophyChanges = append(perf.TrophyChanges, *battle.TrophyChange)
		}
		return
	}
}

func cleanTag(tag string) string {
	clean, err := api.ValidateTag(tag)
	if err != nil {
		return ""
	}
	return clean
}
