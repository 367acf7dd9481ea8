// Package service hosts the pipeline loops: bracket collection, cross-bracket
// aggregation, synergy extraction and trend detection.
package service

import (
	"context"
	"encoding/json"
	"time"

	"brawlmeta/internal/api"
	"brawlmeta/internal/cache"
	"brawlmeta/internal/config"
	"brawlmeta/internal/constants"
	"brawlmeta/internal/crawler"
	"brawlmeta/internal/domain"
	"brawlmeta/internal/repository"
	"brawlmeta/internal/resilience"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const fallbackBrawlerID = int64(16000000)

var (
	collectorCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brawlmeta_collector_cycles_total",
		Help: "Completed collection cycles.",
	})
	snapshotsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brawlmeta_snapshots_stored_total",
		Help: "Meta snapshots stored, per trophy bracket.",
	}, []string{"bracket"})
	battlesAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brawlmeta_battles_analyzed_total",
		Help: "Battles folded into snapshots.",
	})
	crawlDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brawlmeta_bracket_crawl_seconds",
		Help:    "Wall time of a single bracket crawl.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// guardedSource routes crawler fetches through the resilience guard so one
// degraded upstream cannot hammer the API with retries from every bracket.
type guardedSource struct {
	client *api.BrawlClient
	guard  *resilience.Guard
}

func (s *guardedSource) GetPlayer(ctx context.Context, tag string) (*api.Player, error) {
	return resilience.Fetch(ctx, s.guard, "get_player", func(ctx context.Context) (*api.Player, error) {
		return s.client.GetPlayer(ctx, tag)
	})
}

func (s *guardedSource) GetBattleLog(ctx context.Context, tag string) (*api.BattleLog, error) {
	return resilience.Fetch(ctx, s.guard, "get_battlelog", func(ctx context.Context) (*api.BattleLog, error) {
		return s.client.GetBattleLog(ctx, tag)
	})
}

// Collector walks every trophy bracket on a fixed interval, crawls a sample
// of players per bracket and persists the compiled snapshots.
type Collector struct {
	client    *api.BrawlClient
	guard     *resilience.Guard
	crawler   *crawler.Crawler
	snapshots *repository.SnapshotRepository
	refdata   *repository.RefDataRepository
	cache     cache.Store
	cfg       *config.Config
	logger    zerolog.Logger
}

func NewCollector(
	client *api.BrawlClient,
	guard *resilience.Guard,
	snapshots *repository.SnapshotRepository,
	refdata *repository.RefDataRepository,
	store cache.Store,
	cfg *config.Config,
	logger zerolog.Logger,
) *Collector {
	log := logger.With().Str("component", "collector").Logger()
	return &Collector{
		client:    client,
		guard:     guard,
		crawler:   crawler.New(&guardedSource{client: client, guard: guard}, log),
		snapshots: snapshots,
		refdata:   refdata,
		cache:     store,
		cfg:       cfg,
		logger:    log,
	}
}

// Run executes one cycle immediately, then one per configured interval until
// the context ends.
func (c *Collector) Run(ctx context.Context) {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.cfg.CollectorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce refreshes reference data, then crawls every bracket in sequence
// with a pause between brackets to respect upstream rate limits.
func (c *Collector) RunOnce(ctx context.Context) {
	runID := uuid.NewString()[:8]
	log := c.logger.With().Str("run_id", runID).Logger()
	start := time.Now()
	log.Info().Msg("collection cycle started")

	c.refreshStaticData(ctx, log)

	for i, bracket := range domain.Brackets {
		if i > 0 {
			select {
			case <-time.After(constants.BracketPause):
			case <-ctx.Done():
				return
			}
		}
		c.collectBracket(ctx, log, bracket)
	}

	collectorCycles.Inc()
	log.Info().Dur("duration", time.Since(start)).Msg("collection cycle finished")
}

func (c *Collector) collectBracket(ctx context.Context, log zerolog.Logger, bracket domain.TrophyBracket) {
	blog := log.With().Int("bracket_min", bracket.Min).Int("bracket_max", bracket.Max).Logger()

	seeds := c.seedsFor(ctx, blog, bracket)
	if len(seeds) == 0 {
		blog.Warn().Msg("no seed players found, skipping bracket")
		return
	}

	start := time.Now()
	result, err := c.crawler.Crawl(ctx, crawler.Params{
		Seeds:      seeds,
		Bracket:    bracket,
		Depth:      c.cfg.CrawlDepth,
		MaxPlayers: c.cfg.MaxPlayersPerBracket,
	})
	crawlDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		blog.Warn().Err(err).Msg("crawl interrupted")
	}
	if result == nil || result.Battles == 0 {
		blog.Warn().Msg("crawl produced no battles, skipping snapshot")
		return
	}

	report := crawler.BuildReport(result)
	snap := domain.MetaSnapshot{
		Timestamp:  time.Now().UTC(),
		BracketMin: bracket.Min,
		BracketMax: bracket.Max,
		SampleSize: report.Battles,
		Players:    report.Players,
		Data:       report.Payload,
	}
	if err := c.snapshots.Insert(ctx, &snap, report.Brawlers); err != nil {
		blog.Error().Err(err).Msg("failed to store snapshot")
		return
	}

	pruned, err := c.snapshots.Prune(ctx, bracket, constants.MaxSnapshotsPerBracket)
	if err != nil {
		blog.Error().Err(err).Msg("failed to prune old snapshots")
	}

	snapshotsStored.WithLabelValues(bracket.Label()).Inc()
	battlesAnalyzed.Add(float64(report.Battles))
	blog.Info().
		Int64("snapshot_id", snap.ID).
		Int("battles", report.Battles).
		Int("players", report.Players).
		Int("brawlers", len(report.Brawlers)).
		Int64("pruned", pruned).
		Msg("bracket snapshot stored")
}

// seedsFor picks crawl entry points by bracket height: the global leaderboard
// for top brackets, brawler rankings for mid brackets, and club members as a
// fallback when the pool is too small.
func (c *Collector) seedsFor(ctx context.Context, log zerolog.Logger, bracket domain.TrophyBracket) []string {
	var seeds []string

	switch {
	case bracket.Min >= 30000:
		rankings, err := resilience.Fetch(ctx, c.guard, "player_rankings", func(ctx context.Context) (*api.PlayerRankings, error) {
			return c.client.GetPlayerRankings(ctx, "global", 50)
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to fetch global rankings")
		} else {
			for _, p := range capItems(rankings.Items, constants.TopRankings) {
				seeds = append(seeds, p.Tag)
			}
		}
	case bracket.Min >= 10000:
		brawlerID := c.firstBrawlerID(ctx)
		rankings, err := resilience.Fetch(ctx, c.guard, "brawler_rankings", func(ctx context.Context) (*api.PlayerRankings, error) {
			return c.client.GetBrawlerRankings(ctx, brawlerID, "global", 50)
		})
		if err != nil {
			log.Warn().Err(err).Int64("brawler_id", brawlerID).Msg("failed to fetch brawler rankings")
		} else {
			for _, p := range capItems(rankings.Items, constants.TopRankings) {
				seeds = append(seeds, p.Tag)
			}
		}
	}

	if len(seeds) < 10 {
		seeds = append(seeds, c.clubSeeds(ctx, log)...)
	}

	return dedupSeeds(seeds, constants.MaxSeedPlayers)
}

// firstBrawlerID resolves the lowest catalogued brawler ID for the mid
// bracket seed strategy: the reference cache first, then the database, then
// a fixed fallback.
func (c *Collector) firstBrawlerID(ctx context.Context) int64 {
	if raw, ok := c.cache.GetBrawlers(ctx); ok {
		var catalog api.BrawlerCatalog
		if err := json.Unmarshal(raw, &catalog); err == nil && len(catalog.Items) > 0 {
			lowest := catalog.Items[0].ID
			for _, b := range catalog.Items[1:] {
				if b.ID < lowest {
					lowest = b.ID
				}
			}
			return lowest
		}
	}
	if first, err := c.refdata.FirstBrawler(ctx); err == nil && first != nil {
		return first.BrawlerID
	}
	return fallbackBrawlerID
}

func (c *Collector) clubSeeds(ctx context.Context, log zerolog.Logger) []string {
	clubs, err := resilience.Fetch(ctx, c.guard, "club_rankings", func(ctx context.Context) (*api.ClubRankings, error) {
		return c.client.GetClubRankings(ctx, "global", 10)
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch club rankings")
		return nil
	}

	var seeds []string
	for _, club := range capItems(clubs.Items, 5) {
		members, err := resilience.Fetch(ctx, c.guard, "club_members", func(ctx context.Context) (*api.ClubMembers, error) {
			return c.client.GetClubMembers(ctx, club.Tag)
		})
		if err != nil {
			log.Warn().Err(err).Str("club", club.Tag).Msg("failed to fetch club members")
			continue
		}
		for _, m := range capItems(members.Items, 10) {
			seeds = append(seeds, m.Tag)
		}
	}
	return seeds
}

// refreshStaticData pulls the brawler catalog and event rotation into both
// the reference cache and the database. The two fetches are independent and
// run concurrently; failures are non-fatal, the previous data stays in place.
// A cached copy inside its TTL skips the upstream fetch entirely.
func (c *Collector) refreshStaticData(ctx context.Context, log zerolog.Logger) {
	now := time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, ok := c.cache.GetBrawlers(gctx); ok {
			return nil
		}
		catalog, err := resilience.Fetch(gctx, c.guard, "brawler_catalog", func(ctx context.Context) (*api.BrawlerCatalog, error) {
			return c.client.GetBrawlers(ctx)
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to refresh brawler catalog")
			return nil
		}
		cached := make([]domain.CachedBrawler, 0, len(catalog.Items))
		for _, b := range catalog.Items {
			cached = append(cached, domain.CachedBrawler{
				BrawlerID:   b.ID,
				Name:        b.Name,
				Data:        b.Raw,
				LastUpdated: now,
			})
		}
		if err := c.refdata.UpsertBrawlers(gctx, cached); err != nil {
			log.Error().Err(err).Msg("failed to persist brawler catalog")
		}
		if raw, err := json.Marshal(catalog); err == nil {
			c.cache.SetBrawlers(gctx, raw, constants.BrawlerCacheTTL)
		}
		return nil
	})

	g.Go(func() error {
		if _, ok := c.cache.GetEvents(gctx); ok {
			return nil
		}
		rotation, err := resilience.Fetch(gctx, c.guard, "event_rotation", func(ctx context.Context) (*api.EventRotation, error) {
			return c.client.GetEventRotation(ctx)
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to refresh event rotation")
			return nil
		}
		raw, err := json.Marshal(rotation)
		if err != nil {
			log.Error().Err(err).Msg("failed to encode event rotation")
			return nil
		}
		if err := c.refdata.ReplaceEventRotation(gctx, domain.CachedEventRotation{Rotation: raw, LastUpdated: now}); err != nil {
			log.Error().Err(err).Msg("failed to persist event rotation")
		}
		c.cache.SetEvents(gctx, raw, constants.EventCacheTTL)
		return nil
	})

	g.Wait()
}

func capItems[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func dedupSeeds(tags []string, limit int) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == limit {
			break
		}
	}
	return out
}
