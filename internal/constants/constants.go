package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	NarrativeTimeout   = 60 * time.Second
	ShutdownTimeout    = 10 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	// BracketPause separates bracket cycles to stay under upstream rate limits.
	BracketPause = 60 * time.Second
	// PlayerPause separates per-player battle log fetches inside a crawl.
	PlayerPause = 100 * time.Millisecond

	MaxSeedPlayers         = 30
	MaxSnapshotsPerBracket = 10
)

const (
	// Statistical thresholds for snapshot reports.
	MinBrawlerGames     = 5
	MinCompositionGames = 3
	MinModeGames        = 3
	MinMapGames         = 2
	TopRankings         = 20
	TopCompositions     = 10
	TopModeLeaders      = 5
	TopBestModes        = 5
	TopBestMaps         = 5
)

const (
	MinSynergyGames     = 5
	SynergyQualityHigh  = 50
	SynergyQualityMed   = 20
	AggregateQualityMin = 2
	AggregateQualityTop = 3

	// TopGlobalBrawlers caps the merged cross-bracket ranking.
	TopGlobalBrawlers = 20
	// ModeGamesEstimate stands in for per-mode game counts, which bracket
	// snapshots do not carry.
	ModeGamesEstimate = 10
)

const (
	AggregationWindow  = 24 * time.Hour
	SynergyWindow      = 48 * time.Hour
	TrendLookbackStart = 72 * time.Hour
	TrendLookbackEnd   = 48 * time.Hour
	InsightLifetime    = 3 * 24 * time.Hour
)

const (
	BrawlerCacheTTL = 24 * time.Hour
	EventCacheTTL   = 1 * time.Hour
)
