package domain

import (
	"fmt"
	"time"
)

// TrophyBracket is a half-open [Min, Max) trophy range used to bucket meta analysis.
type TrophyBracket struct {
	Min int
	Max int
}

func (b TrophyBracket) Contains(trophies int) bool {
	return b.Min <= trophies && trophies < b.Max
}

// Label renders the bracket as "5000-10000" for logs and metric labels.
func (b TrophyBracket) Label() string {
	return fmt.Sprintf("%d-%d", b.Min, b.Max)
}

// Brackets partitions the sampled player population by skill.
var Brackets = []TrophyBracket{
	{0, 5000},
	{5000, 10000},
	{10000, 20000},
	{20000, 30000},
	{30000, 50000},
	{50000, 100000},
}

// BracketFor maps a trophy count to its bracket, defaulting to the highest.
func BracketFor(trophies int) TrophyBracket {
	for _, b := range Brackets {
		if b.Contains(trophies) {
			return b
		}
	}
	return Brackets[len(Brackets)-1]
}

// MetaSnapshot is one bracket's compiled statistical report. Immutable once written.
type MetaSnapshot struct {
	ID         int64
	Timestamp  time.Time
	BracketMin int
	BracketMax int
	SampleSize int // battles analyzed
	Players    int // distinct players crawled
	Data       SnapshotPayload
}

// BrawlerMeta is a snapshot child row; exists only above the minimum-games threshold.
type BrawlerMeta struct {
	ID              int64
	SnapshotID      int64
	BrawlerName     string
	PickRate        float64
	WinRate         float64
	AvgTrophyChange float64
	BestModes       []ModeStat
	BestMaps        []MapStat
}

// GlobalMetaAggregate is the merged cross-bracket view. Narrative is filled in
// asynchronously after the numeric row commits.
type GlobalMetaAggregate struct {
	ID           int64
	Timestamp    time.Time
	TotalBattles int
	TotalPlayers int
	Data         AggregatePayload
	Narrative    string
	NarrativeAt  *time.Time
}

// BrawlerSynergy is a brawler-pair co-play record, stored in one canonical
// ordering only (BrawlerA < BrawlerB).
type BrawlerSynergy struct {
	ID            int64
	BrawlerA      string
	BrawlerB      string
	GamesTogether int
	WinsTogether  int
	WinRate       float64
	BestModes     []ModeStat
	Quality       string // "low", "medium", "high"
	LastUpdated   time.Time
}

// BrawlerTrendHistory is an append-only time series row, one per brawler per
// trend cycle regardless of direction.
type BrawlerTrendHistory struct {
	ID              int64
	BrawlerName     string
	Timestamp       time.Time
	PickRate        float64
	WinRate         float64
	TrendDirection  string // "rising", "falling", "stable"
	TrendStrength   float64
	PopularityRank  int
	PerformanceRank int
	GamesAnalyzed   int
}

// GlobalTrendInsight is a confidence-scored meta insight. Expired insights are
// soft-deactivated, never deleted.
type GlobalTrendInsight struct {
	ID              string // nanoid
	Timestamp       time.Time
	InsightType     string // "brawler_rise", "brawler_fall"
	Title           string
	Narrative       string
	Data            InsightData
	ConfidenceScore float64
	ImpactLevel     string // "medium", "high"
	IsActive        bool
	ExpiresAt       time.Time
}

// CachedBrawler is a reference catalog row refreshed from the upstream API.
type CachedBrawler struct {
	BrawlerID   int64
	Name        string
	Data        []byte // raw upstream JSON
	LastUpdated time.Time
}

// CachedEventRotation holds the current event rotation, single-row replace.
type CachedEventRotation struct {
	ID          int64
	Rotation    []byte // raw upstream JSON
	LastUpdated time.Time
}
