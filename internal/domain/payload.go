package domain

import (
	"encoding/json"
	"fmt"
)

// Payload types are the explicit shapes behind the JSON columns. They are
// validated at the persistence boundary instead of threading untyped maps
// through the pipeline.

type ModeStat struct {
	Mode    string  `json:"mode"`
	WinRate float64 `json:"win_rate"`
	Games   int     `json:"games"`
}

type MapStat struct {
	Map     string  `json:"map"`
	WinRate float64 `json:"win_rate"`
	Games   int     `json:"games"`
}

// RankedBrawler is one entry in a snapshot's brawler ranking.
type RankedBrawler struct {
	Name            string     `json:"name"`
	Games           int        `json:"games"`
	PickRate        float64    `json:"pick_rate"`
	WinRate         float64    `json:"win_rate"`
	AvgTrophyChange float64    `json:"avg_trophy_change"`
	BestModes       []ModeStat `json:"best_modes,omitempty"`
	BestMaps        []MapStat  `json:"best_maps,omitempty"`
}

type TierList struct {
	S []string `json:"s"`
	A []string `json:"a"`
	B []string `json:"b"`
}

// CompositionStat is a reported 3-brawler team composition.
type CompositionStat struct {
	Brawlers []string       `json:"brawlers"`
	Games    int            `json:"games"`
	Wins     int            `json:"wins"`
	WinRate  float64        `json:"win_rate"`
	Modes    map[string]int `json:"modes,omitempty"`
}

type ModeLeader struct {
	Name    string  `json:"name"`
	WinRate float64 `json:"win_rate"`
	Games   int     `json:"games"`
}

// SnapshotPayload is the data column of a meta snapshot.
type SnapshotPayload struct {
	TierList        TierList                `json:"tier_list"`
	Rankings        []RankedBrawler         `json:"rankings"`
	TopCompositions []CompositionStat       `json:"top_compositions"`
	ModeMeta        map[string][]ModeLeader `json:"mode_meta"`
}

// GlobalBrawler is one brawler's merged cross-bracket entry.
type GlobalBrawler struct {
	Name            string  `json:"name"`
	Games           int     `json:"games"`
	Wins            int     `json:"wins"`
	WinRate         float64 `json:"win_rate"`
	PickRate        float64 `json:"pick_rate"`
	AvgTrophyChange float64 `json:"avg_trophy_change"`
	Quality         string  `json:"quality"`
}

// AggregatePayload is the data column of a global meta aggregate.
type AggregatePayload struct {
	TopBrawlers     []GlobalBrawler         `json:"top_brawlers"`
	BrawlersTracked int                     `json:"brawlers_tracked"`
	SnapshotCount   int                     `json:"snapshot_count"`
	Brackets        int                     `json:"brackets"`
	ModeBreakdown   map[string][]ModeLeader `json:"mode_breakdown,omitempty"`
}

// InsightData is the supporting data behind a trend insight.
type InsightData struct {
	BrawlerName   string  `json:"brawler_name"`
	WinRate       float64 `json:"win_rate"`
	PickRate      float64 `json:"pick_rate"`
	TrendStrength float64 `json:"trend_strength"`
}

const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

const (
	ImpactMedium = "medium"
	ImpactHigh   = "high"
)

const (
	InsightBrawlerRise = "brawler_rise"
	InsightBrawlerFall = "brawler_fall"
)

func validQuality(q string) bool {
	return q == QualityLow || q == QualityMedium || q == QualityHigh
}

func validDirection(d string) bool {
	return d == TrendRising || d == TrendFalling || d == TrendStable
}

// Validate rejects malformed synergy rows before they reach the database.
func (s *BrawlerSynergy) Validate() error {
	if s.BrawlerA == "" || s.BrawlerB == "" {
		return fmt.Errorf("synergy pair has empty brawler name")
	}
	if s.BrawlerA >= s.BrawlerB {
		return fmt.Errorf("synergy pair (%s, %s) is not in canonical order", s.BrawlerA, s.BrawlerB)
	}
	if !validQuality(s.Quality) {
		return fmt.Errorf("invalid synergy quality %q", s.Quality)
	}
	return nil
}

func (t *BrawlerTrendHistory) Validate() error {
	if t.BrawlerName == "" {
		return fmt.Errorf("trend row has empty brawler name")
	}
	if !validDirection(t.TrendDirection) {
		return fmt.Errorf("invalid trend direction %q", t.TrendDirection)
	}
	if t.TrendStrength < 0 || t.TrendStrength > 1 {
		return fmt.Errorf("trend strength %v out of [0,1]", t.TrendStrength)
	}
	return nil
}

func (i *GlobalTrendInsight) Validate() error {
	if i.InsightType != InsightBrawlerRise && i.InsightType != InsightBrawlerFall {
		return fmt.Errorf("invalid insight type %q", i.InsightType)
	}
	if i.ConfidenceScore < 0 || i.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score %v out of [0,1]", i.ConfidenceScore)
	}
	if i.ImpactLevel != ImpactMedium && i.ImpactLevel != ImpactHigh {
		return fmt.Errorf("invalid impact level %q", i.ImpactLevel)
	}
	return nil
}

// MarshalPayload serializes a JSON column value.
func MarshalPayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

// UnmarshalPayload deserializes a JSON column value, tolerating empty columns.
func UnmarshalPayload(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
