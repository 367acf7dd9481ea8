package api

import "encoding/json"

type Player struct {
	Tag             string `json:"tag"`
	Name            string `json:"name"`
	Trophies        int    `json:"trophies"`
	HighestTrophies int    `json:"highestTrophies"`
	ExpLevel        int    `json:"expLevel"`
	Victories3v3    int    `json:"3vs3Victories"`
	SoloVictories   int    `json:"soloVictories"`
	DuoVictories    int    `json:"duoVictories"`
	Club            struct {
		Tag  string `json:"tag"`
		Name string `json:"name"`
	} `json:"club"`
}

type BattleLog struct {
	Items []BattleItem `json:"items"`
}

type BattleItem struct {
	BattleTime string `json:"battleTime"`
	Event      struct {
		ID   int64  `json:"id"`
		Mode string `json:"mode"`
		Map  string `json:"map"`
	} `json:"event"`
	Battle Battle `json:"battle"`
}

type Battle struct {
	Mode         string           `json:"mode"`
	Type         string           `json:"type"`
	Result       string           `json:"result"` // "victory", "defeat", "draw" (team modes)
	Rank         int              `json:"rank"`   // free-for-all placement
	TrophyChange *int             `json:"trophyChange"`
	Teams        [][]BattlePlayer `json:"teams"`   // team modes
	Players      []BattlePlayer   `json:"players"` // free-for-all modes
}

type BattlePlayer struct {
	Tag     string `json:"tag"`
	Name    string `json:"name"`
	Brawler struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Power    int    `json:"power"`
		Trophies int    `json:"trophies"`
	} `json:"brawler"`
}

type PlayerRankings struct {
	Items []RankedPlayer `json:"items"`
}

type RankedPlayer struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Trophies int    `json:"trophies"`
	Rank     int    `json:"rank"`
}

type ClubRankings struct {
	Items []RankedClub `json:"items"`
}

type RankedClub struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Trophies int    `json:"trophies"`
	Rank     int    `json:"rank"`
}

type ClubMembers struct {
	Items []ClubMember `json:"items"`
}

type ClubMember struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Trophies int    `json:"trophies"`
	Role     string `json:"role"`
}

type BrawlerCatalog struct {
	Items []CatalogBrawler `json:"items"`
}

type CatalogBrawler struct {
	ID   int64           `json:"id"`
	Name string          `json:"name"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the full upstream document alongside the fields the
// pipeline reads, so the reference cache can store it untouched.
func (b *CatalogBrawler) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	b.ID = a.ID
	b.Name = a.Name
	b.Raw = append(b.Raw[:0], data...)
	return nil
}

type EventRotation []ScheduledEvent

type ScheduledEvent struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Event     struct {
		ID   int64  `json:"id"`
		Mode string `json:"mode"`
		Map  string `json:"map"`
	} `json:"event"`
}
