package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"brawlmeta/internal/database"
	"brawlmeta/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.RunMigrations(db, zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func testSnapshot(ts time.Time, bracket domain.TrophyBracket, sampleSize int) *domain.MetaSnapshot {
	return &domain.MetaSnapshot{
		Timestamp:  ts,
		BracketMin: bracket.Min,
		BracketMax: bracket.Max,
		SampleSize: sampleSize,
		Players:    sampleSize / 10,
		Data: domain.SnapshotPayload{
			Rankings: []domain.RankedBrawler{{Name: "Shelly", WinRate: 52.5, PickRate: 10}},
		},
	}
}

func TestSnapshotInsertAndListSince(t *testing.T) {
	db := openMemDB(t)
	repo := NewSnapshotRepository(db, zerolog.Nop())
	ctx := context.Background()
	bracket := domain.Brackets[0]

	now := time.Now().UTC()
	snap := testSnapshot(now, bracket, 100)
	metas := []domain.BrawlerMeta{
		{BrawlerName: "Shelly", PickRate: 10, WinRate: 52.5, AvgTrophyChange: 2.1,
			BestModes: []domain.ModeStat{{Mode: "gemGrab", WinRate: 60, Games: 5}}},
		{BrawlerName: "Colt", PickRate: 8, WinRate: 48},
	}
	if err := repo.Insert(ctx, snap, metas); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if snap.ID == 0 {
		t.Fatal("Insert did not fill the snapshot ID")
	}

	old := testSnapshot(now.Add(-48*time.Hour), bracket, 50)
	if err := repo.Insert(ctx, old, nil); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	recent, err := repo.ListSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("recent snapshots = %d, want 1", len(recent))
	}
	if recent[0].SampleSize != 100 || recent[0].Players != 10 {
		t.Errorf("got sample=%d players=%d, want 100/10", recent[0].SampleSize, recent[0].Players)
	}
	if len(recent[0].Data.Rankings) != 1 {
		t.Errorf("payload rankings = %d, want 1", len(recent[0].Data.Rankings))
	}

	stored, err := repo.BrawlerMeta(ctx, snap.ID)
	if err != nil {
		t.Fatalf("BrawlerMeta failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("brawler rows = %d, want 2", len(stored))
	}
	for _, m := range stored {
		if m.BrawlerName == "Shelly" && len(m.BestModes) != 1 {
			t.Errorf("Shelly best modes = %d, want 1", len(m.BestModes))
		}
	}
}

func TestSnapshotPruneKeepsNewestPerBracket(t *testing.T) {
	db := openMemDB(t)
	repo := NewSnapshotRepository(db, zerolog.Nop())
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		snap := testSnapshot(now.Add(time.Duration(-i)*time.Hour), domain.Brackets[0], 10+i)
		if err := repo.Insert(ctx, snap, []domain.BrawlerMeta{{BrawlerName: "Shelly"}}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	other := testSnapshot(now.Add(-100*time.Hour), domain.Brackets[1], 5)
	if err := repo.Insert(ctx, other, nil); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	deleted, err := repo.Prune(ctx, domain.Brackets[0], 2)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	var snapshots, children int
	if err := db.QueryRow(`SELECT COUNT(*) FROM meta_snapshots`).Scan(&snapshots); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM brawler_meta`).Scan(&children); err != nil {
		t.Fatal(err)
	}
	// 2 kept in bracket 0 plus the untouched one in bracket 1.
	if snapshots != 3 {
		t.Errorf("snapshots = %d, want 3", snapshots)
	}
	if children != 2 {
		t.Errorf("child rows = %d, want 2 after cascade", children)
	}
}

func TestAggregateNarrativeLifecycle(t *testing.T) {
	db := openMemDB(t)
	repo := NewAggregateRepository(db, zerolog.Nop())
	ctx := context.Background()

	agg := &domain.GlobalMetaAggregate{
		Timestamp:    time.Now().UTC(),
		TotalBattles: 600,
		TotalPlayers: 80,
		Data: domain.AggregatePayload{
			TopBrawlers:   []domain.GlobalBrawler{{Name: "Shelly", WinRate: 52, PickRate: 9, Quality: domain.QualityHigh}},
			SnapshotCount: 6,
			Brackets:      6,
		},
	}
	if err := repo.Insert(ctx, agg); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.ID != agg.ID {
		t.Fatal("Latest did not return the stored aggregate")
	}
	if latest.Narrative != "" || latest.NarrativeAt != nil {
		t.Error("narrative must start empty")
	}

	at := time.Now().UTC()
	if err := repo.SetNarrative(ctx, agg.ID, "# Meta Report", at); err != nil {
		t.Fatalf("SetNarrative failed: %v", err)
	}
	got, err := repo.Get(ctx, agg.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Narrative != "# Meta Report" || got.NarrativeAt == nil {
		t.Errorf("narrative not stored: %q, at=%v", got.Narrative, got.NarrativeAt)
	}

	if err := repo.SetNarrative(ctx, 9999, "x", at); err == nil {
		t.Error("SetNarrative on a missing aggregate must fail")
	}
}

func TestAggregateLatestEmpty(t *testing.T) {
	db := openMemDB(t)
	repo := NewAggregateRepository(db, zerolog.Nop())

	latest, err := repo.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest != nil {
		t.Error("Latest on an empty table must return nil")
	}
}

func TestSynergyUpsertOverwrites(t *testing.T) {
	db := openMemDB(t)
	repo := NewSynergyRepository(db, zerolog.Nop())
	ctx := context.Background()

	first := domain.BrawlerSynergy{
		BrawlerA: "Colt", BrawlerB: "Shelly",
		GamesTogether: 20, WinsTogether: 12, WinRate: 60,
		Quality: domain.QualityMedium, LastUpdated: time.Now().UTC(),
	}
	if err := repo.UpsertBatch(ctx, []domain.BrawlerSynergy{first}); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	second := first
	second.GamesTogether = 60
	second.WinsTogether = 30
	second.WinRate = 50
	second.Quality = domain.QualityHigh
	if err := repo.UpsertBatch(ctx, []domain.BrawlerSynergy{second}); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	// Lookup works in either argument order.
	got, err := repo.Get(ctx, "Shelly", "Colt")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a synergy row")
	}
	if got.GamesTogether != 60 || got.Quality != domain.QualityHigh {
		t.Errorf("got games=%d quality=%s, want overwritten 60/high", got.GamesTogether, got.Quality)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM brawler_synergies`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestSynergyRejectsNonCanonicalPair(t *testing.T) {
	db := openMemDB(t)
	repo := NewSynergyRepository(db, zerolog.Nop())

	bad := domain.BrawlerSynergy{
		BrawlerA: "Shelly", BrawlerB: "Colt",
		GamesTogether: 10, LastUpdated: time.Now().UTC(),
	}
	if err := repo.UpsertBatch(context.Background(), []domain.BrawlerSynergy{bad}); err == nil {
		t.Error("expected a validation error for a non-canonical pair")
	}
}

func TestTrendHistoryAndInsights(t *testing.T) {
	db := openMemDB(t)
	repo := NewTrendRepository(db, zerolog.Nop())
	ctx := context.Background()
	now := time.Now().UTC()

	entries := []domain.BrawlerTrendHistory{
		{BrawlerName: "Shelly", Timestamp: now.Add(-60 * time.Hour), PickRate: 8, WinRate: 50,
			TrendDirection: domain.TrendStable, PopularityRank: 1, PerformanceRank: 1, GamesAnalyzed: 100},
		{BrawlerName: "Shelly", Timestamp: now, PickRate: 12, WinRate: 55,
			TrendDirection: domain.TrendRising, TrendStrength: 0.4, PopularityRank: 1, PerformanceRank: 1, GamesAnalyzed: 150},
	}
	if err := repo.AppendHistory(ctx, entries); err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	baseline, err := repo.LatestInWindow(ctx, "Shelly", now.Add(-72*time.Hour), now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("LatestInWindow failed: %v", err)
	}
	if baseline == nil || baseline.PickRate != 8 {
		t.Fatalf("baseline = %+v, want the 60h-old entry", baseline)
	}
	if missing, err := repo.LatestInWindow(ctx, "Colt", now.Add(-72*time.Hour), now.Add(-48*time.Hour)); err != nil || missing != nil {
		t.Fatalf("expected no baseline for Colt, got %+v err=%v", missing, err)
	}

	insights := []domain.GlobalTrendInsight{{
		Timestamp:       now,
		InsightType:     domain.InsightBrawlerRise,
		Title:           "Shelly on the Rise",
		Narrative:       "up and to the right",
		Data:            domain.InsightData{BrawlerName: "Shelly", TrendStrength: 0.4},
		ConfidenceScore: 0.7,
		ImpactLevel:     domain.ImpactMedium,
		IsActive:        true,
		ExpiresAt:       now.Add(-time.Minute), // already expired
	}}
	if err := repo.InsertInsights(ctx, insights); err != nil {
		t.Fatalf("InsertInsights failed: %v", err)
	}

	active, err := repo.ActiveInsights(ctx, 10)
	if err != nil {
		t.Fatalf("ActiveInsights failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active insights = %d, want 1", len(active))
	}
	if active[0].ID == "" {
		t.Error("insight ID was not generated")
	}

	deactivated, err := repo.DeactivateExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeactivateExpired failed: %v", err)
	}
	if deactivated != 1 {
		t.Errorf("deactivated = %d, want 1", deactivated)
	}

	total, activeCount, err := repo.InsightCount(ctx)
	if err != nil {
		t.Fatalf("InsightCount failed: %v", err)
	}
	if total != 1 || activeCount != 0 {
		t.Errorf("counts = %d/%d, want 1 total, 0 active", total, activeCount)
	}
}

func TestRefDataUpsertAndRotation(t *testing.T) {
	db := openMemDB(t)
	repo := NewRefDataRepository(db, zerolog.Nop())
	ctx := context.Background()
	now := time.Now().UTC()

	brawlers := []domain.CachedBrawler{
		{BrawlerID: 16000000, Name: "SHELLY", Data: []byte(`{"id":16000000}`), LastUpdated: now},
		{BrawlerID: 16000001, Name: "COLT", Data: []byte(`{"id":16000001}`), LastUpdated: now},
	}
	if err := repo.UpsertBrawlers(ctx, brawlers); err != nil {
		t.Fatalf("UpsertBrawlers failed: %v", err)
	}
	// Re-upserting the same IDs must not create new rows.
	if err := repo.UpsertBrawlers(ctx, brawlers[:1]); err != nil {
		t.Fatalf("UpsertBrawlers failed: %v", err)
	}
	if n, err := repo.BrawlerCount(ctx); err != nil || n != 2 {
		t.Fatalf("BrawlerCount = %d err=%v, want 2", n, err)
	}

	first, err := repo.FirstBrawler(ctx)
	if err != nil {
		t.Fatalf("FirstBrawler failed: %v", err)
	}
	if first == nil || first.BrawlerID != 16000000 {
		t.Fatalf("FirstBrawler = %+v, want the lowest ID", first)
	}

	for i := 0; i < 2; i++ {
		rotation := domain.CachedEventRotation{Rotation: []byte(`[]`), LastUpdated: now}
		if err := repo.ReplaceEventRotation(ctx, rotation); err != nil {
			t.Fatalf("ReplaceEventRotation failed: %v", err)
		}
	}
	var rotations int
	if err := db.QueryRow(`SELECT COUNT(*) FROM cached_events`).Scan(&rotations); err != nil {
		t.Fatal(err)
	}
	if rotations != 1 {
		t.Errorf("rotation rows = %d, want 1", rotations)
	}
}
