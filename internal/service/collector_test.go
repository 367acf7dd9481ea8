package service

import (
	"context"
	"testing"
	"time"

	"brawlmeta/internal/api"
	"brawlmeta/internal/cache"
	"brawlmeta/internal/config"
	"brawlmeta/internal/domain"
	"brawlmeta/internal/repository"
	"brawlmeta/internal/resilience"

	"github.com/rs/zerolog"
)

func TestFirstBrawlerIDResolutionOrder(t *testing.T) {
	db := openMemDB(t)
	store := cache.NewMemoryStore()
	refdata := repository.NewRefDataRepository(db, zerolog.Nop())
	c := NewCollector(
		api.NewBrawlClient(&config.Config{}),
		resilience.NewGuard(resilience.DefaultGuardConfig(), zerolog.Nop()),
		repository.NewSnapshotRepository(db, zerolog.Nop()),
		refdata,
		store,
		testConfig(),
		zerolog.Nop(),
	)
	ctx := context.Background()

	// Nothing cached or stored falls back to the fixed ID.
	if got := c.firstBrawlerID(ctx); got != fallbackBrawlerID {
		t.Errorf("firstBrawlerID = %d, want fallback %d", got, fallbackBrawlerID)
	}

	if err := refdata.UpsertBrawlers(ctx, []domain.CachedBrawler{
		{BrawlerID: 16000005, Name: "COLT", Data: []byte(`{}`), LastUpdated: time.Now().UTC()},
	}); err != nil {
		t.Fatal(err)
	}
	if got := c.firstBrawlerID(ctx); got != 16000005 {
		t.Errorf("firstBrawlerID = %d, want the stored catalog's 16000005", got)
	}

	// A fresh cached catalog wins over the database copy.
	store.SetBrawlers(ctx, []byte(`{"items":[{"id":16000010,"name":"X"},{"id":16000002,"name":"Y"}]}`), time.Minute)
	if got := c.firstBrawlerID(ctx); got != 16000002 {
		t.Errorf("firstBrawlerID = %d, want the cached catalog's lowest ID", got)
	}
}

func TestDedupSeeds(t *testing.T) {
	seeds := dedupSeeds([]string{"#A", "", "#B", "#A", "#C"}, 30)
	want := []string{"#A", "#B", "#C"}
	if len(seeds) != len(want) {
		t.Fatalf("seeds = %v, want %v", seeds, want)
	}
	for i := range want {
		if seeds[i] != want[i] {
			t.Errorf("seeds[%d] = %s, want %s", i, seeds[i], want[i])
		}
	}
}

func TestDedupSeedsCap(t *testing.T) {
	in := make([]string, 50)
	for i := range in {
		in[i] = string(rune('A' + i))
	}
	if got := dedupSeeds(in, 30); len(got) != 30 {
		t.Errorf("capped seeds = %d, want 30", len(got))
	}
}

func TestCapItems(t *testing.T) {
	items := []int{1, 2, 3}
	if got := capItems(items, 2); len(got) != 2 {
		t.Errorf("capItems = %v, want 2 items", got)
	}
	if got := capItems(items, 5); len(got) != 3 {
		t.Errorf("capItems must not grow the slice, got %v", got)
	}
}
