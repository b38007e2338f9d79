package store

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dcf_engine/pkg/core/ingest"
	"dcf_engine/pkg/models"
)

func cacheBundle() *ingest.Bundle {
	s := models.NewStatements()
	s.Income.SetCell("2023-12-31", models.ColRevenue, 1200)
	return &ingest.Bundle{
		Ticker:     "UMG.AS",
		FetchedAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Statements: s,
		Market:     &models.MarketData{Ticker: "UMG.AS", CurrentPrice: models.Ptr(25.5)},
	}
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	cache := NewSnapshotCache(t.TempDir())

	if cache.HasLatest("UMG.AS") {
		t.Fatal("empty cache should have no latest snapshot")
	}

	dated, err := cache.Save(cacheBundle())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Dot in the ticker becomes an underscore, the fetch date names the file.
	if want := "UMG_AS_2024-03-01.json"; filepath.Base(dated) != want {
		t.Errorf("snapshot file = %q, want %q", filepath.Base(dated), want)
	}

	if !cache.HasLatest("UMG.AS") {
		t.Fatal("latest pointer missing after save")
	}

	b, err := cache.LoadLatest("UMG.AS")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if b.Ticker != "UMG.AS" {
		t.Errorf("ticker = %q, want UMG.AS", b.Ticker)
	}
	if got := b.Statements.Income.Latest(models.ColRevenue); got != 1200 {
		t.Errorf("revenue after round trip = %v, want 1200", got)
	}
	if got := models.Val(b.Market.CurrentPrice); got != 25.5 {
		t.Errorf("price after round trip = %v, want 25.5", got)
	}
}

func TestSnapshotCacheMissingTicker(t *testing.T) {
	cache := NewSnapshotCache(t.TempDir())

	if _, err := cache.Save(&ingest.Bundle{}); err == nil {
		t.Fatal("expected error for bundle without ticker")
	}
	if _, err := cache.LoadLatest("UMG.AS"); err == nil {
		t.Fatal("expected error when no snapshot exists")
	}
}

func TestLatestPathSanitizesTicker(t *testing.T) {
	cache := NewSnapshotCache("data")
	if got := cache.LatestPath("UMG.AS"); !strings.HasSuffix(got, "UMG_AS_latest.json") {
		t.Errorf("LatestPath = %q", got)
	}
	if got := cache.LatestPath("^TNX"); !strings.HasSuffix(got, "TNX_latest.json") {
		t.Errorf("LatestPath = %q", got)
	}
}
