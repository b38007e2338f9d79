package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dcf_engine/pkg/core/ingest"
	"dcf_engine/pkg/core/utils"
)

// SnapshotCache keeps raw data bundles on disk so runs can be replayed
// offline. Each save writes a dated snapshot plus a "latest" pointer file
// that offline runs load by default.
type SnapshotCache struct {
	dir string
}

// NewSnapshotCache stores snapshots under dir, data/raw when empty.
func NewSnapshotCache(dir string) *SnapshotCache {
	if dir == "" {
		dir = filepath.Join("data", "raw")
	}
	return &SnapshotCache{dir: dir}
}

// Save writes the bundle as <TICKER>_<date>.json and refreshes the latest
// pointer. Returns the dated snapshot path.
func (c *SnapshotCache) Save(b *ingest.Bundle) (string, error) {
	if b == nil || b.Ticker == "" {
		return "", fmt.Errorf("cannot cache a bundle without a ticker")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal bundle: %w", err)
	}

	date := b.FetchedAt
	if date.IsZero() {
		date = time.Now().UTC()
	}
	dated := filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", utils.SafeTicker(b.Ticker), date.Format("2006-01-02")))
	if err := os.WriteFile(dated, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.WriteFile(c.LatestPath(b.Ticker), raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write latest pointer: %w", err)
	}
	return dated, nil
}

// LoadLatest reads the most recently saved bundle for a ticker.
func (c *SnapshotCache) LoadLatest(ticker string) (*ingest.Bundle, error) {
	raw, err := os.ReadFile(c.LatestPath(ticker))
	if err != nil {
		return nil, fmt.Errorf("no cached snapshot for %s: %w", ticker, err)
	}
	var b ingest.Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to parse cached snapshot for %s: %w", ticker, err)
	}
	return &b, nil
}

// LatestPath is where the newest snapshot for a ticker lives.
func (c *SnapshotCache) LatestPath(ticker string) string {
	return filepath.Join(c.dir, utils.SafeTicker(ticker)+"_latest.json")
}

// HasLatest reports whether an offline run could use a cached snapshot.
func (c *SnapshotCache) HasLatest(ticker string) bool {
	_, err := os.Stat(c.LatestPath(ticker))
	return err == nil
}

