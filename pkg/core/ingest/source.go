// Package ingest acquires the raw inputs for a valuation run: historical
// financial statements, market data, macro context and peer multiples.
// Data can come from the Yahoo Finance JSON API or from a previously
// saved snapshot on disk, behind a common DataSource interface.
package ingest

import (
	"context"
	"time"

	"dcf_engine/pkg/models"
)

// Bundle is everything a valuation run needs from the outside world,
// collected once and passed through the pipeline as a unit.
type Bundle struct {
	Ticker     string              `json:"ticker"`
	FetchedAt  time.Time           `json:"fetched_at"`
	Statements *models.Statements  `json:"statements"`
	Market     *models.MarketData  `json:"market,omitempty"`
	Macro      *models.MacroData   `json:"macro,omitempty"`
	Peers      []models.PeerRecord `json:"peers,omitempty"`
	Documents  []IRDocument        `json:"documents,omitempty"`
}

// DataSource abstracts where run inputs come from. The live implementation
// talks to Yahoo Finance; the file implementation replays a saved snapshot
// for offline runs.
type DataSource interface {
	// Collect gathers statements, market data and macro context for one ticker.
	Collect(ctx context.Context, ticker string) (*Bundle, error)

	// CollectPeers gathers comparable-company records for the given tickers.
	// A failure for one peer is recorded on its PeerRecord rather than
	// aborting the whole collection.
	CollectPeers(ctx context.Context, tickers []string) []models.PeerRecord
}
