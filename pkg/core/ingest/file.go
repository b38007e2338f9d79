package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"dcf_engine/pkg/core/utils"
	"dcf_engine/pkg/models"
)

// ==================== File Source ====================

// FileSource replays a saved snapshot bundle, optionally overlaid with a
// hand-edited correction file. It backs offline runs and deterministic
// tests. Snapshots are machine-written strict JSON; corrections are
// hand-written and parsed tolerantly.
type FileSource struct {
	snapshotPath  string
	correctedPath string

	once   sync.Once
	bundle *Bundle
	err    error
}

// NewFileSource reads run inputs from snapshotPath. correctedPath may be
// empty; when set, the corrections are applied on top of the snapshot.
func NewFileSource(snapshotPath, correctedPath string) *FileSource {
	return &FileSource{snapshotPath: snapshotPath, correctedPath: correctedPath}
}

var _ DataSource = (*FileSource)(nil)

func (s *FileSource) Collect(ctx context.Context, ticker string) (*Bundle, error) {
	b, err := s.load()
	if err != nil {
		return nil, err
	}
	if ticker != "" && b.Ticker != "" && !strings.EqualFold(b.Ticker, ticker) {
		return nil, fmt.Errorf("snapshot %s holds %s, not %s", s.snapshotPath, b.Ticker, ticker)
	}
	return b, nil
}

// CollectPeers returns the peer records stored in the snapshot. The ticker
// list is ignored; a snapshot carries whatever peers were saved with it.
func (s *FileSource) CollectPeers(ctx context.Context, tickers []string) []models.PeerRecord {
	b, err := s.load()
	if err != nil {
		return nil
	}
	return b.Peers
}

func (s *FileSource) load() (*Bundle, error) {
	s.once.Do(func() {
		s.bundle, s.err = s.read()
	})
	return s.bundle, s.err
}

func (s *FileSource) read() (*Bundle, error) {
	raw, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", s.snapshotPath, err)
	}
	if b.Statements == nil || b.Statements.Income.IsEmpty() {
		return nil, fmt.Errorf("snapshot %s has no income statement data", s.snapshotPath)
	}

	if s.correctedPath != "" {
		corr, err := LoadCorrections(s.correctedPath)
		if err != nil {
			return nil, err
		}
		corr.Apply(&b)
	}
	return &b, nil
}

// ==================== Corrections ====================

// CorrectionSet is a hand-edited override document: statement, then period
// date, then column name, then the corrected value. Column names may be
// vendor labels; canonicalization happens during normalization.
type CorrectionSet struct {
	Income   map[string]map[string]float64 `json:"income_statement,omitempty"`
	Balance  map[string]map[string]float64 `json:"balance_sheet,omitempty"`
	CashFlow map[string]map[string]float64 `json:"cash_flow,omitempty"`
	Market   *models.MarketData            `json:"market,omitempty"`
	Notes    string                        `json:"notes,omitempty"`
}

// LoadCorrections parses a correction file. Hand-edited files often carry
// comments, unquoted keys or trailing commas, so parsing goes through the
// tolerant strategies in utils.
func LoadCorrections(path string) (*CorrectionSet, error) {
	var c CorrectionSet
	if err := utils.ParseFile(path, &c); err != nil {
		return nil, fmt.Errorf("failed to load corrections: %w", err)
	}
	return &c, nil
}

// Apply overlays the corrections onto the bundle in place and reports how
// many statement cells were rewritten.
func (c *CorrectionSet) Apply(b *Bundle) int {
	if c == nil || b == nil {
		return 0
	}
	n := 0
	if b.Statements != nil {
		n += applyTable(b.Statements.Income, c.Income)
		n += applyTable(b.Statements.Balance, c.Balance)
		n += applyTable(b.Statements.CashFlow, c.CashFlow)
	}
	if c.Market != nil {
		if b.Market == nil {
			b.Market = &models.MarketData{}
		}
		mergeMarket(b.Market, c.Market)
	}
	return n
}

func applyTable(t *models.Table, cells map[string]map[string]float64) int {
	if t == nil || len(cells) == 0 {
		return 0
	}
	n := 0
	for date, cols := range cells {
		for col, v := range cols {
			t.SetCell(date, col, v)
			n++
		}
	}
	// Corrections may introduce periods the snapshot lacked.
	t.SortByDate()
	return n
}

// mergeMarket copies only the fields the correction file actually set.
func mergeMarket(dst, src *models.MarketData) {
	if src.Ticker != "" {
		dst.Ticker = src.Ticker
	}
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Currency != "" {
		dst.Currency = src.Currency
	}
	for _, f := range []struct{ d, s **float64 }{
		{&dst.Beta, &src.Beta},
		{&dst.MarketCap, &src.MarketCap},
		{&dst.CurrentPrice, &src.CurrentPrice},
		{&dst.SharesOutstanding, &src.SharesOutstanding},
		{&dst.CostOfDebt, &src.CostOfDebt},
		{&dst.FiftyTwoWeekHigh, &src.FiftyTwoWeekHigh},
		{&dst.FiftyTwoWeekLow, &src.FiftyTwoWeekLow},
		{&dst.DividendYield, &src.DividendYield},
	} {
		if *f.s != nil {
			*f.d = models.Ptr(**f.s)
		}
	}
}
