// Package pipeline drives one complete valuation run: acquire data,
// normalize, derive assumptions, value, stress, audit, render and
// optionally persist. Every collaborator is injected; a Runner holds no
// state between runs and never mutates its config.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dcf_engine/pkg/core/assumption"
	"dcf_engine/pkg/core/audit"
	"dcf_engine/pkg/core/config"
	"dcf_engine/pkg/core/ingest"
	"dcf_engine/pkg/core/llm"
	"dcf_engine/pkg/core/normalize"
	"dcf_engine/pkg/core/ratios"
	"dcf_engine/pkg/core/report"
	"dcf_engine/pkg/core/utils"
	"dcf_engine/pkg/core/valuation"
	"dcf_engine/pkg/models"
)

// ==================== Artifacts ====================

// RunArtifacts is everything one run produced. The store persists it as a
// single blob; the CLI reads the audit result for its exit status.
type RunArtifacts struct {
	RunID      string    `json:"run_id"`
	Ticker     string    `json:"ticker"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Statements        *models.Statements            `json:"statements"`
	NormalizeWarnings []string                      `json:"normalize_warnings,omitempty"`
	Ratios            *ratios.Set                   `json:"ratios"`
	Market            *models.MarketData            `json:"market,omitempty"`
	Macro             *models.MacroData             `json:"macro,omitempty"`
	Peers             []models.PeerRecord           `json:"peers,omitempty"`
	Assumptions       assumption.DCFAssumptions     `json:"assumptions"`
	Base              *valuation.RunOutput          `json:"base"`
	Sensitivity       []valuation.TableResult       `json:"sensitivity"`
	Scenarios         map[string]valuation.Scenario `json:"scenarios"`
	Relative          valuation.RelativeResult      `json:"relative"`
	Recommendation    valuation.Recommendation      `json:"recommendation"`
	Audit             *audit.Results                `json:"audit"`
	Narrative         string                        `json:"narrative,omitempty"`

	WorkbookPath string `json:"workbook_path,omitempty"`
	MarkdownPath string `json:"markdown_path,omitempty"`
	HTMLPath     string `json:"html_path,omitempty"`
	SnapshotPath string `json:"snapshot_path,omitempty"`
}

// RunStore persists finished runs. *store.RunRepo satisfies it.
type RunStore interface {
	Save(ctx context.Context, ticker, runID string, artifacts any) error
}

// SnapshotSaver writes the raw acquired bundle for later offline replay.
// *store.SnapshotCache satisfies it.
type SnapshotSaver interface {
	Save(b *ingest.Bundle) (string, error)
}

// ==================== Runner ====================

// Runner executes runs against a fixed config and collaborator set.
type Runner struct {
	cfg         *config.Config
	source      ingest.DataSource
	corrections *ingest.CorrectionSet
	snapshots   SnapshotSaver
	runs        RunStore
	narrator    llm.Provider
	out         io.Writer
	skipRender  bool
}

type Option func(*Runner)

// WithCorrections applies a hand-maintained correction set on top of
// whatever the data source returns.
func WithCorrections(cs *ingest.CorrectionSet) Option {
	return func(r *Runner) { r.corrections = cs }
}

// WithSnapshotSaver saves the raw bundle after acquisition so the run can
// be replayed offline.
func WithSnapshotSaver(s SnapshotSaver) Option {
	return func(r *Runner) { r.snapshots = s }
}

// WithRunStore persists the finished artifacts.
func WithRunStore(s RunStore) Option {
	return func(r *Runner) { r.runs = s }
}

// WithNarrator enables the generated commentary section.
func WithNarrator(p llm.Provider) Option {
	return func(r *Runner) { r.narrator = p }
}

// WithOutput redirects progress logging, mainly for tests.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithoutRender skips the workbook and report files. Numbers-only runs
// finish faster and leave nothing on disk.
func WithoutRender() Option {
	return func(r *Runner) { r.skipRender = true }
}

func New(cfg *config.Config, source ingest.DataSource, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, source: source, out: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ==================== Run ====================

// Run executes the full pipeline. A non-nil error means a stage failed
// outright; an audit failure is not an error here, callers check
// artifacts.Audit.Passed.
func (r *Runner) Run(ctx context.Context) (*RunArtifacts, error) {
	cfg := r.cfg
	if cfg == nil {
		return nil, fmt.Errorf("pipeline config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if r.source == nil {
		return nil, fmt.Errorf("pipeline data source is required")
	}

	ticker := cfg.Company.Ticker
	art := &RunArtifacts{
		RunID:     uuid.NewString(),
		Ticker:    ticker,
		StartedAt: time.Now().UTC(),
	}
	r.banner(fmt.Sprintf("DCF VALUATION PIPELINE - %s (run %s)", ticker, art.RunID[:8]))

	// 1. Acquire
	r.stage(1, "ACQUIRE %s", ticker)
	bundle, err := r.source.Collect(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("data acquisition failed: %w", err)
	}
	if bundle == nil || bundle.Statements == nil {
		return nil, fmt.Errorf("data source returned no statements for %s", ticker)
	}
	r.logf("income periods: %d, balance: %d, cash flow: %d",
		bundle.Statements.Income.NumPeriods(),
		bundle.Statements.Balance.NumPeriods(),
		bundle.Statements.CashFlow.NumPeriods())
	if r.corrections != nil {
		n := r.corrections.Apply(bundle)
		r.logf("applied %d corrected statement cells", n)
	}
	if r.snapshots != nil {
		path, err := r.snapshots.Save(bundle)
		if err != nil {
			r.logf("warning: snapshot save failed: %v", err)
		} else {
			art.SnapshotPath = path
			r.logf("snapshot saved to %s", path)
		}
	}
	art.Market, art.Macro = bundle.Market, bundle.Macro

	// 2. Normalize
	r.stage(2, "NORMALIZE STATEMENTS")
	stmts, warnings := normalize.Statements(bundle.Statements, cfg.Thresholds.IdentityTolerance)
	art.Statements, art.NormalizeWarnings = stmts, warnings
	for _, w := range warnings {
		r.logf("warning: %s", w)
	}
	r.logf("normalized %d periods", stmts.Income.NumPeriods())

	// 3. Ratios and assumptions
	r.stage(3, "RATIOS AND ASSUMPTIONS")
	rs := ratios.Compute(stmts)
	art.Ratios = rs
	if len(rs.Skipped) > 0 {
		r.logf("skipped ratios (missing inputs): %s", strings.Join(rs.Skipped, ", "))
	}
	assum := assumption.Derive(rs, cfg.DCF.ForecastYears, cfg.DCF.TerminalGrowth)
	art.Assumptions = assum
	if g, err := assum.RevenueGrowth.Resolve(1); err == nil {
		r.logf("base revenue growth %.2f%%, terminal growth %.2f%%", g*100, assum.TerminalGrowth*100)
	}

	// 4. Base valuation
	r.stage(4, "DCF VALUATION")
	runIn := valuation.RunInput{
		Statements:  stmts,
		Assumptions: assum,
		Market:      bundle.Market,
		Macro:       bundle.Macro,
		Config:      cfg,
	}
	base, err := valuation.Run(runIn)
	if err != nil {
		return nil, fmt.Errorf("valuation failed: %w", err)
	}
	art.Base = base
	r.logf("WACC %.2f%%, enterprise value %.1f, value per share %.2f",
		base.WACC.WACC*100, base.Valuation.EnterpriseValue, base.Valuation.ValuePerShare)
	for _, w := range base.WACC.Warnings {
		r.logf("warning: %s", w)
	}
	for _, w := range base.Valuation.Warnings {
		r.logf("warning: %s", w)
	}

	// 5. Sensitivity and scenarios
	r.stage(5, "SENSITIVITY AND SCENARIOS")
	tables, err := valuation.RunSensitivity(runIn, base)
	if err != nil {
		return nil, fmt.Errorf("sensitivity analysis failed: %w", err)
	}
	art.Sensitivity = tables
	r.logf("sensitivity tables: %d", len(tables))
	scenarios, err := valuation.RunScenarios(runIn)
	if err != nil {
		return nil, fmt.Errorf("scenario analysis failed: %w", err)
	}
	art.Scenarios = scenarios
	for _, name := range valuation.ScenarioOrder {
		if sc, ok := scenarios[name]; ok {
			r.logf("%s: %.2f per share (%+.1f%%)", name, sc.ValuePerShare, sc.UpsidePct)
		}
	}

	// 6. Relative valuation and recommendation
	r.stage(6, "RELATIVE VALUATION")
	peers := bundle.Peers
	if len(peers) == 0 && len(cfg.Peers) > 0 {
		tickers := make([]string, 0, len(cfg.Peers))
		for _, p := range cfg.Peers {
			tickers = append(tickers, p.Ticker)
		}
		peers = r.source.CollectPeers(ctx, tickers)
	}
	art.Peers = peers
	rel := valuation.RunRelative(peers, base)
	art.Relative = rel
	r.logf("peers with usable EV/EBITDA: %d, with P/E: %d", rel.PeersUsedEVEBITDA, rel.PeersUsedPE)

	rec := valuation.BuildRecommendation(
		base.Valuation.ValuePerShare, rel.Values(), valuation.CurrentPriceOr1(bundle.Market))
	art.Recommendation = rec
	r.logf("recommendation: %s, target %.2f, upside %+.1f%%", rec.Label, rec.TargetPrice, rec.UpsidePct)

	// 7. Audit pass before rendering, so the workbook's audit sheet shows
	// the findings about the numbers it presents.
	r.stage(7, "AUDIT")
	auditor := audit.New(cfg.Thresholds)
	preAudit := auditor.Audit(audit.Input{
		Config:     cfg,
		Statements: stmts,
		Base:       base,
		Scenarios:  scenarios,
	})
	art.Audit = preAudit
	r.logf("pre-render audit: %d error(s), %d warning(s)", preAudit.ErrorCount, preAudit.WarningCount)

	// 8. Render
	if !r.skipRender {
		r.stage(8, "RENDER REPORTS")
		repIn := &report.Input{
			RunID:       art.RunID,
			GeneratedAt: art.StartedAt,
			Cfg:         cfg,
			Statements:  stmts,
			Ratios:      rs,
			Market:      bundle.Market,
			Macro:       bundle.Macro,
			Peers:       peers,
			Assumptions: assum,
			Base:        base,
			Sensitivity: tables,
			Scenarios:   scenarios,
			Relative:    rel,
			Rec:         rec,
			Audit:       preAudit,
		}
		if r.narrator != nil {
			text, err := report.GenerateNarrative(ctx, r.narrator, repIn)
			if err != nil {
				r.logf("warning: narrative skipped: %v", err)
			} else {
				repIn.Narrative = text
				art.Narrative = text
			}
		}

		wbPath, err := report.BuildWorkbook(repIn)
		if err != nil {
			return nil, fmt.Errorf("workbook rendering failed: %w", err)
		}
		art.WorkbookPath = wbPath
		r.logf("workbook: %s", wbPath)

		safe := utils.SafeTicker(ticker)
		mdPath := filepath.Join(cfg.Paths.OutputDir, safe+"_summary.md")
		if err := report.WriteMarkdown(repIn, mdPath); err != nil {
			return nil, fmt.Errorf("markdown rendering failed: %w", err)
		}
		art.MarkdownPath = mdPath
		htmlPath := filepath.Join(cfg.Paths.OutputDir, safe+"_summary.html")
		if err := report.WriteHTML(repIn, htmlPath); err != nil {
			return nil, fmt.Errorf("HTML rendering failed: %w", err)
		}
		art.HTMLPath = htmlPath
		r.logf("summary: %s", mdPath)

		// Re-audit with the workbook on disk so the sheet battery runs.
		art.Audit = auditor.Audit(audit.Input{
			Config:         cfg,
			Statements:     stmts,
			Base:           base,
			Scenarios:      scenarios,
			WorkbookPath:   wbPath,
			RequiredSheets: report.SheetNames,
		})
	}

	// 9. Persist
	if r.runs != nil {
		r.stage(9, "PERSIST")
		if err := r.runs.Save(ctx, ticker, art.RunID, art); err != nil {
			r.logf("warning: run persistence failed: %v", err)
		} else {
			r.logf("run %s saved", art.RunID[:8])
		}
	}

	art.FinishedAt = time.Now().UTC()
	r.summary(art)
	return art, nil
}

// ==================== Progress Output ====================

func (r *Runner) banner(title string) {
	line := strings.Repeat("#", 80)
	fmt.Fprintf(r.out, "\n%s\n%*s\n%s\n", line, (80+len(title))/2, title, line)
}

func (r *Runner) stage(n int, format string, args ...interface{}) {
	fmt.Fprintf(r.out, "\n[%d] %s\n", n, fmt.Sprintf(format, args...))
	fmt.Fprintln(r.out, strings.Repeat("-", 60))
}

func (r *Runner) logf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Runner) summary(art *RunArtifacts) {
	status := "PASSED"
	if art.Audit != nil && !art.Audit.Passed {
		status = "FAILED"
	}
	fmt.Fprintf(r.out, "\n%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(r.out, "%s: %s at %.2f, target %.2f (%+.1f%%), audit %s\n",
		art.Ticker, art.Recommendation.Label, art.Recommendation.CurrentPrice,
		art.Recommendation.TargetPrice, art.Recommendation.UpsidePct, status)
	fmt.Fprintf(r.out, "%s\n", strings.Repeat("=", 60))
}
