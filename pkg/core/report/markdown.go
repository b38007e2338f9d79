package report

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"dcf_engine/pkg/core/valuation"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// RenderMarkdown builds the text summary of a valuation run. The same
// document is written next to the workbook and converted to HTML, so it
// sticks to GFM constructs the HTML renderer understands.
func RenderMarkdown(in *Input) string {
	var sb strings.Builder

	company := in.Cfg.Company
	title := company.Ticker
	if company.Name != "" {
		title = fmt.Sprintf("%s (%s)", company.Name, company.Ticker)
	}
	sb.WriteString(fmt.Sprintf("# %s DCF Valuation\n\n", title))
	sb.WriteString(fmt.Sprintf("*Generated %s · run `%s`*\n\n",
		in.GeneratedAt.Format("2006-01-02 15:04 MST"), in.RunID))

	writeRecommendationSection(&sb, in)
	writeAssumptionSection(&sb, in)
	writeValuationSection(&sb, in)
	writeScenarioSection(&sb, in)
	writeSensitivitySection(&sb, in)
	writeRelativeSection(&sb, in)
	writeAuditSection(&sb, in)

	if in.Narrative != "" {
		sb.WriteString("## Analyst Narrative\n\n")
		sb.WriteString(strings.TrimSpace(in.Narrative))
		sb.WriteString("\n")
	}

	return sb.String()
}

// WriteMarkdown renders the summary and writes it to path, creating the
// parent directory if needed.
func WriteMarkdown(in *Input, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(RenderMarkdown(in)), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	return nil
}

// RenderHTML converts the markdown summary into a standalone HTML page.
// GFM tables carry most of the report, so the table extension is required.
func RenderHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("markdown to HTML conversion failed: %w", err)
	}
	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<style>\n")
	page.WriteString("body { font-family: Calibri, Arial, sans-serif; max-width: 900px; margin: 2em auto; color: #222; }\n")
	page.WriteString("table { border-collapse: collapse; margin: 1em 0; }\n")
	page.WriteString("th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }\n")
	page.WriteString("th { background: #366092; color: white; }\n")
	page.WriteString("code { background: #f2f2f2; padding: 1px 4px; }\n")
	page.WriteString("</style>\n</head>\n<body>\n")
	page.Write(buf.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}

// WriteHTML renders the summary to HTML and writes it to path.
func WriteHTML(in *Input, path string) error {
	html, err := RenderHTML(RenderMarkdown(in))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}

func writeRecommendationSection(sb *strings.Builder, in *Input) {
	sb.WriteString("## Recommendation\n\n")
	sb.WriteString("| Rating | Current Price | Target Price | Upside |\n")
	sb.WriteString("|---|---|---|---|\n")
	sb.WriteString(fmt.Sprintf("| **%s** | %s | %s | %s |\n\n",
		in.Rec.Label,
		money(in, in.Rec.CurrentPrice),
		money(in, in.Rec.TargetPrice),
		signedPct(in.Rec.UpsidePct)))

	sb.WriteString(fmt.Sprintf("DCF value per share %s.", money(in, in.Rec.DCFValue)))
	if in.Rec.RelativeValue != nil {
		sb.WriteString(fmt.Sprintf(" Peer-multiple value %s; the target blends both approaches.",
			money(in, *in.Rec.RelativeValue)))
	} else {
		sb.WriteString(" No usable peer multiples; the target rests on the DCF alone.")
	}
	sb.WriteString("\n\n")
}

func writeAssumptionSection(sb *strings.Builder, in *Input) {
	a := in.Assumptions
	if a.ForecastYears == 0 {
		return
	}
	sb.WriteString("## Key Assumptions\n\n")
	sb.WriteString("| Assumption | Value |\n")
	sb.WriteString("|---|---|\n")
	if v, err := a.RevenueGrowth.Resolve(1); err == nil {
		sb.WriteString(fmt.Sprintf("| Revenue growth (year 1) | %s |\n", pct(v)))
	}
	if v, err := a.EBITMargin.Resolve(1); err == nil {
		sb.WriteString(fmt.Sprintf("| EBIT margin (year 1) | %s |\n", pct(v)))
	}
	if v, err := a.TaxRate.Resolve(1); err == nil {
		sb.WriteString(fmt.Sprintf("| Tax rate | %s |\n", pct(v)))
	}
	sb.WriteString(fmt.Sprintf("| Terminal growth | %s |\n", pct(a.TerminalGrowth)))
	sb.WriteString(fmt.Sprintf("| Forecast horizon | %d years |\n", a.ForecastYears))
	if a.ExitMultiple != nil {
		sb.WriteString(fmt.Sprintf("| Exit multiple | %.1fx %s |\n", a.ExitMultiple.Multiple, a.ExitMultiple.Metric))
	}
	sb.WriteString("\n")
}

func writeValuationSection(sb *strings.Builder, in *Input) {
	if in.Base == nil {
		return
	}
	v := in.Base.Valuation
	sb.WriteString("## DCF Valuation\n\n")
	sb.WriteString("| Item | Value |\n")
	sb.WriteString("|---|---|\n")
	sb.WriteString(fmt.Sprintf("| WACC | %s |\n", pct(v.WACC)))
	sb.WriteString(fmt.Sprintf("| PV of forecast FCFF | %s |\n", millions(v.PVFCFF)))
	sb.WriteString(fmt.Sprintf("| PV of terminal value | %s |\n", millions(v.PVTerminalValue)))
	sb.WriteString(fmt.Sprintf("| Enterprise value | %s |\n", millions(v.EnterpriseValue)))
	sb.WriteString(fmt.Sprintf("| Net debt | %s |\n", millions(v.NetDebt)))
	sb.WriteString(fmt.Sprintf("| Equity value | %s |\n", millions(v.EquityValue)))
	sb.WriteString(fmt.Sprintf("| Shares outstanding | %.1fm |\n", v.SharesOutstanding))
	sb.WriteString(fmt.Sprintf("| Value per share | %s |\n", money(in, v.ValuePerShare)))
	sb.WriteString(fmt.Sprintf("| Terminal value share of EV | %s |\n", pct(v.TerminalValuePct)))
	sb.WriteString("\n")
	if len(v.Warnings) > 0 || len(in.Base.WACC.Warnings) > 0 {
		for _, w := range in.Base.WACC.Warnings {
			sb.WriteString(fmt.Sprintf("- ⚠ %s\n", w))
		}
		for _, w := range v.Warnings {
			sb.WriteString(fmt.Sprintf("- ⚠ %s\n", w))
		}
		sb.WriteString("\n")
	}
}

func writeScenarioSection(sb *strings.Builder, in *Input) {
	if len(in.Scenarios) == 0 {
		return
	}
	sb.WriteString("## Scenarios\n\n")
	sb.WriteString("| Scenario | WACC | Value per Share | Upside | Rating |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, name := range valuation.ScenarioOrder {
		sc, ok := in.Scenarios[name]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			scenarioLabel(name), pct(sc.WACC), money(in, sc.ValuePerShare),
			signedPct(sc.UpsidePct), sc.Recommendation))
	}
	sb.WriteString("\n")
}

func writeSensitivitySection(sb *strings.Builder, in *Input) {
	if len(in.Sensitivity) == 0 {
		return
	}
	sb.WriteString("## Sensitivity\n\n")
	sb.WriteString("Value per share across single-parameter perturbations of the base case.\n\n")
	sb.WriteString("| Parameter | Low | Base | High |\n")
	sb.WriteString("|---|---|---|---|\n")
	base := ""
	if in.Base != nil {
		base = money(in, in.Base.Valuation.ValuePerShare)
	}
	for _, table := range in.Sensitivity {
		if len(table.Points) == 0 {
			continue
		}
		low, high := sensitivityRange(table.Points)
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			sensitivityLabel(table.Parameter), money(in, low), base, money(in, high)))
	}
	sb.WriteString("\n")
}

// sensitivityRange returns the smallest and largest value per share over
// the perturbation points, skipping failed runs recorded as NaN.
func sensitivityRange(points []valuation.Point) (low, high float64) {
	low, high = math.NaN(), math.NaN()
	for _, p := range points {
		if math.IsNaN(p.ValuePerShare) {
			continue
		}
		if math.IsNaN(low) || p.ValuePerShare < low {
			low = p.ValuePerShare
		}
		if math.IsNaN(high) || p.ValuePerShare > high {
			high = p.ValuePerShare
		}
	}
	return low, high
}

func writeRelativeSection(sb *strings.Builder, in *Input) {
	rel := in.Relative
	if rel.MedianEVEBITDA == nil && rel.MedianPE == nil {
		return
	}
	sb.WriteString("## Relative Valuation\n\n")
	sb.WriteString("| Approach | Median Multiple | Implied Value per Share | Peers Used |\n")
	sb.WriteString("|---|---|---|---|\n")
	if rel.MedianEVEBITDA != nil {
		implied := "n/a"
		if rel.EVEBITDAValuePerShare != nil {
			implied = money(in, *rel.EVEBITDAValuePerShare)
		}
		sb.WriteString(fmt.Sprintf("| EV/EBITDA | %.1fx | %s | %d |\n",
			*rel.MedianEVEBITDA, implied, rel.PeersUsedEVEBITDA))
	}
	if rel.MedianPE != nil {
		implied := "n/a"
		if rel.PEValuePerShare != nil {
			implied = money(in, *rel.PEValuePerShare)
		}
		sb.WriteString(fmt.Sprintf("| P/E | %.1fx | %s | %d |\n",
			*rel.MedianPE, implied, rel.PeersUsedPE))
	}
	sb.WriteString("\n")
}

func writeAuditSection(sb *strings.Builder, in *Input) {
	sb.WriteString("## Audit\n\n")
	if in.Audit == nil {
		sb.WriteString("Audit not run.\n\n")
		return
	}
	status := "PASSED"
	if !in.Audit.Passed {
		status = "FAILED"
	}
	sb.WriteString(fmt.Sprintf("**%s** with %d error(s) and %d warning(s).\n\n",
		status, in.Audit.ErrorCount, in.Audit.WarningCount))
	for _, f := range in.Audit.Findings {
		sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", f.Severity, f.Check, f.Message))
	}
	if len(in.Audit.Findings) > 0 {
		sb.WriteString("\n")
	}
}

// money formats a per-share amount with the quote currency when known.
func money(in *Input, v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	if in.Market != nil && in.Market.Currency != "" {
		return fmt.Sprintf("%.2f %s", v, in.Market.Currency)
	}
	return fmt.Sprintf("%.2f", v)
}

// millions formats a statement-scale amount. Inputs are already in
// millions, so only a suffix is added.
func millions(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1fm", v)
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

// signedPct formats a value already expressed in percent units, keeping
// an explicit sign so upside and downside read unambiguously.
func signedPct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", v)
}
