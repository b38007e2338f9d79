package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	in := reportInput(t, t.TempDir())
	md := RenderMarkdown(in)

	for _, want := range []string{
		"# Universal Music Group (UMG.AS) DCF Valuation",
		"run `run-7f3a`",
		"| **Strong Buy** | 25.50 EUR | 35.70 EUR | +40.0% |",
		"## Key Assumptions",
		"| Terminal growth | 2.00% |",
		"| Forecast horizon | 3 years |",
		"| WACC | 7.50% |",
		"| Value per share | 35.70 EUR |",
		"## Scenarios",
		"| Bull | 7.50% | 41.20 EUR | +61.6% | Strong Buy |",
		"## Sensitivity",
		"## Relative Valuation",
		"| EV/EBITDA | 11.0x | 32.10 EUR | 2 |",
		"## Audit",
		"**PASSED** with 0 error(s) and 1 warning(s).",
		"- [warning] terminal_value_share: terminal value represents 88.4% of enterprise value",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdownSensitivityRow(t *testing.T) {
	in := reportInput(t, t.TempDir())
	md := RenderMarkdown(in)

	// WACC points of 42.10 and 30.90 around a 35.70 base.
	want := "| WACC | 30.90 EUR | 35.70 EUR | 42.10 EUR |"
	if !strings.Contains(md, want) {
		t.Errorf("markdown missing sensitivity row %q", want)
	}
}

func TestRenderMarkdownWithNarrative(t *testing.T) {
	in := reportInput(t, t.TempDir())
	in.Narrative = "The valuation rests on continued streaming growth."
	md := RenderMarkdown(in)

	if !strings.Contains(md, "## Analyst Narrative") {
		t.Error("narrative section missing")
	}
	if !strings.Contains(md, "streaming growth") {
		t.Error("narrative body missing")
	}
}

func TestRenderMarkdownRelativeFallbackNote(t *testing.T) {
	in := reportInput(t, t.TempDir())
	in.Rec.RelativeValue = nil
	md := RenderMarkdown(in)

	if !strings.Contains(md, "target rests on the DCF alone") {
		t.Error("expected the DCF-only note when no relative value is set")
	}
}

func TestWriteMarkdown(t *testing.T) {
	dir := t.TempDir()
	in := reportInput(t, dir)
	path := filepath.Join(dir, "reports", "UMG_summary.md")

	if err := WriteMarkdown(in, path); err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report back: %v", err)
	}
	if !strings.Contains(string(data), "## Recommendation") {
		t.Error("written report missing recommendation section")
	}
}

func TestRenderHTML(t *testing.T) {
	in := reportInput(t, t.TempDir())
	html, err := RenderHTML(RenderMarkdown(in))
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}

	// GFM tables must survive the conversion; without the table
	// extension they would come through as raw pipes.
	if !strings.Contains(html, "<table>") {
		t.Error("HTML output has no rendered tables")
	}
	if !strings.Contains(html, "<h2") {
		t.Error("HTML output has no section headings")
	}
	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Error("HTML output is not a standalone page")
	}
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	in := reportInput(t, dir)
	path := filepath.Join(dir, "UMG_summary.html")

	if err := WriteHTML(in, path); err != nil {
		t.Fatalf("WriteHTML failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read HTML back: %v", err)
	}
	if !strings.Contains(string(data), "</html>") {
		t.Error("HTML file looks truncated")
	}
}
