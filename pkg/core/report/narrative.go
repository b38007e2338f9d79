package report

import (
	"context"
	"fmt"
	"strings"

	"dcf_engine/pkg/core/llm"
	"dcf_engine/pkg/core/utils"
	"dcf_engine/pkg/core/valuation"
)

const narrativeSystemPrompt = `You are an equity research analyst writing the commentary section of a valuation report.
Write in measured, professional prose. Ground every claim in the figures you are given.
Do not invent numbers, company events, or catalysts that are not in the input.
Output plain markdown paragraphs without headings or code fences.`

// GenerateNarrative asks the configured model for a short investment
// commentary based on the run's figures. A nil provider disables the
// narrative without error so offline runs stay silent.
func GenerateNarrative(ctx context.Context, provider llm.Provider, in *Input) (string, error) {
	if provider == nil {
		return "", nil
	}

	prompt := narrativePrompt(in)
	system := provider.AdaptInstructions(narrativeSystemPrompt)

	text, err := provider.GenerateResponse(ctx, prompt, system, map[string]interface{}{
		"temperature": 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}

	text = utils.CleanMarkdown(text)
	if err := utils.ValidateMarkdown(text); err != nil {
		return "", fmt.Errorf("narrative validation failed: %w", err)
	}
	return text, nil
}

// narrativePrompt condenses the run into the figures the model is
// allowed to draw on.
func narrativePrompt(in *Input) string {
	var sb strings.Builder

	company := in.Cfg.Company
	sb.WriteString(fmt.Sprintf("Valuation results for %s (%s):\n", company.Name, company.Ticker))
	sb.WriteString(fmt.Sprintf("- Recommendation: %s with %s upside to a target of %s\n",
		in.Rec.Label, signedPct(in.Rec.UpsidePct), money(in, in.Rec.TargetPrice)))
	sb.WriteString(fmt.Sprintf("- Current price: %s, DCF value per share: %s\n",
		money(in, in.Rec.CurrentPrice), money(in, in.Rec.DCFValue)))
	if in.Rec.RelativeValue != nil {
		sb.WriteString(fmt.Sprintf("- Peer-multiple value per share: %s\n", money(in, *in.Rec.RelativeValue)))
	}

	if in.Base != nil {
		v := in.Base.Valuation
		sb.WriteString(fmt.Sprintf("- WACC: %s, terminal growth: %s, terminal value share of EV: %s\n",
			pct(v.WACC), pct(in.Assumptions.TerminalGrowth), pct(v.TerminalValuePct)))
	}

	if len(in.Scenarios) > 0 {
		parts := make([]string, 0, len(valuation.ScenarioOrder))
		for _, name := range valuation.ScenarioOrder {
			if sc, ok := in.Scenarios[name]; ok {
				parts = append(parts, fmt.Sprintf("%s %s", scenarioLabel(name), money(in, sc.ValuePerShare)))
			}
		}
		sb.WriteString(fmt.Sprintf("- Scenario values per share: %s\n", strings.Join(parts, ", ")))
	}

	if in.Audit != nil {
		status := "passed"
		if !in.Audit.Passed {
			status = "failed"
		}
		sb.WriteString(fmt.Sprintf("- Audit %s with %d error(s) and %d warning(s)\n",
			status, in.Audit.ErrorCount, in.Audit.WarningCount))
		for _, f := range in.Audit.Findings {
			sb.WriteString(fmt.Sprintf("  - [%s] %s\n", f.Severity, f.Message))
		}
	}

	sb.WriteString("\nWrite three short paragraphs: the valuation case, the main risks ")
	sb.WriteString("suggested by the warnings and the scenario spread, and what would change the rating. ")
	sb.WriteString("Do not restate every figure.")
	return sb.String()
}
