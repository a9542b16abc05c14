package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stockpulse/models"
)

const professionalSystemPrompt = `You are a senior equity research analyst writing for retail investors.
You will be given a deterministic analysis of a stock: its fundamentals, a health
score, a recommendation, a buy/sell price band and bull and bear talking points.

Do not change the recommendation or the prices. Explain them in plain language and
add context the numbers cannot show.

Respond with JSON only, in the following format:
{
  "summary": "<two or three sentences on the overall picture>",
  "outlook": "<what to watch over the next two quarters>",
  "catalysts": ["<catalyst1>", "<catalyst2>"],
  "key_risks": ["<risk1>", "<risk2>"]
}`

// professional asks the LLM for a narrative on top of the deterministic report
func (a *Advisor) professional(ctx context.Context, report *models.StockReport) (*models.ProfessionalAnalysis, error) {
	response, err := a.llm.InvokeWithPrompt(ctx, professionalSystemPrompt, professionalPrompt(report))
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %w", a.llm.Model(), err)
	}

	result, err := parseProfessional(response)
	if err != nil {
		return nil, err
	}
	result.Model = a.llm.Model()
	return result, nil
}

func professionalPrompt(report *models.StockReport) string {
	r := report.Analysis
	var b strings.Builder

	fmt.Fprintf(&b, "Symbol: %s\n", report.Symbol)
	if f := report.Fundamentals; f != nil {
		if f.Name != "" {
			fmt.Fprintf(&b, "Company: %s\n", f.Name)
		}
		fmt.Fprintf(&b, "Sector: %s / %s\n", orNA(f.Sector), orNA(f.Industry))
		fmt.Fprintf(&b, "P/E: %s  P/B: %s  PEG: %s  EPS: %s\n",
			fmtOpt(f.PERatio), fmtOpt(f.PriceToBook), fmtOpt(f.PEGRatio), fmtOpt(f.EPS))
		fmt.Fprintf(&b, "ROE: %s  Debt/Equity: %s  Net margin: %s  Dividend yield: %s\n",
			fmtOpt(f.ReturnOnEquity), fmtOpt(f.DebtToEquity), fmtOpt(f.NetMargin), fmtOpt(f.DividendYield))
	}

	fmt.Fprintf(&b, "\nCurrent price: %.2f\n", r.CurrentPrice)
	fmt.Fprintf(&b, "Financial health score: %d/100\n", r.FinancialHealthScore)
	fmt.Fprintf(&b, "Recommendation: %s (%s confidence). %s\n", r.Recommendation, r.Confidence, r.Reason)
	fmt.Fprintf(&b, "Good buy price: %.2f  Good sell price: %.2f  Valuation: %s\n",
		r.PriceTargets.GoodBuyPrice, r.PriceTargets.GoodSellPrice, r.PriceTargets.CurrentValue)

	writePoints(&b, "Bull case", r.BullCase)
	writePoints(&b, "Bear case", r.BearCase)

	if len(report.MissingData) > 0 {
		fmt.Fprintf(&b, "\nUnavailable inputs: %s\n", strings.Join(report.MissingData, ", "))
	}
	b.WriteString("\nProvide your analysis.")
	return b.String()
}

func writePoints(b *strings.Builder, title string, points []models.NarrativePoint) {
	fmt.Fprintf(b, "\n%s:\n", title)
	if len(points) == 0 {
		b.WriteString("- none\n")
		return
	}
	for _, p := range points {
		fmt.Fprintf(b, "- [%s] %s\n", p.Strength, p.Text)
	}
}

// parseProfessional reads the JSON object out of a model reply. Models often
// wrap JSON in prose or code fences; when no object parses, the whole reply
// becomes the summary.
func parseProfessional(response string) (*models.ProfessionalAnalysis, error) {
	text := strings.TrimSpace(response)
	if text == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	var result models.ProfessionalAnalysis
	if obj, ok := extractJSONObject(text); ok {
		if err := json.Unmarshal([]byte(obj), &result); err == nil && result.Summary != "" {
			return &result, nil
		}
	}

	return &models.ProfessionalAnalysis{Summary: text}, nil
}

// extractJSONObject returns the first balanced {...} block in s, honouring strings
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func fmtOpt(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
