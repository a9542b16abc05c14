package alerts

import (
	"fmt"
	"strings"

	"stockpulse/models"

	"github.com/shopspring/decimal"
)

// FormatAlert renders the chat message sent when an alert fires
func FormatAlert(alert *models.PriceAlert, price decimal.Decimal) string {
	direction := "risen above"
	icon := "📈"
	if alert.Condition == models.AlertConditionBelow {
		direction = "fallen below"
		icon = "📉"
	}

	return fmt.Sprintf("%s %s has %s %s\nCurrent price: %s",
		icon, alert.Symbol, direction, alert.TargetPrice.StringFixed(2), price.StringFixed(2))
}

// FormatReport renders a compact analysis digest for the chat bot
func FormatReport(report *models.StockReport) string {
	r := report.Analysis
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s: %s (%s confidence)\n", recommendationIcon(r.Recommendation), report.Symbol, r.Recommendation, r.Confidence)
	if report.Quote != nil {
		fmt.Fprintf(&b, "Price: %s", report.Quote.Price.StringFixed(2))
		if report.Quote.ChangePercent != 0 {
			fmt.Fprintf(&b, " (%+.2f%%)", report.Quote.ChangePercent)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Health: %d/100\n", r.FinancialHealthScore)
	fmt.Fprintf(&b, "Buy below %.2f, sell above %.2f (%s)\n",
		r.PriceTargets.GoodBuyPrice, r.PriceTargets.GoodSellPrice, valuationLabel(r.PriceTargets.CurrentValue))
	if r.Reason != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Reason)
	}

	writeTop(&b, "Bull", r.BullCase)
	writeTop(&b, "Bear", r.BearCase)

	if report.Professional != nil && report.Professional.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", report.Professional.Summary)
	}
	if len(report.MissingData) > 0 {
		fmt.Fprintf(&b, "\nMissing: %s\n", strings.Join(report.MissingData, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}

// writeTop lists up to three points of one side of the narrative
func writeTop(b *strings.Builder, title string, points []models.NarrativePoint) {
	if len(points) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for i, p := range points {
		if i == 3 {
			fmt.Fprintf(b, "  …and %d more\n", len(points)-3)
			break
		}
		fmt.Fprintf(b, "  • %s\n", p.Text)
	}
}

func recommendationIcon(rec models.Recommendation) string {
	switch rec {
	case models.RecommendationBuy:
		return "🟢"
	case models.RecommendationSell:
		return "🔴"
	default:
		return "🟡"
	}
}

func valuationLabel(v models.Valuation) string {
	return strings.ToLower(strings.ReplaceAll(string(v), "_", " "))
}
