package templates

import (
	"context"
	"io"
	"strings"

	"stockpulse/models"

	"github.com/a-h/templ"
)

// AnalysisCard renders a full stock report
func AnalysisCard(report *models.StockReport) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		r := report.Analysis

		h.rawf(`<article class="analysis" id="analysis-%s">`, report.Symbol)
		h.rawf(`<h2>%s`, report.Symbol)
		if f := report.Fundamentals; f != nil && f.Name != "" {
			h.rawf(` <span class="muted">%s</span>`, f.Name)
		}
		h.raw(`</h2>`)

		if q := report.Quote; q != nil {
			h.rawf(`<p class="price">%s <span class="muted">%+.2f%% · %s</span></p>`,
				q.Price.StringFixed(2), q.ChangePercent, q.Source)
		}

		h.rawf(`<p><span class="badge rec-%s">%s</span> %s confidence · health %d/100</p>`,
			cssToken(string(r.Recommendation)), r.Recommendation, r.Confidence, r.FinancialHealthScore)
		if r.Reason != "" {
			h.rawf(`<p>%s</p>`, r.Reason)
		}

		h.raw(`<table class="targets"><tr><th>Good buy</th><th>Good sell</th><th>Valuation</th>`)
		if r.TargetPrice != nil {
			h.raw(`<th>Target</th>`)
		}
		h.rawf(`</tr><tr><td>%s</td><td>%s</td><td class="val-%s">%s</td>`,
			money(r.PriceTargets.GoodBuyPrice), money(r.PriceTargets.GoodSellPrice),
			cssToken(string(r.PriceTargets.CurrentValue)), strings.ReplaceAll(string(r.PriceTargets.CurrentValue), "_", " "))
		if r.TargetPrice != nil {
			h.rawf(`<td>%s</td>`, money(*r.TargetPrice))
		}
		h.raw(`</tr></table>`)

		narrative(h, "Bull case", r.BullCase)
		narrative(h, "Bear case", r.BearCase)

		if f := report.Fundamentals; f != nil {
			h.raw(`<h3>Fundamentals</h3><table class="fundamentals">`)
			h.rawf(`<tr><td>Sector</td><td>%s</td><td>Industry</td><td>%s</td></tr>`, f.Sector, f.Industry)
			h.rawf(`<tr><td>P/E</td><td>%s</td><td>P/B</td><td>%s</td></tr>`, optional(f.PERatio, "%.2f"), optional(f.PriceToBook, "%.2f"))
			h.rawf(`<tr><td>PEG</td><td>%s</td><td>EPS</td><td>%s</td></tr>`, optional(f.PEGRatio, "%.2f"), optional(f.EPS, "%.2f"))
			h.rawf(`<tr><td>ROE</td><td>%s</td><td>Debt/Equity</td><td>%s</td></tr>`, percent(f.ReturnOnEquity), optional(f.DebtToEquity, "%.2f"))
			h.rawf(`<tr><td>Net margin</td><td>%s</td><td>Dividend yield</td><td>%s</td></tr>`, percent(f.NetMargin), percent(f.DividendYield))
			h.raw(`</table>`)
		}

		if p := report.Professional; p != nil {
			h.raw(`<h3>Analyst view</h3>`)
			h.rawf(`<p>%s</p>`, p.Summary)
			if p.Outlook != "" {
				h.rawf(`<p><strong>Outlook:</strong> %s</p>`, p.Outlook)
			}
			list(h, "Catalysts", p.Catalysts)
			list(h, "Key risks", p.KeyRisks)
			if p.Model != "" {
				h.rawf(`<p class="muted">Written by %s</p>`, p.Model)
			}
		}

		if len(report.MissingData) > 0 {
			h.rawf(`<p class="muted">Unavailable: %s</p>`, strings.Join(report.MissingData, ", "))
		}
		h.rawf(`<p class="muted">As of %s · <a href="#" hx-post="/api/stocks/%s/notify" hx-swap="none">send to Telegram</a></p>`,
			report.GeneratedAt.Format("2006-01-02 15:04 MST"), report.Symbol)
		h.raw(`</article>`)
		return h.err
	})
}

func narrative(h *htmlWriter, title string, points []models.NarrativePoint) {
	h.rawf(`<h3>%s</h3>`, title)
	if len(points) == 0 {
		h.raw(`<p class="muted">Nothing notable.</p>`)
		return
	}
	h.raw(`<ul>`)
	for _, p := range points {
		h.rawf(`<li class="strength-%s">%s</li>`, cssToken(string(p.Strength)), p.Text)
	}
	h.raw(`</ul>`)
}

func list(h *htmlWriter, title string, items []string) {
	if len(items) == 0 {
		return
	}
	h.rawf(`<h4>%s</h4><ul>`, title)
	for _, item := range items {
		h.rawf(`<li>%s</li>`, item)
	}
	h.raw(`</ul>`)
}

func percent(v *float64) string {
	if v == nil {
		return "—"
	}
	return money(*v*100) + "%"
}

// QuoteCard renders the latest price for a symbol
func QuoteCard(q *models.Quote) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf(`<div class="quote"><strong>%s</strong> %s <span class="muted">%+.2f%% · %s</span></div>`,
			q.Symbol, q.Price.StringFixed(2), q.ChangePercent, q.Source)
		return h.err
	})
}
