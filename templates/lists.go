package templates

import (
	"context"
	"io"
	"strings"

	"stockpulse/models"

	"github.com/a-h/templ"
)

// WatchlistTable lists watched symbols with analyze and remove actions
func WatchlistTable(items []models.WatchlistItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if len(items) == 0 {
			h.raw(`<p class="muted">No symbols yet.</p>`)
			return h.err
		}
		h.raw(`<table><tbody>`)
		for _, item := range items {
			h.rawf(`<tr><td><a href="#" hx-post="/api/analyze" hx-vals='{"symbol": "%s"}' hx-target="#analysis">%s</a></td>`, item.Symbol, item.Symbol)
			h.rawf(`<td class="muted">%s</td>`, item.AddedAt.Format("2006-01-02"))
			h.rawf(`<td><button hx-delete="/api/watchlist/%s" hx-target="#watchlist">✕</button></td></tr>`, item.Symbol)
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
}

// AlertsList lists a user's price alerts
func AlertsList(alerts []models.PriceAlert) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if len(alerts) == 0 {
			h.raw(`<p class="muted">No alerts.</p>`)
			return h.err
		}
		h.raw(`<table><tbody>`)
		for _, a := range alerts {
			h.rawf(`<tr class="alert-%s"><td>%s</td><td>%s %s</td>`, a.Status, a.Symbol, a.Condition, a.TargetPrice.StringFixed(2))
			if a.Status == models.AlertStatusTriggered && a.TriggerPrice != nil {
				h.rawf(`<td>fired at %s</td><td></td></tr>`, a.TriggerPrice.StringFixed(2))
				continue
			}
			h.rawf(`<td class="muted">%s</td><td><button hx-delete="/api/alerts/%s" hx-target="#alerts">✕</button></td></tr>`, a.Status, a.ID)
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
}

// NotesList renders research notes, newest first
func NotesList(notes []models.Note) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if len(notes) == 0 {
			h.raw(`<p class="muted">No notes.</p>`)
			return h.err
		}
		h.raw(`<ul class="notes">`)
		for _, n := range notes {
			h.rawf(`<li id="note-%s"><strong>%s</strong> <span class="muted">%s</span><p>%s</p>`,
				n.ID, n.Symbol, n.UpdatedAt.Format("2006-01-02 15:04"), n.Body)
			h.rawf(`<button hx-delete="/api/notes/%s" hx-target="#notes">delete</button></li>`, n.ID)
		}
		h.raw(`</ul>`)
		return h.err
	})
}

// SearchResults lists symbol matches from the lookup endpoint
func SearchResults(results []models.SearchResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if len(results) == 0 {
			h.raw(`<p class="muted">No matches.</p>`)
			return h.err
		}
		h.raw(`<ul class="search-results">`)
		for _, r := range results {
			h.rawf(`<li><a href="#" hx-post="/api/analyze" hx-vals='{"symbol": "%s"}' hx-target="#analysis">%s</a> %s <span class="muted">%s %s</span></li>`,
				r.Symbol, r.Symbol, r.Name, r.Region, r.Currency)
		}
		h.raw(`</ul>`)
		return h.err
	})
}

// WatchlistSummary renders a ranked screen of the watchlist
func WatchlistSummary(run *models.ScreenRun) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<article class="summary"><h2>Watchlist summary</h2>`)
		if run == nil || len(run.Results) == 0 {
			h.raw(`<p class="muted">No symbols yet.</p></article>`)
			return h.err
		}

		h.raw(`<table><thead><tr><th>#</th><th>Symbol</th><th>Price</th><th>Call</th><th>Health</th><th>Valuation</th><th>Buy below</th><th>Score</th></tr></thead><tbody>`)
		for i, r := range run.Results {
			if !r.Analyzed() {
				h.rawf(`<tr class="muted"><td>%d</td><td>%s</td><td colspan="6">%s</td></tr>`, i+1, r.Symbol, r.Error)
				continue
			}
			h.rawf(`<tr><td>%d</td><td><a href="#" hx-post="/api/analyze" hx-vals='{"symbol": "%s"}' hx-target="#analysis">%s</a></td>`, i+1, r.Symbol, r.Symbol)
			h.rawf(`<td>%s</td><td><span class="badge rec-%s">%s</span> %s</td><td>%d</td>`,
				money(r.Price), cssToken(string(r.Recommendation)), r.Recommendation, r.Confidence, r.HealthScore)
			h.rawf(`<td class="val-%s">%s</td><td>%s</td><td>%.0f</td></tr>`,
				cssToken(string(r.Valuation)), strings.ReplaceAll(string(r.Valuation), "_", " "), money(r.GoodBuyPrice), r.Score)
		}
		h.raw(`</tbody></table>`)
		h.rawf(`<p class="muted">%d analyzed, %d failed in %dms</p></article>`, run.Analyzed, run.Failed, run.DurationMs)
		return h.err
	})
}
