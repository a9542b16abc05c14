package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>StockPulse</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#0f1115;color:#e6e6e6}
header{padding:1rem 2rem;border-bottom:1px solid #222}
main{display:grid;grid-template-columns:2fr 1fr;gap:1.5rem;padding:1.5rem 2rem}
section{background:#161a22;border-radius:8px;padding:1rem}
input,select,button,textarea{background:#0f1115;color:inherit;border:1px solid #333;border-radius:4px;padding:.4rem .6rem}
table{width:100%;border-collapse:collapse}td,th{padding:.3rem;text-align:left;border-bottom:1px solid #222}
.badge{padding:.15rem .5rem;border-radius:4px;font-weight:600}
.rec-buy{background:#14532d}.rec-hold{background:#713f12}.rec-sell{background:#7f1d1d}
.val-undervalued{color:#4ade80}.val-overvalued{color:#f87171}.val-fairly-valued{color:#facc15}
.strength-strong{font-weight:700}.muted{color:#888}.error{color:#f87171}
</style>
</head>
<body>
`

// Index is the dashboard shell; its panels load through HTMX
func Index() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(pageHead)
		h.raw(`<header><h1>StockPulse</h1><p class="muted">Fundamental analysis, price bands and alerts</p></header>
<main>
<div>
<section>
<form hx-post="/api/analyze" hx-target="#analysis" hx-indicator="#analysis-loading">
<input name="symbol" placeholder="Symbol, e.g. AAPL" required maxlength="10">
<label><input type="checkbox" name="refresh" value="true"> refresh</label>
<button type="submit">Analyze</button>
<span id="analysis-loading" class="htmx-indicator muted">analyzing…</span>
</form>
<form hx-get="/api/search" hx-target="#search-results" hx-trigger="input changed delay:400ms from:find input">
<input name="q" placeholder="Search companies">
</form>
<div id="search-results"></div>
</section>
<section id="analysis"><p class="muted">Enter a symbol to see its analysis.</p></section>
</div>
<div>
<section><h2>Watchlist</h2>
<form hx-post="/api/watchlist" hx-target="#watchlist"><input name="symbol" placeholder="Symbol" required><button>Add</button></form>
<button hx-get="/api/watchlist/summary" hx-target="#analysis">Summarize</button>
<div id="watchlist" hx-get="/api/watchlist" hx-trigger="load"></div>
</section>
<section><h2>Price alerts</h2>
<form hx-post="/api/alerts" hx-target="#alerts">
<input name="symbol" placeholder="Symbol" required>
<select name="condition"><option value="above">above</option><option value="below">below</option></select>
<input name="target_price" placeholder="Price" required inputmode="decimal">
<input name="chat_id" placeholder="Telegram chat (optional)">
<button>Create</button>
</form>
<div id="alerts" hx-get="/api/alerts" hx-trigger="load"></div>
</section>
<section><h2>Notes</h2>
<form hx-post="/api/notes" hx-target="#notes" hx-on::after-request="if(event.detail.successful) this.reset()">
<input name="symbol" placeholder="Symbol" required>
<textarea name="body" placeholder="Thesis, catalysts, things to check" required maxlength="10000"></textarea>
<button>Save</button>
</form>
<div id="notes" hx-get="/api/notes" hx-trigger="load"></div>
</section>
</div>
</main>
</body>
</html>
`)
		return h.err
	})
}

// ErrorState renders an inline error message
func ErrorState(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf(`<div class="error" role="alert">%s</div>`, message)
		return h.err
	})
}
