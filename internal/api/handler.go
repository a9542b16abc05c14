package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"stockpulse/config"
	"stockpulse/internal/app"
	"stockpulse/observability"
	"stockpulse/services"
	"stockpulse/templates"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies; the largest payload is a note
const maxBodyBytes = 64 << 10

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleIndex serves the dashboard page
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.htmlResponse(w, templates.Index(), r)
}

// HandleHealth returns the health status of the application. Degraded
// dependencies are reported in the body; the process itself is still up.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.Health(r.Context()))
}

// HandleSearch looks up symbols by name
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := h.app.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, templates.SearchResults(results), r)
		return
	}
	h.jsonResponse(w, results)
}

// HandleGetQuote returns the latest price for a symbol
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.app.GetQuote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, templates.QuoteCard(quote), r)
		return
	}
	h.jsonResponse(w, quote)
}

// HandleGetAnalysis returns the report for the symbol in the path.
// ?refresh=true bypasses the report cache.
func (h *Handler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, chi.URLParam(r, "symbol"), parseBool(r.URL.Query().Get("refresh")))
}

// HandleAnalyzeStock analyzes the symbol posted as JSON or form data
func (h *Handler) HandleAnalyzeStock(w http.ResponseWriter, r *http.Request) {
	values, err := readValues(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(values["symbol"]) == "" {
		h.fail(w, r, fmt.Errorf("%w: symbol is required", app.ErrInvalidInput))
		return
	}
	h.analyze(w, r, values["symbol"], parseBool(values["refresh"]))
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request, symbol string, fresh bool) {
	report, err := h.app.Analyze(r.Context(), symbol, fresh)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, templates.AnalysisCard(report), r)
		return
	}
	h.jsonResponse(w, report)
}

// HandleShareReport sends the symbol's digest to a Telegram chat. The chat
// comes from the chat_id field, falling back to the configured default.
func (h *Handler) HandleShareReport(w http.ResponseWriter, r *http.Request) {
	values, err := readValues(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report, err := h.app.ShareReport(r.Context(), chi.URLParam(r, "symbol"), values["chat_id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.jsonResponse(w, StatusResponse{Status: "sent", Message: report.Symbol})
}

// HandleGetWatchlist returns the user's watchlist
func (h *Handler) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.GetWatchlist(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, templates.WatchlistTable(items), r)
		return
	}
	h.jsonResponse(w, items)
}

// HandleWatchlistSummary analyzes and ranks every watched symbol
func (h *Handler) HandleWatchlistSummary(w http.ResponseWriter, r *http.Request) {
	run, err := h.app.WatchlistSummary(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, templates.WatchlistSummary(run), r)
		return
	}
	h.jsonResponse(w, run)
}

// HandleAddToWatchlist adds a symbol to the user's watchlist
func (h *Handler) HandleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	values, err := readValues(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items, err := h.app.AddToWatchlist(r.Context(), userIDFrom(r.Context()), values["symbol"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, templates.WatchlistTable(items), r)
		return
	}
	writeJSON(w, http.StatusCreated, items)
}

// HandleRemoveFromWatchlist removes a symbol from the user's watchlist
func (h *Handler) HandleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.RemoveFromWatchlist(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "symbol"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, templates.WatchlistTable(items), r)
		return
	}
	h.jsonResponse(w, items)
}

// HandleGetAlerts returns the user's price alerts
func (h *Handler) HandleGetAlerts(w http.ResponseWriter, r *http.Request) {
	h.renderAlerts(w, r, http.StatusOK, nil)
}

// HandleCreateAlert creates a price alert
func (h *Handler) HandleCreateAlert(w http.ResponseWriter, r *http.Request) {
	values, err := readValues(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	alert, err := h.app.CreateAlert(r.Context(), userIDFrom(r.Context()), app.AlertRequest{
		Symbol:      values["symbol"],
		Condition:   values["condition"],
		TargetPrice: values["target_price"],
		ChatID:      values["chat_id"],
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderAlerts(w, r, http.StatusCreated, alert)
}

// HandleCancelAlert cancels one of the user's alerts
func (h *Handler) HandleCancelAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.app.CancelAlert(r.Context(), userIDFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderAlerts(w, r, http.StatusOK, StatusResponse{Status: "cancelled", Message: id})
}

// renderAlerts answers HTMX requests with the refreshed list and JSON
// requests with payload, or the list itself when payload is nil
func (h *Handler) renderAlerts(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if payload != nil && !isHTMXRequest(r) {
		writeJSON(w, status, payload)
		return
	}

	list, err := h.app.GetAlerts(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, templates.AlertsList(list), r)
		return
	}
	writeJSON(w, status, list)
}

// HandleGetNotes returns the user's notes, optionally filtered by ?symbol=
func (h *Handler) HandleGetNotes(w http.ResponseWriter, r *http.Request) {
	h.renderNotes(w, r, http.StatusOK, nil)
}

// HandleCreateNote stores a research note
func (h *Handler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	values, err := readValues(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	note, err := h.app.CreateNote(r.Context(), userIDFrom(r.Context()), values["symbol"], values["body"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderNotes(w, r, http.StatusCreated, note)
}

// HandleUpdateNote replaces the body of a note
func (h *Handler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	values, err := readValues(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	note, err := h.app.UpdateNote(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"), values["body"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderNotes(w, r, http.StatusOK, note)
}

// HandleDeleteNote removes a note
func (h *Handler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.app.DeleteNote(r.Context(), userIDFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderNotes(w, r, http.StatusOK, StatusResponse{Status: "deleted", Message: id})
}

func (h *Handler) renderNotes(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if payload != nil && !isHTMXRequest(r) {
		writeJSON(w, status, payload)
		return
	}

	notes, err := h.app.GetNotes(r.Context(), userIDFrom(r.Context()), r.URL.Query().Get("symbol"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, templates.NotesList(notes), r)
		return
	}
	writeJSON(w, status, notes)
}

// Helper functions

// isHTMXRequest checks if the request is from HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// templComponent matches the templ.Component interface
type templComponent interface {
	Render(ctx context.Context, w io.Writer) error
}

// htmlResponse renders a templ component as HTML
func (h *Handler) htmlResponse(w http.ResponseWriter, component templComponent, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		observability.WithContext(r.Context()).Warn("failed to render component", "path", r.URL.Path, "error", err)
	}
}

// htmlError renders an error state as HTML. HTMX only swaps 2xx responses,
// so the error is delivered with status 200.
func (h *Handler) htmlError(w http.ResponseWriter, message string, r *http.Request) {
	h.htmlResponse(w, templates.ErrorState(message), r)
}

// fail writes err in the representation the client asked for
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		observability.WithContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}

	if isHTMXRequest(r) {
		h.htmlError(w, message, r)
		return
	}
	jsonError(w, message, status)
}

// statusFor maps application errors to HTTP status codes
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, app.ErrDatabaseUnavailable),
		errors.Is(err, app.ErrNotificationsDisabled),
		errors.Is(err, services.ErrServiceUnavailable),
		errors.Is(err, services.ErrNotSupported):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// readValues reads a flat set of fields from a JSON object or form body.
// JSON numbers and booleans are kept in their literal text form.
func readValues(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	values := map[string]string{}

	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := r.ParseForm(); err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: malformed form body", app.ErrInvalidInput)
		}
		for key := range r.Form {
			values[key] = r.Form.Get(key)
		}
		return values, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		return nil, fmt.Errorf("%w: malformed JSON body", app.ErrInvalidInput)
	}
	for key, v := range raw {
		switch t := v.(type) {
		case string:
			values[key] = t
		case json.Number:
			values[key] = t.String()
		case bool:
			values[key] = strconv.FormatBool(t)
		case nil:
		default:
			return nil, fmt.Errorf("%w: field %q must be a string, number or boolean", app.ErrInvalidInput, key)
		}
	}
	return values, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// StatusResponse represents a status response
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
