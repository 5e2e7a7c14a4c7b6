package portfolio

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	store *Store
	log   zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(store *Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes mounts the portfolio routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Put("/", h.HandleRename)
		r.Delete("/", h.HandleDelete)
		r.Post("/activate", h.HandleActivate)
		r.Post("/holdings", h.HandleAddHolding)
		r.Delete("/holdings/{symbol}", h.HandleRemoveHolding)
	})
}

type portfolioNameRequest struct {
	Name string `json:"name"`
}

type addHoldingRequest struct {
	Symbol        string          `json:"symbol"`
	Shares        decimal.Decimal `json:"shares"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  string          `json:"purchase_date"`
}

// portfolioListItem is the list view: identity plus computed totals.
type portfolioListItem struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Active       bool            `json:"active"`
	HoldingCount int             `json:"holding_count"`
	Summary      PortfolioTotals `json:"summary"`
}

// HandleList returns all portfolios with their computed totals.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	activeID, _ := h.store.ActivePortfolioID()

	result := []portfolioListItem{}
	for _, p := range h.store.Portfolios() {
		result = append(result, portfolioListItem{
			ID:           p.ID,
			Name:         p.Name,
			Active:       p.ID == activeID,
			HoldingCount: len(p.Holdings),
			Summary:      ComputePortfolioTotals(p),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleCreate creates an empty portfolio and makes it active.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req portfolioNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.store.CreatePortfolio(req.Name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, p)
}

// HandleGet returns the portfolio view: summary plus holding metrics.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	view, err := h.store.View(id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// HandleRename changes a portfolio's display name.
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	var req portfolioNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.store.RenamePortfolio(id, req.Name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a portfolio and its holdings.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeletePortfolio(id); err != nil {
		h.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleActivate switches the active portfolio.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	if err := h.store.SetActivePortfolio(id); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"active_portfolio_id": id})
}

// HandleAddHolding appends a holding to a portfolio.
func (h *Handler) HandleAddHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	var req addHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var purchaseDate time.Time
	if req.PurchaseDate != "" {
		var err error
		if purchaseDate, err = time.Parse("2006-01-02", req.PurchaseDate); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid purchase_date, expected YYYY-MM-DD")
			return
		}
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	holding, err := h.store.AddHolding(id, symbol, req.Shares, req.PurchasePrice, purchaseDate)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, holding)
}

// HandleRemoveHolding removes a holding by symbol.
func (h *Handler) HandleRemoveHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if err := h.store.RemoveHolding(id, symbol); err != nil {
		h.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) portfolioID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return 0, false
	}
	return id, true
}

// writeStoreError maps the store's error taxonomy to HTTP status codes.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, ErrPortfolioNotFound), errors.Is(err, ErrHoldingNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateSymbol), errors.Is(err, ErrLastPortfolio):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("Store operation failed")
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
