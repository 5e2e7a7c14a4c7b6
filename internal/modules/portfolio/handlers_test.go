package portfolio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Store) {
	t.Helper()
	store, _ := newTestStore(t)
	handler := NewHandler(store, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api/portfolios", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return router, store
}

func doRequest(t *testing.T, router *chi.Mux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreatePortfolio(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/portfolios", `{"name":"Retirement"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Retirement", created.Name)
}

func TestHandler_CreatePortfolio_EmptyName(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/portfolios", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ListPortfolios(t *testing.T) {
	router, store := newTestRouter(t)
	addTestHolding(t, store, store.Portfolios()[0].ID, "AAPL", "50", "150.25")

	rec := doRequest(t, router, http.MethodGet, "/api/portfolios", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, DefaultPortfolioName, items[0]["name"])
	assert.Equal(t, true, items[0]["active"])
	assert.Equal(t, float64(1), items[0]["holding_count"])
}

func TestHandler_GetPortfolioView(t *testing.T) {
	router, store := newTestRouter(t)
	id := store.Portfolios()[0].ID
	addTestHolding(t, store, id, "AAPL", "50", "150.25")

	rec := doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/portfolios/%d", id), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view PortfolioView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Holdings, 1)
	assert.Equal(t, "AAPL", view.Holdings[0].Symbol)
	assert.True(t, view.Summary.TotalValue.Equal(mustDecimal(t, "7512.50")))
}

func TestHandler_GetPortfolio_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/portfolios/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/portfolios/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RenamePortfolio(t *testing.T) {
	router, store := newTestRouter(t)
	id := store.Portfolios()[0].ID

	rec := doRequest(t, router, http.MethodPut, fmt.Sprintf("/api/portfolios/%d", id), `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	p, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
}

func TestHandler_DeletePortfolio(t *testing.T) {
	router, store := newTestRouter(t)
	first := store.Portfolios()[0].ID

	// The only portfolio cannot be deleted.
	rec := doRequest(t, router, http.MethodDelete, fmt.Sprintf("/api/portfolios/%d", first), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	second, err := store.CreatePortfolio("Second")
	require.NoError(t, err)

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/api/portfolios/%d", second.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, store.Portfolios(), 1)
}

func TestHandler_ActivatePortfolio(t *testing.T) {
	router, store := newTestRouter(t)
	first := store.Portfolios()[0].ID

	_, err := store.CreatePortfolio("Second")
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/portfolios/%d/activate", first), "")
	require.Equal(t, http.StatusOK, rec.Code)

	activeID, _ := store.ActivePortfolioID()
	assert.Equal(t, first, activeID)
}

func TestHandler_AddHolding(t *testing.T) {
	router, store := newTestRouter(t)
	id := store.Portfolios()[0].ID

	body := `{"symbol":"aapl","shares":"50","purchase_price":"150.25","purchase_date":"2024-03-15"}`
	rec := doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/portfolios/%d/holdings", id), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Symbol input is normalized to uppercase.
	p, err := store.Get(id)
	require.NoError(t, err)
	require.Len(t, p.Holdings, 1)
	assert.Equal(t, "AAPL", p.Holdings[0].Symbol)
}

func TestHandler_AddHolding_Errors(t *testing.T) {
	router, store := newTestRouter(t)
	id := store.Portfolios()[0].ID
	addTestHolding(t, store, id, "AAPL", "50", "150.25")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "duplicate symbol",
			body:       `{"symbol":"AAPL","shares":"1","purchase_price":"10","purchase_date":"2024-03-15"}`,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "zero shares",
			body:       `{"symbol":"MSFT","shares":"0","purchase_price":"10","purchase_date":"2024-03-15"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad symbol",
			body:       `{"symbol":"WAYTOOLONG","shares":"1","purchase_price":"10","purchase_date":"2024-03-15"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing date",
			body:       `{"symbol":"MSFT","shares":"1","purchase_price":"10"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed date",
			body:       `{"symbol":"MSFT","shares":"1","purchase_price":"10","purchase_date":"15/03/2024"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"symbol":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/portfolios/%d/holdings", id), tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	// Holdings unchanged after all the rejects.
	p, err := store.Get(id)
	require.NoError(t, err)
	assert.Len(t, p.Holdings, 1)
}

func TestHandler_RemoveHolding(t *testing.T) {
	router, store := newTestRouter(t)
	id := store.Portfolios()[0].ID
	addTestHolding(t, store, id, "AAPL", "50", "150.25")

	rec := doRequest(t, router, http.MethodDelete, fmt.Sprintf("/api/portfolios/%d/holdings/AAPL", id), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/api/portfolios/%d/holdings/AAPL", id), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
