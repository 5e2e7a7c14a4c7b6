package portfolio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/portfolio-tracker/internal/events"
)

// DefaultPortfolioName seeds the first portfolio when the database is
// empty on startup.
const DefaultPortfolioName = "My Portfolio"

// Store owns the canonical in-memory portfolios and holdings and every
// mutation on them. All access goes through a single mutex, so
// user-triggered mutations and reconciliation passes never interleave
// mid-operation.
//
// Reads hand out deep copies; callers never see internal mutable state.
type Store struct {
	mu     sync.Mutex
	repo   Repository
	events *events.Manager
	log    zerolog.Logger

	portfolios map[int64]*Portfolio
	order      []int64 // creation order
	activeID   int64   // 0 = none
}

// NewStore creates a new portfolio store backed by repo.
func NewStore(repo Repository, ev *events.Manager, log zerolog.Logger) *Store {
	return &Store{
		repo:       repo,
		events:     ev,
		log:        log.With().Str("component", "store").Logger(),
		portfolios: make(map[int64]*Portfolio),
	}
}

// Load populates the store from the repository. When no portfolios
// exist yet, a default one is seeded so the holdings mutation surface
// is never active without a portfolio.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	portfolios, err := s.repo.LoadPortfolios()
	if err != nil {
		return fmt.Errorf("failed to load portfolios: %w", err)
	}

	for _, p := range portfolios {
		s.portfolios[p.ID] = p
		s.order = append(s.order, p.ID)
	}

	if len(s.order) == 0 {
		if _, err := s.createPortfolioLocked(DefaultPortfolioName); err != nil {
			return fmt.Errorf("failed to seed default portfolio: %w", err)
		}
		s.log.Info().Str("name", DefaultPortfolioName).Msg("Seeded default portfolio")
		return nil
	}

	activeID, ok, err := s.repo.ActivePortfolioID()
	if err != nil {
		return fmt.Errorf("failed to load active portfolio: %w", err)
	}
	if ok {
		if _, exists := s.portfolios[activeID]; exists {
			s.activeID = activeID
		}
	}
	if s.activeID == 0 {
		// Fall back to the oldest portfolio.
		s.activeID = s.order[0]
		if err := s.repo.SetActivePortfolioID(s.activeID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist active portfolio")
		}
	}

	s.log.Info().
		Int("portfolios", len(s.order)).
		Int64("active_id", s.activeID).
		Msg("Portfolio store loaded")

	return nil
}

// CreatePortfolio creates an empty portfolio and makes it active.
func (s *Store) CreatePortfolio(name string) (*Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.createPortfolioLocked(name)
	if err != nil {
		return nil, err
	}
	return p.clone(), nil
}

func (s *Store) createPortfolioLocked(name string) (*Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	createdAt := time.Now()
	id, err := s.repo.CreatePortfolio(name, createdAt)
	if err != nil {
		return nil, err
	}

	p := &Portfolio{ID: id, Name: name, CreatedAt: createdAt}
	s.portfolios[id] = p
	s.order = append(s.order, id)
	s.activeID = id
	if err := s.repo.SetActivePortfolioID(id); err != nil {
		s.log.Warn().Err(err).Int64("id", id).Msg("Failed to persist active portfolio")
	}

	s.emit(events.PortfolioCreated, map[string]interface{}{"portfolio_id": id, "name": name})
	return p, nil
}

// RenamePortfolio changes a portfolio's display name.
func (s *Store) RenamePortfolio(id int64, name string) (*Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	p, ok := s.portfolios[id]
	if !ok {
		return nil, ErrPortfolioNotFound
	}

	if err := s.repo.RenamePortfolio(id, name); err != nil {
		return nil, err
	}
	p.Name = name

	s.emit(events.PortfolioRenamed, map[string]interface{}{"portfolio_id": id, "name": name})
	return p.clone(), nil
}

// DeletePortfolio removes a portfolio and its holdings. Deleting the
// last remaining portfolio is rejected. When the active portfolio is
// deleted, the oldest remaining one becomes active.
func (s *Store) DeletePortfolio(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.portfolios[id]; !ok {
		return ErrPortfolioNotFound
	}
	if len(s.order) == 1 {
		return ErrLastPortfolio
	}

	if err := s.repo.DeletePortfolio(id); err != nil {
		return err
	}

	delete(s.portfolios, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if s.activeID == id {
		s.activeID = s.order[0]
		if err := s.repo.SetActivePortfolioID(s.activeID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist active portfolio")
		}
	}

	s.emit(events.PortfolioDeleted, map[string]interface{}{"portfolio_id": id})
	return nil
}

// SetActivePortfolio switches the active portfolio.
func (s *Store) SetActivePortfolio(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.portfolios[id]; !ok {
		return ErrPortfolioNotFound
	}

	if err := s.repo.SetActivePortfolioID(id); err != nil {
		return err
	}
	s.activeID = id
	return nil
}

// ActivePortfolioID returns the active portfolio id, or false when no
// portfolio exists.
func (s *Store) ActivePortfolioID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == 0 {
		return 0, false
	}
	return s.activeID, true
}

// AddHolding validates and appends a holding to a portfolio. The
// holding's current price starts at its purchase price and is only
// moved by reconciliation afterwards.
func (s *Store) AddHolding(portfolioID int64, symbol string, shares, purchasePrice decimal.Decimal, purchaseDate time.Time) (*Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject early; no partial state.
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	if !shares.IsPositive() {
		return nil, &ValidationError{Field: "shares", Reason: "must be greater than zero"}
	}
	if purchasePrice.IsNegative() {
		return nil, &ValidationError{Field: "purchase_price", Reason: "must not be negative"}
	}
	if purchaseDate.IsZero() {
		return nil, &ValidationError{Field: "purchase_date", Reason: "is required"}
	}

	p, ok := s.portfolios[portfolioID]
	if !ok {
		return nil, ErrPortfolioNotFound
	}
	if p.holding(symbol) != nil {
		return nil, ErrDuplicateSymbol
	}

	h := &Holding{
		Symbol:        symbol,
		Shares:        shares,
		PurchasePrice: purchasePrice,
		PurchaseDate:  purchaseDate,
		CurrentPrice:  purchasePrice,
	}

	id, err := s.repo.InsertHolding(portfolioID, h)
	if err != nil {
		return nil, err
	}
	h.ID = id
	p.Holdings = append(p.Holdings, h)

	s.emit(events.HoldingAdded, map[string]interface{}{
		"portfolio_id": portfolioID,
		"symbol":       symbol,
		"shares":       shares.String(),
	})
	return h.clone(), nil
}

// RemoveHolding removes a holding by symbol.
func (s *Store) RemoveHolding(portfolioID int64, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.portfolios[portfolioID]
	if !ok {
		return ErrPortfolioNotFound
	}

	for i, h := range p.Holdings {
		if h.Symbol != symbol {
			continue
		}
		if err := s.repo.DeleteHolding(h.ID); err != nil {
			return err
		}
		p.Holdings = append(p.Holdings[:i], p.Holdings[i+1:]...)
		s.emit(events.HoldingRemoved, map[string]interface{}{
			"portfolio_id": portfolioID,
			"symbol":       symbol,
		})
		return nil
	}

	return ErrHoldingNotFound
}

// Get returns a snapshot of one portfolio.
func (s *Store) Get(id int64) (*Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.portfolios[id]
	if !ok {
		return nil, ErrPortfolioNotFound
	}
	return p.clone(), nil
}

// Portfolios returns snapshots of all portfolios in creation order.
func (s *Store) Portfolios() []*Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Portfolio, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.portfolios[id].clone())
	}
	return result
}

// DistinctSymbols returns the deduplicated, sorted set of symbols held
// across every portfolio. Refresh always covers all portfolios, not
// just the active one.
func (s *Store) DistinctSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, p := range s.portfolios {
		for _, h := range p.Holdings {
			seen[h.Symbol] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// ApplyQuotes merges externally fetched prices into every matching
// holding. Symbols absent from the map are left untouched. The changed
// prices are persisted in one transaction before memory is touched, so
// a persistence failure leaves both memory and disk unchanged.
//
// Returns the sorted symbols whose stored price actually changed; an
// identical quote batch applied twice changes nothing on the second
// pass.
func (s *Store) ApplyQuotes(prices map[string]decimal.Decimal) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type change struct {
		holding *Holding
		price   decimal.Decimal
	}
	var changes []change
	changedSymbols := make(map[string]struct{})

	for _, p := range s.portfolios {
		for _, h := range p.Holdings {
			price, ok := prices[h.Symbol]
			if !ok || price.Equal(h.CurrentPrice) {
				continue
			}
			changes = append(changes, change{holding: h, price: price})
			changedSymbols[h.Symbol] = struct{}{}
		}
	}

	if len(changes) == 0 {
		return nil, nil
	}

	persist := make(map[int64]decimal.Decimal, len(changes))
	for _, c := range changes {
		persist[c.holding.ID] = c.price
	}
	if err := s.repo.UpdateCurrentPrices(persist); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed prices: %w", err)
	}

	for _, c := range changes {
		c.holding.CurrentPrice = c.price
	}

	updated := make([]string, 0, len(changedSymbols))
	for symbol := range changedSymbols {
		updated = append(updated, symbol)
	}
	sort.Strings(updated)
	return updated, nil
}

// View assembles the read-only view model for one portfolio: summary
// totals plus per-holding metrics in insertion order. Recomputed from
// current state on every call.
func (s *Store) View(id int64) (PortfolioView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.portfolios[id]
	if !ok {
		return PortfolioView{}, ErrPortfolioNotFound
	}

	view := PortfolioView{
		ID:       p.ID,
		Name:     p.Name,
		Active:   p.ID == s.activeID,
		Summary:  ComputePortfolioTotals(p),
		Holdings: make([]HoldingMetrics, 0, len(p.Holdings)),
	}
	for _, h := range p.Holdings {
		view.Holdings = append(view.Holdings, ComputeHoldingMetrics(h))
	}
	return view, nil
}

// Counts returns the portfolio and holding counts for status reporting.
func (s *Store) Counts() (portfolios, holdings int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	portfolios = len(s.order)
	for _, p := range s.portfolios {
		holdings += len(p.Holdings)
	}
	return portfolios, holdings
}

// PortfolioView is the read-only view model exposed to the API layer.
type PortfolioView struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Active   bool             `json:"active"`
	Summary  PortfolioTotals  `json:"summary"`
	Holdings []HoldingMetrics `json:"holdings"`
}

func (s *Store) emit(eventType events.EventType, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Emit(eventType, "portfolio", data)
}
