package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/portfolio-tracker/internal/database"
)

const dateLayout = "2006-01-02"

const activePortfolioKey = "active_portfolio_id"

// Repository is the persistence surface the store writes through.
type Repository interface {
	LoadPortfolios() ([]*Portfolio, error)
	CreatePortfolio(name string, createdAt time.Time) (int64, error)
	RenamePortfolio(id int64, name string) error
	DeletePortfolio(id int64) error
	InsertHolding(portfolioID int64, h *Holding) (int64, error)
	DeleteHolding(id int64) error
	UpdateCurrentPrices(prices map[int64]decimal.Decimal) error
	ActivePortfolioID() (int64, bool, error)
	SetActivePortfolioID(id int64) error
}

// SQLiteRepository persists portfolios and holdings in SQLite.
// Holding rows cascade on portfolio deletion via the schema's
// foreign key, so DeletePortfolio is a single statement.
type SQLiteRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLiteRepository creates a new repository
func NewSQLiteRepository(db *database.DB, log zerolog.Logger) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// LoadPortfolios returns all portfolios with their holdings, portfolios
// in creation order and holdings in insertion order.
func (r *SQLiteRepository) LoadPortfolios() ([]*Portfolio, error) {
	rows, err := r.db.Query("SELECT id, name, created_at FROM portfolios ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*Portfolio
	byID := make(map[int64]*Portfolio)
	for rows.Next() {
		var p Portfolio
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse portfolio created_at: %w", err)
		}
		portfolios = append(portfolios, &p)
		byID[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	hRows, err := r.db.Query(`
		SELECT id, portfolio_id, symbol, shares, purchase_price, purchase_date, current_price
		FROM holdings
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer hRows.Close()

	for hRows.Next() {
		var h Holding
		var portfolioID int64
		var shares, purchasePrice, purchaseDate, currentPrice string
		if err := hRows.Scan(&h.ID, &portfolioID, &h.Symbol, &shares, &purchasePrice, &purchaseDate, &currentPrice); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		if h.Shares, err = decimal.NewFromString(shares); err != nil {
			return nil, fmt.Errorf("failed to parse holding shares: %w", err)
		}
		if h.PurchasePrice, err = decimal.NewFromString(purchasePrice); err != nil {
			return nil, fmt.Errorf("failed to parse holding purchase price: %w", err)
		}
		if h.CurrentPrice, err = decimal.NewFromString(currentPrice); err != nil {
			return nil, fmt.Errorf("failed to parse holding current price: %w", err)
		}
		if h.PurchaseDate, err = time.Parse(dateLayout, purchaseDate); err != nil {
			return nil, fmt.Errorf("failed to parse holding purchase date: %w", err)
		}

		p, ok := byID[portfolioID]
		if !ok {
			// Orphan row; foreign keys should make this impossible.
			r.log.Warn().Int64("portfolio_id", portfolioID).Str("symbol", h.Symbol).Msg("Holding references missing portfolio, skipping")
			continue
		}
		p.Holdings = append(p.Holdings, &h)
	}
	if err := hRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return portfolios, nil
}

// CreatePortfolio inserts a portfolio and returns its assigned id.
func (r *SQLiteRepository) CreatePortfolio(name string, createdAt time.Time) (int64, error) {
	res, err := r.db.Exec(
		"INSERT INTO portfolios (name, created_at) VALUES (?, ?)",
		name, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert portfolio: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get portfolio id: %w", err)
	}

	r.log.Info().Int64("id", id).Str("name", name).Msg("Portfolio created")
	return id, nil
}

// RenamePortfolio updates a portfolio's display name.
func (r *SQLiteRepository) RenamePortfolio(id int64, name string) error {
	_, err := r.db.Exec("UPDATE portfolios SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("failed to rename portfolio: %w", err)
	}
	return nil
}

// DeletePortfolio removes a portfolio; its holdings cascade.
func (r *SQLiteRepository) DeletePortfolio(id int64) error {
	_, err := r.db.Exec("DELETE FROM portfolios WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}

	r.log.Info().Int64("id", id).Msg("Portfolio deleted")
	return nil
}

// InsertHolding inserts a holding and returns its assigned id.
func (r *SQLiteRepository) InsertHolding(portfolioID int64, h *Holding) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO holdings (portfolio_id, symbol, shares, purchase_price, purchase_date, current_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		portfolioID,
		h.Symbol,
		h.Shares.String(),
		h.PurchasePrice.String(),
		h.PurchaseDate.Format(dateLayout),
		h.CurrentPrice.String(),
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert holding: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get holding id: %w", err)
	}

	return id, nil
}

// DeleteHolding removes a single holding by id.
func (r *SQLiteRepository) DeleteHolding(id int64) error {
	_, err := r.db.Exec("DELETE FROM holdings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

// UpdateCurrentPrices writes refreshed prices in one transaction so a
// reconciliation pass is never half-persisted.
func (r *SQLiteRepository) UpdateCurrentPrices(prices map[int64]decimal.Decimal) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare("UPDATE holdings SET current_price = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare price update: %w", err)
	}
	defer stmt.Close()

	for id, price := range prices {
		if _, err := stmt.Exec(price.String(), id); err != nil {
			return fmt.Errorf("failed to update holding price: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price updates: %w", err)
	}

	return nil
}

// ActivePortfolioID returns the persisted active portfolio id, if any.
func (r *SQLiteRepository) ActivePortfolioID() (int64, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM app_state WHERE key = ?", activePortfolioKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get active portfolio: %w", err)
	}

	var id int64
	if _, err := fmt.Sscanf(value, "%d", &id); err != nil {
		return 0, false, fmt.Errorf("failed to parse active portfolio id: %w", err)
	}
	return id, true, nil
}

// SetActivePortfolioID persists the active portfolio id.
func (r *SQLiteRepository) SetActivePortfolioID(id int64) error {
	_, err := r.db.Exec(
		"INSERT OR REPLACE INTO app_state (key, value) VALUES (?, ?)",
		activePortfolioKey, fmt.Sprintf("%d", id),
	)
	if err != nil {
		return fmt.Errorf("failed to set active portfolio: %w", err)
	}
	return nil
}
