package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a single stock position within a portfolio.
//
// PurchasePrice is the per-share cost basis fixed at creation time.
// CurrentPrice starts equal to PurchasePrice and is overwritten only by
// quote reconciliation.
type Holding struct {
	ID            int64           `json:"id"`
	Symbol        string          `json:"symbol"`
	Shares        decimal.Decimal `json:"shares"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
}

func (h *Holding) clone() *Holding {
	c := *h
	return &c
}

// Portfolio is a named, ordered collection of holdings. Holding order
// is insertion order and only matters for display.
type Portfolio struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	Holdings  []*Holding `json:"holdings"`
}

func (p *Portfolio) clone() *Portfolio {
	c := &Portfolio{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		Holdings:  make([]*Holding, 0, len(p.Holdings)),
	}
	for _, h := range p.Holdings {
		c.Holdings = append(c.Holdings, h.clone())
	}
	return c
}

func (p *Portfolio) holding(symbol string) *Holding {
	for _, h := range p.Holdings {
		if h.Symbol == symbol {
			return h
		}
	}
	return nil
}
