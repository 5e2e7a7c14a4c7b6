package portfolio

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// HoldingMetrics holds the derived valuation of a single holding.
type HoldingMetrics struct {
	Symbol          string          `json:"symbol"`
	Shares          decimal.Decimal `json:"shares"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	PurchaseDate    string          `json:"purchase_date"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	MarketValue     decimal.Decimal `json:"market_value"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	GainLoss        decimal.Decimal `json:"gain_loss"`
	GainLossPercent decimal.Decimal `json:"gain_loss_percent"`
}

// PortfolioTotals holds the derived valuation of a whole portfolio.
type PortfolioTotals struct {
	TotalValue           decimal.Decimal `json:"total_value"`
	TotalCost            decimal.Decimal `json:"total_cost"`
	TotalGainLoss        decimal.Decimal `json:"total_gain_loss"`
	TotalGainLossPercent decimal.Decimal `json:"total_gain_loss_percent"`
}

// ComputeHoldingMetrics derives valuation metrics for a single holding.
// Pure function over the holding's current state; nothing is cached.
//
// A zero-cost-basis holding (gifted shares) reports 0% regardless of
// current price, so the percentage never divides by zero.
func ComputeHoldingMetrics(h *Holding) HoldingMetrics {
	marketValue := h.Shares.Mul(h.CurrentPrice)
	totalCost := h.Shares.Mul(h.PurchasePrice)
	gainLoss := marketValue.Sub(totalCost)

	return HoldingMetrics{
		Symbol:          h.Symbol,
		Shares:          h.Shares,
		PurchasePrice:   h.PurchasePrice,
		PurchaseDate:    h.PurchaseDate.Format("2006-01-02"),
		CurrentPrice:    h.CurrentPrice,
		MarketValue:     marketValue,
		TotalCost:       totalCost,
		GainLoss:        gainLoss,
		GainLossPercent: gainLossPercent(gainLoss, totalCost),
	}
}

// ComputePortfolioTotals sums market value and cost across all holdings
// and applies the same zero-cost guard to the aggregate percentage.
func ComputePortfolioTotals(p *Portfolio) PortfolioTotals {
	totalValue := decimal.Zero
	totalCost := decimal.Zero

	for _, h := range p.Holdings {
		totalValue = totalValue.Add(h.Shares.Mul(h.CurrentPrice))
		totalCost = totalCost.Add(h.Shares.Mul(h.PurchasePrice))
	}

	gainLoss := totalValue.Sub(totalCost)

	return PortfolioTotals{
		TotalValue:           totalValue,
		TotalCost:            totalCost,
		TotalGainLoss:        gainLoss,
		TotalGainLossPercent: gainLossPercent(gainLoss, totalCost),
	}
}

func gainLossPercent(gainLoss, totalCost decimal.Decimal) decimal.Decimal {
	if !totalCost.IsPositive() {
		return decimal.Zero
	}
	return gainLoss.Div(totalCost).Mul(hundred)
}
