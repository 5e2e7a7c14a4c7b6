// Package quotes provides current stock prices by symbol.
//
// The Source contract is deliberately narrow: one batched call that
// either returns a symbol-to-price map or fails as a whole. A symbol
// absent from the result is not an error; callers treat it as "no
// update". How a provider authenticates or retries is its own concern.
package quotes

import (
	"context"

	"github.com/shopspring/decimal"
)

// Source returns current prices for a batch of symbols.
type Source interface {
	// GetQuotes fetches prices for the given symbols in one call.
	// Symbols it cannot price are simply absent from the result.
	GetQuotes(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}
