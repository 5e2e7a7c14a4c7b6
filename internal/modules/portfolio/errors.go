package portfolio

import (
	"errors"
	"fmt"
	"regexp"
)

// Recoverable mutation failures. None of these leaves the store in a
// partially mutated state.
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrHoldingNotFound   = errors.New("holding not found")
	ErrDuplicateSymbol   = errors.New("symbol already exists in portfolio")
	ErrLastPortfolio     = errors.New("cannot delete the last portfolio")
)

// ValidationError reports bad user input, rejected before any mutation
// is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Symbols are 1-6 uppercase letters and digits.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,6}$`)

func validateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return &ValidationError{Field: "symbol", Reason: "must be 1-6 uppercase letters or digits"}
	}
	return nil
}
