package quotes

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SimulatedSource is a local stand-in for the real quote provider. It
// random-walks each symbol's price within a fixed band so the refresh
// cycle can be exercised without network access. It implements the same
// Source contract as the real client.
type SimulatedSource struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
	min    float64
	max    float64
	log    zerolog.Logger
}

// NewSimulatedSource creates a simulated quote source walking prices
// between min and max.
func NewSimulatedSource(min, max float64, seed int64, log zerolog.Logger) *SimulatedSource {
	if max <= min {
		min, max = 10.0, 500.0
	}
	return &SimulatedSource{
		rng:    rand.New(rand.NewSource(seed)),
		prices: make(map[string]float64),
		min:    min,
		max:    max,
		log:    log.With().Str("client", "simulated").Logger(),
	}
}

// GetQuotes returns a walked price for every requested symbol. It never
// fails and never omits a symbol; unseen symbols start at a
// deterministic point inside the band.
func (s *SimulatedSource) GetQuotes(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		price, ok := s.prices[symbol]
		if !ok {
			price = s.basePrice(symbol)
		}

		// Walk up to ±2% per tick, clamped to the band.
		price *= 1 + (s.rng.Float64()*0.04 - 0.02)
		if price < s.min {
			price = s.min
		}
		if price > s.max {
			price = s.max
		}

		s.prices[symbol] = price
		result[symbol] = decimal.NewFromFloat(price).Round(2)
	}

	s.log.Debug().Int("symbols", len(result)).Msg("Simulated quotes generated")
	return result, nil
}

// basePrice derives a stable starting price from the symbol itself so
// repeated runs look alike.
func (s *SimulatedSource) basePrice(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	span := s.max - s.min
	return s.min + span*float64(h.Sum32()%1000)/1000.0
}
