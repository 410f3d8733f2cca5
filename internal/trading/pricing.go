package trading

import (
	"context"
	"sync"

	"github.com/atharvakonge/papertrade/internal/models"
	"github.com/atharvakonge/papertrade/internal/quote"
)

// DefaultPricingWorkers bounds concurrent quote lookups for one portfolio
const DefaultPricingWorkers = 4

// priceRequest is one holding waiting for a quote
type priceRequest struct {
	index   int
	holding models.Holding
}

// priceResult is what a worker found for priceRequest.index
type priceResult struct {
	quote quote.Quote
	err   error
}

// priceHoldings looks every holding up on a small worker pool and returns the
// results in holding order.
func (s *Service) priceHoldings(ctx context.Context, holdings []models.Holding) []priceResult {
	results := make([]priceResult, len(holdings))
	if len(holdings) == 0 {
		return results
	}

	queue := make(chan priceRequest, len(holdings))
	for i, h := range holdings {
		queue <- priceRequest{index: i, holding: h}
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < min(s.workers, len(holdings)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range queue {
				q, err := s.quotes.Lookup(ctx, req.holding.Symbol)
				// each worker writes distinct indexes
				results[req.index] = priceResult{quote: q, err: err}
			}
		}()
	}
	wg.Wait()

	return results
}
