package engine

import (
	"context"
	"sync"
	"time"

	"TrendSentry/internal/domain/models"
)

type priceEntry struct {
	price float64
	at    time.Time
}

// PriceTable holds the latest streamed price per symbol. Written by the
// tick pipeline, read by the monitor; entries older than maxAge are
// treated as misses so the monitor falls back to a REST lookup.
type PriceTable struct {
	mu     sync.RWMutex
	prices map[string]priceEntry
	maxAge time.Duration
}

func NewPriceTable(maxAge time.Duration) *PriceTable {
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &PriceTable{prices: make(map[string]priceEntry), maxAge: maxAge}
}

// Process records one tick. Implements the tick pipeline's downstream.
func (t *PriceTable) Process(_ context.Context, tick *models.Tick) error {
	t.mu.Lock()
	t.prices[tick.Symbol] = priceEntry{price: tick.Price, at: time.Now()}
	t.mu.Unlock()
	return nil
}

// Last returns the freshest known price for symbol, if any.
func (t *PriceTable) Last(symbol string) (float64, bool) {
	t.mu.RLock()
	e, ok := t.prices[symbol]
	t.mu.RUnlock()
	if !ok || time.Since(e.at) > t.maxAge {
		return 0, false
	}
	return e.price, true
}
