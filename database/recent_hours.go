package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
)

/** A cache of the prices from yesterday to tomorrow */
type RecentHours struct {
	mu    sync.RWMutex
	db    *Database
	hours map[hours.DateHour]types.PricePoint
}

func NewRecentHours(db *Database) *RecentHours {
	return &RecentHours{
		db:    db,
		hours: make(map[hours.DateHour]types.PricePoint),
	}
}

func (h *RecentHours) Get(hour hours.DateHour) (types.PricePoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	price, ok := h.hours[hour]
	return price, ok
}

func (h *RecentHours) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hours)
}

func (h *RecentHours) Reload(ctx context.Context) error {
	today := hours.Today()
	prices, err := h.db.Query(ctx, hours.At(hours.AddDays(today, -1), 0), hours.At(hours.AddDays(today, 2), 0))
	if err != nil {
		return fmt.Errorf("reloading recent hours: %w", err)
	}

	recent := make(map[hours.DateHour]types.PricePoint, len(prices))
	for _, p := range prices {
		recent[p.When] = p
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.hours = recent
	return nil
}
