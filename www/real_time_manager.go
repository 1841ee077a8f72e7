package www

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/prices"
)

type LiveStatuser interface {
	LiveStatus(ctx context.Context, at hours.DateHour) (prices.LiveStatus, error)
}

// RealTimeManager builds the live price message of the current hour.
type RealTimeManager struct {
	logger *slog.Logger
	live   LiveStatuser
	now    func() time.Time

	mu sync.Mutex
	// Keeping state to avoid spamming logs
	failing bool
}

func NewRealTimeManager(logger *slog.Logger, live LiveStatuser, now func() time.Time) *RealTimeManager {
	if now == nil {
		now = time.Now
	}
	return &RealTimeManager{logger: logger, live: live, now: now}
}

// Get returns the JSON encoded live status, or false when there is none.
func (m *RealTimeManager) Get(ctx context.Context) ([]byte, bool) {
	hour := hours.FromTime(m.now())
	status, err := m.live.LiveStatus(ctx, hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if !m.failing {
			m.failing = true
			m.logger.Warn("failed to get live status", slog.String("hour", hour.String()), slog.Any("error", err))
		}
		return nil, false
	}
	if m.failing {
		m.failing = false
		m.logger.Info("live status available again", slog.String("hour", hour.String()))
	}

	data, err := json.Marshal(status)
	if err != nil {
		m.logger.Error("encoding live status", slog.Any("error", fmt.Errorf("marshal: %w", err)))
		return nil, false
	}
	return data, true
}
