// Package ree fetches next-day PVPC prices from the REE open data API.
// Prices are published in the evening for the following day.
package ree

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

type Ree struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) Ree {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return Ree{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

func (r Ree) Name() string {
	return "ree"
}

// GetDayPrices queries the day before together with date, as the API
// expects a range, and keeps the points of date.
func (r Ree) GetDayPrices(ctx context.Context, date string) ([]types.PricePoint, error) {
	if !hours.IsValidDate(date) {
		return nil, fmt.Errorf("%w: bad date %q", types.ErrInvalidInput, date)
	}

	query := url.Values{}
	query.Set("time_trunc", "hour")
	query.Set("start_date", hours.AddDays(date, -1)+"T00:00")
	query.Set("end_date", date+"T23:59")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch prices: %v", types.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("ree has no prices for %s: %w", date, types.ErrNotYetAvailable)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", types.ErrUpstream, resp.StatusCode)
	}

	var data reeResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", types.ErrUpstream, err)
	}

	if len(data.Included) == 0 {
		return nil, fmt.Errorf("ree has no prices for %s: %w", date, types.ErrNotYetAvailable)
	}

	var pvpc *included
	for i := range data.Included {
		if data.Included[i].ID == pvpcIndicator {
			pvpc = &data.Included[i]
			break
		}
	}
	if pvpc == nil {
		return nil, fmt.Errorf("%w: no PVPC series in response", types.ErrUpstream)
	}

	prices := make([]types.PricePoint, 0, 24)
	for _, v := range pvpc.Attributes.Values {
		t, err := time.Parse(time.RFC3339, v.Datetime)
		if err != nil {
			return nil, fmt.Errorf("%w: bad datetime %q: %v", types.ErrUpstream, v.Datetime, err)
		}
		// The offset is the publisher's, the wall clock is the market hour.
		when := hours.FromWallClock(t)
		if when.Date != date {
			continue
		}
		prices = append(prices, types.NewPricePoint(when, decimal.NewFromFloat(v.Value).Div(thousand)))
	}

	if len(prices) == 0 {
		return nil, fmt.Errorf("ree has no prices for %s: %w", date, types.ErrNotYetAvailable)
	}

	return prices, nil
}
