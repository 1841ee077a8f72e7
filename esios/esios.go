// Package esios fetches historical PVPC prices from the ESIOS archive,
// one day per request.
package esios

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

type Esios struct {
	baseURL string
	token   string
	client  *http.Client
	today   func() string
}

func New(baseURL, token string) Esios {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return Esios{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		today:   hours.Today,
	}
}

func (e Esios) Name() string {
	return "esios"
}

// GetDayPrices returns ErrNotYetAvailable when a future day is empty. An
// empty past day is returned as is and fails validation downstream.
func (e Esios) GetDayPrices(ctx context.Context, date string) ([]types.PricePoint, error) {
	if !hours.IsValidDate(date) {
		return nil, fmt.Errorf("%w: bad date %q", types.ErrInvalidInput, date)
	}

	query := url.Values{}
	query.Set("date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if e.token != "" {
		req.Header.Set("x-api-key", e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch prices: %v", types.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return nil, fmt.Errorf("%w: unexpected status code: %d", types.ErrUpstream, resp.StatusCode)
	}

	var data esiosResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return nil, fmt.Errorf("%w: failed to decode response: %v", types.ErrUpstream, err)
		}
	}

	if len(data.PVPC) == 0 {
		if date > e.today() {
			return nil, fmt.Errorf("esios has no prices for %s: %w", date, types.ErrNotYetAvailable)
		}
		return []types.PricePoint{}, nil
	}

	prices := make([]types.PricePoint, 0, len(data.PVPC))
	for _, entry := range data.PVPC {
		when, err := parseHour(entry.Dia, entry.Hora)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrUpstream, err)
		}

		raw := entry.PCB
		if raw == "" {
			raw = entry.GEN
		}
		price, err := parseSpanishNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad price for %s: %v", types.ErrUpstream, when, err)
		}
		prices = append(prices, types.NewPricePoint(when, price.Div(thousand)))
	}

	return prices, nil
}

// parseHour reads "25/08/2023" and "13-14" as hour 13 of 2023-08-25.
func parseHour(dia, hora string) (hours.DateHour, error) {
	t, err := time.Parse("02/01/2006", dia)
	if err != nil {
		return hours.DateHour{}, fmt.Errorf("bad day %q: %w", dia, err)
	}
	if len(hora) < 2 {
		return hours.DateHour{}, fmt.Errorf("bad hour %q", hora)
	}
	h, err := strconv.Atoi(hora[:2])
	if err != nil || h < 0 || h > 23 {
		return hours.DateHour{}, fmt.Errorf("bad hour %q", hora)
	}
	return hours.At(t.Format("2006-01-02"), h), nil
}

// parseSpanishNumber reads "1.234,56" as 1234.56.
func parseSpanishNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}
