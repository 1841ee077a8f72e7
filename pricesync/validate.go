package pricesync

import (
	"fmt"
	"slices"
	"strings"

	"github.com/icodeforyou/pvpc-go/types"
)

// ValidatePricesForDay returns nil when prices hold exactly the hours 0..23
// of date, each once. The error wraps types.ErrIncompleteDay and names the
// missing hours.
func ValidatePricesForDay(date string, prices []types.PricePoint) error {
	seen := make([]int, 24)
	var foreign int
	for _, p := range prices {
		if p.When.Date != date || p.When.Hour > 23 {
			foreign++
			continue
		}
		seen[p.When.Hour]++
	}

	var missing, duplicated []string
	for h, n := range seen {
		switch {
		case n == 0:
			missing = append(missing, fmt.Sprintf("%02d", h))
		case n > 1:
			duplicated = append(duplicated, fmt.Sprintf("%02d", h))
		}
	}

	if len(prices) == 24 && len(missing) == 0 && len(duplicated) == 0 && foreign == 0 {
		return nil
	}

	var details []string
	if len(missing) > 0 {
		details = append(details, "missing hours "+strings.Join(missing, ","))
	}
	if len(duplicated) > 0 {
		details = append(details, "duplicated hours "+strings.Join(duplicated, ","))
	}
	if foreign > 0 {
		details = append(details, fmt.Sprintf("%d points outside the day", foreign))
	}
	return fmt.Errorf("%w: %s has %d points, %s", types.ErrIncompleteDay, date, len(prices), strings.Join(details, ", "))
}

// normalizeDay keeps the points of date ordered by hour. Repeated hours,
// as on the day clocks go back, are collapsed keeping the first one.
func normalizeDay(date string, prices []types.PricePoint) []types.PricePoint {
	seen := make(map[string]bool, len(prices))
	day := make([]types.PricePoint, 0, 24)
	for _, p := range prices {
		if p.When.Date != date {
			continue
		}
		key := p.When.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		day = append(day, types.NewPricePoint(p.When, p.Price))
	}
	return slices.Clip(types.SortedByHour(day))
}
