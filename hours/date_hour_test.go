package hours

import (
	"testing"
	"time"
)

func TestDateHourString(t *testing.T) {
	dh := DateHour{Date: "2025-01-01", Hour: 5}
	expected := "2025-01-01 05"
	if s := dh.String(); s != expected {
		t.Errorf("String() expected %q, got %q", expected, s)
	}
}

func TestDateHourIsoString(t *testing.T) {
	dh := DateHour{Date: "2025-01-01", Hour: 15}
	expected := "2025-01-01T15:00:00"
	if s := dh.IsoString(); s != expected {
		t.Errorf("IsoString() expected %q, got %q", expected, s)
	}
}

func TestDateHourKey(t *testing.T) {
	a := DateHour{Date: "2023-08-25", Hour: 10}
	b := DateHour{Date: "2023-08-25", Hour: 10}
	c := DateHour{Date: "2023-08-25", Hour: 11}

	if a.Key() != b.Key() {
		t.Errorf("Key() expected equal keys for the same hour")
	}
	if a.Key() == c.Key() {
		t.Errorf("Key() expected different keys for different hours")
	}
	if len(a.Key()) != 32 {
		t.Errorf("Key() expected a 32 char hex digest, got %q", a.Key())
	}
}

func TestDateHourAdd(t *testing.T) {
	tests := []struct {
		name     string
		input    DateHour
		addHours int
		expected DateHour
	}{
		{
			name:     "add within same day",
			input:    DateHour{Date: "2025-01-01", Hour: 10},
			addHours: 2,
			expected: DateHour{Date: "2025-01-01", Hour: 12},
		},
		{
			name:     "add crossing midnight",
			input:    DateHour{Date: "2025-01-01", Hour: 23},
			addHours: 2,
			expected: DateHour{Date: "2025-01-02", Hour: 1},
		},
		{
			name:     "add negative hours (subtract)",
			input:    DateHour{Date: "2025-01-01", Hour: 1},
			addHours: -2,
			expected: DateHour{Date: "2024-12-31", Hour: 23},
		},
		{
			name:     "spring forward day keeps wall clock successor",
			input:    DateHour{Date: "2025-03-30", Hour: 1},
			addHours: 1,
			expected: DateHour{Date: "2025-03-30", Hour: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.input.Add(tt.addHours)
			if result != tt.expected {
				t.Errorf("Add(%d) expected %+v, got %+v", tt.addHours, tt.expected, result)
			}
		})
	}
}

func TestDateHourSub(t *testing.T) {
	tests := []struct {
		name     string
		input    DateHour
		subHours int
		expected DateHour
	}{
		{
			name:     "sub within same day",
			input:    DateHour{Date: "2025-01-01", Hour: 10},
			subHours: 2,
			expected: DateHour{Date: "2025-01-01", Hour: 8},
		},
		{
			name:     "sub crossing midnight",
			input:    DateHour{Date: "2025-01-01", Hour: 0},
			subHours: 1,
			expected: DateHour{Date: "2024-12-31", Hour: 23},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.input.Sub(tt.subHours)
			if result != tt.expected {
				t.Errorf("Sub(%d) expected %+v, got %+v", tt.subHours, tt.expected, result)
			}
		})
	}
}

func TestDateHourCompare(t *testing.T) {
	a := DateHour{Date: "2025-01-01", Hour: 23}
	b := DateHour{Date: "2025-01-02", Hour: 0}
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Errorf("Compare() gave an unexpected ordering")
	}
}

func TestDateHourIsZero(t *testing.T) {
	var dh DateHour
	if !dh.IsZero() {
		t.Errorf("expected a zero value DateHour to be zero")
	}
	// Hour 0 of a real date is not zero.
	dh = DateHour{Date: "2025-01-01", Hour: 0}
	if dh.IsZero() {
		t.Errorf("expected a non-zero DateHour (non-empty Date) not to be zero")
	}
}

func TestFromTime(t *testing.T) {
	// 15:30 UTC in January is 16:30 in Madrid.
	tm := time.Date(2025, time.January, 1, 15, 30, 0, 0, time.UTC)
	dh := FromTime(tm)
	expected := DateHour{Date: "2025-01-01", Hour: 16}
	if dh != expected {
		t.Errorf("FromTime() expected %+v, got %+v", expected, dh)
	}

	var zero time.Time
	if !FromTime(zero).IsZero() {
		t.Errorf("FromTime() with zero time expected a zero DateHour")
	}
}

func TestFromWallClock(t *testing.T) {
	tm := FromIso("2023-08-25T10:00:00.000+02:00")
	dh := FromWallClock(tm)
	expected := DateHour{Date: "2023-08-25", Hour: 10}
	if dh != expected {
		t.Errorf("FromWallClock() expected %+v, got %+v", expected, dh)
	}
}

func TestAddDays(t *testing.T) {
	if got := AddDays("2024-02-28", 1); got != "2024-02-29" {
		t.Errorf("AddDays() expected 2024-02-29, got %s", got)
	}
	if got := AddDays("2024-03-01", -30); got != "2024-01-31" {
		t.Errorf("AddDays() expected 2024-01-31, got %s", got)
	}
}

func TestDayHours(t *testing.T) {
	dhs := DayHours("2025-01-01")
	if len(dhs) != 24 {
		t.Fatalf("DayHours() expected 24 hours, got %d", len(dhs))
	}
	for i, dh := range dhs {
		if int(dh.Hour) != i || dh.Date != "2025-01-01" {
			t.Errorf("DayHours()[%d] unexpected %+v", i, dh)
		}
	}
}

func TestAtHourOfDay(t *testing.T) {
	// Madrid is UTC+2 in summer.
	at := AtHourOfDay("2025-07-01", 20)
	expected := time.Date(2025, time.July, 1, 18, 0, 0, 0, time.UTC)
	if !at.Equal(expected) {
		t.Errorf("AtHourOfDay() expected %v, got %v", expected, at)
	}
}

func TestIsValidDate(t *testing.T) {
	if !IsValidDate("2023-08-30") {
		t.Errorf("expected 2023-08-30 to be valid")
	}
	for _, s := range []string{"junk", "2023-13-01", "2023-8-30", ""} {
		if IsValidDate(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestFromIso(t *testing.T) {
	parsed := FromIso("2025-01-01T15:00:00Z")
	expected := time.Date(2025, time.January, 1, 15, 0, 0, 0, time.UTC)
	if !parsed.Equal(expected) {
		t.Errorf("FromIso() expected %v, got %v", expected, parsed)
	}

	if !FromIso("not a valid iso date").IsZero() {
		t.Errorf("FromIso() expected zero time for an invalid date string")
	}
}

func TestSetMarketTimezone(t *testing.T) {
	before := MarketLocation()
	t.Cleanup(func() { marketLocation = before })

	if err := SetMarketTimezone("Not/AZone"); err == nil {
		t.Fatal("expected an error for an unknown zone")
	}
	if MarketLocation() != before {
		t.Errorf("zone changed after a failed update: %v", MarketLocation())
	}

	if err := SetMarketTimezone("Atlantic/Canary"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := MarketLocation().String(); got != "Atlantic/Canary" {
		t.Errorf("MarketLocation() = %s, want Atlantic/Canary", got)
	}
}
