package hours

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02 15"
)

// All hours are wall-clock hours in the market timezone, which is
// where the upstreams publish their prices.
var marketLocation *time.Location

func init() {
	var err error
	marketLocation, err = time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic(fmt.Sprintf("failed to load Madrid location: %v", err))
	}
}

// SetMarketTimezone replaces the zone market days are counted in. It is not
// synchronised: call it at startup only, before any goroutine reads the zone.
// On error the zone is left unchanged.
func SetMarketTimezone(timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %v", timezone, err)
	}
	marketLocation = loc
	return nil
}

func MarketLocation() *time.Location {
	return marketLocation
}

type DateHour struct {
	Date string
	Hour uint8
}

func At(date string, hour int) DateHour {
	return DateHour{Date: date, Hour: uint8(hour)}
}

func (dh DateHour) String() string {
	return fmt.Sprintf("%s %02d", dh.Date, dh.Hour)
}

func (dh DateHour) IsoString() string {
	return fmt.Sprintf("%sT%02d:00:00", dh.Date, dh.Hour)
}

// Key is a deterministic identifier of the hour, two prices for the
// same hour always share it.
func (dh DateHour) Key() string {
	t := dh.naive()
	sum := md5.Sum([]byte(fmt.Sprintf("%d-%d-%d-%d", t.Year(), int(t.Month()), t.Day(), t.Hour())))
	return hex.EncodeToString(sum[:])
}

// Time returns the start of the hour in the market timezone.
func (dh DateHour) Time() time.Time {
	t := dh.naive()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, marketLocation)
}

// Add does calendar arithmetic on the wall clock, so hour 1 is always
// the successor of hour 0 regardless of daylight saving shifts.
func (dh DateHour) Add(hours int) DateHour {
	t, err := time.ParseInLocation(hourLayout, dh.String(), time.UTC)
	if err != nil {
		return dh
	}

	t = t.Add(time.Duration(hours) * time.Hour)
	return DateHour{
		Date: t.Format(dateLayout),
		Hour: uint8(t.Hour()),
	}
}

func (dh DateHour) Sub(hours int) DateHour {
	return dh.Add(-hours)
}

func (dh DateHour) Compare(other DateHour) int {
	if dh == other {
		return 0
	}
	if dh.Date < other.Date {
		return -1
	}
	if dh.Date > other.Date {
		return 1
	}
	if dh.Hour < other.Hour {
		return -1
	}
	return 1
}

func (dh DateHour) IsZero() bool {
	return dh.Date == "" && dh.Hour == 0
}

func (dh DateHour) naive() time.Time {
	t, err := time.ParseInLocation(hourLayout, dh.String(), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func FromTime(t time.Time) DateHour {
	if t.IsZero() {
		return DateHour{}
	}
	t = t.In(marketLocation)
	return DateHour{
		Date: t.Format(dateLayout),
		Hour: uint8(t.Hour()),
	}
}

// FromWallClock keeps the wall clock of t and ignores its offset.
func FromWallClock(t time.Time) DateHour {
	if t.IsZero() {
		return DateHour{}
	}
	return DateHour{
		Date: t.Format(dateLayout),
		Hour: uint8(t.Hour()),
	}
}

// Today is the current date in the market timezone.
func Today() string {
	return FormatDate(time.Now())
}

func FormatDate(t time.Time) string {
	return t.In(marketLocation).Format(dateLayout)
}

func ParseDate(date string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, date, marketLocation)
}

func IsValidDate(date string) bool {
	_, err := time.Parse(dateLayout, date)
	return err == nil
}

func AddDays(date string, days int) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, days).Format(dateLayout)
}

// DayHours lists the 24 hours of a calendar day.
func DayHours(date string) []DateHour {
	dhs := make([]DateHour, 24)
	for h := range dhs {
		dhs[h] = DateHour{Date: date, Hour: uint8(h)}
	}
	return dhs
}

// AtHourOfDay returns the instant at which the given hour of the given date
// starts in the market timezone.
func AtHourOfDay(date string, hour int) time.Time {
	return DateHour{Date: date, Hour: uint8(hour)}.Time()
}

func FromIso(str string) time.Time {
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return time.Time{}
	}
	return t
}
