package pricesync

import (
	"context"
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
)

// BackoffPolicy decides how long to wait before asking a source again for a
// day it has not published yet.
type BackoffPolicy interface {
	NotYetAvailable(now time.Time, date string) time.Duration
}

type FixedBackoff time.Duration

func (b FixedBackoff) NotYetAvailable(time.Time, string) time.Duration {
	return time.Duration(b)
}

// PublicationBackoff waits for the publication of date, which happens the
// day before at Hour in the market timezone. Once that moment has passed it
// retries every LateRetry.
type PublicationBackoff struct {
	Hour      int
	Buffer    time.Duration
	LateRetry time.Duration
}

func (b PublicationBackoff) NotYetAvailable(now time.Time, date string) time.Duration {
	publication := hours.AtHourOfDay(hours.AddDays(date, -1), b.Hour).Add(b.Buffer)
	if publication.After(now) {
		return publication.Sub(now)
	}
	return b.LateRetry
}

type Clock interface {
	Now() time.Time
	// Sleep returns early with the context error when ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
