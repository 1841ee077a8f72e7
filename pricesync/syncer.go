// Package pricesync keeps the price store in step with an upstream source.
// Each source gets its own Syncer walking forward one day at a time.
package pricesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
)

type Store interface {
	QueryDay(ctx context.Context, date string) ([]types.PricePoint, error)
	ReplaceDay(ctx context.Context, date string, prices []types.PricePoint) error
}

// Recorder receives the outcome of every step, see the metrics package.
type Recorder interface {
	ObserveSync(source string, outcome string, elapsed time.Duration)
	SetCursor(source string, date string)
}

type Outcome int

const (
	OutcomeSynced Outcome = iota
	OutcomeAlreadyComplete
	OutcomeNotYetAvailable
	OutcomeInvalid
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSynced:
		return "synced"
	case OutcomeAlreadyComplete:
		return "already_complete"
	case OutcomeNotYetAvailable:
		return "not_yet_available"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes one step. Wait is how long the loop sleeps before the next.
type Result struct {
	Outcome Outcome
	Date    string
	Wait    time.Duration
	Err     error
}

// State is the cursor of a Syncer. It is owned by the loop running it.
type State struct {
	LastSynced string
	// Failures counts consecutive validation failures for the day after LastSynced.
	Failures int
}

// StartingAt returns the state whose first synced day is date.
func StartingAt(date string) State {
	return State{LastSynced: hours.AddDays(date, -1)}
}

func (s State) Next() string {
	return hours.AddDays(s.LastSynced, 1)
}

func (s State) advance() State {
	return State{LastSynced: s.Next()}
}

type Options struct {
	// ErrorBackoff is the wait after a failed or invalid step.
	ErrorBackoff    time.Duration
	NotYetAvailable BackoffPolicy
	// MaxValidationRetries is how many invalid payloads a day may get before
	// it is skipped. Zero never skips.
	MaxValidationRetries int
	// Timeout bounds the store and source calls of one step.
	Timeout time.Duration
}

type Syncer struct {
	logger   *slog.Logger
	store    Store
	source   types.PriceSource
	clock    Clock
	opts     Options
	recorder Recorder
	// OnDaySynced is called after a day has been written.
	OnDaySynced func(ctx context.Context, date string)
}

func New(logger *slog.Logger, store Store, source types.PriceSource, clock Clock, opts Options) *Syncer {
	if clock == nil {
		clock = SystemClock{}
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 2 * time.Minute
	}
	if opts.NotYetAvailable == nil {
		opts.NotYetAvailable = FixedBackoff(15 * time.Minute)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Syncer{
		logger: logger.With(slog.String("source", source.Name())),
		store:  store,
		source: source,
		clock:  clock,
		opts:   opts,
	}
}

func (s *Syncer) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Syncer) Source() string {
	return s.source.Name()
}

// Run steps until ctx is done and returns the last state.
func (s *Syncer) Run(ctx context.Context, state State) State {
	s.logger.Info("sync loop started", slog.String("from", state.Next()))
	for {
		if ctx.Err() != nil {
			s.logger.Info("sync loop stopped", slog.String("lastSynced", state.LastSynced))
			return state
		}

		var res Result
		state, res = s.Step(ctx, state)
		s.log(res)

		if res.Wait <= 0 {
			continue
		}
		if err := s.clock.Sleep(ctx, res.Wait); err != nil {
			s.logger.Info("sync loop stopped", slog.String("lastSynced", state.LastSynced))
			return state
		}
	}
}

// Step reconciles the day after state.LastSynced and returns the new state.
func (s *Syncer) Step(ctx context.Context, state State) (State, Result) {
	started := s.clock.Now()
	next, res := s.step(ctx, state)
	if s.recorder != nil {
		s.recorder.ObserveSync(s.source.Name(), res.Outcome.String(), s.clock.Now().Sub(started))
		s.recorder.SetCursor(s.source.Name(), next.LastSynced)
	}
	return next, res
}

func (s *Syncer) step(ctx context.Context, state State) (State, Result) {
	date := state.Next()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	stored, err := s.store.QueryDay(ctx, date)
	if err != nil {
		return state, s.failed(date, fmt.Errorf("query stored prices: %w", err))
	}
	if ValidatePricesForDay(date, stored) == nil {
		return state.advance(), Result{Outcome: OutcomeAlreadyComplete, Date: date}
	}
	if len(stored) > 0 {
		s.logger.Warn("stored day is incomplete, resyncing", slog.String("date", date), slog.Int("points", len(stored)))
	}

	fetched, err := s.source.GetDayPrices(ctx, date)
	if errors.Is(err, types.ErrNotYetAvailable) {
		return state, Result{
			Outcome: OutcomeNotYetAvailable,
			Date:    date,
			Wait:    s.opts.NotYetAvailable.NotYetAvailable(s.clock.Now(), date),
			Err:     err,
		}
	}
	if err != nil {
		return state, s.failed(date, err)
	}

	day := normalizeDay(date, fetched)
	if err := ValidatePricesForDay(date, day); err != nil {
		state.Failures++
		if s.opts.MaxValidationRetries > 0 && state.Failures >= s.opts.MaxValidationRetries {
			s.logger.Error("giving up on day, skipping it",
				slog.String("date", date),
				slog.Int("attempts", state.Failures),
				slog.Any("error", err))
			return state.advance(), Result{Outcome: OutcomeInvalid, Date: date, Err: err}
		}
		return state, Result{Outcome: OutcomeInvalid, Date: date, Wait: s.opts.ErrorBackoff, Err: err}
	}

	if err := s.store.ReplaceDay(ctx, date, day); err != nil {
		return state, s.failed(date, fmt.Errorf("replace day: %w", err))
	}
	if s.OnDaySynced != nil {
		s.OnDaySynced(ctx, date)
	}
	return state.advance(), Result{Outcome: OutcomeSynced, Date: date}
}

func (s *Syncer) failed(date string, err error) Result {
	return Result{Outcome: OutcomeFailed, Date: date, Wait: s.opts.ErrorBackoff, Err: err}
}

func (s *Syncer) log(res Result) {
	attrs := []any{slog.String("date", res.Date), slog.String("outcome", res.Outcome.String())}
	if res.Wait > 0 {
		attrs = append(attrs, slog.Duration("wait", res.Wait))
	}

	switch res.Outcome {
	case OutcomeSynced:
		s.logger.Info("day synced", attrs...)
	case OutcomeAlreadyComplete:
		s.logger.Debug("day already complete", attrs...)
	case OutcomeNotYetAvailable:
		s.logger.Debug("day not published yet", attrs...)
	case OutcomeInvalid:
		s.logger.Warn("invalid day payload", append(attrs, slog.Any("error", res.Err))...)
	default:
		s.logger.Error("sync error", append(attrs, slog.Any("error", res.Err))...)
	}
}
