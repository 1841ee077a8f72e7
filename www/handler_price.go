package www

import (
	"net/http"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

type dateQuery struct {
	Date string `query:"date" validate:"omitempty,datetime=2006-01-02"`
}

type windowQuery struct {
	Date string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	N    int    `query:"n" default:"3" validate:"gte=1,lte=24"`
}

type averagesQuery struct {
	Date string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Days int    `query:"days" default:"30" validate:"gte=1,lte=366"`
}

type thirtyDayAverage struct {
	Date    string          `json:"date"`
	Average decimal.Decimal `json:"average"`
}

type twoWindows struct {
	First  types.Period `json:"first"`
	Second types.Period `json:"second"`
}

// dateOrToday falls back to today in the market timezone.
func (s *Server) dateOrToday(date string) string {
	if date == "" {
		return hours.FromTime(s.now()).Date
	}
	return date
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	var q dateQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	prices, err := s.prices.GetPrices(r.Context(), s.dateOrToday(q.Date))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(prices))
}

func (s *Server) handleDailyInfo(w http.ResponseWriter, r *http.Request) {
	var q dateQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := s.prices.GetDailyPriceInfo(r.Context(), s.dateOrToday(q.Date))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleAverages(w http.ResponseWriter, r *http.Request) {
	var q averagesQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	averages, err := s.prices.GetDailyAverages(r.Context(), s.dateOrToday(q.Date), q.Days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, averages)
}

func (s *Server) handleThirtyDayAverage(w http.ResponseWriter, r *http.Request) {
	var q dateQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	date := s.dateOrToday(q.Date)
	avg, err := s.prices.GetThirtyDayAverage(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, thirtyDayAverage{Date: date, Average: avg})
}

func (s *Server) handleCheapestWindow(w http.ResponseWriter, r *http.Request) {
	var q windowQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.prices.CheapestWindow(r.Context(), s.dateOrToday(q.Date), q.N)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(p))
}

func (s *Server) handleExpensiveWindow(w http.ResponseWriter, r *http.Request) {
	var q windowQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.prices.MostExpensiveWindow(r.Context(), s.dateOrToday(q.Date), q.N)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(p))
}

func (s *Server) handleTwoCheapestWindows(w http.ResponseWriter, r *http.Request) {
	var q windowQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	first, second, err := s.prices.TwoCheapestWindows(r.Context(), s.dateOrToday(q.Date), q.N)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, twoWindows{First: nonNil(first), Second: nonNil(second)})
}

func (s *Server) handleCheapestPeriod(w http.ResponseWriter, r *http.Request) {
	var q dateQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.prices.CheapestPeriod(r.Context(), s.dateOrToday(q.Date))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(p))
}

func (s *Server) handleExpensivePeriod(w http.ResponseWriter, r *http.Request) {
	var q dateQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.prices.MostExpensivePeriod(r.Context(), s.dateOrToday(q.Date))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(p))
}

func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	status, err := s.prices.LiveStatus(r.Context(), hours.FromTime(s.now()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// nonNil makes empty results encode as [] instead of null.
func nonNil[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return s
}
