package www

import (
	"context"
	"net/http"

	"github.com/icodeforyou/pvpc-go/narrative"
)

type localeQuery struct {
	Locale string `query:"locale" validate:"omitempty,bcp47_language_tag"`
}

func (s *Server) handleFullFeed(w http.ResponseWriter, r *http.Request) {
	var q localeQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	feed, err := s.feed.FullFeed(r.Context(), q.Locale)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	var q localeQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.feed.Today(r.Context(), q.Locale)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// optionalFeed serves feed messages that are sent even without data, their
// text then says why.
func (s *Server) optionalFeed(build func(context.Context, string) (narrative.Response, bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q localeQuery
		if err := bindQuery(r, &q); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, _, err := build(r.Context(), q.Locale)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, res)
	}
}
