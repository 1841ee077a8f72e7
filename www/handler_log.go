package www

import (
	"net/http"

	"github.com/icodeforyou/pvpc-go/logging"
)

type logQuery struct {
	Page     int    `query:"page" default:"1" validate:"gte=1"`
	PageSize int    `query:"pageSize" default:"25" validate:"gte=1,lte=500"`
	Level    string `query:"level" default:"DEBUG" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	var q logQuery
	if err := bindQuery(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.logs.GetLogEntries(r.Context(), logging.LevelFromString(&q.Level), q.Page, q.PageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}
