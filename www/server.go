package www

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/pvpc-go/config"
	"github.com/icodeforyou/pvpc-go/database"
	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/narrative"
	"github.com/icodeforyou/pvpc-go/prices"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type LogReader interface {
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) (database.LogPage, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestRecorder is implemented by metrics.Recorder.
type RequestRecorder interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

type Deps struct {
	Prices *prices.Service
	Feed   *narrative.Feed
	Logs   LogReader
	DB     Pinger
	// Optional, /metrics is served when Gatherer is set.
	Metrics     RequestRecorder
	Gatherer    prometheus.Gatherer
	MetricsPath string
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	prices  *prices.Service
	feed    *narrative.Feed
	logs    LogReader
	db      Pinger
	metrics RequestRecorder
	hub     *Hub
	rtm     *RealTimeManager
	mux     *http.ServeMux
	now     func() time.Time
}

func NewServer(logger *slog.Logger, cnfg config.AppConfigApi, deps Deps) *Server {
	s := &Server{
		logger:  logger,
		config:  cnfg,
		prices:  deps.Prices,
		feed:    deps.Feed,
		logs:    deps.Logs,
		db:      deps.DB,
		metrics: deps.Metrics,
		hub:     NewHub(logger.With(slog.String("component", "hub"))),
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.rtm = NewRealTimeManager(logger, deps.Prices, func() time.Time { return s.now() })

	s.handle("GET /api/v1/price", s.handlePrices)
	s.handle("GET /api/v1/price/dailyinfo", s.handleDailyInfo)
	s.handle("GET /api/v1/price/averages", s.handleAverages)
	s.handle("GET /api/v1/price/thirtydayaverage", s.handleThirtyDayAverage)
	s.handle("GET /api/v1/price/cheapest", s.handleCheapestWindow)
	s.handle("GET /api/v1/price/cheapest/two", s.handleTwoCheapestWindows)
	s.handle("GET /api/v1/price/cheapest/period", s.handleCheapestPeriod)
	s.handle("GET /api/v1/price/expensive", s.handleExpensiveWindow)
	s.handle("GET /api/v1/price/expensive/period", s.handleExpensivePeriod)
	s.handle("GET /api/v1/price/now", s.handleNow)

	s.handle("GET /api/v1/alexa", s.handleFullFeed)
	s.handle("GET /api/v1/alexa/today", s.handleToday)
	s.handle("GET /api/v1/alexa/tomorrow", s.optionalFeed(s.feed.Tomorrow))
	s.handle("GET /api/v1/alexa/cheap/next", s.optionalFeed(s.feed.NextCheapPeriod))
	s.handle("GET /api/v1/alexa/expensive/next", s.optionalFeed(s.feed.NextExpensivePeriod))

	s.handle("GET /api/v1/log", s.handleLog)
	s.handle("GET /health", s.handleHealth)

	if deps.Gatherer != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		client, err := NewClient(s.hub, w, r, r.Header.Get("User-Agent"))
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		if !s.hub.Register(client) {
			client.conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	})

	return s
}

// handle registers h, logging and measuring every request.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("url", r.URL.String()),
			slog.Int("status", rec.status),
			slog.String("remoteAddr", r.RemoteAddr))
		if s.metrics != nil {
			s.metrics.ObserveRequest(pattern, rec.status, time.Since(started))
		}
	}))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.writeError(w, r, fmt.Errorf("database: %w", err))
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// PushLive sends the live status to every websocket client.
func (s *Server) PushLive(ctx context.Context) {
	if data, ok := s.rtm.Get(ctx); ok {
		s.hub.Broadcast(ctx, data)
	}
}

// DaySynced pushes right away when today's prices have just arrived.
func (s *Server) DaySynced(date string) {
	if date != hours.FromTime(s.now()).Date {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.PushLive(ctx)
}

// Run serves until ctx is done, pushing the live status every push interval.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	s.logger.Info("starting server...", slog.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	interval := s.config.PushInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.PushLive(ctx)

	for {
		select {
		case err := <-srvErrors:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil

		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("server shutdown failed", slog.Any("error", err))
			}
			return nil

		case <-ticker.C:
			s.PushLive(ctx)
		}
	}
}
