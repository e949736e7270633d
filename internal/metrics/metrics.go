package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Request metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiontracker_http_requests_total",
			Help: "Total number of API requests processed",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessiontracker_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessiontracker_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// Session lifecycle metrics
	SessionOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiontracker_session_operations_total",
			Help: "Session operations by kind and outcome",
		},
		[]string{"operation", "result"},
	)

	SessionNetDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "sessiontracker_session_net_duration_seconds",
			Help: "Net duration of sessions when they are ended",
			// 5m .. ~21h
			Buckets: prometheus.ExponentialBuckets(300, 2, 9),
		},
	)

	BudgetExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessiontracker_daily_budget_exhausted_total",
			Help: "Sessions started after the user's daily budget was used up",
		},
	)

	RevisionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessiontracker_revision_conflicts_total",
			Help: "Updates rejected because of a stale revision",
		},
	)

	// User cache metrics
	UserCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessiontracker_user_cache_hits_total",
			Help: "User existence cache hits",
		},
	)

	UserCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessiontracker_user_cache_misses_total",
			Help: "User existence cache misses",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RateLimited,
		SessionOperations,
		SessionNetDuration,
		BudgetExhausted,
		RevisionConflicts,
		UserCacheHits,
		UserCacheMisses,
	)
}
// Server exposes the Prometheus collectors over HTTP.
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // systemd socket-activated listener, if any
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler serves /metrics and a plain /health probe.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
		}
		s.listener = ln
	}

	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("Starting metrics server")
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop shuts the metrics server down, waiting for in-flight scrapes until
// ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping metrics server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
