// Package httpapi serves the node's HTTP surface: public read endpoints
// over the contract set and the event log, JWT-gated admin endpoints that
// submit transactions, and a websocket event feed.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/HVN-Network/permission_layer/internal/cache"
	"github.com/HVN-Network/permission_layer/internal/config"
	"github.com/HVN-Network/permission_layer/internal/metrics"
	"github.com/HVN-Network/permission_layer/internal/middleware"
	"github.com/HVN-Network/permission_layer/internal/node"
	"github.com/HVN-Network/permission_layer/internal/storage"
)

// Server assembles the router and its handlers.
type Server struct {
	node      *node.Node
	store     storage.EventStore
	cache     cache.Cache
	cacheTTL  time.Duration
	auth      *middleware.Authenticator
	collector *metrics.Collector
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
}

// New creates the API server.
func New(cfg config.Config, n *node.Node, store storage.EventStore, c cache.Cache, collector *metrics.Collector, logger zerolog.Logger) *Server {
	return &Server{
		node:      n,
		store:     store,
		cache:     c,
		cacheTTL:  cfg.Redis.TTL,
		auth:      middleware.NewAuthenticator(cfg.Auth, logger),
		collector: collector,
		logger:    logger.With().Str("component", "httpapi").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the full middleware and route tree. The rate limiter's
// idle-client eviction loop runs until stop is closed.
func (s *Server) Router(cfg config.ServerConfig, stop <-chan struct{}) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware(s.collector))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/fees", s.handleFees).Methods(http.MethodGet)
	v1.HandleFunc("/fees/channels", s.handleChannels).Methods(http.MethodGet)
	v1.HandleFunc("/balances/{address}", s.handleBalance).Methods(http.MethodGet)
	v1.HandleFunc("/registry", s.handleRegistry).Methods(http.MethodGet)
	v1.HandleFunc("/identity/{address}", s.handleIdentity).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/events/watch", s.handleWatch).Methods(http.MethodGet)

	admin := r.PathPrefix("/v1/admin").Subrouter()
	admin.Use(func(next http.Handler) http.Handler {
		return s.auth.Handler(middleware.AdminRole, next)
	})
	admin.HandleFunc("/fees/update", s.handleUpdateFee).Methods(http.MethodPost)
	admin.HandleFunc("/fees/distribute", s.handleDistribute).Methods(http.MethodPost)
	admin.HandleFunc("/fees/fee-usd", s.handleSetFeeUSD).Methods(http.MethodPost)
	admin.HandleFunc("/oracle/rate", s.handleSetRate).Methods(http.MethodPost)
	admin.HandleFunc("/pause", s.handlePauseBatch).Methods(http.MethodPost)
	admin.HandleFunc("/identity/issue", s.handleIssueIdentity).Methods(http.MethodPost)
	admin.HandleFunc("/identity/suspend", s.handleSuspend).Methods(http.MethodPost)

	tracing := middleware.NewTracing(s.logger)
	cors := middleware.NewCORS([]string{"*"})
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.Burst, s.logger)
	limiter.StartCleanup(time.Minute, 10*time.Minute, stop)

	return tracing.Handler(cors.Handler(limiter.Handler(r)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
