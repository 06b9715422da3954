package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seedchain/core"
	"seedchain/observability/logging"
	"seedchain/services/indexer"
)

// Journal answers event history queries.
type Journal interface {
	Events(ctx context.Context, q indexer.Query) ([]indexer.EventRecord, error)
}

// Server exposes read-only node state over HTTP.
type Server struct {
	node    *core.Node
	journal Journal
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewServer builds a server. journal may be nil when the indexer is disabled.
func NewServer(node *core.Node, journal Journal, limit RateLimit, logger *slog.Logger) *Server {
	return &Server{
		node:    node,
		journal: journal,
		limiter: NewRateLimiter(limit),
		logger:  logging.Component(logger, "rpc"),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v chi.Router) {
		v.Use(s.limiter.Middleware)
		v.Get("/height", s.handleHeight)
		v.Get("/round", s.handleRound)
		v.Get("/scores", s.handleScores)
		v.Get("/seeds", s.handleSeeds)
		v.Get("/seeds/{account}", s.handleSeedScore)
		v.Get("/candidates", s.handleCandidates)
		v.Get("/candidates/{target}", s.handleCandidate)
		v.Get("/candidates/{target}/dispute", s.handleDispute)
		v.Get("/accounts/{account}", s.handleAccount)
		v.Get("/events", s.handleEvents)
	})
	return r
}

// logRequests records each request with the client address masked.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.LogAttrs(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			logging.MaskField("client", clientID(r)),
			slog.String("request_id", chimiddleware.GetReqID(r.Context())))
	})
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
