// Package http exposes the ledger and mileage engines as a JSON API. The
// engines themselves are transport-free; everything wire-shaped lives here.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"simpleexpenses/internal/cache"
	"simpleexpenses/internal/core"
	"simpleexpenses/internal/ledger"
	applog "simpleexpenses/internal/log"
	"simpleexpenses/internal/middleware/ratelimit"
	"simpleexpenses/internal/middleware/security"
	"simpleexpenses/internal/middleware/trace"
	"simpleexpenses/internal/mileage"
)

// JobPublisher enqueues export jobs on the broker. Nil when no broker is
// configured; exports then run synchronously through the Exporter.
type JobPublisher interface {
	PublishExportJob(ctx context.Context, scope string) error
}

// Exporter writes a CSV snapshot directly, used as the synchronous fallback.
type Exporter interface {
	Export(ctx context.Context, scope string) (path string, rows int, err error)
}

type Server struct {
	http.Server

	// The ledger engine holds caller-owned filter state, so every use of it
	// is serialized behind mu.
	mu     sync.Mutex
	ledger *ledger.Engine

	mileage   *mileage.Engine
	publisher JobPublisher
	exporter  Exporter

	rateLimiter  *ratelimit.Limiter
	detector     *security.Detector
	traceware    *trace.Middleware
	viewCache    *cache.LRUCache[core.DerivedView]
	suggestCache *cache.LRUCache[[]string]
	cacheManager *cache.Manager
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledgerEngine *ledger.Engine, mileageEngine *mileage.Engine, publisher JobPublisher, exporter Exporter) *Server {
	mux := http.NewServeMux()

	detector := security.NewDetector()

	s := &Server{
		ledger:       ledgerEngine,
		mileage:      mileageEngine,
		publisher:    publisher,
		exporter:     exporter,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     detector,
		traceware:    trace.NewMiddleware(detector.ExtractClientIP),
		viewCache:    cache.NewLRUCache[core.DerivedView](100, 5*time.Minute),
		suggestCache: cache.NewLRUCache[[]string](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.viewCache)
	s.cacheManager.Register(s.suggestCache)
	s.cacheManager.StartCleanup(time.Minute)

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/internal/metrics", s.handleMetrics)

	mux.HandleFunc("/api/expenses", s.handleExpenses)
	mux.HandleFunc("/api/expenses/", s.handleExpenseByID)
	mux.HandleFunc("/api/merchants", s.handleMerchants)
	mux.HandleFunc("/api/mileage", s.handleMileage)
	mux.HandleFunc("/api/mileage/", s.handleMileageByID)
	mux.HandleFunc("/api/mileage-total", s.handleMileageTotal)
	mux.HandleFunc("/api/mileage-estimate", s.handleMileageEstimate)
	mux.HandleFunc("/api/exports", s.handleExport)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, nil)

	// Runs inside the trace middleware so the context logger picks up the
	// request ID it assigned.
	requestLog := applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})

	handler := headers.Middleware(s.traceware.Middleware(requestLog(s.detectSuspicious(limited(mux)))))

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

// Close stops background goroutines owned by the server. Call after Shutdown.
func (s *Server) Close() error {
	s.rateLimiter.Stop()
	s.cacheManager.Stop()
	return s.Server.Close()
}

// detectSuspicious logs requests that match known probe patterns. They are
// counted but not blocked; the rate limiter handles actual abuse.
func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.Warn("Suspicious request",
				"client_ip", s.detector.ExtractClientIP(r),
				"method", r.Method,
				"path", r.URL.Path,
			)
		}
		next.ServeHTTP(w, r)
	})
}

// invalidate drops all cached reads. Called after every mutation: both the
// derived views and the merchant suggestions may be stale.
func (s *Server) invalidate() {
	s.viewCache.Clear()
	s.suggestCache.Clear()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Ready when the store answers a trivial read.
	s.mu.Lock()
	_, err := s.ledger.DerivedView(r.Context())
	s.mu.Unlock()
	if err != nil {
		http.Error(w, "store not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	traceMetrics := s.traceware.GetMetrics()
	rlMetrics := s.rateLimiter.GetMetrics()
	secMetrics := s.detector.GetMetrics()

	writeJSON(w, http.StatusOK, map[string]any{
		"total_requests":      traceMetrics.TotalRequests,
		"avg_response_us":     traceMetrics.AverageResponseTime,
		"rate_limited":        rlMetrics.LimitedRequests,
		"rate_limit_clients":  rlMetrics.ClientCount,
		"suspicious_requests": secMetrics.SuspiciousRequests,
		"view_cache_entries":  s.viewCache.Size(),
		"suggest_cache_size":  s.suggestCache.Size(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed encoding JSON response", "error", err)
	}
}

// writeError maps engine errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case core.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		slog.Error("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
