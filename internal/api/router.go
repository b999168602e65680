package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/tradecycle/internal/api/handlers"
	"github.com/wonny/tradecycle/pkg/logger"
)

// RouterDeps are the handlers and optional endpoints mounted by NewRouter
type RouterDeps struct {
	Cycle     *handlers.CycleHandler
	Portfolio *handlers.PortfolioHandler
	Stream    http.Handler        // nil이면 /ws 미등록
	Gatherer  prometheus.Gatherer // nil이면 /metrics 미등록
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(deps RouterDeps, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	if deps.Stream != nil {
		r.Handle("/ws", deps.Stream)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Status endpoints
	api.HandleFunc("/status", deps.Cycle.GetStatus).Methods("GET")
	api.HandleFunc("/selection", deps.Cycle.GetSelection).Methods("GET")
	api.HandleFunc("/universe", deps.Cycle.GetUniverse).Methods("GET")

	// Control endpoints
	api.HandleFunc("/cycle/start", deps.Cycle.Start).Methods("POST")
	api.HandleFunc("/cycle/stop", deps.Cycle.Stop).Methods("POST")
	api.HandleFunc("/cycle/run", deps.Cycle.RunNow).Methods("POST")
	api.HandleFunc("/selection/refresh", deps.Cycle.RefreshSelection).Methods("POST")
	api.HandleFunc("/universe", deps.Cycle.PutUniverse).Methods("PUT")
	api.HandleFunc("/signals", deps.Cycle.SubmitSignal).Methods("POST")

	// Portfolio endpoints
	if deps.Portfolio != nil {
		api.HandleFunc("/positions", deps.Portfolio.GetPositions).Methods("GET")
		api.HandleFunc("/sectors", deps.Portfolio.GetSectors).Methods("GET")
		api.HandleFunc("/quotes", deps.Portfolio.GetQuotes).Methods("GET")
		api.HandleFunc("/quotes/{symbol}", deps.Portfolio.GetQuote).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "tradecycle-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
