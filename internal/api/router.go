package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/debtview/internal/api/handlers"
	"github.com/wonny/debtview/pkg/logger"
)

// Handlers groups everything the router serves. Jobs and Metrics may be nil.
type Handlers struct {
	Snapshot  *handlers.SnapshotHandler
	Reference *handlers.ReferenceHandler
	Stream    *handlers.StreamHandler
	Jobs      *handlers.JobsHandler
	Metrics   http.Handler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}

	// Snapshot stream
	r.HandleFunc("/ws", h.Stream.ServeWS).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Snapshot endpoints
	api.HandleFunc("/snapshot", h.Snapshot.GetSnapshot).Methods("GET")
	api.HandleFunc("/snapshot/status", h.Snapshot.GetStatus).Methods("GET")
	api.HandleFunc("/quotes", h.Snapshot.GetQuotes).Methods("GET")

	// Reference endpoints
	api.HandleFunc("/references", h.Reference.GetReferences).Methods("GET")
	api.HandleFunc("/references/{symbol}", h.Reference.GetReference).Methods("GET")

	// Scheduled jobs
	if h.Jobs != nil {
		api.HandleFunc("/jobs", h.Jobs.GetJobs).Methods("GET")
		api.HandleFunc("/jobs/{name}", h.Jobs.GetJob).Methods("GET")
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
		"service": "debtview",
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
				"query":    r.URL.RawQuery,
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
