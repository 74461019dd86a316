package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"cryptocom-momo-bot-go/internal/metrics"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// StatusProvider reports the state served by the API.
type StatusProvider interface {
	Status() Status
}

// APIServer provides an HTTP interface for the trading engine.
type APIServer struct {
	server *http.Server
	status StatusProvider
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(status StatusProvider, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		status: status,
		logger: logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Routes(),
	}
	return s
}

// Routes returns the router serving the status, health and metrics endpoints.
func (s *APIServer) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status.Status()); err != nil {
		s.logger.Error("Failed to write status response", zap.Error(err))
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
