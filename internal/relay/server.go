package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/relaydesk/fabric/internal/audit"
	"github.com/relaydesk/fabric/internal/health"
)

const protocolVersion = "fabric/1"

// Server runs both the framed relay listener and the management HTTP
// endpoint describe in the external-interfaces contract.
type Server struct {
	Registry *Registry
	Bridge   *Bridge
	TenantID string
	Version  string
	Health   *health.Monitor

	startedAt time.Time
	relayHTTP *http.Server
	mgmtHTTP  *http.Server
}

// NewServer wires the relay websocket handler and the mgmt mux. auditLogger
// may be nil when the audit trail is disabled.
func NewServer(registry *Registry, bridge *Bridge, tenantID, version, relayAddr, mgmtAddr string, auditLogger *audit.Logger) *Server {
	s := &Server{
		Registry:  registry,
		Bridge:    bridge,
		TenantID:  tenantID,
		Version:   version,
		Health:    health.NewMonitor(),
		startedAt: time.Now(),
	}
	s.Health.Update("relay_endpoint", health.Healthy, "")
	s.Health.Update("management_endpoint", health.Healthy, "")

	relayMux := http.NewServeMux()
	relayMux.HandleFunc("/", NewEndpointHandler(registry, bridge, tenantID, auditLogger))
	s.relayHTTP = &http.Server{Addr: relayAddr, Handler: relayMux}

	mgmtRouter := mux.NewRouter()
	mgmtRouter.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	mgmtRouter.HandleFunc("/api/v1/relay/status", s.handleStatus).Methods(http.MethodGet)
	s.mgmtHTTP = &http.Server{Addr: mgmtAddr, Handler: mgmtRouter}

	return s
}

// Run starts both listeners and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		log.Info("relay endpoint listening", "addr", s.relayHTTP.Addr)
		if err := s.relayHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Health.Update("relay_endpoint", health.Unhealthy, err.Error())
			errCh <- fmt.Errorf("relay listener: %w", err)
		}
	}()
	go func() {
		log.Info("management endpoint listening", "addr", s.mgmtHTTP.Addr)
		if err := s.mgmtHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Health.Update("management_endpoint", health.Unhealthy, err.Error())
			errCh <- fmt.Errorf("management listener: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		s.shutdown()
		return err
	}
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.relayHTTP.Shutdown(shutdownCtx)
	s.mgmtHTTP.Shutdown(shutdownCtx)
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	summary := s.Health.Summary()
	summary["service"] = "relayd"
	summary["version"] = s.Version

	status := http.StatusOK
	if s.Health.Overall() != health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, summary)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"port":               s.relayHTTP.Addr,
		"active_connections": s.Registry.ActiveConnections(),
		"registered_devices": s.Registry.ActiveConnections(),
		"uptime_seconds":     int64(time.Since(s.startedAt).Seconds()),
		"protocol":           protocolVersion,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
