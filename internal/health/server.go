// Package health serves liveness, readiness and counters for a running
// session over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// Status represents the health state of the session
type Status struct {
	Status         string  `json:"status"` // "healthy", "degraded", "unhealthy"
	SessionID      string  `json:"session_id"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	ProducerState  string  `json:"producer_state"`
	FPS            float64 `json:"fps"`
	CoalesceRate   float64 `json:"coalesce_rate"`
	MQTTConnected  bool    `json:"mqtt_connected"`
	ShutdownReason string  `json:"shutdown_reason,omitempty"`
}

// Sources feeds the server.
type Sources struct {
	Stats func() internal.Stats
	// MQTTConnected is nil when MQTT is disabled.
	MQTTConnected func() bool
}

// Server is the HTTP health check server
type Server struct {
	src     Sources
	started time.Time
	server  *http.Server
}

// NewServer creates a server listening on addr (e.g. ":8080").
func NewServer(addr string, src Sources) *Server {
	s := &Server{src: src, started: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	mux.HandleFunc("/metrics", s.MetricsHandler)
	mux.HandleFunc("/stats", s.StatsHandler)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests and embedding.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Check computes the current health status
func (s *Server) Check() Status {
	st := s.src.Stats()
	status := Status{
		Status:         "healthy",
		SessionID:      st.SessionID,
		UptimeSeconds:  int64(st.Uptime.Seconds()),
		ProducerState:  st.ProducerState,
		FPS:            st.LastFPS,
		CoalesceRate:   st.CoalesceRate(),
		ShutdownReason: st.ShutdownReason,
	}
	if s.src.MQTTConnected != nil {
		status.MQTTConnected = s.src.MQTTConnected()
	}

	switch {
	case !st.Running:
		status.Status = "unhealthy"
	case s.src.MQTTConnected != nil && !status.MQTTConnected:
		status.Status = "degraded"
	}
	return status
}

// LivenessHandler handles /health. 200 while the process serves requests.
func (s *Server) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

// ReadinessHandler handles /readiness. 503 once the session stopped running.
func (s *Server) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	health := s.Check()
	code := http.StatusOK
	if health.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

// StatsHandler handles /stats with the full session snapshot.
func (s *Server) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Stats())
}

// MetricsHandler handles /metrics in the Prometheus text format.
func (s *Server) MetricsHandler(w http.ResponseWriter, _ *http.Request) {
	st := s.src.Stats()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)

	label := fmt.Sprintf("{session=%q}", st.SessionID)
	counters := []struct {
		name string
		v    uint64
	}{
		{"framehandoff_cycles_total", st.Cycles},
		{"framehandoff_compute_failures_total", st.ComputeFailures},
		{"framehandoff_acquire_failures_total", st.AcquireFailures},
		{"framehandoff_signals_total", st.Signals},
		{"framehandoff_coalesced_total", st.Coalesced},
		{"framehandoff_presented_total", st.Presented},
		{"framehandoff_present_failures_total", st.PresentFailures},
		{"framehandoff_wait_timeouts_total", st.Timeouts},
	}
	for _, c := range counters {
		fmt.Fprintf(w, "# TYPE %s counter\n%s%s %d\n", c.name, c.name, label, c.v)
	}
	fmt.Fprintf(w, "# TYPE framehandoff_fps gauge\nframehandoff_fps%s %g\n", label, st.LastFPS)
	fmt.Fprintf(w, "# TYPE framehandoff_period_seconds gauge\nframehandoff_period_seconds%s %g\n", label, st.Period.Seconds())
	fmt.Fprintf(w, "# TYPE framehandoff_uptime_seconds gauge\nframehandoff_uptime_seconds%s %g\n", label, st.Uptime.Seconds())
}

// Start listens and serves on a separate goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("health server: %w", err)
	}

	slog.Info("starting health check server",
		"addr", ln.Addr().String(),
		"endpoints", []string{"/health", "/readiness", "/metrics", "/stats"},
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health check server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("health response write failed", "error", err)
	}
}
