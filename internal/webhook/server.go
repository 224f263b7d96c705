package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sancovp/metasync/internal/eventbus"
)

// Server handles HTTP requests for GitHub webhook deliveries.
type Server struct {
	bus        *eventbus.Bus
	metaRepo   string
	secret     []byte
	timeout    time.Duration
	mux        *http.ServeMux
	httpServer *http.Server
}

// ServerConfig holds configuration for the webhook server.
type ServerConfig struct {
	Bus      *eventbus.Bus
	MetaRepo string        // "owner/repo" of the meta repository
	Secret   []byte        // HMAC secret for signature validation
	Timeout  time.Duration // per-delivery processing budget (default 30s)
}

// NewServer creates a new webhook server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &Server{
		bus:      cfg.Bus,
		metaRepo: cfg.MetaRepo,
		secret:   cfg.Secret,
		timeout:  cfg.Timeout,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/webhook", s.handleDelivery)
	s.mux.HandleFunc("/healthz", s.handleHealth)

	return s
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Handler returns the HTTP handler for use with custom servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// deliveryResponse is the JSON response body for webhook deliveries.
type deliveryResponse struct {
	OK         bool     `json:"ok"`
	Ignored    bool     `json:"ignored,omitempty"`
	Advisories int      `json:"advisories,omitempty"`
	Synced     bool     `json:"synced,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// handleDelivery handles POST /webhook.
func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed: use POST")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer func() { _ = r.Body.Close() }()

	if len(s.secret) > 0 {
		sig := r.Header.Get("X-Hub-Signature-256")
		if sig == "" {
			s.writeError(w, http.StatusUnauthorized, "missing X-Hub-Signature-256")
			return
		}
		if err := ValidateSignature(sig, body, s.secret); err != nil {
			s.writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid signature: %v", err))
			return
		}
	}

	ghEvent := r.Header.Get("X-GitHub-Event")
	event, err := ParseEvent(ghEvent, body, s.metaRepo)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if event == nil {
		// Not a delivery the core consumes; acknowledge so GitHub does
		// not redeliver.
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(deliveryResponse{OK: true, Ignored: true})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result, err := s.bus.Dispatch(ctx, event)
	if err != nil {
		// Transport-class failure: signal the platform to redeliver.
		log.Printf("webhook: dispatch %s failed: %v", event.Type, err)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(deliveryResponse{
		OK:         true,
		Advisories: result.Advisories,
		Synced:     result.Synced,
		Warnings:   result.Warnings,
	})
}

// handleHealth handles GET /healthz for load balancer checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(deliveryResponse{
		OK:    false,
		Error: message,
	})
}
