package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the dev HTTP endpoint: HMR event stream, compiled modules,
// health and metrics.
type Server struct {
	addr   string
	app    *App
	hub    *Hub
	health *HealthService
	server *http.Server
	ln     net.Listener
}

func NewServer(addr string, app *App, hub *Hub) *Server {
	return &Server{
		addr:   addr,
		app:    app,
		hub:    hub,
		health: NewHealthService(app, hub),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/events", s.hub)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/module", s.handleModule)
	mux.HandleFunc("/style", s.handleStyle)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.health.Check(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if status.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// handleModule serves the last good compile of ?file=. The source map is
// inlined.
func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	out, ok := s.app.Output(r.URL.Query().Get("file"))
	if !ok {
		http.Error(w, "module not found", http.StatusNotFound)
		return
	}
	code := out.Code
	if out.Map != nil {
		if url, err := out.Map.DataURL(); err == nil {
			code += "\n//# sourceMappingURL=" + url + "\n"
		}
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(code))
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	style, ok := s.app.Style(r.URL.Query().Get("id"))
	if !ok {
		http.Error(w, "style not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(style.CSS))
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("dev server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("dev server failed", "error", err)
		}
	}()
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
