package server

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"switchmonitor/internal/models"
	"switchmonitor/internal/storage"
)

//go:embed templates/*
var embeddedTemplates embed.FS

var dashboardTemplate = template.Must(
	template.New("dashboard.html").Funcs(template.FuncMap{
		"stamp": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04:05") },
	}).ParseFS(embeddedTemplates, "templates/dashboard.html"),
)

// Monitor is the part of the polling loop the web layer reads and controls.
type Monitor interface {
	Latest() (models.Snapshot, bool)
	Subscribe() (<-chan models.Snapshot, func())
	Pause()
	Resume()
	Running() bool
	SetInterval(time.Duration)
	Interval() time.Duration
}

// Server wraps HTTP serving of API + dashboard page.
type Server struct {
	httpServer   *http.Server
	monitor      Monitor
	history      storage.History
	historyLimit int

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a configured HTTP server. metricsHandler may be nil.
func New(addr string, mon Monitor, history storage.History, metricsHandler http.Handler, historyLimit int) *Server {
	if historyLimit <= 0 {
		historyLimit = 100
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		monitor:      mon,
		history:      history,
		historyLimit: historyLimit,
		done:         make(chan struct{}),
	}
	s.registerRoutes(mux, metricsHandler)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down and closes live websocket feeds.
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux, metricsHandler http.Handler) {
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/ws", s.handleStatusWS)
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/api/control/pause", s.handlePause)
	mux.HandleFunc("/api/control/resume", s.handleResume)
	mux.HandleFunc("/api/control/interval", s.handleInterval)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	records, err := s.history.Recent(r.Context(), s.historyLimit)
	if err != nil {
		log.Printf("load history: %v", err)
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, records); err != nil {
		log.Printf("render dashboard: %v", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.monitor.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"timestamp": nil,
			"entries":   []models.Entry{},
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("load history: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history unavailable"})
		return
	}
	if records == nil {
		records = []models.TransitionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
