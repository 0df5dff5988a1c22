package server

import (
	"net/http"
	"strconv"
	"time"
)

type controlState struct {
	Running         bool    `json:"running"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

func (s *Server) controlState() controlState {
	return controlState{
		Running:         s.monitor.Running(),
		IntervalSeconds: s.monitor.Interval().Seconds(),
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, s.controlState())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s.monitor.Pause()
	writeJSON(w, http.StatusOK, s.controlState())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s.monitor.Resume()
	writeJSON(w, http.StatusOK, s.controlState())
}

// handleInterval accepts either ?seconds=N or ?minutes=N (query or form).
func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	interval, ok := parseInterval(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seconds or minutes must be a positive integer"})
		return
	}
	s.monitor.SetInterval(interval)
	writeJSON(w, http.StatusOK, s.controlState())
}

func parseInterval(r *http.Request) (time.Duration, bool) {
	for _, p := range []struct {
		key  string
		unit time.Duration
	}{
		{"seconds", time.Second},
		{"minutes", time.Minute},
	} {
		raw := r.FormValue(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * p.unit, true
	}
	return 0, false
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
