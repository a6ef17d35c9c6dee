// Package api exposes the running simulator over HTTP: live device
// state as JSON, stored run history, parameter hot-reload, and rendered
// diagnostic charts.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/banshee-data/senseedge/internal/charts"
	"github.com/banshee-data/senseedge/internal/db"
	"github.com/banshee-data/senseedge/internal/monitoring"
	"github.com/banshee-data/senseedge/internal/params"
	"github.com/banshee-data/senseedge/internal/report"
	"github.com/banshee-data/senseedge/internal/sim"
)

var logf = monitoring.Prefixed("[api] ")

// Server serves the simulator API. The database may be nil when the
// daemon runs without recording; history endpoints then return 404.
type Server struct {
	sim   *sim.Runner
	db    *db.DB
	runID string
}

// NewServer builds an API server over a runner and an optional event
// store.
func NewServer(runner *sim.Runner, database *db.DB, runID string) *Server {
	return &Server{sim: runner, db: database, runID: runID}
}

// ServeMux returns the route table. Callers mount it under /api and
// /charts as they see fit.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/result", s.handleResult)
	mux.HandleFunc("/spectrum", s.handleSpectrum)
	mux.HandleFunc("/features", s.handleFeatures)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/alarms", s.handleAlarms)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/params", s.handleParams)
	mux.HandleFunc("/charts/dashboard", s.handleDashboard)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf("failed to encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.sim.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":          s.runID,
		"tick":            snap.Tick,
		"enabled":         snap.Enabled,
		"fft_busy":        snap.FFTBusy,
		"feature_busy":    snap.FEBusy,
		"nn_busy":         snap.NNBusy,
		"alarm":           snap.Alarm,
		"batches":         snap.Batches,
		"dropped_batches": snap.Dropped,
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.sim.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"class_id":   snap.ClassID,
		"class_name": report.ClassName(snap.ClassID),
		"confidence": snap.Confidence,
		"alarm":      snap.Alarm,
	})
}

func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.sim.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tick": snap.Tick,
		"bins": snap.Bins,
	})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.sim.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tick":     snap.Tick,
		"features": snap.Features,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db == nil {
		writeJSONError(w, http.StatusNotFound, "no event store attached")
		return
	}
	events, err := s.db.Classifications(s.runID, 500)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query events: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleAlarms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db == nil {
		writeJSONError(w, http.StatusNotFound, "no event store attached")
		return
	}
	events, err := s.db.AlarmEvents(s.runID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query alarms: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db == nil {
		writeJSONError(w, http.StatusNotFound, "no event store attached")
		return
	}
	runs, err := s.db.Runs(50)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query runs: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleParams hot-reloads the inference parameters from a JSON body in
// the params.Set schema.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var set params.Set
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&set); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("bad params body: %v", err))
		return
	}

	if err := s.sim.ReloadParams(set.Flatten()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load params: %v", err))
		return
	}

	logf("parameters reloaded over HTTP")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var events []db.Classification
	if s.db != nil {
		var err error
		events, err = s.db.Classifications(s.runID, 200)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query events: %v", err))
			return
		}
		// oldest first for the timeline
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := charts.RenderDashboard(w, s.sim.Snapshot(), events); err != nil {
		logf("failed to render dashboard: %v", err)
	}
}
