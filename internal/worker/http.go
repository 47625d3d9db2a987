package worker

import (
	"encoding/json"
	"net/http"
	"time"
)

// Server is the worker's localhost-only HTTP surface (spec.md §4.G /
// §6's Worker HTTP surface): health, status, task submission, and
// best-effort cancel. Plain net/http — four fixed routes don't earn a
// router dependency.
type Server struct {
	worker    *Worker
	startedAt time.Time
}

// NewServer wraps w with its HTTP surface.
func NewServer(w *Worker) *Server {
	return &Server{worker: w, startedAt: time.Now()}
}

// Handler returns the mux serving the four routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /task", s.handleTask)
	mux.HandleFunc("POST /cancel", s.handleCancel)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"worker": s.worker.spec.WorkerID,
		"uptime": time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.worker.status.Snapshot())
}

type taskRequest struct {
	Prompt       string   `json:"prompt"`
	Technologies []string `json:"technologies"`
}

// handleTask is idempotent per worker lifetime: a second POST /task on a
// worker whose Start has already been called is rejected rather than
// restarting it.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !s.worker.Start(r.Context(), req.Prompt, req.Technologies) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "worker already started"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.worker.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}
