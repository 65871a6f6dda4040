// Package web provides the HTTP status server for the lm-micra daemon.
package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/george-ags/lm-micra/internal/status"
)

// Saver queues a manual persistence of the memory ring.
type Saver interface {
	SaveMemories()
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	saver      Saver
}

// New creates a Server that reads state from the given tracker. saver
// backs the POST /save endpoint; it may be nil to disable manual saves.
func New(addr string, tracker *status.Tracker, saver Saver) *Server {
	s := &Server{tracker: tracker, saver: saver}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/save", s.handleSave)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, time.Now())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	data, err := status.FormatJSON(s.tracker.Snapshot(), time.Now())
	if err != nil {
		log.Printf("web: format status: %v", err)
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if s.saver == nil {
		http.Error(w, "saving not available", http.StatusServiceUnavailable)
		return
	}
	s.saver.SaveMemories()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("save queued\n"))
}
