// Package api exposes the puzzle archive over HTTP: the published view for the
// renderer and an update endpoint for the upstream fetcher.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/haziq21/letter-boxed-solver/pkg/ingest"
	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"github.com/haziq21/letter-boxed-solver/pkg/store"
	"github.com/haziq21/letter-boxed-solver/pkg/view"
	"go.uber.org/zap"
)

// maxBodySize bounds one update payload.
const maxBodySize = 1 << 20

// Server handles the HTTP requests for the archive.
type Server struct {
	store  store.Store
	syncer *ingest.Syncer
	logger *zap.Logger
	now    func() time.Time
}

// NewServer creates a server reading from s and writing through syncer.
func NewServer(s store.Store, syncer *ingest.Syncer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: s, syncer: syncer, logger: logger, now: time.Now}
}

// RegisterRoutes sets up the HTTP routes for the server on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /puzzles", s.handleGetPuzzles)
	mux.HandleFunc("POST /puzzles", s.handlePostPuzzle)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// handleGetPuzzles returns the view up to ?max-date. Without it, only
// puzzles whose solutions are already published are shown; "all" lifts the
// bound.
func (s *Server) handleGetPuzzles(w http.ResponseWriter, r *http.Request) {
	var maxDate time.Time
	switch raw := r.URL.Query().Get("max-date"); raw {
	case "":
		maxDate = puzzle.PublishedCutoff(s.now())
	case "all":
	default:
		d, err := puzzle.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max-date: "+err.Error())
			return
		}
		maxDate = d
	}

	v, err := view.Load(r.Context(), s.store, maxDate)
	if err != nil {
		s.logger.Error("load view failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePostPuzzle(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	u, err := s.syncer.SyncReader(r.Context(), body)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Location", "/puzzles?max-date="+puzzle.FormatDate(u.Date))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := store.Ping(ctx, s.store); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps store and validation errors to HTTP status codes.
func statusFor(err error) int {
	var ve *puzzle.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
