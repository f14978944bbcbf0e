package http

import (
	"net/http"

	"txdash/internal/core"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady answers 200 once the seed has loaded and 503 before that or
// after a failed seed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.datasetStatus()
	if status.State != core.StateReady {
		s.writeResponse(w, r, NewJSONResponse(status).Status(http.StatusServiceUnavailable))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	_ = ErrorResponse(http.StatusNotFound, "Not found").Write(w)
}
