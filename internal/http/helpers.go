package http

import (
	"errors"
	"net/http"

	applog "txdash/internal/log"
)

// writeResponse writes b, falling back to the generic 500 when the payload
// cannot be encoded. Once headers are out, a failed write is only logged.
func (s *Server) writeResponse(w http.ResponseWriter, r *http.Request, b *JSONResponseBuilder) {
	if err := b.Write(w); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to write response",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		if !errors.Is(err, ErrEncode) {
			return
		}
		if fallback := InternalServerError().Write(w); fallback != nil {
			s.logger.ErrorContext(r.Context(), "Failed to write error response", applog.FieldError, fallback)
		}
	}
}

// writeResult answers 200 with v, or the generic 500 when err is set.
// The failure itself was already logged by the analytics service.
func writeResult[T any](s *Server, w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		s.writeResponse(w, r, InternalServerError())
		return
	}
	s.writeResponse(w, r, NewJSONResponse(v))
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
