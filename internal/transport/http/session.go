package http

import (
	"context"
	"net/http"
)

// SessionRegistrar is the minimal interface needed to register a client
// session.
type SessionRegistrar interface {
	RegisterSession(ctx context.Context, userID, sessionID string) error
}

// HandleRegisterSession returns an HTTP handler that records the calling
// client's session. Carts are only accepted from registered sessions.
func HandleRegisterSession(svc SessionRegistrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		sessionID := r.Header.Get(sessionHeader)

		if err := svc.RegisterSession(r.Context(), userID, sessionID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
