package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/VedalAI/swarm-control-sub000/internal/clock"
	"github.com/VedalAI/swarm-control-sub000/internal/domain"
	"github.com/VedalAI/swarm-control-sub000/internal/gamelink"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestRouter(svc RedeemAPI) *mux.Router {
	log := newTestLogger()
	return NewRouter(svc, gamelink.New("1.0", clock.NewSystem(), log), log)
}

func TestRouter(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubRedeemService{})

	t.Run("health responds ok", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "ok" {
			t.Fatalf("expected body ok, got %q", rec.Body.String())
		}
	})

	t.Run("unknown route returns JSON 404", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/nope", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), codeNotFound) {
			t.Fatalf("expected JSON error body, got %q", rec.Body.String())
		}
	})
}

func TestHandleRegisterSession(t *testing.T) {
	t.Parallel()

	t.Run("registers the header pair", func(t *testing.T) {
		t.Parallel()
		svc := &stubRedeemService{}
		req := httptest.NewRequest(http.MethodPost, "/session", nil)
		req.Header.Set(userHeader, "user-1")
		req.Header.Set(sessionHeader, "sess-1")
		rec := httptest.NewRecorder()

		HandleRegisterSession(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(svc.registered) != 1 || svc.registered[0] != [2]string{"user-1", "sess-1"} {
			t.Fatalf("unexpected registrations: %v", svc.registered)
		}
	})

	t.Run("missing ids rejected", func(t *testing.T) {
		t.Parallel()
		svc := &stubRedeemService{err: domain.Validationf("session", "user and session ids are required")}
		req := httptest.NewRequest(http.MethodPost, "/session", nil)
		rec := httptest.NewRecorder()

		HandleRegisterSession(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
