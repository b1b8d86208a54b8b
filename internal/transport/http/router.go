package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/VedalAI/swarm-control-sub000/internal/gamelink"
)

// RedeemAPI bundles the operations the router exposes.
type RedeemAPI interface {
	SessionRegistrar
	Prepurchaser
	Finalizer
	Canceller
}

// NewRouter wires the public surface: session registration, the order
// lifecycle and the game's websocket.
func NewRouter(svc RedeemAPI, game *gamelink.Connection, log *logrus.Logger) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	r.Handle("/session", HandleRegisterSession(svc)).Methods(http.MethodPost)
	r.Handle("/redeems/prepurchase", HandlePrepurchase(svc)).Methods(http.MethodPost)
	r.Handle("/redeems/finalize", HandleFinalize(svc)).Methods(http.MethodPost)
	r.Handle("/redeems/{id}/cancel", HandleCancel(svc)).Methods(http.MethodPost)
	r.Handle("/game/socket", HandleGameSocket(game, log)).Methods(http.MethodGet)

	r.NotFoundHandler = NotFoundHandler()

	return r
}
