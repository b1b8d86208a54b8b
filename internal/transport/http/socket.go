package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/VedalAI/swarm-control-sub000/internal/gamelink"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The game client does not send an Origin header.
	CheckOrigin: func(*http.Request) bool { return true },
}

// HandleGameSocket upgrades the request and attaches the websocket to the
// game connection. A new attachment replaces any existing one.
func HandleGameSocket(conn *gamelink.Connection, log *logrus.Logger) http.HandlerFunc {
	entry := log.WithField("component", "game-socket")
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			entry.WithError(err).Warn("websocket upgrade failed")
			return
		}
		entry.WithField("remote", r.RemoteAddr).Info("game connected")
		conn.Attach(gamelink.NewWebsocketTransport(ws))
	}
}
