package gamelink

import "github.com/gorilla/websocket"

type wsTransport struct {
	conn *websocket.Conn
}

// NewWebsocketTransport adapts a gorilla websocket connection to the
// Transport interface.
func NewWebsocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, payload, err := t.conn.ReadMessage()
	return payload, err
}

func (t *wsTransport) WriteMessage(payload []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
