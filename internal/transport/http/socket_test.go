package http

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/VedalAI/swarm-control-sub000/internal/clock"
	"github.com/VedalAI/swarm-control-sub000/internal/gamelink"
)

func TestHandleGameSocket(t *testing.T) {
	log := newTestLogger()
	conn := gamelink.New("1.0", clock.NewSystem(), log)
	router := NewRouter(&stubRedeemService{}, conn, log)
	srv := httptest.NewServer(RequestLogger(router, log))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/socket"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	hello, err := json.Marshal(map[string]any{
		"messageType": "hello",
		"guid":        "hello-1",
		"timestamp":   time.Now().UnixMilli(),
		"data":        map[string]string{"version": "1.0"},
	})
	if err != nil {
		t.Fatalf("encode hello: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, hello); err != nil {
		t.Fatalf("send hello: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read helloback: %v", err)
	}

	var env gamelink.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatalf("decode helloback: %v", err)
	}
	if env.MessageType != gamelink.MessageTypeHelloBack {
		t.Fatalf("expected helloback, got %s", env.MessageType)
	}
	var back gamelink.HelloBackMessage
	if err := json.Unmarshal(env.Data, &back); err != nil {
		t.Fatalf("decode helloback data: %v", err)
	}
	if !back.Allowed {
		t.Fatalf("expected handshake to be allowed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for conn.State() != gamelink.StateHandshaked {
		if time.Now().After(deadline) {
			t.Fatalf("connection never reached handshaked, state %s", conn.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
