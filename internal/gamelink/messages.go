package gamelink

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType is the closed set of tags carried on the wire envelope.
type MessageType string

const (
	// Game → backend.
	MessageTypeHello  MessageType = "hello"
	MessageTypePing   MessageType = "ping"
	MessageTypeResult MessageType = "result"
	MessageTypeStatus MessageType = "status"

	// Backend → game.
	MessageTypeHelloBack MessageType = "helloback"
	MessageTypePong      MessageType = "pong"
	MessageTypeRedeem    MessageType = "redeem"
)

// Envelope wraps every message in both directions.
type Envelope struct {
	MessageType MessageType     `json:"messageType"`
	GUID        string          `json:"guid"`
	Timestamp   int64           `json:"timestamp"`
	Data        json.RawMessage `json:"data,omitempty"`
}

func newEnvelope(mt MessageType, guid string, at time.Time, data any) (Envelope, error) {
	env := Envelope{
		MessageType: mt,
		GUID:        guid,
		Timestamp:   at.UnixMilli(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s data: %w", mt, err)
		}
		env.Data = raw
	}
	return env, nil
}

// HelloMessage opens the handshake; the game announces its protocol version.
type HelloMessage struct {
	Version string `json:"version"`
}

// HelloBackMessage answers a Hello. Allowed is false when the announced
// version is incompatible; the game is expected to disconnect in that case.
type HelloBackMessage struct {
	Allowed bool `json:"allowed"`
}

// ResultMessage reports the outcome of a previously sent redeem, correlated
// by the envelope GUID.
type ResultMessage struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UserInfo decorates an outbound redeem with the buyer's identity.
type UserInfo struct {
	ID          string `json:"id"`
	Login       string `json:"login,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// RedeemMessage instructs the game to execute a purchased action.
type RedeemMessage struct {
	Command          string         `json:"command"`
	Title            string         `json:"title,omitempty"`
	Announce         bool           `json:"announce"`
	Args             map[string]any `json:"args"`
	InvocationSource string         `json:"invocationSource"`
	User             *UserInfo      `json:"user,omitempty"`
}

// InvocationSourceBits marks redeems paid for with real currency.
const InvocationSourceBits = "bits"
