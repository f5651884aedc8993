package session

import (
	"encoding/json"
	"fmt"
)

// Message types, client to service.
const (
	msgHello   = "HELLO"
	msgPing    = "PING"
	msgPlay    = "PLAY"
	msgPause   = "PAUSE"
	msgSkip    = "SKIP"
	msgSeek    = "SEEK"
	msgVolume  = "VOLUME"
	msgShuffle = "SHUFFLE"
	msgRepeat  = "REPEAT"
)

// Message types, service to client.
const (
	evHello       = "HELLO"
	evStateUpdate = "STATE_UPDATE"
	evError       = "ERROR"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is the parsed form of an inbound message. Exactly one of the
// concrete variants below.
type Event interface {
	eventType() string
}

// HelloEvent acknowledges the handshake and tells us how often to ping.
type HelloEvent struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"` // ms
}

// StateUpdateEvent carries the authoritative player state. Fields stay raw so
// the reconciler can tell "absent" (merge nothing) from explicit null
// ("nothing playing").
type StateUpdateEvent struct {
	Current  json.RawMessage `json:"current"`
	Queue    json.RawMessage `json:"queue"`
	Controls json.RawMessage `json:"controls"`
}

// ErrorEvent is a service-side failure surfaced to the user as a connection
// error.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (HelloEvent) eventType() string       { return evHello }
func (StateUpdateEvent) eventType() string { return evStateUpdate }
func (ErrorEvent) eventType() string       { return evError }

// ParseEvent decodes one inbound frame. Errors mean the frame must be
// dropped; they never tear the connection down.
func ParseEvent(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("{}")
	}

	switch env.Type {
	case evHello:
		var ev HelloEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("malformed HELLO payload: %w", err)
		}
		return ev, nil
	case evStateUpdate:
		var ev StateUpdateEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("malformed STATE_UPDATE payload: %w", err)
		}
		return ev, nil
	case evError:
		var ev ErrorEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("malformed ERROR payload: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

type seekPayload struct {
	Position int64 `json:"position"`
}

type volumePayload struct {
	Volume int `json:"volume"`
}

type repeatPayload struct {
	Mode RepeatMode `json:"mode"`
}
