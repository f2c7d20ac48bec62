package wsreact

import (
	"encoding/json"
	"errors"
	"time"
)

// MessageType represents the type of WebSocket message.
type MessageType int

const (
	// MessageText indicates a UTF-8 encoded text message.
	MessageText MessageType = 1
	// MessageBinary indicates a binary message.
	MessageBinary MessageType = 2
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return "unknown"
	}
}

var (
	// ErrConnectionClosed is returned when sending on a closed connection.
	ErrConnectionClosed = errors.New("wsreact: connection closed")
	// ErrNoEndpoint is returned when no endpoint matches an upgrade path.
	ErrNoEndpoint = errors.New("wsreact: no endpoint for path")
)

// Reaction is the payload sent back after an inbound message matches a
// rule. The zero value sends nothing.
type Reaction struct {
	// Payload is the frame body.
	Payload []byte
	// Type is the frame type; defaults to text when unset.
	Type MessageType
	// Delay is slept before the send, off the reader goroutine.
	Delay time.Duration
}

// Text builds a text-frame reaction.
func Text(s string) Reaction {
	return Reaction{Payload: []byte(s), Type: MessageText}
}

// Binary builds a binary-frame reaction.
func Binary(data []byte) Reaction {
	return Reaction{Payload: data, Type: MessageBinary}
}

// JSON builds a text-frame reaction from a marshaled value. Marshal
// failures surface at registration through the endpoint builder.
func JSON(v interface{}) Reaction {
	data, err := json.Marshal(v)
	if err != nil {
		return Reaction{Type: MessageText}
	}
	return Reaction{Payload: data, Type: MessageText}
}

// Delayed returns a copy of the reaction with a send delay.
func (r Reaction) Delayed(d time.Duration) Reaction {
	r.Delay = d
	return r
}

func (r Reaction) frameType() MessageType {
	if r.Type == 0 {
		return MessageText
	}
	return r.Type
}
