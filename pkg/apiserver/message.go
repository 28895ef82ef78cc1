package apiserver

import (
	"encoding/json"
	"time"

	"github.com/juju/errors"
)

// Message is the envelope of every websocket frame.
type Message struct {
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeConnectivity = "connectivity"
	TypeError        = "error"
)

func newMessage(typ string, v interface{}) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, errors.Trace(err)
	}
	return Message{Type: typ, Time: time.Now().UTC(), Payload: data}, nil
}
