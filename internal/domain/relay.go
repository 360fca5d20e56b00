package domain

import (
	"encoding/json"
	"time"
)

type (
	// RelayedMessage is the line written by the subscriber for every consumed message.
	RelayedMessage struct {
		RoutingKey    string          `json:"routing_key"`
		MessageID     string          `json:"message_id,omitempty"`
		CorrelationID string          `json:"correlation_id,omitempty"`
		Redelivered   bool            `json:"redelivered"`
		ReceivedAt    time.Time       `json:"received_at"`
		Body          json.RawMessage `json:"body"`
	}

	RelayMessageResult struct {
		Relayed   bool
		Duplicate bool
	}
)

// HasBody reports whether the message carries anything other than a JSON null.
func (m RelayedMessage) HasBody() bool {
	return len(m.Body) != 0 && string(m.Body) != "null"
}
