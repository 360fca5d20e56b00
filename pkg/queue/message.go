package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeText   = "text/plain"
	contentTypeBinary = "application/octet-stream"
)

// Message is a consumed delivery whose body parsed as JSON.
type Message struct {
	// Body is the parsed payload: map[string]any, []any, string, float64, bool or nil.
	Body any
	Raw  []byte

	Exchange      string
	RoutingKey    string
	MessageID     string
	CorrelationID string
	ContentType   string
	Headers       amqp.Table
	Timestamp     time.Time
	Redelivered   bool
}

func newMessage(d amqp.Delivery) (Message, error) {
	var body any
	if err := json.Unmarshal(d.Body, &body); err != nil {
		return Message{}, fmt.Errorf("could not parse message body: %w", err)
	}

	return Message{
		Body:          body,
		Raw:           d.Body,
		Exchange:      d.Exchange,
		RoutingKey:    d.RoutingKey,
		MessageID:     d.MessageId,
		CorrelationID: d.CorrelationId,
		ContentType:   d.ContentType,
		Headers:       d.Headers,
		Timestamp:     d.Timestamp,
		Redelivered:   d.Redelivered,
	}, nil
}

// Decode parses the raw body of the receiver message and stores the result in the value pointed to by target.
func (m Message) Decode(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("target must be a non-nil pointer")
	}

	if err := json.Unmarshal(m.Raw, target); err != nil {
		return fmt.Errorf("could not unmarshal into target: %w", err)
	}

	return nil
}

// encodePayload turns a publish payload into a message body. Strings and byte slices pass through,
// everything else is encoded as JSON.
func encodePayload(payload any) ([]byte, string, error) {
	switch v := payload.(type) {
	case string:
		return []byte(v), contentTypeText, nil
	case json.RawMessage:
		return v, contentTypeJSON, nil
	case []byte:
		return v, contentTypeBinary, nil
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("could not marshal message: %w", err)
	}

	return content, contentTypeJSON, nil
}
