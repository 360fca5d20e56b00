package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PublishRecord is one message read from a line oriented source.
type PublishRecord struct {
	RoutingKey string
	Payload    json.RawMessage
}

// ParseRecord parses "<routing-key>\t<payload>" or a bare payload, which is published with defaultKey.
// A payload that is not valid JSON is published as a JSON string so that consumers can always parse it.
func ParseRecord(line, defaultKey string) (PublishRecord, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return PublishRecord{}, ErrEmptyRecord
	}

	routingKey, payload := defaultKey, line
	if key, rest, found := strings.Cut(line, "\t"); found {
		payload = rest

		if key = strings.TrimSpace(key); key != "" {
			routingKey = key
		}
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return PublishRecord{}, ErrEmptyRecord
	}

	if json.Valid([]byte(payload)) {
		return PublishRecord{RoutingKey: routingKey, Payload: json.RawMessage(payload)}, nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return PublishRecord{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	return PublishRecord{RoutingKey: routingKey, Payload: encoded}, nil
}
