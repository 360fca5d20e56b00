package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

const deadLetterSuffix = ".dead"

// Config describes the broker endpoint, the exchange messages are published to and the queue the
// facade consumes from.
type Config struct {
	URL      string      `json:"url"`
	Exchange string      `json:"exchange"`
	Queue    QueueConfig `json:"queue"`
}

// QueueConfig describes the primary queue. DeadLetter defaults to enabled when left nil.
type QueueConfig struct {
	Name        string      `json:"name"`
	RoutingKeys RoutingKeys `json:"routing_key"`
	DeadLetter  *bool       `json:"dead_letter,omitempty"`
}

// RoutingKeys is an ordered list of binding keys. It decodes from a single JSON string, a JSON
// array of strings, or a comma separated environment value.
type RoutingKeys []string

// Keys is a convenience constructor for RoutingKeys.
func Keys(keys ...string) RoutingKeys {
	return RoutingKeys(keys)
}

// UnmarshalJSON accepts "key" or ["k1","k2"]. An empty string yields no keys.
func (k *RoutingKeys) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*k = nil

			return nil
		}

		*k = RoutingKeys{single}

		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("routing key must be a string or an array of strings: %w", err)
	}

	*k = RoutingKeys(many)

	return nil
}

// Decode implements envconfig.Decoder.
func (k *RoutingKeys) Decode(value string) error {
	var keys RoutingKeys

	for _, key := range strings.Split(value, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}

	*k = keys

	return nil
}

// Validate reports ErrInvalidConfig unless both the URL and the exchange are set.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" || strings.TrimSpace(c.Exchange) == "" {
		return ErrInvalidConfig
	}

	return nil
}

func (c QueueConfig) deadLetterEnabled() bool {
	return c.DeadLetter == nil || *c.DeadLetter
}

func deadLetterExchangeName(exchange string) string {
	return exchange + deadLetterSuffix
}

func deadLetterQueueName(queue string) string {
	return queue + deadLetterSuffix
}

// URLFromParts builds an AMQP URL from discrete connection settings.
func URLFromParts(scheme, username, password, host string, port int, vhost string) string {
	uri := amqp.URI{
		Scheme:   scheme,
		Username: username,
		Password: password,
		Host:     host,
		Port:     port,
		Vhost:    vhost,
	}

	return uri.String()
}
