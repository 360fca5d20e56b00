package queue

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestPlanTopology(t *testing.T) {
	t.Parallel()

	disabled := false

	tests := []struct {
		name     string
		queue    QueueConfig
		expected topology
	}{
		{
			name:  "server named queue",
			queue: QueueConfig{},
			expected: topology{
				exchange: "ex",
				queues:   []queueDeclaration{{exclusive: true}},
			},
		},
		{
			name:  "named queue without keys",
			queue: QueueConfig{Name: "jobs"},
			expected: topology{
				exchange: "ex",
				queues:   []queueDeclaration{{name: "jobs", durable: true}},
			},
		},
		{
			name:  "dead lettered queue with two keys",
			queue: QueueConfig{Name: "jobs", RoutingKeys: Keys("a.*", "b.#")},
			expected: topology{
				exchange:           "ex",
				deadLetterExchange: "ex.dead",
				queues: []queueDeclaration{
					{name: "jobs", durable: true, args: amqp.Table{"x-dead-letter-exchange": "ex.dead"}},
					{name: "jobs.dead", durable: true},
				},
				bindings: []queueBinding{
					{queueName: "jobs", bindingKey: "a.*", exchangeName: "ex"},
					{queueName: "jobs", bindingKey: "b.#", exchangeName: "ex"},
					{queueName: "jobs.dead", bindingKey: "a.*", exchangeName: "ex.dead"},
					{queueName: "jobs.dead", bindingKey: "b.#", exchangeName: "ex.dead"},
				},
			},
		},
		{
			name:  "dead letter disabled",
			queue: QueueConfig{Name: "jobs", RoutingKeys: Keys("a"), DeadLetter: &disabled},
			expected: topology{
				exchange: "ex",
				queues:   []queueDeclaration{{name: "jobs", durable: true}},
				bindings: []queueBinding{{queueName: "jobs", bindingKey: "a", exchangeName: "ex"}},
			},
		},
		{
			name:  "server named queue is never dead lettered",
			queue: QueueConfig{RoutingKeys: Keys("a")},
			expected: topology{
				exchange: "ex",
				queues:   []queueDeclaration{{exclusive: true}},
				bindings: []queueBinding{{bindingKey: "a", exchangeName: "ex"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := planTopology(Config{URL: testURL, Exchange: "ex", Queue: tt.queue})

			assert.Equal(t, tt.expected, got)
		})
	}
}
