package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	deadLetterExchangeArg  = "x-dead-letter-exchange"
	deadLetterExchangeKind = amqp.ExchangeTopic
)

type queueDeclaration struct {
	name      string
	durable   bool
	exclusive bool
	args      amqp.Table
}

type queueBinding struct {
	queueName    string
	bindingKey   string
	exchangeName string
}

// topology is the set of broker objects declared by Connect.
type topology struct {
	exchange           string
	exchangeKind       string
	deadLetterExchange string
	queues             []queueDeclaration
	bindings           []queueBinding
}

// planTopology derives the declarations for cfg. The primary queue is always first.
//
// Dead-lettering needs a named queue and at least one routing key: the dead-letter exchange keeps the
// original routing key, so the dead-letter queue is bound to it once per key.
func planTopology(cfg Config) topology {
	name := cfg.Queue.Name
	keys := cfg.Queue.RoutingKeys
	deadLettered := cfg.Queue.deadLetterEnabled() && name != "" && len(keys) > 0

	primary := queueDeclaration{
		name:      name,
		durable:   name != "",
		exclusive: name == "",
	}

	plan := topology{exchange: cfg.Exchange}

	if deadLettered {
		plan.deadLetterExchange = deadLetterExchangeName(cfg.Exchange)
		primary.args = amqp.Table{deadLetterExchangeArg: plan.deadLetterExchange}
	}

	plan.queues = append(plan.queues, primary)

	for _, key := range keys {
		plan.bindings = append(plan.bindings, queueBinding{
			queueName:    name,
			bindingKey:   key,
			exchangeName: cfg.Exchange,
		})
	}

	if !deadLettered {
		return plan
	}

	dlq := deadLetterQueueName(name)
	plan.queues = append(plan.queues, queueDeclaration{name: dlq, durable: true})

	for _, key := range keys {
		plan.bindings = append(plan.bindings, queueBinding{
			queueName:    dlq,
			bindingKey:   key,
			exchangeName: plan.deadLetterExchange,
		})
	}

	return plan
}

// declare applies the plan on ch and returns the name of the primary queue, which the broker
// generates when the configured name is empty.
func (t topology) declare(ch *channelWrapper) (string, error) {
	if t.exchangeKind != "" {
		if err := ch.exchangeDeclare(t.exchange, t.exchangeKind, true, false, false, false, nil); err != nil {
			return "", fmt.Errorf("failed to declare exchange %q: %w", t.exchange, err)
		}
	}

	if t.deadLetterExchange != "" {
		err := ch.exchangeDeclare(t.deadLetterExchange, deadLetterExchangeKind, true, false, false, false, nil)
		if err != nil {
			return "", fmt.Errorf("failed to declare dead-letter exchange %q: %w", t.deadLetterExchange, err)
		}
	}

	var primaryName string

	for i, q := range t.queues {
		declared, err := ch.queueDeclare(q.name, q.durable, q.exclusive, q.exclusive, false, q.args)
		if err != nil {
			return "", fmt.Errorf("failed to declare queue %q: %w", q.name, err)
		}

		if i == 0 {
			primaryName = declared.Name
			if primaryName == "" {
				primaryName = q.name
			}
		}
	}

	for _, b := range t.bindings {
		queueName := b.queueName
		if queueName == t.queues[0].name {
			queueName = primaryName
		}

		if err := ch.queueBind(queueName, b.bindingKey, b.exchangeName, false, nil); err != nil {
			return "", fmt.Errorf("failed to bind queue %q to %q with key %q: %w", queueName, b.exchangeName, b.bindingKey, err)
		}
	}

	return primaryName, nil
}
