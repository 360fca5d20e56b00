package queue

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpConnection is used mainly to be able to generate mocks for the AMQP connection.
type amqpConnection interface {
	io.Closer

	Channel() (amqpChannel, error)
	IsClosed() bool
}

// amqpChannel is used mainly to be able to generate mocks for the AMQP behavior.
//
//nolint:interfacebloat // subset of amqp091 Channel used by the facade
type amqpChannel interface {
	io.Closer

	Cancel(consumer string, noWait bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
}

type dialFunc func(url string, cfg amqp.Config) (amqpConnection, error)

// connectionAdapter narrows *amqp.Connection to amqpConnection.
type connectionAdapter struct {
	*amqp.Connection
}

func (c connectionAdapter) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}

	return ch, nil
}

func dialAMQP(url string, cfg amqp.Config) (amqpConnection, error) {
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}

	return connectionAdapter{Connection: conn}, nil
}

// channelWrapper serialises access to the single AMQP channel owned by an ICQueue.
type channelWrapper struct {
	amqpChan amqpChannel

	mutex  sync.Mutex
	closed atomic.Bool
}

func newChannelWrapper(ch amqpChannel) *channelWrapper {
	return &channelWrapper{amqpChan: ch}
}

// Close closes the underlying channel once. Later calls return amqp.ErrClosed.
func (ch *channelWrapper) Close() error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	if ch.isClosed() {
		return amqp.ErrClosed
	}

	ch.closed.Store(true)

	return ch.amqpChan.Close()
}

func (ch *channelWrapper) qos(prefetchCount int) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.Qos(prefetchCount, 0, false)
}

//nolint:revive // This method has the same arguments as Channel.ExchangeDeclare from amqp091-go lib.
func (ch *channelWrapper) exchangeDeclare(
	name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table,
) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

func (ch *channelWrapper) queueDeclare(
	name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table,
) (amqp.Queue, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

func (ch *channelWrapper) queueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.QueueBind(name, key, exchange, noWait, args)
}

func (ch *channelWrapper) publish(
	ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing,
) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	if ch.isClosed() {
		return amqp.ErrClosed
	}

	return ch.amqpChan.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

//nolint:revive // This method uses same number of arguments as amqp091 Channel.Consume.
func (ch *channelWrapper) consume(
	queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table,
) (<-chan amqp.Delivery, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}

func (ch *channelWrapper) cancel(consumer string) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	if ch.isClosed() {
		return nil
	}

	return ch.amqpChan.Cancel(consumer, false)
}

func (ch *channelWrapper) isClosed() bool {
	return ch.closed.Load()
}
