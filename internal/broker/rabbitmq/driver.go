// Package rabbitmq is the AMQP 0-9-1 broker adapter backed by amqp091-go.
//
// The adapter owns one connection and one channel. Declarations and
// publishes go through that channel synchronously; there are no consumers,
// confirms or reconnects at this layer.
//
// Usage:
//
//	md := connection.Metadata{Host: "localhost", Port: 5672, Username: "guest", Password: "guest", Database: "/"}
//	b, err := rabbitmq.New(ctx, md, rabbitmq.DefaultOptions())
//	if err != nil { ... }
//	defer b.Close()
//
//	_ = b.DeclareExchange(ctx, "events", broker.ExchangeOptions{Durable: true})
//	_ = b.DeclareQueueAndBind(ctx, "audit", "events", "user.created", broker.QueueOptions{Durable: true})
//	_ = b.Publish(ctx, "events", "user.created", []byte(`{"id":42}`))
package rabbitmq

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/koustreak/roubi/internal/broker"
	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/logger"
)

const defaultPort = 5672

// Options are the connection settings not carried by connection.Metadata.
type Options struct {
	Heartbeat   time.Duration `mapstructure:"heartbeat"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Locale      string        `mapstructure:"locale"`
	FrameSize   int           `mapstructure:"frame_size"`
}

// DefaultOptions returns a 60s heartbeat and a 30s dial timeout.
func DefaultOptions() Options {
	return Options{
		Heartbeat:   60 * time.Second,
		DialTimeout: 30 * time.Second,
		Locale:      "en_US",
	}
}

// channel is the subset of *amqp.Channel the adapter uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Driver is a RabbitMQ implementation of broker.Broker.
type Driver struct {
	conn interface{ Close() error }
	ch   channel
	log  *logger.Logger
}

var _ broker.Broker = (*Driver)(nil)

// New dials the broker and opens a channel. A failure at either step is a
// connection failure.
func New(ctx context.Context, md connection.Metadata, opts Options) (*Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "rabbitmq dial aborted", err)
	}

	target, rawURL, cfg, err := dialConfig(md, opts)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(rawURL, cfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "rabbitmq unreachable", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "rabbitmq channel open failed", err)
	}

	d := &Driver{
		conn: conn,
		ch:   ch,
		log:  logger.FromContext(ctx).ForAdapter("rabbitmq", target.Endpoint()),
	}
	d.log.Debug("connected")
	return d, nil
}

// dialConfig resolves md into an AMQP URL and client config. With discrete
// fields, Database is the virtual host; a URI carries its own.
func dialConfig(md connection.Metadata, opts Options) (connection.Target, string, amqp.Config, error) {
	target, err := md.Resolve("amqp", defaultPort)
	if err != nil {
		return connection.Target{}, "", amqp.Config{}, err
	}

	cfg := amqp.Config{
		Heartbeat: opts.Heartbeat,
		Locale:    opts.Locale,
		FrameSize: opts.FrameSize,
	}
	if opts.DialTimeout > 0 {
		cfg.Dial = amqp.DefaultDial(opts.DialTimeout)
	}

	rawURL := target.URL()
	if _, err := amqp.ParseURI(rawURL); err != nil {
		return connection.Target{}, "", amqp.Config{}, errs.Wrap(errs.ErrKindInvalidInput, "invalid amqp address", err)
	}
	if md.Kind() == connection.KindDiscrete {
		cfg.Vhost = target.Database
		if cfg.Vhost == "" {
			cfg.Vhost = "/"
		}
	}
	return target, rawURL, cfg, nil
}

// Close closes the channel, then the connection.
func (d *Driver) Close() error {
	if d.ch == nil {
		return errs.ErrNotConnected
	}
	chErr := d.ch.Close()
	var connErr error
	if d.conn != nil {
		connErr = d.conn.Close()
	}
	d.ch, d.conn = nil, nil
	d.log.Debug("closed")
	return mapError(errors.Join(chErr, connErr), "close failed")
}

// DeclareExchange declares exchange name; an empty kind is "direct".
func (d *Driver) DeclareExchange(ctx context.Context, name string, opts broker.ExchangeOptions) error {
	if d.ch == nil {
		return errs.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return mapError(err, "declare exchange aborted")
	}
	err := d.ch.ExchangeDeclare(name, opts.KindOrDefault(), opts.Durable, opts.AutoDelete, opts.Internal, opts.NoWait, amqp.Table(opts.Args))
	return mapError(err, "declare exchange failed")
}

// DeclareQueueAndBind declares queue name and binds it to exchange.
func (d *Driver) DeclareQueueAndBind(ctx context.Context, name, exchange, routingKey string, opts broker.QueueOptions) error {
	if d.ch == nil {
		return errs.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return mapError(err, "declare queue aborted")
	}
	if _, err := d.ch.QueueDeclare(name, opts.Durable, opts.AutoDelete, opts.Exclusive, opts.NoWait, amqp.Table(opts.Args)); err != nil {
		return mapError(err, "declare queue failed")
	}
	return mapError(d.ch.QueueBind(name, routingKey, exchange, false, nil), "bind queue failed")
}

// Publish sends body to exchange under routingKey.
func (d *Driver) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	if d.ch == nil {
		return errs.ErrNotConnected
	}
	msg := amqp.Publishing{
		ContentType: "application/octet-stream",
		Timestamp:   time.Now(),
		Body:        body,
	}
	return mapError(d.ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg), "publish failed")
}
