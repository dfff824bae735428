// Package broker defines the message-broker adapter contract and the
// declaration options shared by its implementations.
package broker

import "context"

// Exchange kinds.
const (
	KindDirect  = "direct"
	KindFanout  = "fanout"
	KindTopic   = "topic"
	KindHeaders = "headers"
)

// ExchangeOptions configures DeclareExchange. An empty Kind is "direct".
type ExchangeOptions struct {
	Kind       string         `mapstructure:"kind"`
	Durable    bool           `mapstructure:"durable"`
	AutoDelete bool           `mapstructure:"auto_delete"`
	Internal   bool           `mapstructure:"internal"`
	NoWait     bool           `mapstructure:"no_wait"`
	Args       map[string]any `mapstructure:"args"`
}

// KindOrDefault returns Kind, or "direct" when unset.
func (o ExchangeOptions) KindOrDefault() string {
	if o.Kind == "" {
		return KindDirect
	}
	return o.Kind
}

// QueueOptions configures DeclareQueueAndBind.
type QueueOptions struct {
	Durable    bool           `mapstructure:"durable"`
	AutoDelete bool           `mapstructure:"auto_delete"`
	Exclusive  bool           `mapstructure:"exclusive"`
	NoWait     bool           `mapstructure:"no_wait"`
	Args       map[string]any `mapstructure:"args"`
}

// Broker is implemented by every message-broker adapter.
type Broker interface {
	DeclareExchange(ctx context.Context, name string, opts ExchangeOptions) error

	// DeclareQueueAndBind declares queue name and binds it to exchange
	// under routingKey.
	DeclareQueueAndBind(ctx context.Context, name, exchange, routingKey string, opts QueueOptions) error

	Publish(ctx context.Context, exchange, routingKey string, body []byte) error

	Close() error
}
