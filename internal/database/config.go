package database

import "time"

// Options holds the pool settings not carried by connection.Metadata.
// Zero fields fall back to DefaultOptions.
type Options struct {
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`

	// SSLMode only applies to postgres ("disable" when empty).
	SSLMode string `mapstructure:"ssl_mode"`
}

// DefaultOptions returns pool settings suited to a small read-mostly service.
func DefaultOptions() Options {
	return Options{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		SSLMode:         "disable",
	}
}

// WithDefaults fills every zero field of o from DefaultOptions.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.MaxConns == 0 {
		o.MaxConns = def.MaxConns
	}
	if o.MinConns == 0 {
		o.MinConns = def.MinConns
	}
	if o.MaxConnLifetime == 0 {
		o.MaxConnLifetime = def.MaxConnLifetime
	}
	if o.MaxConnIdleTime == 0 {
		o.MaxConnIdleTime = def.MaxConnIdleTime
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.SSLMode == "" {
		o.SSLMode = def.SSLMode
	}
	return o
}
