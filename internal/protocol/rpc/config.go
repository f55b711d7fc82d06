package rpc

import "time"

// BackoffConfig defines connect retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

const (
	MinRequestTimeout     = 15 * time.Second
	MaxRequestTimeout     = 60 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Config defines correlation and transport reliability defaults.
type Config struct {
	// RequestTimeout bounds a single call; approvals are human-mediated so the
	// production range is MinRequestTimeout..MaxRequestTimeout.
	RequestTimeout     time.Duration
	ConnectTimeout     time.Duration
	WriteTimeout       time.Duration
	PingInterval       time.Duration
	PongTimeout        time.Duration
	MaxConnectAttempts int
	NotificationBuffer int
	Backoff            BackoffConfig
	Recorder           Recorder
	NewID              func() string
	Now                func() time.Time
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout:     DefaultRequestTimeout,
		ConnectTimeout:     5 * time.Second,
		WriteTimeout:       10 * time.Second,
		PingInterval:       30 * time.Second,
		PongTimeout:        60 * time.Second,
		MaxConnectAttempts: 5,
		NotificationBuffer: 16,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = def.PongTimeout
	}
	if c.MaxConnectAttempts < 0 {
		c.MaxConnectAttempts = 0
	}
	if c.NotificationBuffer <= 0 {
		c.NotificationBuffer = def.NotificationBuffer
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	if c.Recorder == nil {
		c.Recorder = nopRecorder{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = newCorrelationID
	}
	return c
}
