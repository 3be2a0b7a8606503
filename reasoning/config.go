package reasoning

import (
	"fmt"
	"time"
)

// Config holds the reasoning loop's tunables, following the option table
// every other package's Config follows (cf. orchestrator.Config,
// streaming.Engine's constructor arguments).
type Config struct {
	MaxIterations              int
	MaxConcurrentStreams       int
	MaxBufferSize              uint64
	DefaultToolTimeout         time.Duration
	GlobalOrchestrationTimeout time.Duration
	MaxRetryAttempts           int
	RetryBaseDelay             time.Duration
	RetryMaxDelay              time.Duration
	MaxIdenticalCalls          int
	MaxToolFailures            int
	EnableRetry                bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:              50,
		MaxConcurrentStreams:       16,
		MaxBufferSize:              1 << 20,
		DefaultToolTimeout:         30 * time.Second,
		GlobalOrchestrationTimeout: 2 * time.Minute,
		MaxRetryAttempts:           3,
		RetryBaseDelay:             200 * time.Millisecond,
		RetryMaxDelay:              5 * time.Second,
		MaxIdenticalCalls:          2,
		MaxToolFailures:            3,
		EnableRetry:                true,
	}
}

// Validate implements config.ConfigInterface.
func (c *Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if c.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("max_concurrent_streams must be positive")
	}
	if c.MaxBufferSize == 0 {
		return fmt.Errorf("max_buffer_size must be positive")
	}
	if c.MaxIdenticalCalls <= 0 {
		return fmt.Errorf("max_identical_calls must be positive")
	}
	if c.MaxToolFailures <= 0 {
		return fmt.Errorf("max_tool_failures must be positive")
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max_retry_attempts must be non-negative")
	}
	return nil
}

// SetDefaults implements config.ConfigInterface.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxConcurrentStreams == 0 {
		c.MaxConcurrentStreams = d.MaxConcurrentStreams
	}
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = d.MaxBufferSize
	}
	if c.DefaultToolTimeout == 0 {
		c.DefaultToolTimeout = d.DefaultToolTimeout
	}
	if c.GlobalOrchestrationTimeout == 0 {
		c.GlobalOrchestrationTimeout = d.GlobalOrchestrationTimeout
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = d.RetryBaseDelay
	}
	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = d.RetryMaxDelay
	}
	if c.MaxIdenticalCalls == 0 {
		c.MaxIdenticalCalls = d.MaxIdenticalCalls
	}
	if c.MaxToolFailures == 0 {
		c.MaxToolFailures = d.MaxToolFailures
	}
	if c.MaxRetryAttempts == 0 {
		c.MaxRetryAttempts = d.MaxRetryAttempts
	}
}
