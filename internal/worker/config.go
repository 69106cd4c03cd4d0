package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the reconciliation worker.
type Config struct {
	// BatchSize caps how many recently active users one sweep examines.
	// Default: 500
	BatchSize int

	// LookbackWindow selects users whose progression changed within this
	// window for the sweep.
	// Default: 48 hours
	LookbackWindow time.Duration

	// SweepTimeout is the maximum time a single sweep is allowed to run.
	// Default: 10 minutes
	SweepTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		BatchSize:      500,
		LookbackWindow: 48 * time.Hour,
		SweepTimeout:   10 * time.Minute,
	}
}

// Validate checks if the configuration is valid.
// Returns an error if any values are invalid.
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.BatchSize > 100000 {
		return fmt.Errorf("batch size too high (max 100000), got %d", c.BatchSize)
	}
	if c.LookbackWindow < time.Minute {
		return fmt.Errorf("lookback window must be at least 1 minute, got %v", c.LookbackWindow)
	}
	if c.SweepTimeout < time.Second {
		return fmt.Errorf("sweep timeout must be at least 1 second, got %v", c.SweepTimeout)
	}
	return nil
}
