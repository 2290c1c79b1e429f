package worker

import (
	"time"

	"github.com/okian/vodcut/pkg/logger"
)

// Option applies a configuration option to the Driver.
type Option func(*Driver)

// WithName sets the driver name for identification and logging.
func WithName(name string) Option {
	return func(d *Driver) {
		if name != "" {
			d.name = name
		}
	}
}

// WithLogger sets a custom logger for the driver.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithInterval sets the tick interval.
func WithInterval(interval time.Duration) Option {
	return func(d *Driver) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithMaxStepsPerTick bounds the stages executed per tick.
func WithMaxStepsPerTick(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxSteps = n
		}
	}
}

// WithIdle tells the driver which advance errors mean "nothing to do".
func WithIdle(isIdle func(error) bool) Option {
	return func(d *Driver) {
		if isIdle != nil {
			d.isIdle = isIdle
		}
	}
}
