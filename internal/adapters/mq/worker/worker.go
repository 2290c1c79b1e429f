// Package worker drives the orchestrator's step function from a loop.
//
// The Driver is only a convenience for servers and the CLI: it is one
// more caller of the same serialized Advance, so jobs still run one
// stage at a time in submission order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/pkg/logger"
	"github.com/okian/vodcut/pkg/metrics"
)

const (
	defaultInterval        = 500 * time.Millisecond
	defaultMaxStepsPerTick = 64
)

// ErrStopped is returned by Drain when the driver was shut down.
var ErrStopped = errors.New("driver stopped")

// Advancer executes at most one stage of the active or next job.
type Advancer interface {
	Advance(ctx context.Context) (*model.Job, error)
}

// Driver calls Advance on a ticker until ctx is done or Shutdown is called.
type Driver struct {
	adv      Advancer
	name     string
	interval time.Duration
	maxSteps int
	isIdle   func(error) bool

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewDriver creates a driver for adv.
func NewDriver(adv Advancer, opts ...Option) *Driver {
	d := &Driver{
		adv:      adv,
		name:     "driver",
		interval: defaultInterval,
		maxSteps: defaultMaxStepsPerTick,
		isIdle:   func(error) bool { return false },
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("driver"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.name != "driver" {
		d.logger = d.logger.Named(d.name)
	}
	return d
}

// Run steps the advancer on every tick. Within a tick it keeps stepping
// until the advancer reports idle, fails, or maxSteps is reached.
func (d *Driver) Run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Driver) tick(ctx context.Context) {
	for i := 0; i < d.maxSteps; i++ {
		if d.stopping(ctx) {
			return
		}
		job, err := d.adv.Advance(ctx)
		if err != nil {
			if !d.isIdle(err) {
				metrics.RecordErrorByComponent("driver", model.KindName(err))
				d.logger.Error(ctx, "advance failed", logger.Error(err))
			}
			return
		}
		if job != nil {
			d.logger.Debug(ctx, "advanced",
				logger.JobID(job.ID),
				logger.Stage(string(job.Stage)),
				logger.String("state", string(job.State)))
		}
	}
}

func (d *Driver) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-d.shutdown:
		return true
	default:
		return false
	}
}

// Drain steps synchronously until until reports true for a returned job,
// the advancer goes idle, or an advance fails. It returns the last job.
func (d *Driver) Drain(ctx context.Context, until func(*model.Job) bool) (*model.Job, error) {
	var last *model.Job
	for {
		if d.stopping(ctx) {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, ErrStopped
		}
		job, err := d.adv.Advance(ctx)
		if err != nil {
			if d.isIdle(err) {
				return last, nil
			}
			return last, fmt.Errorf("advance: %w", err)
		}
		last = job
		if until != nil && until(job) {
			return last, nil
		}
	}
}

// Shutdown stops Run and waits for it to return.
func (d *Driver) Shutdown(ctx context.Context) error {
	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
