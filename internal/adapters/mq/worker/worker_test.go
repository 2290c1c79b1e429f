package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	worker "github.com/okian/vodcut/internal/adapters/mq/worker"
	model "github.com/okian/vodcut/internal/domain/model"
	logging "github.com/okian/vodcut/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var errIdle = errors.New("idle")

// fakeAdvancer walks a single job through a fixed number of stages.
type fakeAdvancer struct {
	mu     sync.Mutex
	steps  int
	total  int
	failAt int
	calls  int
}

func (f *fakeAdvancer) Advance(_ context.Context) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt > 0 && f.steps+1 == f.failAt {
		f.steps++
		return nil, errors.New("stage exploded")
	}
	if f.steps >= f.total {
		return nil, errIdle
	}
	f.steps++
	state := model.StateRunning
	if f.steps == f.total {
		state = model.StateDone
	}
	return &model.Job{ID: "job-1", State: state}, nil
}

func (f *fakeAdvancer) count() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.steps, f.calls
}

func isIdle(err error) bool { return errors.Is(err, errIdle) }

func TestDriverRun(t *testing.T) {
	Convey("Given a driver over a five stage job", t, func() {
		_ = logging.Init()
		adv := &fakeAdvancer{total: 5}
		d := worker.NewDriver(adv,
			worker.WithName("test-driver"),
			worker.WithInterval(5*time.Millisecond),
			worker.WithIdle(isIdle),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go d.Run(ctx)

		Convey("When it runs for a few ticks", func() {
			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if steps, _ := adv.count(); steps == 5 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}

			Convey("Then every stage is executed", func() {
				steps, _ := adv.count()
				So(steps, ShouldEqual, 5)
			})

			Convey("And shutdown returns promptly", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()
				So(d.Shutdown(shutdownCtx), ShouldBeNil)
				So(d.Shutdown(shutdownCtx), ShouldBeNil)
			})
		})
	})

	Convey("Given a driver capped at one step per tick", t, func() {
		_ = logging.Init()
		adv := &fakeAdvancer{total: 100}
		d := worker.NewDriver(adv, worker.WithInterval(time.Hour), worker.WithMaxStepsPerTick(1))
		ctx, cancel := context.WithCancel(context.Background())
		go d.Run(ctx)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()

		Convey("Then cancelling before the first tick runs nothing", func() {
			So(d.Shutdown(shutdownCtx), ShouldBeNil)
			steps, _ := adv.count()
			So(steps, ShouldEqual, 0)
		})
	})
}

func TestDriverDrain(t *testing.T) {
	Convey("Given a driver used synchronously", t, func() {
		_ = logging.Init()
		ctx := context.Background()

		Convey("When draining until the job is terminal", func() {
			adv := &fakeAdvancer{total: 4}
			d := worker.NewDriver(adv, worker.WithIdle(isIdle))
			job, err := d.Drain(ctx, func(j *model.Job) bool { return j.State.Terminal() })

			Convey("Then it stops on the terminal job", func() {
				So(err, ShouldBeNil)
				So(job.State, ShouldEqual, model.StateDone)
				_, calls := adv.count()
				So(calls, ShouldEqual, 4)
			})
		})

		Convey("When draining without a condition", func() {
			adv := &fakeAdvancer{total: 3}
			d := worker.NewDriver(adv, worker.WithIdle(isIdle))
			job, err := d.Drain(ctx, nil)

			Convey("Then it runs until idle", func() {
				So(err, ShouldBeNil)
				So(job.State, ShouldEqual, model.StateDone)
				_, calls := adv.count()
				So(calls, ShouldEqual, 4)
			})
		})

		Convey("When an advance fails", func() {
			adv := &fakeAdvancer{total: 4, failAt: 2}
			d := worker.NewDriver(adv, worker.WithIdle(isIdle))
			_, err := d.Drain(ctx, nil)

			Convey("Then the error is returned", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "stage exploded")
			})
		})

		Convey("When the context is cancelled", func() {
			adv := &fakeAdvancer{total: 4}
			d := worker.NewDriver(adv, worker.WithIdle(isIdle))
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := d.Drain(cctx, nil)

			Convey("Then it returns the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When the driver was shut down", func() {
			adv := &fakeAdvancer{total: 4}
			d := worker.NewDriver(adv, worker.WithIdle(isIdle))
			go d.Run(ctx)
			shutdownCtx, shutdownCancel := context.WithTimeout(ctx, time.Second)
			defer shutdownCancel()
			So(d.Shutdown(shutdownCtx), ShouldBeNil)
			_, err := d.Drain(ctx, nil)

			Convey("Then it reports ErrStopped", func() {
				So(errors.Is(err, worker.ErrStopped), ShouldBeTrue)
			})
		})
	})
}
