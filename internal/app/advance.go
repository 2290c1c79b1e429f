package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/okian/vodcut/internal/adapters/repository"
	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/pkg/logger"
	"github.com/okian/vodcut/pkg/metrics"
)

// Advance executes one stage of the running job, or starts the oldest
// queued job and executes its first stage. A failing stage is not an
// error of Advance: the job comes back FAILED. ErrIdle means there was
// nothing to do.
func (o *Orchestrator) Advance(ctx context.Context) (*model.Job, error) {
	o.advanceMu.Lock()
	defer o.advanceMu.Unlock()

	if id := o.Active(); id != "" {
		job, err := o.store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load active job %s: %w", id, err)
		}
		return o.step(ctx, job)
	}

	for {
		id, job, ok, err := o.dequeue(ctx)
		if !ok {
			return nil, ErrIdle
		}
		if errors.Is(err, repository.ErrNotFound) {
			o.logger.Warn(ctx, "dropping unknown queued job", logger.JobID(id))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load queued job %s: %w", id, err)
		}
		if job.State != model.StateQueued {
			o.logger.Warn(ctx, "dropping queued job in unexpected state",
				logger.JobID(id), logger.String("state", string(job.State)))
			continue
		}
		return o.start(ctx, job)
	}
}

// dequeue pops the queue head and loads it under queueMu.
func (o *Orchestrator) dequeue(ctx context.Context) (string, *model.Job, bool, error) {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()

	id, ok := o.queue.Dequeue(ctx)
	if !ok {
		return "", nil, false, nil
	}
	job, err := o.store.Get(ctx, id)
	return id, job, true, err
}

// AdvanceJob advances id when it is the running job or, with no job
// running, the head of the queue. A terminal job is returned unchanged.
func (o *Orchestrator) AdvanceJob(ctx context.Context, id string) (*model.Job, error) {
	o.advanceMu.Lock()
	defer o.advanceMu.Unlock()

	job, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State.Terminal() {
		return job, nil
	}

	if active := o.Active(); active != "" {
		if active != id {
			return nil, ErrNotNext
		}
		return o.step(ctx, job)
	}

	head, ok := o.queue.Peek(ctx)
	if !ok || head != id || job.State != model.StateQueued {
		return nil, ErrNotNext
	}
	o.queue.Dequeue(ctx)
	return o.start(ctx, job)
}

func (o *Orchestrator) start(ctx context.Context, job *model.Job) (*model.Job, error) {
	now := o.now().UTC()
	stages := model.Stages(job.Type)
	job.State = model.StateRunning
	job.Stage = stages[0]
	job.Progress = 0
	job.StartedAt = &now
	job.UpdatedAt = now
	if err := o.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job %s: %w", job.ID, err)
	}

	o.mu.Lock()
	o.active = job.ID
	o.runs[job.ID] = &runState{}
	o.mu.Unlock()

	metrics.UpdateActiveJob(true)
	o.logger.Info(ctx, "job started", logger.JobID(job.ID), logger.String("type", string(job.Type)))
	return o.step(ctx, job)
}

// step runs job.Stage and records the transition.
func (o *Orchestrator) step(ctx context.Context, job *model.Job) (*model.Job, error) {
	stages := model.Stages(job.Type)
	stage := job.Stage
	idx := slices.Index(stages, stage)
	if idx < 0 {
		return o.finishFailed(ctx, job, stage, fmt.Errorf("unknown stage %q for %s job", stage, job.Type))
	}

	run := o.runFor(job.ID)
	log := o.logger.With(logger.JobID(job.ID), logger.Stage(string(stage)))
	log.Debug(ctx, "stage started")

	start := time.Now()
	err := o.execute(ctx, job, run, stage)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordStageLatency(string(stage), outcome, float64(elapsed.Milliseconds()))

	if err != nil {
		log.Error(ctx, "stage failed", logger.Error(err), logger.Duration("elapsed", elapsed))
		return o.finishFailed(ctx, job, stage, err)
	}
	log.Info(ctx, "stage finished", logger.Duration("elapsed", elapsed))

	if idx == len(stages)-1 {
		return o.finishDone(ctx, job, run)
	}

	job.Stage = stages[idx+1]
	job.Progress = float64(idx+1) / float64(len(stages))
	job.UpdatedAt = o.now().UTC()
	if err := o.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return job.Clone(), nil
}

func (o *Orchestrator) finishDone(ctx context.Context, job *model.Job, run *runState) (*model.Job, error) {
	now := o.now().UTC()
	job.State = model.StateDone
	job.Progress = 1
	job.Result = run.result
	job.Error = nil
	job.UpdatedAt = now
	job.FinishedAt = &now
	o.release(job.ID)

	metrics.RecordJobFinished(string(job.Type), string(job.State))
	o.logger.Info(ctx, "job done",
		logger.JobID(job.ID),
		logger.Int("segments", job.Result.SegmentCount),
		logger.Float64("duration_s", job.Result.DurationS),
		logger.Bool("under_target", job.Result.UnderTarget))

	if err := o.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return job.Clone(), nil
}

func (o *Orchestrator) finishFailed(ctx context.Context, job *model.Job, stage model.Stage, cause error) (*model.Job, error) {
	kind := model.KindName(cause)
	now := o.now().UTC()
	job.State = model.StateFailed
	job.Stage = stage
	job.Result = nil
	job.Error = &model.JobError{Stage: stage, Kind: kind, Message: cause.Error()}
	job.UpdatedAt = now
	job.FinishedAt = &now
	o.release(job.ID)

	metrics.RecordStageError(string(stage), kind)
	metrics.RecordJobFinished(string(job.Type), string(job.State))
	o.logger.Warn(ctx, "job failed",
		logger.JobID(job.ID),
		logger.Stage(string(stage)),
		logger.String("kind", kind),
		logger.Error(cause))

	if err := o.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return job.Clone(), nil
}

func (o *Orchestrator) runFor(id string) *runState {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.runs[id]
	if !ok {
		run = &runState{}
		o.runs[id] = run
	}
	return run
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.runs, id)
	if o.active == id {
		o.active = ""
		metrics.UpdateActiveJob(false)
	}
}
