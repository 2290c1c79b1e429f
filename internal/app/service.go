// Package service runs highlight jobs through their stage pipelines.
//
// The Orchestrator owns the job queue and the single active job. Callers
// drive it with Advance, one stage per call; the call is serialized so
// concurrent callers can never step the same job twice.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vodcut/internal/adapters/mq/queue"
	"github.com/okian/vodcut/internal/adapters/repository"
	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/domain/ranking"
	"github.com/okian/vodcut/internal/domain/scoring"
	"github.com/okian/vodcut/internal/domain/spike"
	"github.com/okian/vodcut/pkg/logger"
	"github.com/okian/vodcut/pkg/metrics"
)

// Default pipeline configuration.
const (
	DefaultBucketWidthS    = 30.0
	DefaultMinCount        = 5
	DefaultMarginS         = 20.0
	DefaultMergeGapS       = 0.0
	DefaultContextWindowS  = 10.0
	DefaultTargetMinS      = 480.0
	DefaultTargetMaxS      = 600.0
	DefaultClipGroupCap    = 10
	DefaultSegmentGroupCap = 0

	montageFile = "montage.mp4"
	chatFile    = "chat.jsonl"
	clipsDir    = "clips"
	segmentsDir = "segments"
)

// Orchestrator implements job submission, stepping and status queries.
type Orchestrator struct {
	// advanceMu serializes Advance and AdvanceJob end to end.
	advanceMu sync.Mutex
	// queueMu pairs an enqueue with the save of the same job, so a
	// dequeued id is always readable from the store.
	queueMu sync.Mutex

	// mu guards active and runs.
	mu     sync.RWMutex
	active string
	runs   map[string]*runState

	store repository.Store
	queue queue.Queue

	downloader  Downloader
	clipFetcher ClipFetcher
	chat        ChatImporter
	cutter      Cutter
	compiler    MontageCompiler
	prober      Prober
	clips       ClipSource
	manifest    ManifestWriter

	scorer   *scoring.Model
	selector ranking.Selector

	bucketWidthS    float64
	policy          spike.Policy
	marginS         float64
	mergeGapS       float64
	contextWindowS  float64
	minS            float64
	maxS            float64
	clipGroupCap    int
	segmentGroupCap int

	now   func() time.Time
	newID func() string

	logger logger.Logger
}

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithStore sets the job store.
func WithStore(s repository.Store) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.store = s
		}
	}
}

// WithQueue sets the job queue.
func WithQueue(q queue.Queue) Option {
	return func(o *Orchestrator) {
		if q != nil {
			o.queue = q
		}
	}
}

// WithDownloader sets the VOD downloader.
func WithDownloader(d Downloader) Option {
	return func(o *Orchestrator) { o.downloader = d }
}

// WithClipFetcher sets the clip downloader used by montage jobs.
func WithClipFetcher(f ClipFetcher) Option {
	return func(o *Orchestrator) { o.clipFetcher = f }
}

// WithChatImporter sets the chat importer.
func WithChatImporter(c ChatImporter) Option {
	return func(o *Orchestrator) { o.chat = c }
}

// WithCutter sets the segment cutter.
func WithCutter(c Cutter) Option {
	return func(o *Orchestrator) { o.cutter = c }
}

// WithCompiler sets the montage compiler.
func WithCompiler(c MontageCompiler) Option {
	return func(o *Orchestrator) { o.compiler = c }
}

// WithProber sets the media prober. Without one the VOD duration comes
// from the downloader or the chat log.
func WithProber(p Prober) Option {
	return func(o *Orchestrator) { o.prober = p }
}

// WithClipSource sets the clip catalog.
func WithClipSource(c ClipSource) Option {
	return func(o *Orchestrator) { o.clips = c }
}

// WithManifestWriter sets the manifest writer. Without one no manifest is written.
func WithManifestWriter(w ManifestWriter) Option {
	return func(o *Orchestrator) { o.manifest = w }
}

// WithScoringModel sets the scoring model.
func WithScoringModel(m *scoring.Model) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.scorer = m
		}
	}
}

// WithSelector replaces the greedy selector.
func WithSelector(s ranking.Selector) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.selector = s
		}
	}
}

// WithSpikeDetection sets the bucket width and threshold policy.
func WithSpikeDetection(bucketWidthS float64, policy spike.Policy) Option {
	return func(o *Orchestrator) {
		if bucketWidthS > 0 {
			o.bucketWidthS = bucketWidthS
		}
		if policy != nil {
			o.policy = policy
		}
	}
}

// WithSegmentation sets segment padding, merge gap and chat context window.
func WithSegmentation(marginS, mergeGapS, contextWindowS float64) Option {
	return func(o *Orchestrator) {
		if marginS >= 0 {
			o.marginS = marginS
		}
		if mergeGapS >= 0 {
			o.mergeGapS = mergeGapS
		}
		if contextWindowS >= 0 {
			o.contextWindowS = contextWindowS
		}
	}
}

// WithTargets sets the montage duration range in seconds.
func WithTargets(minS, maxS float64) Option {
	return func(o *Orchestrator) {
		if maxS > 0 && minS >= 0 && minS <= maxS {
			o.minS, o.maxS = minS, maxS
		}
	}
}

// WithGroupCaps sets the per-streamer clip cap and the segment cap. 0 is unlimited.
func WithGroupCaps(clipCap, segmentCap int) Option {
	return func(o *Orchestrator) {
		if clipCap >= 0 {
			o.clipGroupCap = clipCap
		}
		if segmentCap >= 0 {
			o.segmentGroupCap = segmentCap
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator sets the job id generator.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New constructs an Orchestrator. Without options it keeps jobs in
// memory and has no media adapters; stages needing one fail.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runs:            make(map[string]*runState),
		scorer:          scoring.New(),
		selector:        ranking.NewGreedy(),
		bucketWidthS:    DefaultBucketWidthS,
		policy:          spike.Absolute{MinCount: DefaultMinCount},
		marginS:         DefaultMarginS,
		mergeGapS:       DefaultMergeGapS,
		contextWindowS:  DefaultContextWindowS,
		minS:            DefaultTargetMinS,
		maxS:            DefaultTargetMaxS,
		clipGroupCap:    DefaultClipGroupCap,
		segmentGroupCap: DefaultSegmentGroupCap,
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = repository.NewMemoryStore()
	}
	if o.queue == nil {
		o.queue = queue.NewInMemoryQueue()
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("orchestrator")
	}
	return o
}

// Submit validates params, records a QUEUED job and appends it to the queue.
func (o *Orchestrator) Submit(ctx context.Context, jobType model.JobType, params model.JobParams) (*model.Job, error) {
	if err := params.Validate(jobType); err != nil {
		metrics.RecordErrorByComponent("orchestrator", "validation_error")
		return nil, err
	}

	now := o.now().UTC()
	job := &model.Job{
		ID:        o.newID(),
		Type:      jobType,
		State:     model.StateQueued,
		Stage:     model.Stages(jobType)[0],
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.enqueue(ctx, job); err != nil {
		return nil, err
	}

	metrics.RecordJobSubmitted(string(jobType))
	o.logger.Info(ctx, "job submitted",
		logger.JobID(job.ID),
		logger.String("type", string(jobType)),
		logger.Int("queue_len", o.queue.Len(ctx)))
	return job.Clone(), nil
}

// enqueue appends job to the queue and records it. A full queue leaves no
// record behind.
func (o *Orchestrator) enqueue(ctx context.Context, job *model.Job) error {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()

	if err := o.queue.Enqueue(ctx, job.ID); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	if err := o.store.Save(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// Get returns the job with id.
func (o *Orchestrator) Get(ctx context.Context, id string) (*model.Job, error) {
	job, err := o.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return job, err
}

// List returns jobs matching filter, oldest first.
func (o *Orchestrator) List(ctx context.Context, filter repository.Filter) ([]*model.Job, error) {
	return o.store.List(ctx, filter)
}

// Active returns the id of the running job, or "".
func (o *Orchestrator) Active() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

// Recover puts persisted QUEUED jobs back on the queue in creation order
// and fails RUNNING jobs this process is not running. It returns the
// number of jobs enqueued.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	o.advanceMu.Lock()
	defer o.advanceMu.Unlock()

	running, err := o.store.List(ctx, repository.Filter{State: model.StateRunning})
	if err != nil {
		return 0, err
	}
	active := o.Active()
	for _, job := range running {
		if job.ID == active {
			continue
		}
		o.finishFailed(ctx, job, job.Stage, errors.New("interrupted by restart"))
	}

	queued, err := o.store.List(ctx, repository.Filter{State: model.StateQueued})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range queued {
		err := o.queue.Enqueue(ctx, job.ID)
		switch {
		case err == nil:
			n++
		case errors.Is(err, queue.ErrDuplicate):
		default:
			return n, fmt.Errorf("re-enqueue %s: %w", job.ID, err)
		}
	}
	if n > 0 || len(running) > 0 {
		o.logger.Info(ctx, "recovered jobs", logger.Int("requeued", n), logger.Int("running", len(running)))
	}
	return n, nil
}

// GetStats returns queue and job counters for monitoring.
func (o *Orchestrator) GetStats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"active_job":   o.Active(),
		"queue_length": o.queue.Len(ctx),
		"queue":        o.queue.Snapshot(ctx),
	}

	counts, err := o.store.Count(ctx)
	if err != nil {
		o.logger.Warn(ctx, "failed to count jobs", logger.Error(err))
		return stats
	}
	byState := make(map[string]int, len(counts))
	total := 0
	for _, s := range []model.JobState{model.StateQueued, model.StateRunning, model.StateDone, model.StateFailed} {
		byState[string(s)] = counts[s]
		total += counts[s]
	}
	stats["jobs"] = byState
	stats["total_jobs"] = total

	metrics.UpdateJobsByState(byState)
	return stats
}

// Close closes the queue and the store.
func (o *Orchestrator) Close() error {
	qErr := o.queue.Close()
	sErr := o.store.Close()
	return errors.Join(qErr, sErr)
}
