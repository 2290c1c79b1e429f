package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/domain/ranking"
	"github.com/okian/vodcut/internal/domain/segment"
	"github.com/okian/vodcut/internal/domain/spike"
	"github.com/okian/vodcut/internal/domain/types"
	"github.com/okian/vodcut/pkg/logger"
	"github.com/okian/vodcut/pkg/metrics"
)

const noHighlightsWarning = "no highlights selected"

// runState carries stage outputs between advances of one job.
type runState struct {
	asset        model.VODAsset
	vodDurationS float64
	events       []model.ChatEvent
	spikes       []model.SpikeWindow
	segments     []model.Segment
	clips        []model.Clip

	selection ranking.Result
	entries   []types.Entry
	outputs   []string
	montage   string
	warnings  []string

	result *model.Result
}

var errMissingAdapter = errors.New("adapter not configured")

func (o *Orchestrator) execute(ctx context.Context, job *model.Job, run *runState, stage model.Stage) error {
	switch stage {
	case model.StageDownload:
		return o.download(ctx, job, run)
	case model.StageImportChat:
		return o.importChat(ctx, job, run)
	case model.StageDetectSpikes:
		return o.detectSpikes(ctx, run)
	case model.StageGenerateSegments:
		return o.generateSegments(run)
	case model.StageDiscoverClips:
		return o.discoverClips(ctx, job, run)
	case model.StageScore:
		return o.score(job, run)
	case model.StageSelect:
		return o.selectCandidates(ctx, job, run)
	case model.StageCut:
		return o.cut(ctx, job, run)
	case model.StageDownloadClips:
		return o.downloadClips(ctx, job, run)
	case model.StageCompile:
		return o.compile(ctx, job, run)
	case model.StageFinalize:
		return o.finalize(ctx, job, run)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

func (o *Orchestrator) download(ctx context.Context, job *model.Job, run *runState) error {
	if o.downloader == nil {
		return model.WrapKind("download", model.ErrDownload, errMissingAdapter)
	}
	asset, err := o.downloader.Fetch(ctx, job.Params.SourceRef, job.Params.OutputDir)
	if err != nil {
		return ensureKind("download", model.ErrDownload, err)
	}
	run.asset = asset
	run.vodDurationS = asset.DurationS

	if run.vodDurationS <= 0 && o.prober != nil {
		d, err := o.prober.Duration(ctx, asset.VideoPath)
		if err != nil {
			o.logger.Warn(ctx, "probe failed, duration will come from chat",
				logger.JobID(job.ID), logger.Error(err))
		} else {
			run.vodDurationS = d
		}
	}
	return nil
}

// chatRef returns the chat log location: the explicit chat_ref, else
// chat.jsonl in the output directory.
func chatRef(p model.JobParams) string {
	if ref := strings.TrimSpace(p.ChatRef); ref != "" {
		return ref
	}
	return filepath.Join(p.OutputDir, chatFile)
}

func (o *Orchestrator) importChat(ctx context.Context, job *model.Job, run *runState) error {
	if o.chat == nil {
		return model.WrapKind("import_chat", model.ErrChatImport, errMissingAdapter)
	}
	events, err := o.chat.Load(ctx, chatRef(job.Params))
	if err != nil {
		return ensureKind("import_chat", model.ErrChatImport, err)
	}
	run.events = events
	return nil
}

// eventsWithin drops events past the end of the video. With no known
// duration the events are returned unchanged.
func eventsWithin(events []model.ChatEvent, durationS float64) ([]model.ChatEvent, int) {
	if durationS <= 0 {
		return events, 0
	}
	kept := make([]model.ChatEvent, 0, len(events))
	for _, e := range events {
		if e.TimestampS <= durationS {
			kept = append(kept, e)
		}
	}
	return kept, len(events) - len(kept)
}

func (o *Orchestrator) detectSpikes(ctx context.Context, run *runState) error {
	events, dropped := eventsWithin(run.events, run.vodDurationS)
	if dropped > 0 {
		o.logger.Warn(ctx, "ignoring chat events past the end of the video",
			logger.Int("dropped", dropped),
			logger.Float64("duration_s", run.vodDurationS))
		run.warnings = append(run.warnings,
			fmt.Sprintf("%d chat events past %.1fs ignored", dropped, run.vodDurationS))
		run.events = events
	}
	spikes, err := spike.Detect(run.events, spike.Options{
		BucketWidthS: o.bucketWidthS,
		Policy:       o.policy,
		VODRelative:  true,
	})
	if err != nil {
		return err
	}
	run.spikes = spikes
	metrics.RecordSpikesDetected(len(spikes))
	o.logger.Debug(ctx, "spikes detected",
		logger.Int("events", len(run.events)),
		logger.Int("spikes", len(spikes)),
		logger.String("policy", o.policy.String()))
	return nil
}

// vodDuration falls back to the chat log when the source reported none.
func (o *Orchestrator) vodDuration(run *runState) float64 {
	if run.vodDurationS > 0 {
		return run.vodDurationS
	}
	last := 0.0
	if n := len(run.events); n > 0 {
		last = run.events[n-1].TimestampS
	}
	return math.Max(last+o.bucketWidthS, o.bucketWidthS)
}

func (o *Orchestrator) generateSegments(run *runState) error {
	segs, err := segment.Generate(run.spikes, segment.Options{
		MarginS:      o.marginS,
		MergeGapS:    o.mergeGapS,
		VODDurationS: o.vodDuration(run),
	})
	if err != nil {
		return err
	}
	segment.AttachContext(segs, run.events, o.contextWindowS)
	run.segments = segs
	metrics.RecordSegmentsGenerated(len(segs))
	return nil
}

func (o *Orchestrator) discoverClips(ctx context.Context, job *model.Job, run *runState) error {
	if o.clips == nil {
		return model.WrapKind("discover_clips", model.ErrDiscovery, errMissingAdapter)
	}
	var pool []model.Clip
	for _, s := range job.Params.Streamers {
		clips, err := o.clips.Discover(ctx, job.Params.CatalogDir, s)
		if err != nil {
			return ensureKind("discover_clips", model.ErrDiscovery, err)
		}
		pool = append(pool, clips...)
	}
	run.clips = model.DedupeClips(pool)
	o.logger.Debug(ctx, "clips discovered", logger.JobID(job.ID), logger.Int("clips", len(run.clips)))
	return nil
}

func (o *Orchestrator) score(job *model.Job, run *runState) error {
	switch job.Type {
	case model.JobTypeClipMontage:
		run.clips = o.scorer.ScoreClips(run.clips, job.Params.Keywords)
		metrics.RecordCandidatesScored("clip", len(run.clips))
	default:
		run.segments = o.scorer.ScoreSegments(run.segments, job.Params.Keywords)
		metrics.RecordCandidatesScored("segment", len(run.segments))
	}
	return nil
}

func (o *Orchestrator) selectCandidates(ctx context.Context, job *model.Job, run *runState) error {
	opts := ranking.Options{MinS: o.minS, MaxS: o.maxS}
	var (
		cands []ranking.Candidate
		kind  string
	)
	switch job.Type {
	case model.JobTypeClipMontage:
		kind = "clip"
		cands = ranking.Clips(run.clips)
		opts.GroupCap = o.clipGroupCap
		opts.Overlap = ranking.NeverOverlap
	default:
		kind = "segment"
		cands = ranking.Segments(run.segments)
		opts.GroupCap = o.segmentGroupCap
		if job.Params.MaxSegments > 0 {
			opts.GroupCap = job.Params.MaxSegments
		}
		opts.Overlap = ranking.TimelineOverlap
	}

	res, err := o.selector.Select(ctx, cands, opts)
	if err != nil {
		return err
	}
	run.selection = res
	run.entries = ranking.Entries(res)
	metrics.RecordSelection(kind, len(res.Items), res.TotalDurationS, res.UnderTarget)

	switch {
	case len(res.Items) == 0:
		run.warnings = append(run.warnings, noHighlightsWarning)
	case res.UnderTarget:
		run.warnings = append(run.warnings, fmt.Sprintf("%v: %.1fs selected, minimum is %.1fs",
			model.ErrUnderTarget, res.TotalDurationS, o.minS))
	}
	return nil
}

func (o *Orchestrator) selectedSegments(run *runState) []model.Segment {
	out := make([]model.Segment, len(run.selection.Indices))
	for i, idx := range run.selection.Indices {
		out[i] = run.segments[idx]
	}
	return out
}

func (o *Orchestrator) selectedClips(run *runState) []model.Clip {
	out := make([]model.Clip, len(run.selection.Indices))
	for i, idx := range run.selection.Indices {
		out[i] = run.clips[idx]
	}
	return out
}

func (o *Orchestrator) cut(ctx context.Context, job *model.Job, run *runState) error {
	segs := o.selectedSegments(run)
	if len(segs) == 0 {
		return nil
	}
	if o.cutter == nil {
		return model.WrapKind("cut", model.ErrEncoding, errMissingAdapter)
	}
	paths, err := o.cutter.Cut(ctx, run.asset.VideoPath, segs, filepath.Join(job.Params.OutputDir, segmentsDir))
	if err != nil {
		return ensureKind("cut", model.ErrEncoding, err)
	}
	if len(paths) < len(segs) {
		o.logger.Warn(ctx, "some segments were not cut",
			logger.JobID(job.ID), logger.Int("written", len(paths)), logger.Int("selected", len(segs)))
		run.warnings = append(run.warnings,
			fmt.Sprintf("%d of %d selected segments cut", len(paths), len(segs)))
	}
	run.outputs = paths
	return nil
}

func (o *Orchestrator) downloadClips(ctx context.Context, job *model.Job, run *runState) error {
	clips := o.selectedClips(run)
	if len(clips) == 0 {
		return nil
	}
	if o.clipFetcher == nil {
		return model.WrapKind("download_clips", model.ErrDownload, errMissingAdapter)
	}
	dir := filepath.Join(job.Params.OutputDir, clipsDir)
	paths := make([]string, 0, len(clips))
	for _, c := range clips {
		p, err := o.clipFetcher.FetchClip(ctx, c, dir)
		if err != nil {
			return ensureKind("download_clips", model.ErrDownload, err)
		}
		paths = append(paths, p)
	}
	run.outputs = paths
	return nil
}

func (o *Orchestrator) compile(ctx context.Context, job *model.Job, run *runState) error {
	if len(run.outputs) == 0 {
		return nil
	}
	if o.compiler == nil {
		return model.WrapKind("compile", model.ErrEncoding, errMissingAdapter)
	}
	path, err := o.compiler.Compile(ctx, run.outputs, filepath.Join(job.Params.OutputDir, montageFile))
	if err != nil {
		return ensureKind("compile", model.ErrEncoding, err)
	}
	run.montage = path
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, job *model.Job, run *runState) error {
	res := &model.Result{
		OutputPaths:  append([]string{}, run.outputs...),
		MontagePath:  run.montage,
		SegmentCount: len(run.outputs),
		DurationS:    run.selection.TotalDurationS,
		UnderTarget:  run.selection.UnderTarget,
		Warnings:     run.warnings,
		Selected:     run.entries,
	}
	if o.manifest != nil {
		path, err := o.manifest.Write(ctx, job.Params.OutputDir, job, res)
		if err != nil {
			return ensureKind("finalize", model.ErrEncoding, err)
		}
		res.ManifestPath = path
	}
	run.result = res
	return nil
}

// ensureKind keeps an adapter's own error kind and adds kind otherwise.
func ensureKind(op string, kind, err error) error {
	if model.KindName(err) != "internal_error" {
		return err
	}
	return model.WrapKind(op, kind, err)
}
