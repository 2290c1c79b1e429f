package model

import (
	"slices"
	"strings"
	"time"

	"github.com/okian/vodcut/internal/domain/types"
)

// JobType selects the stage pipeline a job runs.
type JobType string

const (
	JobTypeVODHighlights JobType = "vod_highlights"
	JobTypeClipMontage   JobType = "clip_montage"
)

// Valid reports whether t names a known pipeline.
func (t JobType) Valid() bool {
	return t == JobTypeVODHighlights || t == JobTypeClipMontage
}

// JobState is the lifecycle state of a job.
type JobState string

const (
	StateQueued  JobState = "QUEUED"
	StateRunning JobState = "RUNNING"
	StateDone    JobState = "DONE"
	StateFailed  JobState = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s JobState) Terminal() bool { return s == StateDone || s == StateFailed }

// Stage names a single unit of work executed by one advance.
type Stage string

const (
	StageDownload         Stage = "download"
	StageImportChat       Stage = "import_chat"
	StageDetectSpikes     Stage = "detect_spikes"
	StageGenerateSegments Stage = "generate_segments"
	StageDiscoverClips    Stage = "discover_clips"
	StageScore            Stage = "score"
	StageSelect           Stage = "select"
	StageCut              Stage = "cut"
	StageDownloadClips    Stage = "download_clips"
	StageCompile          Stage = "compile"
	StageFinalize         Stage = "finalize"
)

var pipelines = map[JobType][]Stage{ //nolint:gochecknoglobals // static stage tables
	JobTypeVODHighlights: {
		StageDownload, StageImportChat, StageDetectSpikes, StageGenerateSegments,
		StageScore, StageSelect, StageCut, StageCompile, StageFinalize,
	},
	JobTypeClipMontage: {
		StageDiscoverClips, StageScore, StageSelect, StageDownloadClips,
		StageCompile, StageFinalize,
	},
}

// Stages returns the fixed stage order for t.
func Stages(t JobType) []Stage {
	return slices.Clone(pipelines[t])
}

// JobParams are the caller-supplied inputs of a job.
type JobParams struct {
	SourceRef   string   `json:"source_ref,omitempty" yaml:"source_ref,omitempty"`
	ChatRef     string   `json:"chat_ref,omitempty" yaml:"chat_ref,omitempty"`
	OutputDir   string   `json:"output_dir" yaml:"output_dir"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	MaxSegments int      `json:"max_segments,omitempty" yaml:"max_segments,omitempty"`
	Streamers   []string `json:"streamers,omitempty" yaml:"streamers,omitempty"`
	CatalogDir  string   `json:"catalog_dir,omitempty" yaml:"catalog_dir,omitempty"`
}

// Validate checks params for the given job type.
func (p JobParams) Validate(t JobType) error {
	const op = "model.validate_params"
	if !t.Valid() {
		return Errorf(op, ErrValidation, "unknown job type %q", t)
	}
	if strings.TrimSpace(p.OutputDir) == "" {
		return Errorf(op, ErrValidation, "output_dir is required")
	}
	for i, kw := range p.Keywords {
		if strings.TrimSpace(kw) == "" {
			return Errorf(op, ErrValidation, "keywords[%d] is blank", i)
		}
	}
	if p.MaxSegments < 0 {
		return Errorf(op, ErrValidation, "max_segments must be >= 0")
	}
	switch t {
	case JobTypeVODHighlights:
		if strings.TrimSpace(p.SourceRef) == "" {
			return Errorf(op, ErrValidation, "source_ref is required")
		}
	case JobTypeClipMontage:
		if len(p.Streamers) == 0 {
			return Errorf(op, ErrValidation, "at least one streamer is required")
		}
		for i, s := range p.Streamers {
			if strings.TrimSpace(s) == "" {
				return Errorf(op, ErrValidation, "streamers[%d] is blank", i)
			}
		}
	}
	return nil
}

// Result is recorded on a job that reached DONE.
type Result struct {
	OutputPaths  []string      `json:"output_paths" yaml:"output_paths"`
	MontagePath  string        `json:"montage_path,omitempty" yaml:"montage_path,omitempty"`
	ManifestPath string        `json:"manifest_path,omitempty" yaml:"manifest_path,omitempty"`
	SegmentCount int           `json:"segment_count" yaml:"segment_count"`
	DurationS    float64       `json:"duration_s" yaml:"duration_s"`
	UnderTarget  bool          `json:"under_target" yaml:"under_target"`
	Warnings     []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Selected     []types.Entry `json:"selected,omitempty" yaml:"selected,omitempty"`
}

// JobError is recorded on a job that reached FAILED.
type JobError struct {
	Stage   Stage  `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Job is the unit of work driven by the orchestrator.
type Job struct {
	ID         string     `json:"id"`
	Type       JobType    `json:"type"`
	State      JobState   `json:"state"`
	Stage      Stage      `json:"stage,omitempty"`
	Progress   float64    `json:"progress"`
	Params     JobParams  `json:"params"`
	Result     *Result    `json:"result,omitempty"`
	Error      *JobError  `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Params.Keywords = slices.Clone(j.Params.Keywords)
	c.Params.Streamers = slices.Clone(j.Params.Streamers)
	if j.Result != nil {
		r := *j.Result
		r.OutputPaths = slices.Clone(j.Result.OutputPaths)
		r.Warnings = slices.Clone(j.Result.Warnings)
		r.Selected = slices.Clone(j.Result.Selected)
		c.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
