package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/domain/types"
)

// ManifestFile is the file name written into a job's output directory.
const ManifestFile = "manifest.yaml"

// Manifest describes a finished job's artifacts.
type Manifest struct {
	JobID        string          `yaml:"job_id"`
	Type         model.JobType   `yaml:"type"`
	Source       string          `yaml:"source,omitempty"`
	Streamers    []string        `yaml:"streamers,omitempty"`
	Keywords     []string        `yaml:"keywords,omitempty"`
	GeneratedAt  time.Time       `yaml:"generated_at"`
	MontagePath  string          `yaml:"montage_path,omitempty"`
	OutputPaths  []string        `yaml:"output_paths"`
	DurationS    float64         `yaml:"duration_s"`
	UnderTarget  bool            `yaml:"under_target"`
	Warnings     []string        `yaml:"warnings,omitempty"`
	Selected     []types.Entry   `yaml:"selected"`
	SegmentCount int             `yaml:"segment_count"`
	Params       model.JobParams `yaml:"params"`
}

// YAMLManifestWriter writes Manifest files as YAML.
type YAMLManifestWriter struct {
	now func() time.Time
}

// NewYAMLManifestWriter returns a writer stamping manifests with the wall clock.
func NewYAMLManifestWriter() *YAMLManifestWriter {
	return &YAMLManifestWriter{now: time.Now}
}

// Write renders the job and result into <dir>/manifest.yaml and returns the path.
func (w *YAMLManifestWriter) Write(ctx context.Context, dir string, job *model.Job, res *model.Result) (string, error) {
	const op = "media.write_manifest"
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if job == nil || res == nil {
		return "", model.Errorf(op, model.ErrEncoding, "job and result are required")
	}
	m := Manifest{
		JobID:        job.ID,
		Type:         job.Type,
		Source:       job.Params.SourceRef,
		Streamers:    job.Params.Streamers,
		Keywords:     job.Params.Keywords,
		GeneratedAt:  w.now().UTC(),
		MontagePath:  res.MontagePath,
		OutputPaths:  res.OutputPaths,
		DurationS:    res.DurationS,
		UnderTarget:  res.UnderTarget,
		Warnings:     res.Warnings,
		Selected:     res.Selected,
		SegmentCount: res.SegmentCount,
		Params:       job.Params,
	}
	out, err := yaml.Marshal(&m)
	if err != nil {
		return "", model.WrapKind(op, model.ErrEncoding, fmt.Errorf("marshal manifest: %w", err))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", model.WrapKind(op, model.ErrEncoding, err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", model.WrapKind(op, model.ErrEncoding, err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by YAMLManifestWriter.
func ReadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
