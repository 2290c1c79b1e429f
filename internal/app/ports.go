package service

import (
	"context"

	"github.com/okian/vodcut/internal/domain/model"
)

// Downloader fetches the source VOD into a job's output directory.
type Downloader interface {
	Fetch(ctx context.Context, sourceRef, outputDir string) (model.VODAsset, error)
}

// ClipFetcher fetches one catalog clip into a directory.
type ClipFetcher interface {
	FetchClip(ctx context.Context, clip model.Clip, outputDir string) (string, error)
}

// ChatImporter loads chat events ordered by timestamp.
type ChatImporter interface {
	Load(ctx context.Context, ref string) ([]model.ChatEvent, error)
}

// Cutter writes one file per segment. Segments are within the source bounds.
type Cutter interface {
	Cut(ctx context.Context, vodPath string, segments []model.Segment, outputDir string) ([]string, error)
}

// MontageCompiler concatenates clips into one file.
type MontageCompiler interface {
	Compile(ctx context.Context, inputs []string, outputPath string) (string, error)
}

// Prober reports media duration in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// ClipSource lists a streamer's clips. dir overrides the default catalog.
type ClipSource interface {
	Discover(ctx context.Context, dir, streamer string) ([]model.Clip, error)
}

// ManifestWriter records a finished job next to its artifacts.
type ManifestWriter interface {
	Write(ctx context.Context, dir string, job *model.Job, res *model.Result) (string, error)
}
