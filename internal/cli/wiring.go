package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/okian/vodcut/internal/adapters/media"
	"github.com/okian/vodcut/internal/adapters/mq/queue"
	"github.com/okian/vodcut/internal/adapters/repository"
	service "github.com/okian/vodcut/internal/app"
	"github.com/okian/vodcut/internal/config"
	"github.com/okian/vodcut/pkg/logger"
)

// newStore opens the configured job store.
func newStore(ctx context.Context, cfg *config.Config, l logger.Logger) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := repository.NewSQLiteStore(ctx, cfg.DBPath, repository.WithLogger(l.Named("store")))
		if err != nil {
			return nil, fmt.Errorf("open job store: %w", err)
		}
		return s, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

// mediaOptions configures the external tool adapters from cfg.
func mediaOptions(cfg *config.Config, l logger.Logger) []media.Option {
	return []media.Option{
		media.WithLogger(l.Named("media")),
		media.WithFFmpeg(cfg.FFmpegPath, cfg.FFprobePath),
		media.WithYTDLP(cfg.YTDLPPath),
		media.WithMaxHeight(strconv.Itoa(cfg.MaxHeight)),
	}
}

// buildOrchestrator wires the store, queue, adapters and pipeline
// parameters. Callers Close the orchestrator when done.
func buildOrchestrator(ctx context.Context, cfg *config.Config, extra ...service.Option) (*service.Orchestrator, error) {
	l := logger.Get()

	policy, err := cfg.ThresholdPolicy()
	if err != nil {
		return nil, err
	}
	store, err := newStore(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))

	mopts := mediaOptions(cfg, l)
	downloader := media.NewDownloader(mopts...)
	ffmpeg := media.NewFFmpeg(mopts...)

	opts := []service.Option{
		service.WithLogger(l.Named("orchestrator")),
		service.WithStore(store),
		service.WithQueue(q),
		service.WithDownloader(downloader),
		service.WithClipFetcher(downloader),
		service.WithChatImporter(media.NewFileChatImporter()),
		service.WithCutter(ffmpeg),
		service.WithCompiler(ffmpeg),
		service.WithProber(ffmpeg),
		service.WithClipSource(media.NewCatalogClipSource(cfg.CatalogDir)),
		service.WithManifestWriter(media.NewYAMLManifestWriter()),
		service.WithScoringModel(cfg.ScoringModel()),
		service.WithSpikeDetection(cfg.BucketWidthS, policy),
		service.WithSegmentation(cfg.MarginS, cfg.MergeGapS, cfg.ContextWindowS),
		service.WithTargets(cfg.TargetMinS, cfg.TargetMaxS),
		service.WithGroupCaps(cfg.ClipGroupCap, cfg.SegmentGroupCap),
	}
	return service.New(append(opts, extra...)...), nil
}
