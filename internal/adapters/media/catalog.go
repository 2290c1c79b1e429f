package media

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/vodcut/internal/domain/model"
)

// CatalogClipSource reads clip metadata from <dir>/<streamer>.json, a
// JSON array of clips. Streamer names are matched lowercased.
type CatalogClipSource struct {
	dir string
}

// NewCatalogClipSource returns a source rooted at dir.
func NewCatalogClipSource(dir string) *CatalogClipSource {
	return &CatalogClipSource{dir: dir}
}

// Discover returns the streamer's clips with Streamer filled in and
// duplicates collapsed. dir overrides the configured catalog when set.
func (c *CatalogClipSource) Discover(ctx context.Context, dir, streamer string) ([]model.Clip, error) {
	const op = "media.discover"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = c.dir
	}
	if dir == "" {
		return nil, model.Errorf(op, model.ErrDiscovery, "no catalog directory configured")
	}
	name := strings.ToLower(strings.TrimSpace(streamer))
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, model.Errorf(op, model.ErrDiscovery, "invalid streamer name %q", streamer)
	}

	raw, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, model.Errorf(op, model.ErrDiscovery, "no catalog for streamer %q", streamer)
	}
	if err != nil {
		return nil, model.WrapKind(op, model.ErrDiscovery, err)
	}

	var clips []model.Clip
	if err := json.Unmarshal(raw, &clips); err != nil {
		return nil, model.Errorf(op, model.ErrDiscovery, "catalog for %q: %w", streamer, err)
	}
	for i := range clips {
		if clips[i].Streamer == "" {
			clips[i].Streamer = streamer
		}
	}
	return model.DedupeClips(clips), nil
}
