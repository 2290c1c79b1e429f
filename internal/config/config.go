// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Translate to domain options here so callers never parse strings.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/vodcut/internal/domain/scoring"
	"github.com/okian/vodcut/internal/domain/spike"
)

// Threshold modes.
const (
	ThresholdAbsolute    = "absolute"
	ThresholdStatistical = "statistical"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" yaml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format" yaml:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" yaml:"addr"`

	// Store selects the job store: memory or sqlite.
	Store  string `koanf:"store" yaml:"store"`
	DBPath string `koanf:"db_path" yaml:"db_path"`

	// QueueSize bounds the job queue. 0 keeps the queue default.
	QueueSize int `koanf:"queue_size" yaml:"queue_size"`

	// AutoAdvance makes serve drive queued jobs itself.
	AutoAdvance       bool `koanf:"auto_advance" yaml:"auto_advance"`
	AdvanceIntervalMS int  `koanf:"advance_interval_ms" yaml:"advance_interval_ms"`

	BucketWidthS  float64 `koanf:"bucket_width_s" yaml:"bucket_width_s"`
	ThresholdMode string  `koanf:"threshold_mode" yaml:"threshold_mode"`
	MinCount      int     `koanf:"min_count" yaml:"min_count"`
	// StatK and StatWindow configure the statistical threshold mean + k*stddev.
	StatK      float64 `koanf:"stat_k" yaml:"stat_k"`
	StatWindow int     `koanf:"stat_window" yaml:"stat_window"`

	MarginS        float64 `koanf:"margin_s" yaml:"margin_s"`
	MergeGapS      float64 `koanf:"merge_gap_s" yaml:"merge_gap_s"`
	ContextWindowS float64 `koanf:"context_window_s" yaml:"context_window_s"`

	TargetMinS      float64 `koanf:"target_min_s" yaml:"target_min_s"`
	TargetMaxS      float64 `koanf:"target_max_s" yaml:"target_max_s"`
	ClipGroupCap    int     `koanf:"clip_group_cap" yaml:"clip_group_cap"`
	SegmentGroupCap int     `koanf:"segment_group_cap" yaml:"segment_group_cap"`

	HalfLifeDays   float64            `koanf:"half_life_days" yaml:"half_life_days"`
	SegmentWeights scoring.Weights    `koanf:"segment_weights" yaml:"segment_weights"`
	ClipWeights    scoring.Weights    `koanf:"clip_weights" yaml:"clip_weights"`
	SegmentLength  scoring.LengthBand `koanf:"segment_length" yaml:"segment_length"`
	ClipLength     scoring.LengthBand `koanf:"clip_length" yaml:"clip_length"`
	// Keywords are added to every job's keywords.
	Keywords []string `koanf:"keywords" yaml:"keywords"`

	FFmpegPath  string `koanf:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath string `koanf:"ffprobe_path" yaml:"ffprobe_path"`
	YTDLPPath   string `koanf:"ytdlp_path" yaml:"ytdlp_path"`
	MaxHeight   int    `koanf:"max_height" yaml:"max_height"`
	CatalogDir  string `koanf:"catalog_dir" yaml:"catalog_dir"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		Store:             StoreMemory,
		DBPath:            "data/vodcut.db",
		QueueSize:         1_000,
		AutoAdvance:       true,
		AdvanceIntervalMS: 500,
		BucketWidthS:      30,
		ThresholdMode:     ThresholdAbsolute,
		MinCount:          5,
		StatK:             2,
		StatWindow:        10,
		MarginS:           20,
		MergeGapS:         0,
		ContextWindowS:    10,
		TargetMinS:        480,
		TargetMaxS:        600,
		ClipGroupCap:      10,
		SegmentGroupCap:   0,
		HalfLifeDays:      7,
		SegmentWeights:    scoring.DefaultSegmentWeights(),
		ClipWeights:       scoring.DefaultClipWeights(),
		SegmentLength:     scoring.LengthBand{MinS: 20, MaxS: 90, ToleranceS: 40},
		ClipLength:        scoring.LengthBand{MinS: 15, MaxS: 60, ToleranceS: 30},
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		YTDLPPath:         "yt-dlp",
		MaxHeight:         480,
		CatalogDir:        "catalog",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.Store != StoreMemory && c.Store != StoreSQLite:
		return fmt.Errorf("%w: store must be memory or sqlite, got %q", ErrInvalidConfig, c.Store)
	case c.Store == StoreSQLite && strings.TrimSpace(c.DBPath) == "":
		return fmt.Errorf("%w: db_path is required for sqlite", ErrInvalidConfig)
	case c.QueueSize < 0:
		return fmt.Errorf("%w: queue_size must be >= 0", ErrInvalidConfig)
	case c.AdvanceIntervalMS <= 0:
		return fmt.Errorf("%w: advance_interval_ms must be > 0", ErrInvalidConfig)
	case c.BucketWidthS <= 0:
		return fmt.Errorf("%w: bucket_width_s must be > 0", ErrInvalidConfig)
	case c.MarginS < 0 || c.MergeGapS < 0 || c.ContextWindowS < 0:
		return fmt.Errorf("%w: margin_s, merge_gap_s and context_window_s must be >= 0", ErrInvalidConfig)
	case c.TargetMaxS <= 0:
		return fmt.Errorf("%w: target_max_s must be > 0", ErrInvalidConfig)
	case c.TargetMinS < 0 || c.TargetMinS > c.TargetMaxS:
		return fmt.Errorf("%w: target_min_s must be in [0, target_max_s]", ErrInvalidConfig)
	case c.ClipGroupCap < 0 || c.SegmentGroupCap < 0:
		return fmt.Errorf("%w: group caps must be >= 0", ErrInvalidConfig)
	case c.HalfLifeDays <= 0:
		return fmt.Errorf("%w: half_life_days must be > 0", ErrInvalidConfig)
	}
	if err := checkWeights("segment_weights", c.SegmentWeights); err != nil {
		return err
	}
	if err := checkWeights("clip_weights", c.ClipWeights); err != nil {
		return err
	}
	for i, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("%w: keywords[%d] is blank", ErrInvalidConfig, i)
		}
	}
	if _, err := c.ThresholdPolicy(); err != nil {
		return err
	}
	return nil
}

func checkWeights(name string, w scoring.Weights) error {
	for _, v := range []float64{w.Popularity, w.Recency, w.Length, w.Signal, w.Keyword} {
		if v < 0 {
			return fmt.Errorf("%w: %s must be non-negative", ErrInvalidConfig, name)
		}
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("%w: %s must not all be zero", ErrInvalidConfig, name)
	}
	return nil
}

// ThresholdPolicy builds the spike policy selected by ThresholdMode.
func (c *Config) ThresholdPolicy() (spike.Policy, error) {
	var p spike.Policy
	switch strings.ToLower(strings.TrimSpace(c.ThresholdMode)) {
	case ThresholdAbsolute:
		p = spike.Absolute{MinCount: c.MinCount}
	case ThresholdStatistical:
		p = spike.Statistical{K: c.StatK, Window: c.StatWindow, MinCount: c.MinCount}
	default:
		return nil, fmt.Errorf("%w: unknown threshold_mode %q", ErrInvalidConfig, c.ThresholdMode)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return p, nil
}

// ScoringModel builds the scoring model from weights, bands and keywords.
func (c *Config) ScoringModel() *scoring.Model {
	return scoring.New(
		scoring.WithSegmentWeights(c.SegmentWeights),
		scoring.WithClipWeights(c.ClipWeights),
		scoring.WithHalfLife(c.HalfLifeDays),
		scoring.WithSegmentLength(c.SegmentLength),
		scoring.WithClipLength(c.ClipLength),
		scoring.WithKeywords(c.Keywords),
	)
}

// AdvanceInterval is the auto-advance tick.
func (c *Config) AdvanceInterval() time.Duration {
	return time.Duration(c.AdvanceIntervalMS) * time.Millisecond
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
