package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/pkg/logger"
)

// MinCutSeconds is the shortest segment Cut will write.
const MinCutSeconds = 1.0

// FFmpeg cuts segments, concatenates montages and probes durations with
// the ffmpeg and ffprobe binaries. Streams are copied, never re-encoded.
type FFmpeg struct {
	tc Toolchain
}

// NewFFmpeg creates an FFmpeg adapter.
func NewFFmpeg(opts ...Option) *FFmpeg {
	tc := newToolchain(opts)
	tc.log = tc.log.Named("ffmpeg")
	return &FFmpeg{tc: tc}
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	base := []string{"-y", "-hide_banner", "-loglevel", "error"}
	_, err := f.tc.runner.Run(ctx, f.tc.ffmpegPath, append(base, args...)...)
	return err
}

// Cut writes each segment of vodPath to outputDir as
// segment_<index>_<start>_<end>.mp4 and returns the written paths in
// input order. Segments are clamped to the probed video duration when it
// is available. Segments that are shorter than MinCutSeconds after
// clamping are skipped.
func (f *FFmpeg) Cut(ctx context.Context, vodPath string, segments []model.Segment, outputDir string) ([]string, error) {
	const op = "media.cut"
	if !strings.HasSuffix(strings.ToLower(vodPath), ".mp4") {
		return nil, model.Errorf(op, model.ErrEncoding, "vod path must end with .mp4: %s", vodPath)
	}
	if _, err := os.Stat(vodPath); err != nil {
		return nil, model.Errorf(op, model.ErrEncoding, "vod path does not exist: %s", vodPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, model.WrapKind(op, model.ErrEncoding, err)
	}

	limit, err := f.Duration(ctx, vodPath)
	if err != nil {
		f.tc.log.Debug(ctx, "cutting without a known duration", logger.Error(err))
		limit = math.Inf(1)
	}

	out := make([]string, 0, len(segments))
	for i, s := range segments {
		s.EndS = math.Min(s.EndS, limit)
		d := s.DurationS()
		if d < MinCutSeconds {
			f.tc.log.Debug(ctx, "skipping short segment", logger.Int("index", i), logger.Float64("duration_s", d))
			continue
		}
		name := fmt.Sprintf("segment_%03d_%d_%d.mp4", i, int(s.StartS), int(s.EndS))
		path := filepath.Join(outputDir, name)
		err = f.run(ctx,
			"-ss", formatSeconds(s.StartS),
			"-t", formatSeconds(d),
			"-i", vodPath,
			"-c", "copy",
			path,
		)
		if err != nil {
			return out, model.Errorf(op, model.ErrEncoding, "cut segment %d: %w", i, err)
		}
		out = append(out, path)
	}

	f.tc.log.Info(ctx, "cut segments", logger.Int("written", len(out)), logger.Int("requested", len(segments)))
	return out, nil
}

// Compile concatenates inputs, in order, into outputPath. Missing inputs
// are skipped; it fails when none exist.
func (f *FFmpeg) Compile(ctx context.Context, inputs []string, outputPath string) (string, error) {
	const op = "media.compile"
	var existing []string
	for _, in := range inputs {
		if _, err := os.Stat(in); err == nil {
			existing = append(existing, in)
		}
	}
	if len(existing) == 0 {
		return "", model.Errorf(op, model.ErrEncoding, "no input files found among %d paths", len(inputs))
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", model.WrapKind(op, model.ErrEncoding, err)
	}

	list, err := writeConcatList(existing)
	if err != nil {
		return "", model.WrapKind(op, model.ErrEncoding, fmt.Errorf("create concat list: %w", err))
	}
	defer os.Remove(list)

	f.tc.log.Info(ctx, "concatenating", logger.Int("inputs", len(existing)), logger.String("output", outputPath))
	if err := f.run(ctx, "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", outputPath); err != nil {
		return "", model.WrapKind(op, model.ErrEncoding, err)
	}
	return outputPath, nil
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration of path in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	const op = "media.probe"
	raw, err := f.tc.runner.Run(ctx, f.tc.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	if err != nil {
		return 0, model.WrapKind(op, model.ErrEncoding, err)
	}
	var probe probeResult
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, model.WrapKind(op, model.ErrEncoding, fmt.Errorf("parse ffprobe output: %w", err))
	}
	d, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || d <= 0 {
		return 0, model.Errorf(op, model.ErrEncoding, "no duration reported for %s", path)
	}
	return d, nil
}

var absPath = filepath.Abs

// writeConcatList writes an ffmpeg concat list to a temp file and returns
// its path. The file is removed when writing fails.
func writeConcatList(inputs []string) (path string, err error) {
	tmp, err := os.CreateTemp("", "vodcut-concat-*.txt")
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(tmp.Name())
			path = ""
		}
	}()
	for _, in := range inputs {
		p, err := absPath(in)
		if err != nil {
			return "", err
		}
		// concat demuxer quoting: ' becomes '\''
		p = strings.ReplaceAll(p, "'", `'\''`)
		if _, err := fmt.Fprintf(tmp, "file '%s'\n", p); err != nil {
			return "", err
		}
	}
	return tmp.Name(), nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
