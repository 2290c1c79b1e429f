package media

import (
	"net/http"

	"github.com/okian/vodcut/pkg/logger"
)

// Option configures the media adapters sharing a Toolchain.
type Option func(*Toolchain)

// Toolchain is the set of external tools and clients the adapters use.
type Toolchain struct {
	runner      Runner
	client      *http.Client
	log         logger.Logger
	ffmpegPath  string
	ffprobePath string
	ytdlpPath   string
	quality     string
}

func newToolchain(opts []Option) Toolchain {
	t := Toolchain{
		client:      http.DefaultClient,
		log:         logger.Discard(),
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		ytdlpPath:   "yt-dlp",
		quality:     "480",
	}
	for _, opt := range opts {
		opt(&t)
	}
	if t.runner == nil {
		t.runner = NewExecRunner(t.log)
	}
	return t
}

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(t *Toolchain) {
		if r != nil {
			t.runner = r
		}
	}
}

// WithHTTPClient sets the client used for direct downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Toolchain) {
		if c != nil {
			t.client = c
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Toolchain) {
		if l != nil {
			t.log = l
		}
	}
}

// WithFFmpeg sets the ffmpeg and ffprobe binaries.
func WithFFmpeg(ffmpeg, ffprobe string) Option {
	return func(t *Toolchain) {
		if ffmpeg != "" {
			t.ffmpegPath = ffmpeg
		}
		if ffprobe != "" {
			t.ffprobePath = ffprobe
		}
	}
}

// WithYTDLP sets the yt-dlp binary.
func WithYTDLP(path string) Option {
	return func(t *Toolchain) {
		if path != "" {
			t.ytdlpPath = path
		}
	}
}

// WithMaxHeight caps the vertical resolution requested from yt-dlp.
func WithMaxHeight(height string) Option {
	return func(t *Toolchain) {
		if height != "" {
			t.quality = height
		}
	}
}
