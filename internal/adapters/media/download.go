package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/pkg/logger"
)

const (
	vodFileName      = "vod.mp4"
	vodMetadataFile  = "vod.json"
	twitchVideosPath = "twitch.tv/videos/"
)

// Downloader fetches VODs and clips to local disk. It understands local
// .mp4 paths, direct http(s) .mp4 URLs and Twitch pages (through yt-dlp).
type Downloader struct {
	tc Toolchain
}

// NewDownloader creates a Downloader.
func NewDownloader(opts ...Option) *Downloader {
	tc := newToolchain(opts)
	tc.log = tc.log.Named("downloader")
	return &Downloader{tc: tc}
}

type vodMetadata struct {
	SourceURL    string   `json:"source_url"`
	DownloadedAt string   `json:"downloaded_at"`
	OutputMP4    string   `json:"output_mp4"`
	Title        *string  `json:"title"`
	Uploader     *string  `json:"uploader"`
	DurationS    *float64 `json:"duration_s"`
	Game         *string  `json:"game"`
	Views        *int64   `json:"views"`
	Extractor    *string  `json:"extractor"`
}

// ytdlpInfo is the subset of `yt-dlp --dump-json` we read.
type ytdlpInfo struct {
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Duration  float64 `json:"duration"`
	Category  string  `json:"category"`
	ViewCount int64   `json:"view_count"`
}

// Fetch stores the VOD as <outputDir>/vod.mp4 next to a vod.json metadata
// file. All failures are download errors.
func (d *Downloader) Fetch(ctx context.Context, sourceRef, outputDir string) (model.VODAsset, error) {
	const op = "media.fetch"
	ref := strings.TrimSpace(sourceRef)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return model.VODAsset{}, model.WrapKind(op, model.ErrDownload, err)
	}
	asset := model.VODAsset{
		VideoPath:    filepath.Join(outputDir, vodFileName),
		MetadataPath: filepath.Join(outputDir, vodMetadataFile),
	}
	meta := vodMetadata{
		SourceURL:    ref,
		DownloadedAt: time.Now().UTC().Format(time.RFC3339),
		OutputMP4:    asset.VideoPath,
	}

	d.tc.log.Info(ctx, "fetching vod", logger.String("source", ref), logger.String("output", asset.VideoPath))

	var err error
	switch {
	case isLocalMP4(ref):
		err = copyFile(ref, asset.VideoPath)
	case strings.Contains(ref, twitchVideosPath):
		var info ytdlpInfo
		info, err = d.fetchTwitch(ctx, ref, asset.VideoPath)
		if err == nil {
			extractor := "yt-dlp"
			meta.Extractor = &extractor
			meta.Title = optional(info.Title)
			meta.Uploader = optional(info.Uploader)
			meta.Game = optional(info.Category)
			if info.Duration > 0 {
				meta.DurationS = &info.Duration
				asset.DurationS = info.Duration
			}
			if info.ViewCount > 0 {
				meta.Views = &info.ViewCount
			}
			asset.Title = info.Title
		}
	case isRemoteMP4(ref):
		err = d.get(ctx, ref, asset.VideoPath)
	default:
		err = fmt.Errorf("unsupported source reference %q", ref)
	}
	if err != nil {
		return model.VODAsset{}, model.WrapKind(op, model.ErrDownload, err)
	}

	if err := writeJSON(asset.MetadataPath, meta); err != nil {
		return model.VODAsset{}, model.WrapKind(op, model.ErrDownload, err)
	}
	return asset, nil
}

// FetchClip downloads one catalog clip into outputDir and returns its path.
func (d *Downloader) FetchClip(ctx context.Context, clip model.Clip, outputDir string) (string, error) {
	const op = "media.fetch_clip"
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", model.WrapKind(op, model.ErrDownload, err)
	}
	out := filepath.Join(outputDir, "clip_"+safeName(clip.Identity())+".mp4")
	ref := strings.TrimSpace(clip.URL)

	d.tc.log.Debug(ctx, "fetching clip", logger.String("clip", clip.Identity()), logger.String("output", out))

	var err error
	switch {
	case ref == "":
		err = fmt.Errorf("clip %q has no url", clip.Identity())
	case isLocalMP4(ref):
		err = copyFile(ref, out)
	case isRemoteMP4(ref):
		err = d.get(ctx, ref, out)
	default:
		_, err = d.tc.runner.Run(ctx, d.tc.ytdlpPath, "-f", d.format(), "-o", out, ref)
	}
	if err != nil {
		return "", model.WrapKind(op, model.ErrDownload, err)
	}
	return out, nil
}

func (d *Downloader) format() string {
	return fmt.Sprintf("best[height<=%s]", strings.TrimSuffix(d.tc.quality, "p"))
}

func (d *Downloader) fetchTwitch(ctx context.Context, ref, out string) (ytdlpInfo, error) {
	var info ytdlpInfo
	raw, err := d.tc.runner.Run(ctx, d.tc.ytdlpPath, "--dump-json", ref)
	if err != nil {
		return info, fmt.Errorf("failed to get metadata from %s: %w", ref, err)
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return info, fmt.Errorf("failed to parse metadata from %s: %w", ref, err)
	}
	if _, err := d.tc.runner.Run(ctx, d.tc.ytdlpPath, "-f", d.format(), "-o", out, ref); err != nil {
		return info, fmt.Errorf("failed to download vod from %s: %w", ref, err)
	}
	return info, nil
}

func (d *Downloader) get(ctx context.Context, ref, out string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return err
	}
	resp, err := d.tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download from %s: %d", ref, resp.StatusCode)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func isLocalMP4(ref string) bool {
	if !strings.HasSuffix(strings.ToLower(ref), ".mp4") {
		return false
	}
	fi, err := os.Stat(ref)
	return err == nil && fi.Mode().IsRegular()
}

func isRemoteMP4(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".mp4")
}

func copyFile(src, dst string) error {
	if abs(src) == abs(dst) {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func abs(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeName(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "clip"
	}
	return s
}
