// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ChatEvent is one chat message positioned on the VOD timeline.
type ChatEvent struct {
	TimestampS float64 `json:"timestamp_s"`
	Text       string  `json:"message"`
	Author     string  `json:"author,omitempty"`
}

// SpikeWindow is a run of contiguous hot buckets.
type SpikeWindow struct {
	ID        int     `json:"id"`
	StartS    float64 `json:"start_s"`
	EndS      float64 `json:"end_s"`
	Count     int     `json:"count"`
	Intensity float64 `json:"intensity"`
}

// Segment is a candidate VOD interval derived from one or more spikes.
type Segment struct {
	StartS       float64 `json:"start_s"`
	EndS         float64 `json:"end_s"`
	SpikeScore   float64 `json:"spike_score"`
	KeywordScore float64 `json:"keyword_score"`
	TotalScore   float64 `json:"total_score"`
	SourceIDs    []int   `json:"source_ids"`
	Text         string  `json:"-"`
}

// Key identifies a segment by its interval.
func (s Segment) Key() string { return fmt.Sprintf("%.3f-%.3f", s.StartS, s.EndS) }

// DurationS is the segment length in seconds.
func (s Segment) DurationS() float64 { return s.EndS - s.StartS }

// Clip is a pre-cut short clip from a streamer's catalog.
type Clip struct {
	ID         string    `json:"id"`
	Streamer   string    `json:"streamer"`
	Title      string    `json:"title,omitempty"`
	Views      int64     `json:"views"`
	CreatedAt  time.Time `json:"created_at"`
	DurationS  float64   `json:"duration_s"`
	URL        string    `json:"url"`
	TotalScore float64   `json:"total_score"`
}

// Identity returns a stable identity for the clip: the explicit ID, else
// the slug after /clip/ in the URL, else the normalized URL.
func (c Clip) Identity() string {
	if id := strings.TrimSpace(c.ID); id != "" {
		return id
	}
	return ClipIdentityFromURL(c.URL)
}

// ClipIdentityFromURL strips query, fragment and trailing slash from raw
// and prefers the path segment following "/clip/" when present.
func ClipIdentityFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		base, _, _ := strings.Cut(raw, "?")
		base, _, _ = strings.Cut(base, "#")
		return strings.TrimRight(base, "/")
	}
	path := strings.TrimRight(u.Path, "/")
	if _, slug, ok := strings.Cut(path, "/clip/"); ok && slug != "" {
		slug, _, _ = strings.Cut(slug, "/")
		return slug
	}
	return strings.ToLower(u.Host) + path
}

// DedupeClips collapses clips sharing an identity, keeping the most viewed
// copy. First-seen order is preserved.
func DedupeClips(clips []Clip) []Clip {
	index := make(map[string]int, len(clips))
	out := make([]Clip, 0, len(clips))
	for _, c := range clips {
		id := c.Identity()
		if i, ok := index[id]; ok {
			if c.Views > out[i].Views {
				out[i] = c
			}
			continue
		}
		index[id] = len(out)
		out = append(out, c)
	}
	return out
}

// VODAsset is a fetched VOD on local disk.
type VODAsset struct {
	VideoPath    string `json:"video_path" yaml:"video_path"`
	MetadataPath string `json:"metadata_path,omitempty" yaml:"metadata_path,omitempty"`
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	// DurationS is 0 when the source did not report it.
	DurationS float64 `json:"duration_s,omitempty" yaml:"duration_s,omitempty"`
}
