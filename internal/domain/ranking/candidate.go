package ranking

import (
	"strings"

	"github.com/okian/vodcut/internal/domain/model"
)

// Candidate is anything the selector can rank and pack.
type Candidate interface {
	// Key identifies the candidate for duplicate detection.
	Key() string
	// StartRef orders equal scores and places the item chronologically.
	StartRef() float64
	// Span is the duration contributed to the montage, in seconds.
	Span() float64
	Score() float64
	// Group is the bucket the per-group cap applies to.
	Group() string
}

// SegmentCandidate adapts a VOD segment. All segments of a job share one
// group; StartRef is the position on the VOD timeline.
type SegmentCandidate struct {
	model.Segment
}

func (s SegmentCandidate) StartRef() float64 { return s.StartS }
func (s SegmentCandidate) Span() float64     { return s.DurationS() }
func (s SegmentCandidate) Score() float64    { return s.TotalScore }
func (s SegmentCandidate) Group() string     { return "vod" }

// ClipCandidate adapts a catalog clip. Clips are grouped per streamer and
// ordered by creation time on ties.
type ClipCandidate struct {
	model.Clip
}

func (c ClipCandidate) Key() string       { return c.Identity() }
func (c ClipCandidate) StartRef() float64 { return float64(c.CreatedAt.Unix()) }
func (c ClipCandidate) Span() float64     { return c.DurationS }
func (c ClipCandidate) Score() float64    { return c.TotalScore }
func (c ClipCandidate) Group() string     { return strings.ToLower(strings.TrimSpace(c.Streamer)) }

// Segments wraps segments as candidates, preserving order.
func Segments(segs []model.Segment) []Candidate {
	out := make([]Candidate, len(segs))
	for i, s := range segs {
		out[i] = SegmentCandidate{Segment: s}
	}
	return out
}

// Clips wraps clips as candidates, preserving order.
func Clips(clips []model.Clip) []Candidate {
	out := make([]Candidate, len(clips))
	for i, c := range clips {
		out[i] = ClipCandidate{Clip: c}
	}
	return out
}

// OverlapFunc reports whether two candidates conflict.
type OverlapFunc func(a, b Candidate) bool

// TimelineOverlap treats candidates as half-open intervals
// [StartRef, StartRef+Span) on one shared timeline.
func TimelineOverlap(a, b Candidate) bool {
	return a.StartRef() < b.StartRef()+b.Span() && b.StartRef() < a.StartRef()+a.Span()
}

// NeverOverlap is used for independent sources such as clips.
func NeverOverlap(Candidate, Candidate) bool { return false }
