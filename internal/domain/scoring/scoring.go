// Package scoring computes weighted highlight scores for segments and clips.
package scoring

import (
	"math"
	"slices"
	"time"

	"github.com/okian/vodcut/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultHalfLifeDays = 7
)

// DefaultClipWeights favour popularity for pre-cut clips.
func DefaultClipWeights() Weights {
	return Weights{Popularity: 0.5, Recency: 0.2, Length: 0.2, Keyword: 0.1}
}

// DefaultSegmentWeights favour chat intensity for VOD segments.
func DefaultSegmentWeights() Weights {
	return Weights{Signal: 0.6, Length: 0.2, Keyword: 0.2}
}

// Score is the weighted sum of features, clamped to [0,1]. It is pure:
// identical inputs give bit-identical output.
func Score(f Features, w Weights) float64 {
	total := w.Popularity*f.Popularity +
		w.Recency*f.Recency +
		w.Length*f.Length +
		w.Signal*f.Signal +
		w.Keyword*f.Keyword
	return clamp01(total)
}

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithSegmentWeights overrides the weights used for VOD segments.
func WithSegmentWeights(w Weights) Option {
	return func(m *Model) {
		if w.Sum() > 0 {
			m.segmentWeights = w
		}
	}
}

// WithClipWeights overrides the weights used for clips.
func WithClipWeights(w Weights) Option {
	return func(m *Model) {
		if w.Sum() > 0 {
			m.clipWeights = w
		}
	}
}

// WithHalfLife sets the recency half-life in days.
func WithHalfLife(days float64) Option {
	return func(m *Model) {
		if days > 0 {
			m.halfLifeDays = days
		}
	}
}

// WithSegmentLength sets the ideal length band for segments.
func WithSegmentLength(b LengthBand) Option {
	return func(m *Model) { m.segmentLength = b }
}

// WithClipLength sets the ideal length band for clips.
func WithClipLength(b LengthBand) Option {
	return func(m *Model) { m.clipLength = b }
}

// WithKeywords sets the default keyword list. Per-call keywords are added.
func WithKeywords(keywords []string) Option {
	return func(m *Model) { m.keywords = slices.Clone(keywords) }
}

// WithClock pins the reference time used for recency.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// Model holds scoring configuration and applies it to batches.
type Model struct {
	segmentWeights Weights
	clipWeights    Weights
	halfLifeDays   float64
	segmentLength  LengthBand
	clipLength     LengthBand
	keywords       []string
	now            func() time.Time
}

// New creates a Model with default weights and bands.
func New(opts ...Option) *Model {
	m := &Model{
		segmentWeights: DefaultSegmentWeights(),
		clipWeights:    DefaultClipWeights(),
		halfLifeDays:   defaultHalfLifeDays,
		segmentLength:  LengthBand{MinS: 20, MaxS: 90, ToleranceS: 40},
		clipLength:     LengthBand{MinS: 15, MaxS: 60, ToleranceS: 30},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) mergeKeywords(extra []string) []string {
	if len(extra) == 0 {
		return m.keywords
	}
	return append(slices.Clone(m.keywords), extra...)
}

// SegmentFeatures extracts features for every segment in the batch. Signal
// is normalized across the batch; keyword matching uses Segment.Text.
func (m *Model) SegmentFeatures(segs []model.Segment, keywords []string) []Features {
	kws := m.mergeKeywords(keywords)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range segs {
		lo = math.Min(lo, s.SpikeScore)
		hi = math.Max(hi, s.SpikeScore)
	}
	out := make([]Features, len(segs))
	for i, s := range segs {
		out[i] = Features{
			Signal:  Signal(s.SpikeScore, lo, hi),
			Length:  Length(s.DurationS(), m.segmentLength),
			Keyword: Keyword(s.Text, kws),
		}
	}
	return out
}

// ScoreSegments returns a copy of segs with KeywordScore and TotalScore set.
func (m *Model) ScoreSegments(segs []model.Segment, keywords []string) []model.Segment {
	feats := m.SegmentFeatures(segs, keywords)
	out := slices.Clone(segs)
	for i := range out {
		out[i].KeywordScore = feats[i].Keyword
		out[i].TotalScore = Score(feats[i], m.segmentWeights)
	}
	return out
}

// ClipFeatures extracts features for every clip in the batch. Popularity is
// relative to the most viewed clip; keyword matching uses the title.
func (m *Model) ClipFeatures(clips []model.Clip, keywords []string) []Features {
	kws := m.mergeKeywords(keywords)
	var maxViews int64
	for _, c := range clips {
		maxViews = max(maxViews, c.Views)
	}
	now := m.now()
	out := make([]Features, len(clips))
	for i, c := range clips {
		out[i] = Features{
			Popularity: Popularity(c.Views, maxViews),
			Recency:    Recency(c.CreatedAt, now, m.halfLifeDays),
			Length:     Length(c.DurationS, m.clipLength),
			Keyword:    Keyword(c.Title, kws),
		}
	}
	return out
}

// ScoreClips returns a copy of clips with TotalScore set.
func (m *Model) ScoreClips(clips []model.Clip, keywords []string) []model.Clip {
	feats := m.ClipFeatures(clips, keywords)
	out := slices.Clone(clips)
	for i := range out {
		out[i].TotalScore = Score(feats[i], m.clipWeights)
	}
	return out
}
