package scoring

import (
	"math"
	"strings"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Features are the normalized inputs to Score, each in [0,1]. A feature
// that does not apply to a candidate is left at zero.
type Features struct {
	Popularity float64 `json:"popularity"`
	Recency    float64 `json:"recency"`
	Length     float64 `json:"length"`
	Signal     float64 `json:"signal"`
	Keyword    float64 `json:"keyword"`
}

// Weights multiply the matching features. By convention they sum to 1 so
// that Score spans [0,1]; Score uses them as given and clamps the result.
type Weights struct {
	Popularity float64 `json:"popularity" koanf:"popularity" yaml:"popularity"`
	Recency    float64 `json:"recency" koanf:"recency" yaml:"recency"`
	Length     float64 `json:"length" koanf:"length" yaml:"length"`
	Signal     float64 `json:"signal" koanf:"signal" yaml:"signal"`
	Keyword    float64 `json:"keyword" koanf:"keyword" yaml:"keyword"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Popularity + w.Recency + w.Length + w.Signal + w.Keyword
}

// LengthBand describes the ideal duration range and how fast the length
// feature decays outside it.
type LengthBand struct {
	MinS       float64 `json:"min_s" koanf:"min_s" yaml:"min_s"`
	MaxS       float64 `json:"max_s" koanf:"max_s" yaml:"max_s"`
	ToleranceS float64 `json:"tolerance_s" koanf:"tolerance_s" yaml:"tolerance_s"`
}

// Popularity is log1p(views)/log1p(maxViews) clamped to [0,1].
func Popularity(views, maxViews int64) float64 {
	if views <= 0 || maxViews <= 0 {
		return 0
	}
	return clamp01(math.Log1p(float64(views)) / math.Log1p(float64(maxViews)))
}

// Signal min-max normalizes v over [lo,hi]. A flat batch scores 1.
func Signal(v, lo, hi float64) float64 {
	if hi <= lo {
		return 1
	}
	return clamp01((v - lo) / (hi - lo))
}

// Recency is 2^(-age/halfLife) with age measured in days. Content from the
// future counts as brand new.
func Recency(createdAt, now time.Time, halfLifeDays float64) float64 {
	if createdAt.IsZero() || halfLifeDays <= 0 {
		return 0
	}
	age := now.Sub(createdAt).Seconds() / secondsPerDay
	if age < 0 {
		age = 0
	}
	return clamp01(math.Exp2(-age / halfLifeDays))
}

// Length is 1 inside the band and decays linearly to 0 over ToleranceS on
// either side.
func Length(durationS float64, band LengthBand) float64 {
	if durationS <= 0 {
		return 0
	}
	var dist float64
	switch {
	case durationS < band.MinS:
		dist = band.MinS - durationS
	case band.MaxS > 0 && durationS > band.MaxS:
		dist = durationS - band.MaxS
	default:
		return 1
	}
	if band.ToleranceS <= 0 {
		return 0
	}
	return clamp01(1 - dist/band.ToleranceS)
}

// Keyword is 1 if any keyword is a case-insensitive substring of text.
func Keyword(text string, keywords []string) float64 {
	if text == "" || len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return 1
		}
	}
	return 0
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
