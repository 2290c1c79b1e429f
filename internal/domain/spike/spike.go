// Package spike finds windows of unusually dense chat activity.
//
// Events are counted into fixed-width buckets; a Policy marks buckets hot
// and runs of contiguous hot buckets become SpikeWindows. Detection is
// deterministic and does no I/O.
package spike

import (
	"math"

	"github.com/okian/vodcut/internal/domain/model"
)

// MaxBuckets caps the histogram size. A span that needs more buckets is
// rejected as invalid input.
const MaxBuckets = 1 << 20

// Options configures Detect.
type Options struct {
	// BucketWidthS is the bucket width in seconds. Must be > 0.
	BucketWidthS float64
	// Policy decides which buckets are hot.
	Policy Policy
	// VODRelative anchors buckets at t=0 instead of the first event.
	VODRelative bool
}

// Bucket is one histogram cell.
type Bucket struct {
	StartS float64
	Count  int
}

// Detect returns spike windows in chronological order. Empty input yields
// an empty result.
func Detect(events []model.ChatEvent, opts Options) ([]model.SpikeWindow, error) {
	buckets, err := Histogram(events, opts)
	if err != nil || len(buckets) == 0 {
		return nil, err
	}
	if opts.Policy == nil {
		return nil, model.Errorf("spike.detect", model.ErrInvalidInput, "threshold policy is required")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, model.WrapKind("spike.detect", model.ErrInvalidInput, err)
	}

	counts := make([]int, len(buckets))
	for i, b := range buckets {
		counts[i] = b.Count
	}

	var (
		out []model.SpikeWindow
		cur *model.SpikeWindow
	)
	for i, b := range buckets {
		if !opts.Policy.Hot(counts, i) {
			if cur != nil {
				out = append(out, *cur)
				cur = nil
			}
			continue
		}
		if cur == nil {
			cur = &model.SpikeWindow{ID: len(out), StartS: b.StartS}
		}
		cur.EndS = b.StartS + opts.BucketWidthS
		cur.Count += b.Count
		cur.Intensity = math.Max(cur.Intensity, float64(b.Count))
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out, nil
}

// Histogram validates events and counts them into dense buckets covering
// [origin, last event].
func Histogram(events []model.ChatEvent, opts Options) ([]Bucket, error) {
	const op = "spike.histogram"
	w := opts.BucketWidthS
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return nil, model.Errorf(op, model.ErrInvalidInput, "bucket width must be > 0, got %v", w)
	}
	if len(events) == 0 {
		return nil, nil
	}

	prev := math.Inf(-1)
	for i, e := range events {
		t := e.TimestampS
		switch {
		case math.IsNaN(t) || math.IsInf(t, 0):
			return nil, model.Errorf(op, model.ErrInvalidInput, "event %d has non-finite timestamp", i)
		case t < 0:
			return nil, model.Errorf(op, model.ErrInvalidInput, "event %d has negative timestamp %v", i, t)
		case t < prev:
			return nil, model.Errorf(op, model.ErrInvalidInput, "event %d timestamp %v precedes %v", i, t, prev)
		}
		prev = t
	}

	origin := 0.0
	if !opts.VODRelative {
		origin = events[0].TimestampS
	}
	last := events[len(events)-1].TimestampS
	span := math.Floor((last - origin) / w)
	if span >= MaxBuckets {
		return nil, model.Errorf(op, model.ErrInvalidInput,
			"span %vs at width %vs needs more than %d buckets", last-origin, w, MaxBuckets)
	}
	n := int(span) + 1

	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i].StartS = origin + float64(i)*w
	}
	for _, e := range events {
		idx := int(math.Floor((e.TimestampS - origin) / w))
		if idx >= n {
			idx = n - 1
		}
		buckets[idx].Count++
	}
	return buckets, nil
}
