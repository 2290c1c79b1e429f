// Package segment turns spike windows into padded, merged VOD segments.
package segment

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/okian/vodcut/internal/domain/model"
)

// Options configures Generate.
type Options struct {
	MarginS      float64
	MergeGapS    float64
	VODDurationS float64
}

func (o Options) validate() error {
	const op = "segment.generate"
	switch {
	case !finite(o.VODDurationS) || o.VODDurationS <= 0:
		return model.Errorf(op, model.ErrInvalidInput, "vod duration must be > 0, got %v", o.VODDurationS)
	case !finite(o.MarginS) || o.MarginS < 0:
		return model.Errorf(op, model.ErrInvalidInput, "margin must be >= 0, got %v", o.MarginS)
	case !finite(o.MergeGapS) || o.MergeGapS < 0:
		return model.Errorf(op, model.ErrInvalidInput, "merge gap must be >= 0, got %v", o.MergeGapS)
	}
	return nil
}

// Generate pads each spike by MarginS, clips it to [0, VODDurationS] and
// merges neighbours whose gap is at most MergeGapS. The result is sorted
// and pairwise non-overlapping. A merged segment keeps the maximum spike
// intensity as its SpikeScore.
func Generate(spikes []model.SpikeWindow, opts Options) ([]model.Segment, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(spikes) == 0 {
		return nil, nil
	}

	expanded := make([]model.Segment, 0, len(spikes))
	for i, sp := range spikes {
		if !finite(sp.StartS) || !finite(sp.EndS) || sp.StartS >= sp.EndS {
			return nil, model.Errorf("segment.generate", model.ErrInvalidInput, "spike %d has empty interval [%v,%v)", i, sp.StartS, sp.EndS)
		}
		s, e := clip(sp.StartS-opts.MarginS, sp.EndS+opts.MarginS, opts.VODDurationS)
		expanded = append(expanded, model.Segment{
			StartS:     s,
			EndS:       e,
			SpikeScore: sp.Intensity,
			SourceIDs:  []int{sp.ID},
		})
	}

	sort.SliceStable(expanded, func(i, j int) bool {
		if expanded[i].StartS != expanded[j].StartS {
			return expanded[i].StartS < expanded[j].StartS
		}
		return expanded[i].EndS < expanded[j].EndS
	})

	out := []model.Segment{expanded[0]}
	for _, next := range expanded[1:] {
		cur := &out[len(out)-1]
		if next.StartS-cur.EndS <= opts.MergeGapS {
			cur.EndS = math.Max(cur.EndS, next.EndS)
			cur.SpikeScore = math.Max(cur.SpikeScore, next.SpikeScore)
			cur.SourceIDs = union(cur.SourceIDs, next.SourceIDs)
			continue
		}
		out = append(out, next)
	}
	return out, nil
}

// clip bounds [s,e) to [0,vod]. An interval pushed entirely past the end
// is rebuilt against the end of the VOD with its padded width.
func clip(s, e, vod float64) (float64, float64) {
	width := e - s
	s = math.Max(0, s)
	e = math.Min(vod, e)
	if s >= e {
		e = vod
		s = math.Max(0, vod-width)
	}
	return s, e
}

func union(a, b []int) []int {
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// AttachContext fills Segment.Text with chat messages falling within
// [start-windowS, end+windowS]. Events must be sorted by timestamp.
func AttachContext(segments []model.Segment, events []model.ChatEvent, windowS float64) {
	windowS = math.Max(0, windowS)
	for i := range segments {
		lo := segments[i].StartS - windowS
		hi := segments[i].EndS + windowS
		first := sort.Search(len(events), func(k int) bool { return events[k].TimestampS >= lo })
		var b strings.Builder
		for k := first; k < len(events) && events[k].TimestampS <= hi; k++ {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(events[k].Text)
		}
		segments[i].Text = b.String()
	}
}
