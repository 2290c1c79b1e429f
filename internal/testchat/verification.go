package testchat

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/vodcut/internal/domain/model"
)

const durationTolerance = 1e-6

// Verify checks the consistency of a finished job's result: entries are
// chronological, ranked, non-overlapping for VOD jobs, and sum to the
// reported duration, which never exceeds maxS. Fewer written outputs than
// selected entries must come with a warning.
func Verify(job *model.Job, maxS float64) error {
	if job == nil {
		return errors.New("no job to verify")
	}
	if job.State != model.StateDone {
		return fmt.Errorf("job %s is %s, not DONE", job.ID, job.State)
	}
	res := job.Result
	if res == nil {
		return fmt.Errorf("job %s has no result", job.ID)
	}
	switch {
	case res.SegmentCount > len(res.Selected):
		return fmt.Errorf("segment_count %d but %d selected entries", res.SegmentCount, len(res.Selected))
	case res.SegmentCount < len(res.Selected) && len(res.Warnings) == 0:
		return fmt.Errorf("%d of %d selected entries written without a warning", res.SegmentCount, len(res.Selected))
	}

	total := 0.0
	for i, e := range res.Selected {
		total += e.DurationS
		if e.Rank < 1 || e.Rank > len(res.Selected) {
			return fmt.Errorf("entry %d has rank %d outside 1..%d", i, e.Rank, len(res.Selected))
		}
		if i == 0 {
			continue
		}
		prev := res.Selected[i-1]
		if e.StartS < prev.StartS {
			return fmt.Errorf("entry %d starts before entry %d", i, i-1)
		}
		if job.Type == model.JobTypeVODHighlights && e.StartS < prev.StartS+prev.DurationS-durationTolerance {
			return fmt.Errorf("entries %d and %d overlap", i-1, i)
		}
	}

	if math.Abs(total-res.DurationS) > durationTolerance {
		return fmt.Errorf("entries sum to %.3fs but duration_s is %.3fs", total, res.DurationS)
	}
	if res.DurationS > maxS+durationTolerance {
		return fmt.Errorf("duration %.3fs exceeds max %.3fs", res.DurationS, maxS)
	}
	return nil
}
