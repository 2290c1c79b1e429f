// Package ranking selects an ordered, duration-bounded subset of scored
// candidates.
//
// The default Selector is greedy: candidates are capped per group, sorted
// by score and packed while they fit under the maximum duration. It does
// not search for the optimal subset.
package ranking

import (
	"context"
	"math"
	"slices"
	"sort"

	"github.com/okian/vodcut/internal/domain/dedupe"
	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/domain/types"
)

// Options configures a selection pass.
type Options struct {
	// GroupCap keeps at most this many candidates per group. 0 is unlimited.
	GroupCap int
	MinS     float64
	MaxS     float64
	// Overlap reports conflicting candidates. Nil means TimelineOverlap.
	Overlap OverlapFunc
}

func (o Options) validate() error {
	const op = "ranking.select"
	switch {
	case o.GroupCap < 0:
		return model.Errorf(op, model.ErrInvalidInput, "group cap must be >= 0, got %d", o.GroupCap)
	case math.IsNaN(o.MinS) || o.MinS < 0:
		return model.Errorf(op, model.ErrInvalidInput, "min duration must be >= 0, got %v", o.MinS)
	case math.IsNaN(o.MaxS) || o.MaxS <= 0:
		return model.Errorf(op, model.ErrInvalidInput, "max duration must be > 0, got %v", o.MaxS)
	case o.MinS > o.MaxS:
		return model.Errorf(op, model.ErrInvalidInput, "min duration %v exceeds max %v", o.MinS, o.MaxS)
	}
	return nil
}

// Result is the outcome of a selection pass.
type Result struct {
	// Indices point into the input slice, in chronological order.
	Indices        []int
	Items          []Candidate
	TotalDurationS float64
	UnderTarget    bool
}

// Selector picks candidates. Implementations must be deterministic.
type Selector interface {
	Select(ctx context.Context, cands []Candidate, opts Options) (Result, error)
}

// Greedy is the default Selector.
type Greedy struct{}

// NewGreedy returns the greedy selector.
func NewGreedy() *Greedy { return &Greedy{} }

// Select runs a greedy pass with a fresh Greedy selector.
func Select(ctx context.Context, cands []Candidate, opts Options) (Result, error) {
	return NewGreedy().Select(ctx, cands, opts)
}

// Select implements Selector.
func (g *Greedy) Select(ctx context.Context, cands []Candidate, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	for i, c := range cands {
		d, s := c.Span(), c.Score()
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return Result{}, model.Errorf("ranking.select", model.ErrInvalidInput, "candidate %d has invalid duration %v", i, d)
		}
		if math.IsNaN(s) {
			return Result{}, model.Errorf("ranking.select", model.ErrInvalidInput, "candidate %d has NaN score", i)
		}
	}
	overlap := opts.Overlap
	if overlap == nil {
		overlap = TimelineOverlap
	}

	order := rankOrder(cands, capGroups(cands, opts.GroupCap))

	seen := dedupe.NewInMemoryDeduper()
	var (
		accepted []int
		total    float64
	)
	for _, idx := range order {
		c := cands[idx]
		d := c.Span()
		if d <= 0 || seen.Seen(ctx, c.Key()) {
			continue
		}
		if conflicts(c, cands, accepted, overlap) {
			continue
		}
		if total+d > opts.MaxS {
			if total >= opts.MinS {
				break
			}
			continue
		}
		seen.SeenAndRecord(ctx, c.Key())
		accepted = append(accepted, idx)
		total += d
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		a, b := cands[accepted[i]], cands[accepted[j]]
		if a.StartRef() != b.StartRef() {
			return a.StartRef() < b.StartRef()
		}
		return accepted[i] < accepted[j]
	})

	res := Result{
		Indices:        accepted,
		Items:          make([]Candidate, len(accepted)),
		TotalDurationS: total,
		UnderTarget:    total < opts.MinS,
	}
	for i, idx := range accepted {
		res.Items[i] = cands[idx]
	}
	return res, nil
}

// less is the ranking order: score desc, StartRef asc, input index asc.
func less(cands []Candidate, i, j int) bool {
	a, b := cands[i], cands[j]
	if a.Score() != b.Score() {
		return a.Score() > b.Score()
	}
	if a.StartRef() != b.StartRef() {
		return a.StartRef() < b.StartRef()
	}
	return i < j
}

// capGroups returns the indices surviving the per-group cap.
func capGroups(cands []Candidate, limit int) []int {
	all := make([]int, len(cands))
	for i := range all {
		all[i] = i
	}
	if limit <= 0 {
		return all
	}
	groups := make(map[string][]int)
	var keys []string
	for _, i := range all {
		g := cands[i].Group()
		if _, ok := groups[g]; !ok {
			keys = append(keys, g)
		}
		groups[g] = append(groups[g], i)
	}
	out := make([]int, 0, len(cands))
	for _, g := range keys {
		members := groups[g]
		sort.Slice(members, func(x, y int) bool { return less(cands, members[x], members[y]) })
		if len(members) > limit {
			members = members[:limit]
		}
		out = append(out, members...)
	}
	return out
}

func rankOrder(cands []Candidate, idx []int) []int {
	out := slices.Clone(idx)
	sort.Slice(out, func(x, y int) bool { return less(cands, out[x], out[y]) })
	return out
}

func conflicts(c Candidate, cands []Candidate, accepted []int, overlap OverlapFunc) bool {
	for _, a := range accepted {
		if overlap(c, cands[a]) {
			return true
		}
	}
	return false
}

// Entries renders a result as ranked read entries. Rank follows the score
// order; the slice keeps the chronological order of the result.
func Entries(res Result) []types.Entry {
	n := len(res.Items)
	pos := make([]int, n)
	for i := range pos {
		pos[i] = i
	}
	sort.SliceStable(pos, func(x, y int) bool {
		return res.Items[pos[x]].Score() > res.Items[pos[y]].Score()
	})
	rank := make([]int, n)
	for r, p := range pos {
		rank[p] = r + 1
	}
	out := make([]types.Entry, n)
	for i, c := range res.Items {
		out[i] = types.Entry{
			Rank:      rank[i],
			Key:       c.Key(),
			Group:     c.Group(),
			StartS:    c.StartRef(),
			DurationS: c.Span(),
			Score:     c.Score(),
		}
	}
	return out
}
