package ranking_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func seg(start, dur, score float64) model.Segment {
	return model.Segment{StartS: start, EndS: start + dur, TotalScore: score}
}

func TestSelect(t *testing.T) {
	ctx := context.Background()

	Convey("Given three 300s segments scored 0.9, 0.8, 0.7 and a 480-600s target", t, func() {
		segs := []model.Segment{seg(0, 300, 0.7), seg(400, 300, 0.9), seg(800, 300, 0.8)}
		opts := ranking.Options{MinS: 480, MaxS: 600}

		Convey("When selecting", func() {
			res, err := ranking.Select(ctx, ranking.Segments(segs), opts)

			Convey("Then the top two are accepted for 600s", func() {
				So(err, ShouldBeNil)
				So(res.Indices, ShouldResemble, []int{1, 2})
				So(res.TotalDurationS, ShouldEqual, 600)
				So(res.UnderTarget, ShouldBeFalse)
			})

			Convey("And entries carry score ranks in chronological order", func() {
				entries := ranking.Entries(res)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].StartS, ShouldEqual, 400)
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[1].Rank, ShouldEqual, 2)
			})
		})
	})

	Convey("Given candidates that cannot reach the minimum", t, func() {
		segs := []model.Segment{seg(0, 100, 0.9), seg(200, 50, 0.5)}
		res, err := ranking.Select(ctx, ranking.Segments(segs), ranking.Options{MinS: 480, MaxS: 600})

		Convey("Then all are taken and the result is flagged under target", func() {
			So(err, ShouldBeNil)
			So(len(res.Items), ShouldEqual, 2)
			So(res.TotalDurationS, ShouldEqual, 150)
			So(res.UnderTarget, ShouldBeTrue)
		})
	})

	Convey("Given a high scorer that does not fit while under the minimum", t, func() {
		segs := []model.Segment{seg(0, 400, 0.9), seg(500, 300, 0.8), seg(900, 150, 0.1)}
		res, err := ranking.Select(ctx, ranking.Segments(segs), ranking.Options{MinS: 480, MaxS: 600})

		Convey("Then smaller candidates are still tried", func() {
			So(err, ShouldBeNil)
			So(res.Indices, ShouldResemble, []int{0, 2})
			So(res.TotalDurationS, ShouldEqual, 550)
			So(res.UnderTarget, ShouldBeFalse)
		})
	})

	Convey("Given the minimum is met and the next candidate does not fit", t, func() {
		segs := []model.Segment{seg(0, 500, 0.9), seg(600, 200, 0.8), seg(900, 50, 0.1)}
		res, err := ranking.Select(ctx, ranking.Segments(segs), ranking.Options{MinS: 480, MaxS: 600})

		Convey("Then selection stops without trying later candidates", func() {
			So(err, ShouldBeNil)
			So(res.Indices, ShouldResemble, []int{0})
			So(res.TotalDurationS, ShouldEqual, 500)
		})
	})

	Convey("Given overlapping segments", t, func() {
		segs := []model.Segment{seg(0, 60, 0.9), seg(30, 60, 0.8), seg(60, 60, 0.7)}
		res, err := ranking.Select(ctx, ranking.Segments(segs), ranking.Options{MaxS: 600})

		Convey("Then the lower scored overlap is skipped", func() {
			So(err, ShouldBeNil)
			So(res.Indices, ShouldResemble, []int{0, 2})
		})
	})

	Convey("Given zero-duration and duplicate candidates", t, func() {
		segs := []model.Segment{seg(0, 0, 1), seg(10, 20, 0.8), seg(10, 20, 0.8)}
		res, err := ranking.Select(ctx, ranking.Segments(segs), ranking.Options{MaxS: 600, Overlap: ranking.NeverOverlap})

		Convey("Then both are skipped", func() {
			So(err, ShouldBeNil)
			So(res.Indices, ShouldResemble, []int{1})
		})
	})

	Convey("Given equal scores", t, func() {
		segs := []model.Segment{seg(300, 100, 0.5), seg(100, 100, 0.5), seg(500, 100, 0.5)}
		res, err := ranking.Select(ctx, ranking.Segments(segs), ranking.Options{MaxS: 200})

		Convey("Then earlier start wins the tie", func() {
			So(err, ShouldBeNil)
			So(res.Indices, ShouldResemble, []int{1, 0})
		})
	})

	Convey("Given invalid input", t, func() {
		good := ranking.Segments([]model.Segment{seg(0, 10, 1)})
		cases := map[string]ranking.Options{
			"min above max": {MinS: 700, MaxS: 600},
			"zero max":      {MaxS: 0},
			"negative cap":  {MaxS: 10, GroupCap: -1},
			"nan min":       {MinS: math.NaN(), MaxS: 10},
		}
		for name, opts := range cases {
			_, err := ranking.Select(ctx, good, opts)
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			_ = name
		}

		bad := ranking.Segments([]model.Segment{{StartS: 10, EndS: 5, TotalScore: 1}})
		_, err := ranking.Select(ctx, bad, ranking.Options{MaxS: 10})
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)

		nan := ranking.Segments([]model.Segment{{StartS: 0, EndS: 5, TotalScore: math.NaN()}})
		_, err = ranking.Select(ctx, nan, ranking.Options{MaxS: 10})
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
	})

	Convey("Given no candidates", t, func() {
		res, err := ranking.Select(ctx, nil, ranking.Options{MinS: 10, MaxS: 20})
		So(err, ShouldBeNil)
		So(res.Items, ShouldBeEmpty)
		So(res.UnderTarget, ShouldBeTrue)
	})
}

func TestSelectClips(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given clips from two streamers with a cap of 2", t, func() {
		var clips []model.Clip
		for i := 0; i < 4; i++ {
			clips = append(clips,
				model.Clip{ID: fmt.Sprintf("a%d", i), Streamer: "Alpha", DurationS: 30, TotalScore: 0.9 - float64(i)*0.1, CreatedAt: base},
				model.Clip{ID: fmt.Sprintf("b%d", i), Streamer: "beta", DurationS: 30, TotalScore: 0.85 - float64(i)*0.1, CreatedAt: base},
			)
		}
		opts := ranking.Options{GroupCap: 2, MinS: 0, MaxS: 600, Overlap: ranking.NeverOverlap}

		res, err := ranking.Select(ctx, ranking.Clips(clips), opts)

		Convey("Then each streamer contributes at most two clips", func() {
			So(err, ShouldBeNil)
			So(len(res.Items), ShouldEqual, 4)
			per := map[string]int{}
			for _, it := range res.Items {
				per[it.Group()]++
			}
			So(per["alpha"], ShouldEqual, 2)
			So(per["beta"], ShouldEqual, 2)
		})

		Convey("And identical start refs fall back to input order", func() {
			So(res.Items[0].Key(), ShouldEqual, "a0")
		})
	})

	Convey("Given the same clip listed twice", t, func() {
		clips := []model.Clip{
			{URL: "https://twitch.tv/a/clip/same", Streamer: "a", DurationS: 20, TotalScore: 0.9},
			{URL: "https://twitch.tv/a/clip/same?x=1", Streamer: "a", DurationS: 20, TotalScore: 0.8},
		}
		res, err := ranking.Select(ctx, ranking.Clips(clips), ranking.Options{MaxS: 100, Overlap: ranking.NeverOverlap})
		So(err, ShouldBeNil)
		So(len(res.Items), ShouldEqual, 1)
	})
}

func TestSelectProperties(t *testing.T) {
	ctx := context.Background()

	Convey("Given random candidate pools", t, func() {
		rng := rand.New(rand.NewSource(42))
		for round := 0; round < 300; round++ {
			n := rng.Intn(25)
			segs := make([]model.Segment, n)
			for i := range segs {
				s := rng.Float64() * 3000
				segs[i] = seg(s, rng.Float64()*200, math.Round(rng.Float64()*10)/10)
			}
			maxS := 100 + rng.Float64()*800
			opts := ranking.Options{MinS: rng.Float64() * maxS, MaxS: maxS, GroupCap: rng.Intn(4)}

			res, err := ranking.Select(ctx, ranking.Segments(segs), opts)
			So(err, ShouldBeNil)

			So(res.TotalDurationS, ShouldBeLessThanOrEqualTo, opts.MaxS)
			So(res.UnderTarget, ShouldEqual, res.TotalDurationS < opts.MinS)
			if opts.GroupCap > 0 {
				So(len(res.Items), ShouldBeLessThanOrEqualTo, opts.GroupCap)
			}
			var sum float64
			for i, it := range res.Items {
				sum += it.Span()
				if i > 0 {
					So(res.Items[i-1].StartRef(), ShouldBeLessThanOrEqualTo, it.StartRef())
				}
				for j := i + 1; j < len(res.Items); j++ {
					So(ranking.TimelineOverlap(it, res.Items[j]), ShouldBeFalse)
				}
			}
			So(sum, ShouldAlmostEqual, res.TotalDurationS, 1e-9)

			again, _ := ranking.Select(ctx, ranking.Segments(segs), opts)
			So(again.Indices, ShouldResemble, res.Indices)
		}
	})

	Convey("Given equal-score pools with no overlaps and a budget of their total length", t, func() {
		rng := rand.New(rand.NewSource(7))
		for round := 0; round < 100; round++ {
			n := 1 + rng.Intn(20)
			segs := make([]model.Segment, n)
			want := make([]int, n)
			start, total := 0.0, 0.0
			for i := range segs {
				start += float64(1 + rng.Intn(10))
				dur := float64(1 + rng.Intn(120))
				segs[i] = seg(start, dur, 0.5)
				want[i] = i
				start += dur
				total += dur
			}

			res, err := ranking.Select(ctx, ranking.Segments(segs), ranking.Options{MinS: total, MaxS: total})

			So(err, ShouldBeNil)
			So(res.Indices, ShouldResemble, want)
			So(res.TotalDurationS, ShouldEqual, total)
			So(res.UnderTarget, ShouldBeFalse)
		}
	})
}

type fixedSelector struct{}

func (fixedSelector) Select(_ context.Context, cands []ranking.Candidate, _ ranking.Options) (ranking.Result, error) {
	if len(cands) == 0 {
		return ranking.Result{}, nil
	}
	return ranking.Result{Indices: []int{0}, Items: cands[:1], TotalDurationS: cands[0].Span()}, nil
}

func TestSelectorInterface(t *testing.T) {
	Convey("Given alternative selectors", t, func() {
		var sel ranking.Selector = ranking.NewGreedy()
		So(sel, ShouldNotBeNil)
		sel = fixedSelector{}
		res, err := sel.Select(context.Background(), ranking.Segments([]model.Segment{seg(0, 5, 0.1)}), ranking.Options{})
		So(err, ShouldBeNil)
		So(res.TotalDurationS, ShouldEqual, 5)
	})
}
