package segment_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/domain/segment"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given two spikes close together", t, func() {
		spikes := []model.SpikeWindow{
			{ID: 0, StartS: 10, EndS: 12, Intensity: 4},
			{ID: 1, StartS: 13, EndS: 15, Intensity: 9},
		}

		Convey("When generated with margin 2 and merge gap 1", func() {
			out, err := segment.Generate(spikes, segment.Options{MarginS: 2, MergeGapS: 1, VODDurationS: 100})

			Convey("Then a single merged segment [8,17] is produced", func() {
				So(err, ShouldBeNil)
				So(len(out), ShouldEqual, 1)
				So(out[0].StartS, ShouldEqual, 8)
				So(out[0].EndS, ShouldEqual, 17)
			})

			Convey("And the merged spike score is the maximum", func() {
				So(out[0].SpikeScore, ShouldEqual, 9)
				So(out[0].SourceIDs, ShouldResemble, []int{0, 1})
			})
		})

		Convey("When margin is zero and the gap exceeds merge gap", func() {
			out, err := segment.Generate(spikes, segment.Options{MarginS: 0, MergeGapS: 0.5, VODDurationS: 100})
			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 2)
		})
	})

	Convey("Given no spikes", t, func() {
		out, err := segment.Generate(nil, segment.Options{MarginS: 5, VODDurationS: 100})
		So(err, ShouldBeNil)
		So(out, ShouldBeEmpty)
	})

	Convey("Given spikes near the VOD boundaries", t, func() {
		spikes := []model.SpikeWindow{
			{ID: 0, StartS: 1, EndS: 3},
			{ID: 1, StartS: 97, EndS: 99},
		}
		out, err := segment.Generate(spikes, segment.Options{MarginS: 5, VODDurationS: 100})

		Convey("Then they are clipped, not dropped", func() {
			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 2)
			So(out[0].StartS, ShouldEqual, 0)
			So(out[0].EndS, ShouldEqual, 8)
			So(out[1].StartS, ShouldEqual, 92)
			So(out[1].EndS, ShouldEqual, 100)
		})
	})

	Convey("Given a spike past the end of the VOD", t, func() {
		spikes := []model.SpikeWindow{{ID: 3, StartS: 120, EndS: 121}}
		out, err := segment.Generate(spikes, segment.Options{MarginS: 2, VODDurationS: 100})

		Convey("Then it is pinned to the end with its padded width", func() {
			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 1)
			So(out[0].StartS, ShouldEqual, 95)
			So(out[0].EndS, ShouldEqual, 100)
		})
	})

	Convey("Given unsorted input", t, func() {
		spikes := []model.SpikeWindow{
			{ID: 0, StartS: 50, EndS: 51},
			{ID: 1, StartS: 10, EndS: 11},
		}
		out, err := segment.Generate(spikes, segment.Options{MarginS: 1, VODDurationS: 100})
		So(err, ShouldBeNil)
		So(out[0].StartS, ShouldEqual, 9)
		So(out[1].StartS, ShouldEqual, 49)
	})

	Convey("Given invalid options", t, func() {
		sp := []model.SpikeWindow{{StartS: 1, EndS: 2}}
		_, err := segment.Generate(sp, segment.Options{VODDurationS: 0})
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		_, err = segment.Generate(sp, segment.Options{VODDurationS: 10, MarginS: -1})
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		_, err = segment.Generate(sp, segment.Options{VODDurationS: 10, MergeGapS: -1})
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		_, err = segment.Generate([]model.SpikeWindow{{StartS: 2, EndS: 2}}, segment.Options{VODDurationS: 10})
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
	})
}

func TestGenerateProperties(t *testing.T) {
	Convey("Given random spike sets", t, func() {
		rng := rand.New(rand.NewSource(7))
		for round := 0; round < 200; round++ {
			vod := 600.0
			n := rng.Intn(20)
			spikes := make([]model.SpikeWindow, n)
			for i := range spikes {
				s := rng.Float64() * 650
				spikes[i] = model.SpikeWindow{ID: i, StartS: s, EndS: s + 0.5 + rng.Float64()*10, Intensity: float64(rng.Intn(30))}
			}
			opts := segment.Options{MarginS: rng.Float64() * 20, MergeGapS: rng.Float64() * 5, VODDurationS: vod}

			out, err := segment.Generate(spikes, opts)
			So(err, ShouldBeNil)

			ids := 0
			for i, s := range out {
				So(s.StartS, ShouldBeGreaterThanOrEqualTo, 0)
				So(s.EndS, ShouldBeLessThanOrEqualTo, vod)
				So(s.StartS, ShouldBeLessThan, s.EndS)
				if i > 0 {
					So(out[i-1].EndS, ShouldBeLessThanOrEqualTo, s.StartS)
					So(s.StartS-out[i-1].EndS, ShouldBeGreaterThan, opts.MergeGapS)
				}
				ids += len(s.SourceIDs)
			}
			So(ids, ShouldEqual, n)
		}
	})
}

func TestAttachContext(t *testing.T) {
	Convey("Given segments and chat", t, func() {
		events := []model.ChatEvent{
			{TimestampS: 1, Text: "early"},
			{TimestampS: 15, Text: "just before"},
			{TimestampS: 25, Text: "inside"},
			{TimestampS: 40, Text: "after"},
			{TimestampS: 60, Text: "too late"},
		}
		segs := []model.Segment{{StartS: 20, EndS: 30}}

		Convey("When attaching with a 10s window", func() {
			segment.AttachContext(segs, events, 10)
			So(segs[0].Text, ShouldEqual, "just before inside after")
		})

		Convey("When attaching with no window", func() {
			segment.AttachContext(segs, events, 0)
			So(segs[0].Text, ShouldEqual, "inside")
		})
	})
}
