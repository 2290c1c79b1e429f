package scoring_test

import (
	"math"
	"testing"
	"time"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFeatureFunctions(t *testing.T) {
	Convey("Given popularity", t, func() {
		So(scoring.Popularity(0, 100), ShouldEqual, 0)
		So(scoring.Popularity(100, 100), ShouldEqual, 1)
		So(scoring.Popularity(500, 100), ShouldEqual, 1)
		So(scoring.Popularity(10, 100), ShouldAlmostEqual, math.Log1p(10)/math.Log1p(100), 1e-12)
	})

	Convey("Given signal normalization", t, func() {
		So(scoring.Signal(5, 5, 5), ShouldEqual, 1)
		So(scoring.Signal(2, 2, 10), ShouldEqual, 0)
		So(scoring.Signal(6, 2, 10), ShouldEqual, 0.5)
	})

	Convey("Given recency", t, func() {
		now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
		So(scoring.Recency(now, now, 7), ShouldEqual, 1)
		So(scoring.Recency(now.Add(-7*24*time.Hour), now, 7), ShouldAlmostEqual, 0.5, 1e-12)
		So(scoring.Recency(now.Add(24*time.Hour), now, 7), ShouldEqual, 1)
		So(scoring.Recency(time.Time{}, now, 7), ShouldEqual, 0)
	})

	Convey("Given the length band [20,60] with tolerance 20", t, func() {
		band := scoring.LengthBand{MinS: 20, MaxS: 60, ToleranceS: 20}
		So(scoring.Length(30, band), ShouldEqual, 1)
		So(scoring.Length(20, band), ShouldEqual, 1)
		So(scoring.Length(10, band), ShouldEqual, 0.5)
		So(scoring.Length(70, band), ShouldEqual, 0.5)
		So(scoring.Length(200, band), ShouldEqual, 0)
		So(scoring.Length(0, band), ShouldEqual, 0)
	})

	Convey("Given keyword matching", t, func() {
		So(scoring.Keyword("What a CLUTCH play", []string{"clutch"}), ShouldEqual, 1)
		So(scoring.Keyword("nothing here", []string{"clutch", "pog"}), ShouldEqual, 0)
		So(scoring.Keyword("", []string{"clutch"}), ShouldEqual, 0)
		So(scoring.Keyword("pogchamp", nil), ShouldEqual, 0)
	})
}

func TestScore(t *testing.T) {
	Convey("Given features and weights", t, func() {
		f := scoring.Features{Popularity: 1, Recency: 0.5, Length: 1, Keyword: 0}
		w := scoring.DefaultClipWeights()

		Convey("Then the score is the weighted sum", func() {
			So(scoring.Score(f, w), ShouldAlmostEqual, 0.5+0.1+0.2, 1e-12)
		})

		Convey("Then identical input gives bit-identical output", func() {
			a := scoring.Score(f, w)
			for i := 0; i < 100; i++ {
				So(math.Float64bits(scoring.Score(f, w)), ShouldEqual, math.Float64bits(a))
			}
		})

		Convey("Then weights are used as given", func() {
			partial := scoring.Weights{Signal: 0.3, Keyword: 0.2}
			So(scoring.Score(scoring.Features{Signal: 1}, partial), ShouldAlmostEqual, 0.3, 1e-12)

			doubled := scoring.Weights{Popularity: 1, Recency: 0.4, Length: 0.4, Keyword: 0.2}
			So(scoring.Score(f, doubled), ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("Then the score stays in [0,1]", func() {
			all := scoring.Features{Popularity: 1, Recency: 1, Length: 1, Signal: 1, Keyword: 1}
			So(scoring.Score(all, scoring.Weights{Popularity: 1, Signal: 1}), ShouldEqual, 1)
			So(scoring.Score(scoring.Features{}, w), ShouldEqual, 0)
			So(scoring.Score(all, scoring.Weights{}), ShouldEqual, 0)
		})
	})
}

func TestModelSegments(t *testing.T) {
	Convey("Given a batch of segments", t, func() {
		m := scoring.New(scoring.WithKeywords([]string{"insane"}))
		segs := []model.Segment{
			{StartS: 0, EndS: 30, SpikeScore: 4, Text: "lol"},
			{StartS: 100, EndS: 140, SpikeScore: 12, Text: "that was INSANE"},
			{StartS: 300, EndS: 330, SpikeScore: 8},
		}

		Convey("When scored", func() {
			out := m.ScoreSegments(segs, nil)

			Convey("Then the input is not mutated", func() {
				So(segs[1].TotalScore, ShouldEqual, 0)
			})

			Convey("Then the hottest keyword segment ranks first", func() {
				So(out[1].KeywordScore, ShouldEqual, 1)
				So(out[1].TotalScore, ShouldAlmostEqual, 1, 1e-12)
				So(out[1].TotalScore, ShouldBeGreaterThan, out[2].TotalScore)
				So(out[2].TotalScore, ShouldBeGreaterThan, out[0].TotalScore)
			})

			Convey("Then every score is in [0,1]", func() {
				for _, s := range out {
					So(s.TotalScore, ShouldBeBetweenOrEqual, 0, 1)
				}
			})
		})

		Convey("When per-job keywords are supplied", func() {
			out := m.ScoreSegments(segs, []string{"LOL"})
			So(out[0].KeywordScore, ShouldEqual, 1)
		})
	})
}

func TestModelClips(t *testing.T) {
	Convey("Given a batch of clips and a pinned clock", t, func() {
		now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
		m := scoring.New(scoring.WithClock(func() time.Time { return now }), scoring.WithHalfLife(3))
		clips := []model.Clip{
			{ID: "old-viral", Views: 100_000, CreatedAt: now.Add(-30 * 24 * time.Hour), DurationS: 30},
			{ID: "fresh", Views: 1_000, CreatedAt: now.Add(-time.Hour), DurationS: 30},
			{ID: "none", Views: 0, CreatedAt: now.Add(-time.Hour), DurationS: 500},
		}

		Convey("When features are extracted", func() {
			f := m.ClipFeatures(clips, nil)
			So(f[0].Popularity, ShouldEqual, 1)
			So(f[0].Recency, ShouldBeLessThan, 0.01)
			So(f[1].Recency, ShouldBeGreaterThan, 0.98)
			So(f[2].Popularity, ShouldEqual, 0)
			So(f[2].Length, ShouldEqual, 0)
		})

		Convey("When scored", func() {
			out := m.ScoreClips(clips, nil)
			So(out[2].TotalScore, ShouldBeLessThan, out[1].TotalScore)
			for _, c := range out {
				So(c.TotalScore, ShouldBeBetweenOrEqual, 0, 1)
			}
		})

		Convey("When custom weights ignore everything but popularity", func() {
			pm := scoring.New(scoring.WithClipWeights(scoring.Weights{Popularity: 1}))
			out := pm.ScoreClips(clips, nil)
			So(out[0].TotalScore, ShouldEqual, 1)
			So(out[2].TotalScore, ShouldEqual, 0)
		})

		Convey("When zero weights are passed they are ignored", func() {
			zm := scoring.New(scoring.WithSegmentWeights(scoring.Weights{}))
			segs := zm.ScoreSegments([]model.Segment{{StartS: 0, EndS: 30, SpikeScore: 1}}, nil)
			So(segs[0].TotalScore, ShouldBeGreaterThan, 0)
		})
	})
}
