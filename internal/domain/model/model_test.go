package model_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKindError(t *testing.T) {
	Convey("Given a wrapped download failure", t, func() {
		cause := errors.New("connection reset")
		err := model.WrapKind("media.fetch", model.ErrDownload, cause)

		Convey("Then both kind and cause are reachable", func() {
			So(errors.Is(err, model.ErrDownload), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(errors.Is(err, model.ErrEncoding), ShouldBeFalse)
			So(err.Error(), ShouldEqual, "media.fetch: download error: connection reset")
		})

		Convey("And the kind name is stable", func() {
			So(model.KindName(err), ShouldEqual, "download_error")
			So(model.KindName(fmt.Errorf("outer: %w", err)), ShouldEqual, "download_error")
		})

		Convey("And errors.As recovers the op", func() {
			var ke *model.KindError
			So(errors.As(err, &ke), ShouldBeTrue)
			So(ke.Op, ShouldEqual, "media.fetch")
		})
	})

	Convey("Given helper edge cases", t, func() {
		So(model.WrapKind("op", model.ErrEncoding, nil), ShouldBeNil)
		So(model.NewKind("op", model.ErrValidation).Error(), ShouldEqual, "op: validation error")
		So(model.KindName(nil), ShouldEqual, "")
		So(model.KindName(errors.New("boom")), ShouldEqual, "internal_error")
		So(model.KindName(model.Errorf("x", model.ErrChatImport, "line %d", 3)), ShouldEqual, "chat_import_error")
		So(model.KindName(model.NewKind("x", model.ErrInvalidInput)), ShouldEqual, "invalid_input")
	})
}

func TestJobParamsValidate(t *testing.T) {
	Convey("Given VOD highlight params", t, func() {
		p := model.JobParams{SourceRef: "vod.mp4", OutputDir: "/tmp/out", Keywords: []string{"clutch"}}

		Convey("Then well-formed params pass", func() {
			So(p.Validate(model.JobTypeVODHighlights), ShouldBeNil)
		})

		Convey("When source_ref is blank", func() {
			p.SourceRef = "   "
			err := p.Validate(model.JobTypeVODHighlights)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("When output_dir is missing", func() {
			p.OutputDir = ""
			So(errors.Is(p.Validate(model.JobTypeVODHighlights), model.ErrValidation), ShouldBeTrue)
		})

		Convey("When a keyword is blank", func() {
			p.Keywords = []string{"ok", " "}
			So(errors.Is(p.Validate(model.JobTypeVODHighlights), model.ErrValidation), ShouldBeTrue)
		})

		Convey("When max_segments is negative", func() {
			p.MaxSegments = -1
			So(errors.Is(p.Validate(model.JobTypeVODHighlights), model.ErrValidation), ShouldBeTrue)
		})
	})

	Convey("Given clip montage params", t, func() {
		p := model.JobParams{OutputDir: "/tmp/out", Streamers: []string{"alpha"}}
		So(p.Validate(model.JobTypeClipMontage), ShouldBeNil)

		p.Streamers = nil
		So(errors.Is(p.Validate(model.JobTypeClipMontage), model.ErrValidation), ShouldBeTrue)

		p.Streamers = []string{""}
		So(errors.Is(p.Validate(model.JobTypeClipMontage), model.ErrValidation), ShouldBeTrue)
	})

	Convey("Given an unknown job type", t, func() {
		p := model.JobParams{OutputDir: "/tmp"}
		So(errors.Is(p.Validate("reel"), model.ErrValidation), ShouldBeTrue)
	})
}

func TestStagesAndStates(t *testing.T) {
	Convey("Given the VOD pipeline", t, func() {
		stages := model.Stages(model.JobTypeVODHighlights)
		So(stages[0], ShouldEqual, model.StageDownload)
		So(stages[len(stages)-1], ShouldEqual, model.StageFinalize)
		So(len(stages), ShouldEqual, 9)

		Convey("Then the returned slice is a copy", func() {
			stages[0] = "tampered"
			So(model.Stages(model.JobTypeVODHighlights)[0], ShouldEqual, model.StageDownload)
		})
	})

	Convey("Given the clip pipeline", t, func() {
		stages := model.Stages(model.JobTypeClipMontage)
		So(stages[0], ShouldEqual, model.StageDiscoverClips)
		So(stages, ShouldContain, model.StageDownloadClips)
	})

	Convey("Given job states", t, func() {
		So(model.StateDone.Terminal(), ShouldBeTrue)
		So(model.StateFailed.Terminal(), ShouldBeTrue)
		So(model.StateQueued.Terminal(), ShouldBeFalse)
		So(model.StateRunning.Terminal(), ShouldBeFalse)
	})
}

func TestJobClone(t *testing.T) {
	Convey("Given a finished job", t, func() {
		now := time.Now()
		j := &model.Job{
			ID:        "a",
			State:     model.StateDone,
			Params:    model.JobParams{Keywords: []string{"gg"}},
			Result:    &model.Result{OutputPaths: []string{"x.mp4"}, Selected: []types.Entry{{Rank: 1}}},
			StartedAt: &now,
		}

		Convey("When cloned and mutated", func() {
			c := j.Clone()
			c.Params.Keywords[0] = "changed"
			c.Result.OutputPaths[0] = "y.mp4"
			*c.StartedAt = now.Add(time.Hour)

			Convey("Then the original is untouched", func() {
				So(j.Params.Keywords[0], ShouldEqual, "gg")
				So(j.Result.OutputPaths[0], ShouldEqual, "x.mp4")
				So(j.StartedAt.Equal(now), ShouldBeTrue)
			})
		})

		Convey("And cloning nil is safe", func() {
			var nj *model.Job
			So(nj.Clone(), ShouldBeNil)
		})
	})
}

func TestClipIdentity(t *testing.T) {
	Convey("Given clip URLs", t, func() {
		So(model.ClipIdentityFromURL("https://www.twitch.tv/alpha/clip/FunnySlug-abc?filter=clips"), ShouldEqual, "FunnySlug-abc")
		So(model.ClipIdentityFromURL("https://clips.twitch.tv/Other/"), ShouldEqual, "clips.twitch.tv/Other")
		So(model.ClipIdentityFromURL("local/clip.mp4?x#y"), ShouldEqual, "local/clip.mp4")
	})

	Convey("Given duplicate clips", t, func() {
		clips := []model.Clip{
			{URL: "https://twitch.tv/a/clip/one", Views: 10},
			{URL: "https://twitch.tv/b/clip/two", Views: 5},
			{URL: "https://twitch.tv/a/clip/one?t=3", Views: 40},
		}

		Convey("When deduplicated", func() {
			out := model.DedupeClips(clips)

			Convey("Then the most viewed copy wins in first-seen position", func() {
				So(len(out), ShouldEqual, 2)
				So(out[0].Views, ShouldEqual, 40)
				So(out[1].Identity(), ShouldEqual, "two")
			})
		})

		Convey("When a clip has an explicit id", func() {
			c := model.Clip{ID: "abc", URL: "https://twitch.tv/a/clip/zzz"}
			So(c.Identity(), ShouldEqual, "abc")
		})
	})
}

func TestSegmentHelpers(t *testing.T) {
	Convey("Given a segment", t, func() {
		s := model.Segment{StartS: 8, EndS: 17}
		So(s.DurationS(), ShouldEqual, 9)
		So(s.Key(), ShouldEqual, "8.000-17.000")
	})
}
