package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/vodcut/internal/config"
	"github.com/okian/vodcut/internal/domain/scoring"
	"github.com/okian/vodcut/internal/domain/spike"
	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

func TestConfig_New(t *testing.T) {
	Convey("Given a new config with defaults", t, func() {
		cfg := config.New(context.Background())

		Convey("Then it validates", func() {
			So(cfg.Validate(), ShouldBeNil)
			So(cfg.AdvanceInterval(), ShouldEqual, 500*time.Millisecond)
		})

		Convey("Then the default policy is absolute", func() {
			p, err := cfg.ThresholdPolicy()
			So(err, ShouldBeNil)
			So(p, ShouldResemble, spike.Absolute{MinCount: 5})
		})

		Convey("Then a scoring model can be built", func() {
			So(cfg.ScoringModel(), ShouldNotBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		cases := []struct {
			name   string
			mutate func(*config.Config)
			want   string
		}{
			{"zero bucket width", func(c *config.Config) { c.BucketWidthS = 0 }, "bucket_width_s"},
			{"unknown threshold mode", func(c *config.Config) { c.ThresholdMode = "magic" }, "threshold_mode"},
			{"statistical without window", func(c *config.Config) {
				c.ThresholdMode = config.ThresholdStatistical
				c.StatWindow = 0
			}, "invalid configuration"},
			{"unknown store", func(c *config.Config) { c.Store = "redis" }, "store"},
			{"sqlite without path", func(c *config.Config) {
				c.Store = config.StoreSQLite
				c.DBPath = " "
			}, "db_path"},
			{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
			{"negative margin", func(c *config.Config) { c.MarginS = -1 }, "margin_s"},
			{"negative group cap", func(c *config.Config) { c.ClipGroupCap = -1 }, "group caps"},
			{"negative weight", func(c *config.Config) { c.ClipWeights.Popularity = -1 }, "clip_weights"},
			{"all-zero weights", func(c *config.Config) { c.SegmentWeights = scoring.Weights{} }, "segment_weights"},
			{"blank keyword", func(c *config.Config) { c.Keywords = []string{"ok", " "} }, "keywords[1]"},
		}
		for _, tc := range cases {
			Convey("When "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				Convey("Then it is rejected", func() {
					So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
					So(err.Error(), ShouldContainSubstring, tc.want)
				})
			})
		}

		Convey("When the statistical mode is configured", func() {
			cfg.ThresholdMode = "Statistical"
			p, err := cfg.ThresholdPolicy()

			Convey("Then a statistical policy is built", func() {
				So(err, ShouldBeNil)
				So(p, ShouldResemble, spike.Statistical{K: 2, Window: 10, MinCount: 5})
			})
		})
	})
}

func TestConfig_YAML(t *testing.T) {
	Convey("Given the effective config rendered as YAML", t, func() {
		cfg := config.New(context.Background())
		out, err := cfg.YAML()
		So(err, ShouldBeNil)

		Convey("Then it round-trips through the same keys", func() {
			var back map[string]any
			So(yaml.Unmarshal(out, &back), ShouldBeNil)
			So(back["addr"], ShouldEqual, ":9080")
			So(back["threshold_mode"], ShouldEqual, "absolute")
			weights, ok := back["segment_weights"].(map[string]any)
			So(ok, ShouldBeTrue)
			So(weights["signal"], ShouldEqual, 0.6)
		})
	})
}
