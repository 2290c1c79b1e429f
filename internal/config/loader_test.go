package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/vodcut/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			Convey("Then it should load successfully with defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
				So(cfg.Store, ShouldEqual, config.StoreMemory)
				So(cfg.BucketWidthS, ShouldEqual, 30.0)
				So(cfg.TargetMinS, ShouldEqual, 480.0)
				So(cfg.TargetMaxS, ShouldEqual, 600.0)
			})
		})

		Convey("When loading config with environment variables", func() {
			_ = os.Setenv("VODCUT_ADDR", ":8080")
			_ = os.Setenv("VODCUT_QUEUE_SIZE", "50")
			_ = os.Setenv("VODCUT_BUCKET_WIDTH_S", "15")
			_ = os.Setenv("VODCUT_THRESHOLD_MODE", "statistical")
			_ = os.Setenv("VODCUT_AUTO_ADVANCE", "false")
			_ = os.Setenv("VODCUT_KEYWORDS", "clutch,pog")

			cfg, err := config.Load(ctx)

			Convey("Then it should override defaults with env vars", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8080")
				So(cfg.QueueSize, ShouldEqual, 50)
				So(cfg.BucketWidthS, ShouldEqual, 15.0)
				So(cfg.ThresholdMode, ShouldEqual, config.ThresholdStatistical)
				So(cfg.AutoAdvance, ShouldBeFalse)
				So(cfg.Keywords, ShouldResemble, []string{"clutch", "pog"})
			})
		})

		Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
store: sqlite
db_path: /tmp/vodcut-test.db
target_min_s: 60
target_max_s: 120
segment_weights:
  signal: 1
`)
			_ = os.Setenv(config.EnvConfig, tmpFile)

			cfg, err := config.Load(ctx)

			Convey("Then file values are layered over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.Store, ShouldEqual, config.StoreSQLite)
				So(cfg.TargetMinS, ShouldEqual, 60.0)
				So(cfg.SegmentWeights.Signal, ShouldEqual, 1.0)
				So(cfg.SegmentWeights.Keyword, ShouldEqual, 0.2)
				So(cfg.MarginS, ShouldEqual, 20.0)
			})
		})

		Convey("When both file and environment set a value", func() {
			tmpFile := createTempConfigFile(t, "addr: \":9090\"\nmargin_s: 5\n")
			_ = os.Setenv(config.EnvConfig, tmpFile)
			_ = os.Setenv("VODCUT_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			Convey("Then environment variables win", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8080")
				So(cfg.MarginS, ShouldEqual, 5.0)
			})
		})

		Convey("When loading an explicit file", func() {
			tmpFile := createTempConfigFile(t, "log_level: debug\n")

			cfg, err := config.LoadFile(ctx, tmpFile)

			Convey("Then it is used without the env var", func() {
				So(err, ShouldBeNil)
				So(cfg.LogLevel, ShouldEqual, "debug")
			})
		})

		Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv(config.EnvConfig, tmpFile)

			cfg, err := config.Load(ctx)

			Convey("Then it should return a load error", func() {
				So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
				So(cfg, ShouldBeNil)
			})
		})

		Convey("When the file does not exist", func() {
			_ = os.Setenv(config.EnvConfig, "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			Convey("Then it should return an error", func() {
				So(err, ShouldNotBeNil)
				So(cfg, ShouldBeNil)
			})
		})

		Convey("When addr is empty", func() {
			_ = os.Setenv("VODCUT_ADDR", "")

			cfg, err := config.Load(ctx)

			Convey("Then it should return a validation error", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "addr must not be empty")
				So(cfg, ShouldBeNil)
			})
		})

		Convey("When a numeric variable is malformed", func() {
			_ = os.Setenv("VODCUT_QUEUE_SIZE", "lots")

			cfg, err := config.Load(ctx)

			Convey("Then loading fails", func() {
				So(err, ShouldNotBeNil)
				So(cfg, ShouldBeNil)
			})
		})

		Convey("When the target range is inverted", func() {
			_ = os.Setenv("VODCUT_TARGET_MIN_S", "700")

			_, err := config.Load(ctx)

			Convey("Then validation fails", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "target_min_s")
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "vodcut-*.yaml")
	if err != nil {
		t.Fatalf("create temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp config: %v", err)
	}
	return f.Name()
}
