package testchat

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o644
)

var filler = []string{"lol", "hi chat", "what", "ok", "nice", "gg", "LUL", "true", "o7", "wait"} //nolint:gochecknoglobals // static vocabulary

// authorNamespace seeds deterministic author ids.
var authorNamespace = uuid.MustParse("6f1d3c2a-8b7e-4f5a-9c0d-1e2f3a4b5c6d") //nolint:gochecknoglobals // fixed namespace

// Generate returns a chat log ordered by timestamp. Messages arrive as a
// Poisson process at BaseRate, plus Rate inside each burst.
func Generate(ctx context.Context, cfg Config) ([]model.ChatEvent, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data
	authors := authorIDs(cfg)

	var events []model.ChatEvent
	emit := func(from, to, rate float64, burst bool) error {
		if rate <= 0 {
			return nil
		}
		for t := from + rng.ExpFloat64()/rate; t < to; t += rng.ExpFloat64() / rate {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("generation cancelled: %w", err)
			}
			events = append(events, model.ChatEvent{
				TimestampS: math.Round(t*1000) / 1000,
				Text:       message(rng, cfg.Keywords, burst),
				Author:     authors[rng.IntN(len(authors))],
			})
		}
		return nil
	}

	if err := emit(0, cfg.DurationS, cfg.BaseRate, false); err != nil {
		return nil, err
	}
	for _, b := range cfg.Bursts {
		if err := emit(b.AtS, math.Min(b.AtS+b.LenS, cfg.DurationS), b.Rate, true); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].TimestampS < events[j].TimestampS })
	logger.Get().Debug(ctx, "generated chat",
		logger.Int("events", len(events)),
		logger.Int("bursts", len(cfg.Bursts)),
		logger.Float64("duration_s", cfg.DurationS))
	return events, nil
}

func validate(cfg Config) error {
	switch {
	case cfg.DurationS <= 0:
		return fmt.Errorf("duration must be > 0, got %v", cfg.DurationS)
	case cfg.BaseRate < 0:
		return fmt.Errorf("base rate must be >= 0, got %v", cfg.BaseRate)
	}
	for i, b := range cfg.Bursts {
		if b.AtS < 0 || b.LenS <= 0 || b.Rate < 0 {
			return fmt.Errorf("burst %d is invalid: %+v", i, b)
		}
	}
	return nil
}

func authorIDs(cfg Config) []string {
	n := max(cfg.Authors, 1)
	out := make([]string, n)
	for i := range out {
		id := uuid.NewSHA1(authorNamespace, []byte(strconv.FormatUint(cfg.Seed, 10)+"/"+strconv.Itoa(i)))
		out[i] = "viewer_" + id.String()[:8]
	}
	return out
}

func message(rng *rand.Rand, keywords []string, burst bool) string {
	if burst && len(keywords) > 0 && rng.IntN(2) == 0 {
		return keywords[rng.IntN(len(keywords))]
	}
	return filler[rng.IntN(len(filler))]
}

// WriteJSONL writes events one JSON object per line, creating parent directories.
func WriteJSONL(path string, events []model.ChatEvent) error {
	if err := os.MkdirAll(filepath.Dir(path), directoryPermission); err != nil {
		return fmt.Errorf("create chat directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("create chat file: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			return fmt.Errorf("write chat event: %w", err)
		}
	}
	return f.Close()
}
