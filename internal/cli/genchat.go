package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/vodcut/internal/testchat"
	"github.com/okian/vodcut/pkg/logger"
)

func buildGenChatCommand(_ *state) *cobra.Command {
	var (
		out    string
		bursts []string
	)
	cfg := testchat.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "gen-chat",
		Short: "Write a synthetic chat log as JSONL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("burst") {
				parsed, err := parseBursts(bursts)
				if err != nil {
					return err
				}
				cfg.Bursts = parsed
			}
			ctx := cmd.Context()
			events, err := testchat.Generate(ctx, cfg)
			if err != nil {
				return err
			}
			if err := testchat.WriteJSONL(out, events); err != nil {
				return err
			}
			logger.Get().Info(ctx, "chat log written",
				logger.String("path", out),
				logger.Int("events", len(events)),
				logger.Int("bursts", len(cfg.Bursts)))
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&out, "out", "o", "chat.jsonl", "output file")
	fl.Float64Var(&cfg.DurationS, "duration", cfg.DurationS, "VOD length in seconds")
	fl.Float64Var(&cfg.BaseRate, "base-rate", cfg.BaseRate, "background messages per second")
	fl.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	fl.IntVar(&cfg.Authors, "authors", cfg.Authors, "distinct chatters")
	fl.StringSliceVarP(&cfg.Keywords, "keyword", "k", cfg.Keywords, "keywords mixed into bursts")
	fl.StringArrayVar(&bursts, "burst", nil, "burst as at:len:rate in seconds and messages/s, repeatable")
	return cmd
}

// parseBursts parses "at:len:rate" triples.
func parseBursts(specs []string) ([]testchat.Burst, error) {
	out := make([]testchat.Burst, 0, len(specs))
	for _, s := range specs {
		parts := strings.Split(s, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("burst %q: want at:len:rate", s)
		}
		var vals [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("burst %q: %w", s, err)
			}
			vals[i] = v
		}
		out = append(out, testchat.Burst{AtS: vals[0], LenS: vals[1], Rate: vals[2]})
	}
	return out, nil
}
