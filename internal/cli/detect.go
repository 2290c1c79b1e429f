package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/okian/vodcut/internal/adapters/media"
	"github.com/okian/vodcut/internal/config"
	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/domain/ranking"
	"github.com/okian/vodcut/internal/domain/segment"
	"github.com/okian/vodcut/internal/domain/spike"
	"github.com/okian/vodcut/internal/domain/types"
)

// detectReport is the output of the detect command.
type detectReport struct {
	Events         int                 `json:"events"`
	Policy         string              `json:"policy"`
	Spikes         []model.SpikeWindow `json:"spikes"`
	Segments       []model.Segment     `json:"segments"`
	Selected       []types.Entry       `json:"selected"`
	TotalDurationS float64             `json:"total_duration_s"`
	UnderTarget    bool                `json:"under_target"`
}

func buildDetectCommand(st *state) *cobra.Command {
	var (
		durationS   float64
		keywords    []string
		maxSegments int
	)

	cmd := &cobra.Command{
		Use:   "detect CHAT",
		Short: "Rank highlight segments for a chat log without touching video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			events, err := media.NewFileChatImporter().Load(ctx, args[0])
			if err != nil {
				return err
			}
			rep, err := detect(ctx, st.cfg, events, durationS, keywords, maxSegments)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&durationS, "duration", 0, "VOD length in seconds (default: last message plus one bucket)")
	fl.StringSliceVarP(&keywords, "keyword", "k", nil, "boost keyword, repeatable")
	fl.IntVar(&maxSegments, "max-segments", 0, "cap selected segments (0 is unlimited)")
	return cmd
}

// detect runs the pure part of the VOD pipeline: spikes, segments, scores
// and selection.
func detect(ctx context.Context, cfg *config.Config, events []model.ChatEvent, durationS float64, keywords []string, maxSegments int) (*detectReport, error) {
	policy, err := cfg.ThresholdPolicy()
	if err != nil {
		return nil, err
	}
	spikes, err := spike.Detect(events, spike.Options{
		BucketWidthS: cfg.BucketWidthS,
		Policy:       policy,
		VODRelative:  true,
	})
	if err != nil {
		return nil, err
	}

	if durationS <= 0 {
		last := 0.0
		if n := len(events); n > 0 {
			last = events[n-1].TimestampS
		}
		durationS = math.Max(last+cfg.BucketWidthS, cfg.BucketWidthS)
	}
	segs, err := segment.Generate(spikes, segment.Options{
		MarginS:      cfg.MarginS,
		MergeGapS:    cfg.MergeGapS,
		VODDurationS: durationS,
	})
	if err != nil {
		return nil, err
	}
	segment.AttachContext(segs, events, cfg.ContextWindowS)
	segs = cfg.ScoringModel().ScoreSegments(segs, keywords)

	capN := cfg.SegmentGroupCap
	if maxSegments > 0 {
		capN = maxSegments
	}
	res, err := ranking.NewGreedy().Select(ctx, ranking.Segments(segs), ranking.Options{
		GroupCap: capN,
		MinS:     cfg.TargetMinS,
		MaxS:     cfg.TargetMaxS,
		Overlap:  ranking.TimelineOverlap,
	})
	if err != nil {
		return nil, err
	}

	return &detectReport{
		Events:         len(events),
		Policy:         policy.String(),
		Spikes:         spikes,
		Segments:       segs,
		Selected:       ranking.Entries(res),
		TotalDurationS: res.TotalDurationS,
		UnderTarget:    res.UnderTarget,
	}, nil
}
