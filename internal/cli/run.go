package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/vodcut/internal/adapters/mq/worker"
	service "github.com/okian/vodcut/internal/app"
	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/internal/testchat"
	"github.com/okian/vodcut/pkg/logger"
)

// ErrJobFailed is returned by run when the job ends FAILED.
var ErrJobFailed = errors.New("job failed")

type runFlags struct {
	jobType     string
	out         string
	chat        string
	keywords    []string
	maxSegments int
	streamers   []string
	catalogDir  string
	server      string
}

func buildRunCommand(st *state) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [SOURCE]",
		Short: "Run one job to completion and print it as JSON",
		Long: "Run one job to completion. SOURCE is a local .mp4, an .mp4 URL or a Twitch VOD " +
			"for vod_highlights jobs. With --server the job runs on a remote service.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType, params, err := f.params(args)
			if err != nil {
				return err
			}
			var job *model.Job
			if f.server != "" {
				job, err = runRemote(cmd.Context(), f.server, jobType, params)
			} else {
				job, err = runLocal(cmd.Context(), st, jobType, params)
			}
			if job != nil {
				if perr := printJob(cmd.OutOrStdout(), job); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.jobType, "type", string(model.JobTypeVODHighlights), "job type: vod_highlights or clip_montage")
	fl.StringVarP(&f.out, "out", "o", "out", "output directory")
	fl.StringVar(&f.chat, "chat", "", "chat log (default <out>/chat.jsonl)")
	fl.StringSliceVarP(&f.keywords, "keyword", "k", nil, "boost keyword, repeatable")
	fl.IntVar(&f.maxSegments, "max-segments", 0, "cap selected segments (0 is unlimited)")
	fl.StringSliceVar(&f.streamers, "streamer", nil, "streamer for clip_montage, repeatable")
	fl.StringVar(&f.catalogDir, "catalog-dir", "", "clip catalog directory (overrides catalog_dir)")
	fl.StringVar(&f.server, "server", "", "base URL of a running service")
	return cmd
}

func (f *runFlags) params(args []string) (model.JobType, model.JobParams, error) {
	jobType := model.JobType(f.jobType)
	p := model.JobParams{
		ChatRef:     f.chat,
		OutputDir:   f.out,
		Keywords:    f.keywords,
		MaxSegments: f.maxSegments,
		Streamers:   f.streamers,
		CatalogDir:  f.catalogDir,
	}
	if len(args) > 0 {
		p.SourceRef = args[0]
	}
	if err := p.Validate(jobType); err != nil {
		return "", model.JobParams{}, err
	}
	return jobType, p, nil
}

// runLocal submits to an in-process orchestrator and drains it until the
// job is terminal.
func runLocal(ctx context.Context, st *state, jobType model.JobType, params model.JobParams, extra ...service.Option) (*model.Job, error) {
	orch, err := buildOrchestrator(ctx, st.cfg, extra...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = orch.Close() }()

	job, err := orch.Submit(ctx, jobType, params)
	if err != nil {
		return nil, err
	}
	log := logger.Get().Named("run")
	log.Info(ctx, "job submitted", logger.JobID(job.ID), logger.String("type", string(jobType)))

	d := worker.NewDriver(orch, worker.WithName("run"), worker.WithIdle(isIdle))
	if _, err := d.Drain(ctx, func(j *model.Job) bool {
		if j != nil && j.ID == job.ID {
			log.Debug(ctx, "stage finished", logger.JobID(j.ID), logger.Stage(string(j.Stage)))
		}
		return j != nil && j.ID == job.ID && j.State.Terminal()
	}); err != nil {
		return nil, err
	}

	final, err := orch.Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	return final, jobErr(final)
}

// runRemote submits to a running service and drives it with run-next.
func runRemote(ctx context.Context, server string, jobType model.JobType, params model.JobParams) (*model.Job, error) {
	client := testchat.NewClient(testchat.ClientConfig{BaseURL: server})
	id, err := client.Submit(ctx, jobType, params)
	if err != nil {
		return nil, err
	}
	job, err := client.Drive(ctx, id)
	if err != nil {
		return nil, err
	}
	return job, jobErr(job)
}

// jobErr is non-nil for a FAILED job, so the process exits non-zero.
func jobErr(job *model.Job) error {
	if job.State != model.StateFailed {
		return nil
	}
	if job.Error == nil {
		return ErrJobFailed
	}
	return fmt.Errorf("%w at %s: %s: %s", ErrJobFailed, job.Error.Stage, job.Error.Kind, job.Error.Message)
}

func printJob(w io.Writer, job *model.Job) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(job); err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return nil
}
