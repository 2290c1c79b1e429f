package testchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/pkg/logger"
)

// Client defaults.
const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 200 * time.Millisecond
	defaultMaxSteps     = 1_000
	maxErrorBody        = 4 << 10
)

// ErrGaveUp is returned by Drive when MaxSteps advances did not finish the job.
var ErrGaveUp = errors.New("job did not finish")

// Client submits and drives jobs on a running service.
type Client struct {
	http *http.Client
	cfg  ClientConfig
}

// NewClient creates a client. Zero config values take defaults.
func NewClient(cfg ClientConfig) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	return &Client{http: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type runNextResponse struct {
	Processed int        `json:"processed"`
	Job       *model.Job `json:"job"`
}

// Submit posts a job and returns its id.
func (c *Client) Submit(ctx context.Context, jobType model.JobType, params model.JobParams) (string, error) {
	path := "/jobs/vod-highlights"
	if jobType == model.JobTypeClipMontage {
		path = "/jobs/clip-montage"
	}
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, path, params, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// RunNext advances one stage. A nil job means the service was idle.
func (c *Client) RunNext(ctx context.Context) (*model.Job, error) {
	var resp runNextResponse
	if err := c.do(ctx, http.MethodPost, "/jobs/run-next", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

// Get fetches a job.
func (c *Client) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+id, nil, http.StatusOK, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Drive calls run-next until job id is terminal and returns it.
func (c *Client) Drive(ctx context.Context, id string) (*model.Job, error) {
	for step := 0; step < c.cfg.MaxSteps; step++ {
		job, err := c.RunNext(ctx)
		if err != nil {
			return nil, err
		}
		if job == nil {
			// Another caller may have finished it.
			job, err = c.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if job.State.Terminal() {
				return job, nil
			}
		} else {
			logger.Get().Debug(ctx, "advanced",
				logger.JobID(job.ID),
				logger.String("state", string(job.State)),
				logger.Stage(string(job.Stage)))
			if job.ID == id && job.State.Terminal() {
				return job, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
	return nil, fmt.Errorf("%w after %d steps", ErrGaveUp, c.cfg.MaxSteps)
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
