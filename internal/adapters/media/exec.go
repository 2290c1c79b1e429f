// Package media holds the adapters that touch disk, network and external
// tools: VOD and clip fetching, chat log import, ffmpeg cutting and
// concatenation, clip catalogs and job manifests.
//
// Every failure is wrapped with one of the model error kinds so the
// orchestrator can record it on the job.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/okian/vodcut/pkg/logger"
)

// Runner executes an external tool and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct {
	log logger.Logger
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner(l logger.Logger) *ExecRunner {
	if l == nil {
		l = logger.Discard()
	}
	return &ExecRunner{log: l.Named("exec")}
}

// Run implements Runner. Stderr is folded into the error on failure.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	start := time.Now()
	r.log.Debug(ctx, "executing", logger.String("cmd", name), logger.Any("args", args))

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, lastLine(stderr.String()))
	}

	r.log.Debug(ctx, "execution completed",
		logger.String("cmd", name),
		logger.Duration("elapsed", time.Since(start)))
	return stdout.Bytes(), nil
}

// LookPath resolves a tool name to an absolute path, keeping name when
// it cannot be resolved so the failure surfaces when the tool is used.
func LookPath(name string) string {
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return name
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
