// Package cli builds the vodcut command tree.
//
//	vodcut serve        run the HTTP API and the auto-advance driver
//	vodcut run SOURCE   run one job locally or against a server
//	vodcut detect CHAT  rank highlight segments for a chat log
//	vodcut gen-chat     write a synthetic chat log
//	vodcut config       print the effective configuration
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/vodcut/internal/config"
	"github.com/okian/vodcut/pkg/logger"
)

// Version is stamped at build time.
var Version = "dev" //nolint:gochecknoglobals // set by -ldflags

// state is shared by the subcommands of one invocation.
type state struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:           "vodcut",
		Short:         "Chat-driven VOD highlight selection",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.load(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&st.configPath, "config", "c", "", "config file (default $"+config.EnvConfig+")")
	flags.StringVar(&st.logLevel, "log-level", "", "override log_level")
	flags.StringVar(&st.logFormat, "log-format", "", "override log_format (text or json)")

	root.AddCommand(
		buildServeCommand(st),
		buildRunCommand(st),
		buildDetectCommand(st),
		buildGenChatCommand(st),
		buildConfigCommand(st),
	)
	return root
}

// load reads configuration and initializes logging. Logs go to stderr so
// commands can print JSON on stdout.
func (st *state) load(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := st.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	cfg, err := config.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	if st.logLevel != "" {
		cfg.LogLevel = st.logLevel
	}
	if st.logFormat != "" {
		cfg.LogFormat = st.logFormat
	}

	if err := logger.InitWithFormat(cfg.LogFormat, os.Stderr); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	st.cfg = cfg
	return nil
}
