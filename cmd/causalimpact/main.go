// Command causalimpact estimates the effect of an intervention on a daily metric read from
// a csv or xlsx file, either once from the command line or behind an HTTP server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gabriellapppaixao/causal-impact-mvp/internal/config"
	"github.com/gabriellapppaixao/causal-impact-mvp/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand once the persistent flags are parsed
type app struct {
	configPath string
	envFiles   []string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "causalimpact",
		Short:         "Estimate the causal effect of an intervention on a daily metric",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "Dotenv files loaded before reading the environment")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func (a *app) load(w io.Writer) error {
	if err := config.LoadEnvFiles(a.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging, w)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
