package main

import (
	causalimpact "github.com/gabriellapppaixao/causal-impact-mvp"
	"github.com/gabriellapppaixao/causal-impact-mvp/internal/metrics"
	"github.com/gabriellapppaixao/causal-impact-mvp/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analyses over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}

			opt, err := a.cfg.Analysis.Options()
			if err != nil {
				return err
			}
			opt.Logger = a.logger
			analyzer, err := causalimpact.New(opt)
			if err != nil {
				return err
			}

			srv := server.New(a.cfg.Server, analyzer, metrics.New(), a.logger)
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides the config")
	return cmd
}
