package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	causalimpact "github.com/gabriellapppaixao/causal-impact-mvp"
	"github.com/gabriellapppaixao/causal-impact-mvp/ingest"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

var ErrUnknownProfile = errors.New("unknown profile mode, use cpu or mem")

type analyzeFlags struct {
	file   string
	metric string
	sheet  string

	intervention string
	preStart     string
	preEnd       string
	postStart    string
	postEnd      string

	html    string
	json    string
	fitter  string
	method  string
	maxIter int
	profile string
	profDir string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis on a metric column of a csv or xlsx file",
		Long: `Run one analysis on a metric column of a csv or xlsx file.

Split the series either with --intervention or with all four of --pre-start, --pre-end,
--post-start and --post-end. Without any of them the series is split at its middle day.

Example: causalimpact analyze --file sales.csv --metric visits --intervention 2024-04-10 --html fit.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("fitter") {
				a.cfg.Analysis.Fitter = f.fitter
			}
			if cmd.Flags().Changed("method") {
				a.cfg.Analysis.Method = f.method
			}
			if cmd.Flags().Changed("max-iterations") {
				a.cfg.Analysis.MaxIterations = f.maxIter
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			stop, err := startProfile(f.profile, f.profDir)
			if err != nil {
				return err
			}
			defer stop()

			return runAnalyze(cmd, a, f)
		},
	}

	cmd.Flags().StringVar(&f.file, "file", "", "Path to the csv or xlsx file")
	cmd.Flags().StringVar(&f.metric, "metric", "", "Metric column to analyze, defaults to the first metric column")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet of an xlsx file, defaults to the first sheet")
	cmd.Flags().StringVar(&f.intervention, "intervention", "", "First day of the post period")
	cmd.Flags().StringVar(&f.preStart, "pre-start", "", "First day of the pre period")
	cmd.Flags().StringVar(&f.preEnd, "pre-end", "", "Last day of the pre period")
	cmd.Flags().StringVar(&f.postStart, "post-start", "", "First day of the post period")
	cmd.Flags().StringVar(&f.postEnd, "post-end", "", "Last day of the post period")
	cmd.Flags().StringVar(&f.html, "html", "", "Write the fit and effect charts to this html file")
	cmd.Flags().StringVar(&f.json, "json", "", "Write the report as JSON to this file, - prints it instead of the table")
	cmd.Flags().StringVar(&f.fitter, "fitter", "", "Variance estimator, mle or grid")
	cmd.Flags().StringVar(&f.method, "method", "", "Optimizer of the mle fitter, lbfgs, bfgs or neldermead")
	cmd.Flags().IntVar(&f.maxIter, "max-iterations", 0, "Optimizer iteration limit")
	cmd.Flags().StringVar(&f.profile, "profile", "", "Profile the run, cpu or mem")
	cmd.Flags().StringVar(&f.profDir, "profile-dir", ".", "Directory the profile is written to")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func startProfile(mode, dir string) (func(), error) {
	var p func(*profile.Profile)
	switch mode {
	case "":
		return func() {}, nil
	case "cpu":
		p = profile.CPUProfile
	case "mem":
		p = profile.MemProfile
	default:
		return nil, fmt.Errorf("%q, %w", mode, ErrUnknownProfile)
	}
	return profile.Start(p, profile.ProfilePath(dir), profile.Quiet, profile.NoShutdownHook).Stop, nil
}

func readTable(f analyzeFlags, resolver *ingest.ColumnResolver) (*ingest.Table, error) {
	if f.sheet == "" {
		return ingest.ReadFile(f.file, resolver)
	}
	file, err := os.Open(f.file)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ingest.ReadXLSX(file, f.sheet, resolver)
}

func runAnalyze(cmd *cobra.Command, a *app, f analyzeFlags) error {
	opt, err := a.cfg.Analysis.Options()
	if err != nil {
		return err
	}
	opt.Logger = a.logger
	analyzer, err := causalimpact.New(opt)
	if err != nil {
		return err
	}

	window, err := causalimpact.ParseWindow(f.intervention, f.preStart, f.preEnd, f.postStart, f.postEnd)
	if err != nil {
		return err
	}

	tbl, err := readTable(f, opt.Resolver)
	if err != nil {
		return fmt.Errorf("unable to read %s, %w", f.file, err)
	}
	metric := f.metric
	if metric == "" {
		metric = tbl.MetricNames[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.RunTimeout)
	defer cancel()

	report, err := analyzer.RunTable(ctx, tbl, metric, window)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.json == "-" {
		return report.WriteJSON(out)
	}
	if err := report.TablePrint(out, "", "  "); err != nil {
		return err
	}

	if f.json != "" {
		if err := writeFile(f.json, report.WriteJSON); err != nil {
			return err
		}
		a.logger.Info("wrote report", slog.String("path", f.json))
	}

	if f.html != "" {
		if err := writeFile(f.html, report.PlotFit); err != nil {
			return err
		}
		a.logger.Info("wrote chart", slog.String("path", f.html))
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s, %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
