package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/vidoptimizer/internal/check"
	"github.com/backmassage/vidoptimizer/internal/config"
	"github.com/backmassage/vidoptimizer/internal/display"
	"github.com/backmassage/vidoptimizer/internal/logging"
	"github.com/backmassage/vidoptimizer/internal/pipeline"
	"github.com/backmassage/vidoptimizer/internal/term"
)

// errBatchFailed signals exit status 1 after the report has been printed.
var errBatchFailed = errors.New("one or more files failed")

func runBatch(cmd *cobra.Command, flags *config.Flags, args []string) error {
	// Bootstrap: the logger doesn't exist yet, so errors are returned to
	// main and printed there.
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	if err := cfg.SetPositional(args); err != nil {
		return err
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	out := cmd.OutOrStdout()
	display.PrintBanner(out, "v"+version)

	// Output must not be inside input, or later runs would re-encode
	// their own outputs.
	inputAbs, err := absPath(cfg.InputDir)
	if err != nil {
		log.Error("Input not found: %s", cfg.InputDir)
		return errBatchFailed
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Error("Cannot create output directory: %s", cfg.OutputDir)
		return errBatchFailed
	}
	outputAbs, err := absPath(cfg.OutputDir)
	if err != nil {
		log.Error("Cannot resolve output path: %s", cfg.OutputDir)
		return errBatchFailed
	}
	if err := cfg.ValidatePaths(inputAbs, outputAbs); err != nil {
		log.Error("%v", err)
		log.Error("Choose an output path outside: %s", cfg.InputDir)
		return errBatchFailed
	}

	log.Info("In:  %s", cfg.InputDir)
	log.Info("Out: %s", cfg.OutputDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DryRun {
		log.Warn("DRY RUN: no files will be written")
		return runPlan(ctx, cfg, log, out)
	}

	if err := check.CheckDeps(ctx, cfg); err != nil {
		log.Error("%v", err)
		return errBatchFailed
	}

	var opts []pipeline.Option
	var board *display.ProgressBoard
	if cfg.ShowProgress && term.IsTerminal(os.Stderr) {
		board = display.NewProgressBoard(os.Stderr)
		opts = append(opts, pipeline.WithProgress(board))
	}

	results, stats, err := pipeline.Run(ctx, cfg, log, opts...)
	if board != nil {
		board.Close()
		done, failed := board.Counts()
		log.Debug("Progress closed at %d finished, %d failed", done, failed)
	}
	if err != nil {
		var de *pipeline.DiscoveryError
		if errors.As(err, &de) {
			log.Error("File discovery failed: %v", de.Err)
		} else {
			log.Error("%v", err)
		}
		return errBatchFailed
	}

	if len(results) > 0 {
		fmt.Fprintln(out, display.RenderResults(pipeline.ReportRows(results)))
	}
	if stats.Failed > 0 || ctx.Err() != nil {
		return errBatchFailed
	}
	return nil
}

// runPlan prints what a batch would do without launching the encoder.
func runPlan(ctx context.Context, cfg *config.Config, log *logging.Logger, out io.Writer) error {
	entries, err := pipeline.Plan(ctx, cfg, nil)
	if err != nil {
		log.Error("%v", err)
		return errBatchFailed
	}
	if len(entries) == 0 {
		log.Warn("No media files found in %s", cfg.InputDir)
		return nil
	}

	fmt.Fprintln(out, display.RenderPlan(pipeline.PlanRows(entries), cfg.Verbose))

	var encode, skip, failed int
	for _, e := range entries {
		switch {
		case e.Err != "":
			failed++
		case e.Skip:
			skip++
		default:
			encode++
		}
	}
	log.Info("Plan: %d to encode, %d skipped, %d unreadable", encode, skip, failed)
	if failed > 0 {
		return errBatchFailed
	}
	return nil
}

// absPath returns the absolute, symlink-resolved path for safe comparison
// of input vs output directory hierarchies.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
