package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/backmassage/vidoptimizer/internal/config"
	"github.com/backmassage/vidoptimizer/internal/display"
	"github.com/backmassage/vidoptimizer/internal/logging"
	"github.com/backmassage/vidoptimizer/internal/naming"
	"github.com/backmassage/vidoptimizer/internal/probe"
	"github.com/backmassage/vidoptimizer/internal/profile"
)

// Prober inspects source files. probe.Client is the production implementation.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.Result, error)
	CountFrames(ctx context.Context, path string) (int64, error)
}

// BatchRequest names the trees and encoding choices for one batch.
type BatchRequest struct {
	InputDir     string
	OutputDir    string
	Codec        config.Codec
	Acceleration config.Acceleration
}

// Orchestrator starts batches. It is safe to start several batches from one
// Orchestrator as long as their output directories differ.
type Orchestrator struct {
	cfg      *config.Config
	log      *logging.Logger
	prober   Prober
	progress ProgressSink
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithProber replaces the ffprobe-backed prober.
func WithProber(p Prober) Option {
	return func(o *Orchestrator) { o.prober = p }
}

// WithProgress attaches a progress sink to every job.
func WithProgress(s ProgressSink) Option {
	return func(o *Orchestrator) { o.progress = s }
}

// NewOrchestrator returns an Orchestrator using cfg's tool paths, worker
// limit and output naming.
func NewOrchestrator(cfg *config.Config, log *logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		log:    log,
		prober: probe.Client{FFprobePath: cfg.FFprobePath, FFmpegPath: cfg.FFmpegPath},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Batch is a handle on a running batch. Outputs[i] is the output path
// assigned to Files[i].
type Batch struct {
	ID      uuid.UUID
	Request BatchRequest
	Files   []string
	Outputs []string

	results *Results
	done    chan struct{}
}

// Total returns the number of files scheduled.
func (b *Batch) Total() int { return len(b.Files) }

// Finished returns the number of tasks that have recorded a result.
func (b *Batch) Finished() int { return b.results.Len() }

// Results returns the results recorded so far without blocking.
func (b *Batch) Results() []EncodeResult { return b.results.Snapshot() }

// Done is closed when every task has finished.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until every task has finished and returns the final results.
func (b *Batch) Wait() []EncodeResult {
	<-b.done
	return b.results.Snapshot()
}

// Start discovers req.InputDir and schedules one task per file. Discovery
// and lock failures are returned before any encoder launches. The returned
// Batch completes after every file has a result; cancelling ctx stops
// running encoders and fails the tasks not yet started.
func (o *Orchestrator) Start(ctx context.Context, req BatchRequest) (*Batch, error) {
	if _, err := config.ParseCodec(string(req.Codec)); err != nil {
		return nil, err
	}
	if _, err := config.ParseAcceleration(string(req.Acceleration)); err != nil {
		return nil, err
	}

	files, err := Discover(req.InputDir)
	if err != nil {
		return nil, err
	}

	outDir, err := filepath.Abs(req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	req.OutputDir = outDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lock, err := lockOutputDir(outDir)
	if err != nil {
		return nil, err
	}

	b := &Batch{
		ID:      uuid.New(),
		Request: req,
		Files:   files,
		Outputs: naming.Assign(files, outDir, o.cfg.OutputSuffix, o.cfg.OutputContainer),
		results: NewResults(len(files)),
		done:    make(chan struct{}),
	}
	go o.schedule(ctx, b, lock)
	return b, nil
}

func (o *Orchestrator) schedule(ctx context.Context, b *Batch, lock *flock.Flock) {
	defer close(b.done)
	defer lock.Unlock()

	runner := &Runner{
		FFmpegPath:   o.cfg.FFmpegPath,
		AudioCodec:   o.cfg.AudioCodec,
		AudioBitrate: o.cfg.AudioBitrate,
		Format:       o.cfg.OutputContainer,
		Overwrite:    !o.cfg.SkipExisting,
		Timeout:      o.cfg.JobTimeout,
		Log:          o.log,
		Progress:     o.progress,
	}

	var g errgroup.Group
	if o.cfg.Workers > 0 {
		g.SetLimit(o.cfg.Workers)
	}
	for i, path := range b.Files {
		path, output := path, b.Outputs[i]
		g.Go(func() error {
			b.results.Append(o.process(ctx, b.Request, runner, path, output))
			return nil
		})
	}
	g.Wait()
}

// process handles one media file: skip check → probe → profile → encode.
// Every return path reports the file to the progress sink exactly once.
func (o *Orchestrator) process(ctx context.Context, req BatchRequest, runner *Runner, path, output string) EncodeResult {
	log := o.log.WithFile(path)

	res := EncodeResult{
		ID:        uuid.New(),
		Source:    path,
		Output:    output,
		StartedAt: time.Now(),
	}
	if fi, err := os.Stat(path); err == nil {
		res.InputBytes = fi.Size()
	}

	if err := ctx.Err(); err != nil {
		res.Status = StatusFailed
		res.Err = "interrupted"
		o.finish(path, false)
		return res
	}

	if o.cfg.SkipExisting {
		if _, err := os.Stat(output); err == nil {
			log.Warn("Skip (exists): %s", filepath.Base(output))
			res.Status = StatusSkipped
			o.finish(path, true)
			return res
		}
	}

	pr, err := o.prober.Probe(ctx, path)
	var geom probe.Geometry
	if err == nil {
		geom, err = pr.Geometry()
		if err != nil {
			err = &probe.ProbeError{Path: path, Err: err}
		}
	}
	if err != nil {
		log.Error("Cannot probe file: %v", err)
		res.Status = StatusFailed
		res.Err = err.Error()
		res.Elapsed = time.Since(res.StartedAt)
		o.finish(path, false)
		return res
	}

	prof := profile.Select(geom, req.Codec, req.Acceleration)
	if prof.Notice != "" {
		log.Warn("%s", prof.Notice)
	}
	log.Info("Encoding %s (%s) -> %s", geom, prof.Summary(), filepath.Base(output))

	res = runner.Run(ctx, Job{
		Source:      path,
		Output:      output,
		Geometry:    geom,
		Profile:     prof,
		TotalFrames: o.totalFrames(ctx, log, pr, path),
	})

	switch res.Status {
	case StatusSucceeded:
		log.Success("Encoded in %s (%s -> %s, %d%% of original)",
			res.Elapsed.Round(time.Second),
			display.FormatBytes(res.InputBytes),
			display.FormatBytes(res.OutputBytes),
			res.Ratio())
	default:
		log.Error("Encode failed: %s", res.Err)
	}
	return res
}

// finish reports a file that ends before the encoder runs. Runner.Run
// reports the rest.
func (o *Orchestrator) finish(path string, ok bool) {
	if o.progress == nil {
		return
	}
	if ok {
		o.progress.Update(path, 100)
	}
	o.progress.Done(path, ok)
}

// totalFrames returns the frame count used as the progress denominator.
// The container header is preferred; the copy pass runs only when a sink
// is attached and the header has no count.
func (o *Orchestrator) totalFrames(ctx context.Context, log *logging.Logger, pr *probe.Result, path string) int64 {
	if o.progress == nil {
		return 0
	}
	if pr.PrimaryVideo != nil && pr.PrimaryVideo.NbFrames > 0 {
		return pr.PrimaryVideo.NbFrames
	}
	n, err := o.prober.CountFrames(ctx, path)
	if err != nil {
		log.Debug("Frame count unavailable: %v", err)
		return 0
	}
	return n
}

// Run starts a batch for cfg's directories and waits for it, logging a
// header and a summary. It returns the final results and their stats.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger, opts ...Option) ([]EncodeResult, RunStats, error) {
	o := NewOrchestrator(cfg, log, opts...)
	b, err := o.Start(ctx, BatchRequest{
		InputDir:     cfg.InputDir,
		OutputDir:    cfg.OutputDir,
		Codec:        cfg.Codec,
		Acceleration: cfg.Acceleration,
	})
	if err != nil {
		return nil, RunStats{}, err
	}

	if t, ok := o.progress.(interface{ SetTotal(int) }); ok {
		t.SetTotal(b.Total())
	}
	logBatchHeader(cfg, log, b)

	select {
	case <-b.Done():
	case <-ctx.Done():
		log.Warn("Received interrupt, stopping %d unfinished encodes…", b.Total()-b.Finished())
	}
	results := b.Wait()
	stats := Summarize(results)
	logSummary(log, &stats)
	return results, stats, nil
}

// --- Logging helpers ---

func logBatchHeader(cfg *config.Config, log *logging.Logger, b *Batch) {
	log.Info("Batch %s: found %d files in %s", b.ID.String()[:8], b.Total(), b.Request.InputDir)
	log.Info("Codec: %s, acceleration: %s", cfg.Codec.Label(), cfg.Acceleration)
	log.Info("Audio: %s at %s, container: %s", cfg.AudioCodec, cfg.AudioBitrate, strings.ToUpper(cfg.OutputContainer))

	workers := "one per file"
	if cfg.Workers > 0 {
		workers = fmt.Sprint(cfg.Workers)
	}
	log.Info("Workers: %s", workers)
	if cfg.JobTimeout > 0 {
		log.Info("Per-file timeout: %s", cfg.JobTimeout)
	}
	if cfg.SkipExisting {
		log.Info("Existing outputs: skip")
	} else {
		log.Info("Existing outputs: overwrite")
	}
}

func logSummary(log *logging.Logger, stats *RunStats) {
	log.Info("==============================")
	log.Info("Done: %d encoded, %d skipped, %d failed", stats.Succeeded, stats.Skipped, stats.Failed)
	log.Info("  Total files processed: %d", stats.Total)

	if stats.Succeeded == 0 {
		return
	}
	saved := stats.SpaceSaved()
	if saved >= 0 {
		log.Success("  Total space saved: %s (input %s -> output %s)",
			display.FormatBytes(saved),
			display.FormatBytes(stats.TotalInputBytes),
			display.FormatBytes(stats.TotalOutputBytes))
	} else {
		log.Warn("  Total space saved: %s (overall output is larger)",
			display.FormatBytesWithSign(saved))
	}
}
