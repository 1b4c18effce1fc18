package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/vidoptimizer/internal/ffmpeg"
	"github.com/backmassage/vidoptimizer/internal/logging"
	"github.com/backmassage/vidoptimizer/internal/probe"
	"github.com/backmassage/vidoptimizer/internal/profile"
)

// ProgressSink receives per-file completion updates. Implementations must be
// goroutine-safe; Update is called from every running job.
type ProgressSink interface {
	// Update reports percent (0..100) complete for the source at path.
	Update(path string, percent float64)
	// Done reports that the job for path has finished.
	Done(path string, ok bool)
}

// Job is one file's encode request.
type Job struct {
	Source      string
	Output      string
	Geometry    probe.Geometry
	Profile     profile.Profile
	TotalFrames int64 // 0 when unknown; disables progress updates.
}

// Runner launches one encoder process per Job.
type Runner struct {
	FFmpegPath   string
	AudioCodec   string
	AudioBitrate string
	Format       string
	Overwrite    bool
	Timeout      time.Duration // Per job; 0 means none.
	Log          *logging.Logger
	Progress     ProgressSink // Optional.
}

// Run encodes job and returns its finalized result. It never returns an
// error: launch failures and non-zero exits are recorded in the result.
func (r *Runner) Run(ctx context.Context, job Job) EncodeResult {
	log := r.Log.WithFile(job.Source)
	res := EncodeResult{
		ID:        uuid.New(),
		Source:    job.Source,
		Output:    job.Output,
		Status:    StatusRunning,
		Profile:   job.Profile.Summary(),
		StartedAt: time.Now(),
	}
	if fi, err := os.Stat(job.Source); err == nil {
		res.InputBytes = fi.Size()
	}
	_, statErr := os.Stat(job.Output)
	preexisting := statErr == nil

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := ffmpeg.Build(ffmpeg.Request{
		Binary:       r.FFmpegPath,
		Input:        job.Source,
		Output:       job.Output,
		Profile:      job.Profile,
		AudioCodec:   r.AudioCodec,
		AudioBitrate: r.AudioBitrate,
		Format:       r.Format,
		Overwrite:    r.Overwrite,
	})
	debug := log.DebugEnabled()
	if debug {
		log.Debug("Command: %s", strings.Join(args, " "))
	}

	var mapping ffmpeg.StreamMapParser
	progress := ffmpeg.ProgressParser{Total: job.TotalFrames}
	encLog := log.With("component", "ffmpeg")

	exec := ffmpeg.Execute(ctx, args, func(line string) {
		if mapping.Feed(line) {
			res.InputCodec, res.OutputCodec, _ = mapping.Result()
			log.Info("Stream mapping: %s -> %s", res.InputCodec, res.OutputCodec)
		}
		if pct, ok := progress.Feed(line); ok && r.Progress != nil {
			r.Progress.Update(job.Source, pct)
		}
		if debug {
			encLog.Debug("%s", line)
		}
	})
	res.Elapsed = time.Since(res.StartedAt)
	res.ExitCode = exec.ExitCode

	if exec.Err != nil {
		res.Status = StatusFailed
		res.Err = failureMessage(ctx, exec)
		// Leave files the encoder refused to overwrite alone.
		if !preexisting || r.Overwrite {
			os.Remove(job.Output)
		}
		if r.Progress != nil {
			r.Progress.Done(job.Source, false)
		}
		return res
	}

	res.Status = StatusSucceeded
	if fi, err := os.Stat(job.Output); err == nil {
		res.OutputBytes = fi.Size()
	}
	if r.Progress != nil {
		r.Progress.Update(job.Source, 100)
		r.Progress.Done(job.Source, true)
	}
	return res
}

func failureMessage(ctx context.Context, exec ffmpeg.ExecResult) string {
	var le *ffmpeg.LaunchError
	if errors.As(exec.Err, &le) {
		return le.Error()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timed out"
	}
	if ctx.Err() != nil {
		return "interrupted"
	}
	detail := exec.Reason
	if detail == "" {
		detail = strings.TrimSpace(exec.LastLine)
	}
	if detail == "" {
		return fmt.Sprintf("exit code %d", exec.ExitCode)
	}
	return fmt.Sprintf("exit code %d: %s", exec.ExitCode, detail)
}
