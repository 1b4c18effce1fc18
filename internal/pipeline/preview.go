package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/vidoptimizer/internal/config"
	"github.com/backmassage/vidoptimizer/internal/display"
	"github.com/backmassage/vidoptimizer/internal/ffmpeg"
	"github.com/backmassage/vidoptimizer/internal/naming"
	"github.com/backmassage/vidoptimizer/internal/profile"
)

// PlanEntry is the dry-run decision for one file.
type PlanEntry struct {
	Source    string
	Output    string
	Geometry  string
	Codec     string // Source video codec as probed.
	VideoKbps int64
	Band      profile.Band
	Encoder   string
	Args      []string // Full encoder command line.
	Notice    string
	Skip      bool   // Output already exists and would be skipped.
	Err       string // Probe failure.
	Flag      string // "", "outlier" or "extreme" for the source bitrate.
}

// Plan discovers cfg.InputDir and computes each file's encode without
// launching the encoder. Files are probed sequentially.
func Plan(ctx context.Context, cfg *config.Config, prober Prober) ([]PlanEntry, error) {
	files, err := Discover(cfg.InputDir)
	if err != nil {
		return nil, err
	}
	outDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if prober == nil {
		prober = NewOrchestrator(cfg, nil).prober
	}

	outputs := naming.Assign(files, outDir, cfg.OutputSuffix, cfg.OutputContainer)
	entries := make([]PlanEntry, 0, len(files))
	var kbps []float64

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		output := outputs[i]
		e := PlanEntry{Source: path, Output: output}
		if cfg.SkipExisting {
			if _, err := os.Stat(output); err == nil {
				e.Skip = true
			}
		}

		pr, err := prober.Probe(ctx, path)
		if err != nil {
			e.Err = err.Error()
			entries = append(entries, e)
			continue
		}
		geom, err := pr.Geometry()
		if err != nil {
			e.Err = err.Error()
			entries = append(entries, e)
			continue
		}

		prof := profile.Select(geom, cfg.Codec, cfg.Acceleration)
		e.Geometry = geom.String()
		e.Codec = pr.PrimaryVideo.Codec
		e.VideoKbps = pr.VideoBitRate() / 1000
		e.Band = prof.Band
		e.Encoder = prof.Encoder
		e.Notice = prof.Notice
		e.Args = ffmpeg.Build(ffmpeg.Request{
			Binary:       cfg.FFmpegPath,
			Input:        path,
			Output:       output,
			Profile:      prof,
			AudioCodec:   cfg.AudioCodec,
			AudioBitrate: cfg.AudioBitrate,
			Format:       cfg.OutputContainer,
			Overwrite:    !cfg.SkipExisting,
		})
		if e.VideoKbps > 0 {
			kbps = append(kbps, float64(e.VideoKbps))
		}
		entries = append(entries, e)
	}

	bounds := computeStats(kbps)
	for i := range entries {
		entries[i].Flag = bounds.classify(float64(entries[i].VideoKbps))
	}
	return entries, nil
}

// PlanRows converts entries for display.
func PlanRows(entries []PlanEntry) []display.PlanRow {
	rows := make([]display.PlanRow, len(entries))
	for i, e := range entries {
		rows[i] = display.PlanRow{
			File:      filepath.Base(e.Source),
			Output:    filepath.Base(e.Output),
			Geometry:  e.Geometry,
			Codec:     e.Codec,
			VideoKbps: e.VideoKbps,
			Band:      string(e.Band),
			Encoder:   e.Encoder,
			Command:   strings.Join(e.Args, " "),
			Notice:    e.Notice,
			Skip:      e.Skip,
			Err:       e.Err,
			Flag:      e.Flag,
		}
	}
	return rows
}

// ReportRows converts results for display.
func ReportRows(results []EncodeResult) []display.ResultRow {
	rows := make([]display.ResultRow, len(results))
	for i, r := range results {
		rows[i] = display.ResultRow{
			File:        filepath.Base(r.Source),
			Output:      filepath.Base(r.Output),
			InputCodec:  r.InputCodec,
			OutputCodec: r.OutputCodec,
			Status:      string(r.Status),
			Elapsed:     r.Elapsed,
			InputBytes:  r.InputBytes,
			OutputBytes: r.OutputBytes,
			Err:         r.Err,
		}
	}
	return rows
}

// iqrBounds holds the IQR-based thresholds for bitrate outlier flags.
type iqrBounds struct {
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1
	return iqrBounds{
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
