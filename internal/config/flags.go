package config

// This file implements CLI flag binding. Flags are parsed into a Flags value
// and copied into a Config only when the user actually set them, so values
// from DefaultConfig and the config file hold otherwise.

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Flags holds raw CLI flag values until they are applied to a Config.
type Flags struct {
	ConfigPath   string
	FFmpegPath   string
	FFprobePath  string
	Codec        Codec
	Acceleration Acceleration
	Workers      int
	JobTimeout   time.Duration
	DryRun       bool
	Force        bool
	NoProgress   bool
	Verbose      bool
	ForceColor   bool
	NoColor      bool
	LogFile      string
	LogFormat    string
}

// BindFlags registers all batch flags on fs.
func BindFlags(fs *pflag.FlagSet, f *Flags) {
	f.Codec = CodecH265
	f.Acceleration = AccelNone

	fs.StringVar(&f.ConfigPath, "config", "", "Config file (default ~/.config/vidoptimizer/config.toml)")

	// Encoding
	fs.Var(&codecValue{&f.Codec}, "codec", "Video codec: h265 | h264 | vp9")
	fs.Var(&accelValue{&f.Acceleration}, "gpu", "GPU acceleration: none | nvidia | amd | intel")
	fs.StringVar(&f.FFmpegPath, "ffmpeg", "", "Path to the ffmpeg binary")
	fs.StringVar(&f.FFprobePath, "ffprobe", "", "Path to the ffprobe binary")

	// Scheduling
	fs.IntVarP(&f.Workers, "workers", "j", 0, "Concurrent encodes (0 = one per file)")
	fs.DurationVar(&f.JobTimeout, "job-timeout", 0, "Per-file encode limit, e.g. 2h (0 = none)")

	// Behavior
	fs.BoolVarP(&f.DryRun, "dry-run", "d", false, "Print the per-file plan; do not encode")
	fs.BoolVarP(&f.Force, "force", "f", false, "Overwrite existing output files")
	fs.BoolVar(&f.NoProgress, "no-progress", false, "Hide the progress bar")

	// Display
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Verbose output (includes ffmpeg diagnostics)")
	fs.BoolVar(&f.ForceColor, "color", false, "Force colored logs")
	fs.BoolVar(&f.NoColor, "no-color", false, "Disable colored logs")
	fs.StringVarP(&f.LogFile, "log", "l", "", "Append logs to file")
	fs.StringVar(&f.LogFormat, "log-format", "", "Log format: text | json")
}

// Apply copies every flag the user set on fs into cfg.
func (f *Flags) Apply(fs *pflag.FlagSet, cfg *Config) {
	changed := fs.Changed

	if changed("ffmpeg") {
		cfg.FFmpegPath = f.FFmpegPath
	}
	if changed("ffprobe") {
		cfg.FFprobePath = f.FFprobePath
	}
	if changed("codec") {
		cfg.Codec = f.Codec
	}
	if changed("gpu") {
		cfg.Acceleration = f.Acceleration
	}
	if changed("workers") {
		cfg.Workers = f.Workers
	}
	if changed("job-timeout") {
		cfg.JobTimeout = f.JobTimeout
	}
	if f.DryRun {
		cfg.DryRun = true
	}
	if f.Force {
		cfg.SkipExisting = false
	}
	if f.NoProgress {
		cfg.ShowProgress = false
	}
	if f.Verbose {
		cfg.Verbose = true
	}
	if f.NoColor {
		cfg.ColorMode = ColorNever
	} else if f.ForceColor {
		cfg.ColorMode = ColorAlways
	}
	if changed("log") {
		cfg.LogFile = f.LogFile
	}
	if changed("log-format") {
		cfg.LogFormat = LogFormat(strings.ToLower(strings.TrimSpace(f.LogFormat)))
	}
}

// SetPositional sets InputDir and OutputDir from the two positional args.
func (c *Config) SetPositional(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("need exactly input_dir and output_dir")
	}
	c.InputDir = NormalizeDirArg(args[0])
	c.OutputDir = NormalizeDirArg(args[1])
	return nil
}

// pflag.Value adapters so the enum types can be used with fs.Var.

type codecValue struct{ p *Codec }

func (v *codecValue) String() string { return string(*v.p) }
func (v *codecValue) Type() string   { return "codec" }
func (v *codecValue) Set(s string) error {
	c, err := ParseCodec(s)
	if err != nil {
		return err
	}
	*v.p = c
	return nil
}

type accelValue struct{ p *Acceleration }

func (v *accelValue) String() string { return string(*v.p) }
func (v *accelValue) Type() string   { return "backend" }
func (v *accelValue) Set(s string) error {
	a, err := ParseAcceleration(s)
	if err != nil {
		return err
	}
	*v.p = a
	return nil
}
