// Package config holds runtime configuration: defaults, TOML file loading,
// CLI flag binding, and validation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// --- Enum types for validated string fields ---

// Codec selects the video codec family requested by the user.
type Codec string

const (
	CodecH265 Codec = "h265" // HEVC via libx265 (default).
	CodecH264 Codec = "h264" // AVC via libx264.
	CodecVP9  Codec = "vp9"  // VP9 via libvpx-vp9.
)

// SoftwareEncoder returns the ffmpeg software encoder name for the codec.
func (c Codec) SoftwareEncoder() string {
	switch c {
	case CodecH264:
		return "libx264"
	case CodecVP9:
		return "libvpx-vp9"
	default:
		return "libx265"
	}
}

// Label returns the human-readable codec name ("H.265", "H.264", "VP9").
func (c Codec) Label() string {
	switch c {
	case CodecH264:
		return "H.264"
	case CodecVP9:
		return "VP9"
	default:
		return "H.265"
	}
}

// ParseCodec accepts the short names plus the encoder and label spellings
// ("libx265", "hevc", "H.265", ...).
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h265", "h.265", "hevc", "libx265":
		return CodecH265, nil
	case "h264", "h.264", "avc", "libx264":
		return CodecH264, nil
	case "vp9", "libvpx-vp9":
		return CodecVP9, nil
	}
	return "", fmt.Errorf("invalid codec %q (use 'h265', 'h264' or 'vp9')", s)
}

// Acceleration selects the GPU backend.
type Acceleration string

const (
	AccelNone   Acceleration = "none"   // Software encoding (default).
	AccelNVIDIA Acceleration = "nvidia" // NVENC for H.265/H.264.
	AccelAMD    Acceleration = "amd"    // Accepted; codec is left as-is.
	AccelIntel  Acceleration = "intel"  // Accepted; codec is left as-is.
)

// ParseAcceleration accepts the backend names case-insensitively.
func ParseAcceleration(s string) (Acceleration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "cpu":
		return AccelNone, nil
	case "nvidia", "nvenc":
		return AccelNVIDIA, nil
	case "amd":
		return AccelAMD, nil
	case "intel":
		return AccelIntel, nil
	}
	return "", fmt.Errorf("invalid acceleration %q (use 'none', 'nvidia', 'amd' or 'intel')", s)
}

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// LogFormat selects the log line encoding.
type LogFormat string

const (
	LogFormatText LogFormat = "text" // "2006-01-02 15:04:05 [LEVEL] msg" (default).
	LogFormatJSON LogFormat = "json" // One JSON object per line.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// optionally overlaid by [LoadFile], then mutated by CLI flags before being
// passed (by pointer) to packages that need it.
type Config struct {
	// Paths (set from positional args).
	InputDir  string
	OutputDir string

	// External tools.
	FFmpegPath  string // Default: "ffmpeg".
	FFprobePath string // Default: "ffprobe".

	// Encoder settings.
	Codec        Codec        // Default: "h265".
	Acceleration Acceleration // Default: "none".

	// Audio and output.
	AudioCodec      string // Default: "aac".
	AudioBitrate    string // Default: "128k".
	OutputContainer string // Fixed: "mp4".
	OutputSuffix    string // Default: "_optimized".

	// Scheduling.
	Workers    int           // Default: NumCPU. 0 = one worker per file.
	JobTimeout time.Duration // Default: 0 (no timeout).

	// Behavior flags.
	DryRun       bool
	SkipExisting bool // Default: true. Cleared by --force.
	ShowProgress bool // Default: true.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
	LogFormat LogFormat // Default: "text".
}

// DefaultConfig returns a Config with all defaults. Used as the base before
// the config file and CLI flags apply overrides.
func DefaultConfig() Config {
	return Config{
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		Codec:           CodecH265,
		Acceleration:    AccelNone,
		AudioCodec:      "aac",
		AudioBitrate:    "128k",
		OutputContainer: "mp4",
		OutputSuffix:    "_optimized",
		Workers:         runtime.NumCPU(),
		SkipExisting:    true,
		ShowProgress:    true,
		ColorMode:       ColorAuto,
		LogFormat:       LogFormatText,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks that enum fields hold valid values and numeric fields are
// in range. When requirePaths is set it also requires both directory paths.
func (c *Config) Validate(requirePaths bool) error {
	switch c.Codec {
	case CodecH265, CodecH264, CodecVP9:
		// valid
	default:
		return errors.New("invalid codec (use 'h265', 'h264' or 'vp9')")
	}

	switch c.Acceleration {
	case AccelNone, AccelNVIDIA, AccelAMD, AccelIntel:
		// valid
	default:
		return errors.New("invalid acceleration (use 'none', 'nvidia', 'amd' or 'intel')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return errors.New("invalid log format (use 'text' or 'json')")
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0 (got %d)", c.Workers)
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("job timeout must be >= 0 (got %s)", c.JobTimeout)
	}
	if strings.TrimSpace(c.FFmpegPath) == "" {
		return errors.New("ffmpeg path must not be empty")
	}
	if strings.TrimSpace(c.FFprobePath) == "" {
		return errors.New("ffprobe path must not be empty")
	}

	normalizedBitrate, err := normalizeAudioBitrate(c.AudioBitrate)
	if err != nil {
		return err
	}
	c.AudioBitrate = normalizedBitrate

	if !requirePaths {
		return nil
	}
	if c.InputDir == "" || c.OutputDir == "" {
		return errors.New("need exactly input_dir and output_dir")
	}
	return nil
}

// normalizeAudioBitrate validates and canonicalizes user bitrate input.
// Accepted forms: "128", "128k", "128K", "128kbps". Output is "<n>k".
func normalizeAudioBitrate(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", errors.New("audio bitrate must not be empty")
	}
	if strings.HasSuffix(s, "kbps") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "kbps"))
	} else if strings.HasSuffix(s, "k") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid audio bitrate %q (use positive Kbps value, e.g. 128k)", raw)
	}
	return fmt.Sprintf("%dk", n), nil
}

// ValidatePaths ensures the resolved output directory is not inside (or equal
// to) the resolved input directory, so a batch never rediscovers its own
// output. Both arguments must be absolute, symlink-resolved paths.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}
