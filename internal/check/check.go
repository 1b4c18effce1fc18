// Package check provides system diagnostics (the check command) and
// pre-batch dependency validation (CheckDeps) for ffmpeg, ffprobe and the
// encoders a batch will ask for.
package check

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/backmassage/vidoptimizer/internal/config"
	"github.com/backmassage/vidoptimizer/internal/probe"
	"github.com/backmassage/vidoptimizer/internal/profile"
)

// Sentinel errors returned by CheckDeps when a required tool or encoder is missing.
var (
	ErrFFmpegNotFound   = errors.New("ffmpeg not found")
	ErrFFprobeNotFound  = errors.New("ffprobe not found")
	ErrEncoderMissing   = errors.New("encoder not compiled into ffmpeg")
	ErrNVENCUnavailable = errors.New("NVENC encoder listed but test encode failed")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...any)
	Success(string, ...any)
	Warn(string, ...any)
	Error(string, ...any)
	Debug(string, ...any)
}

// Encoders probed by RunCheck, grouped by codec.
var knownEncoders = []struct {
	label string
	names []string
}{
	{"H.265", []string{"libx265", "hevc_nvenc", "hevc_amf", "hevc_qsv"}},
	{"H.264", []string{"libx264", "h264_nvenc", "h264_amf", "h264_qsv"}},
	{"VP9", []string{"libvpx-vp9", "vp9_qsv"}},
	{"Audio", []string{"aac"}},
}

// RunCheck prints availability of ffmpeg, ffprobe, the known encoders and
// a short NVENC test encode. It is informational only and does not stop on
// failure.
func RunCheck(ctx context.Context, cfg *config.Config, log Logger) {
	log.Info("=== System Check ===")

	if !checkTool(ctx, log, "ffmpeg", cfg.FFmpegPath) {
		return
	}
	checkTool(ctx, log, "ffprobe", cfg.FFprobePath)

	available, err := ListEncoders(ctx, cfg.FFmpegPath)
	if err != nil {
		log.Warn("Could not list encoders: %v", err)
		return
	}
	for _, group := range knownEncoders {
		var have, missing []string
		for _, name := range group.names {
			if available[name] {
				have = append(have, name)
			} else {
				missing = append(missing, name)
			}
		}
		if len(have) > 0 {
			log.Success("%s encoders: %s", group.label, strings.Join(have, ", "))
		}
		if len(missing) > 0 {
			log.Debug("%s encoders not available: %s", group.label, strings.Join(missing, ", "))
		}
	}

	if available["hevc_nvenc"] || available["h264_nvenc"] {
		log.Info("Testing NVENC...")
		if testEncode(ctx, cfg.FFmpegPath, nvencTestEncoder(available)) {
			log.Success("NVENC works")
		} else {
			log.Error("NVENC test encode failed (driver or GPU unavailable)")
		}
	} else {
		log.Warn("No NVENC encoders; --gpu nvidia will fail")
	}
}

// CheckDeps is the pre-batch validation: ffmpeg and ffprobe must resolve,
// and the encoder cfg's codec and acceleration will use must be available.
// For NVIDIA a short test encode must also succeed. Returns a sentinel
// error (possibly wrapped) on failure.
func CheckDeps(ctx context.Context, cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, cfg.FFmpegPath)
	}
	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFprobeNotFound, cfg.FFprobePath)
	}

	available, err := ListEncoders(ctx, cfg.FFmpegPath)
	if err != nil {
		return err
	}
	encoder := RequiredEncoder(cfg.Codec, cfg.Acceleration)
	if !available[encoder] {
		return fmt.Errorf("%w: %s", ErrEncoderMissing, encoder)
	}
	if !available[cfg.AudioCodec] {
		return fmt.Errorf("%w: %s", ErrEncoderMissing, cfg.AudioCodec)
	}
	if encoder != cfg.Codec.SoftwareEncoder() && !testEncode(ctx, cfg.FFmpegPath, encoder) {
		return ErrNVENCUnavailable
	}
	return nil
}

// RequiredEncoder returns the ffmpeg encoder a batch with codec and accel
// launches, as chosen by profile.Select. The encoder does not depend on
// resolution.
func RequiredEncoder(codec config.Codec, accel config.Acceleration) string {
	return profile.Select(probe.Geometry{Width: 1, Height: 1}, codec, accel).Encoder
}

// ListEncoders runs `ffmpeg -encoders` and returns the set of encoder names.
func ListEncoders(ctx context.Context, ffmpegPath string) (map[string]bool, error) {
	out, err := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return ParseEncoders(string(out)), nil
}

// ParseEncoders extracts encoder names from `ffmpeg -encoders` output:
//
//	Encoders:
//	 V..... = Video
//	 ...
//	 ------
//	 V....D libx265              libx265 H.265 / HEVC (codec hevc)
func ParseEncoders(out string) map[string]bool {
	encoders := make(map[string]bool)
	inList := false
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if !inList {
			inList = strings.HasPrefix(fields[0], "---")
			continue
		}
		if len(fields) >= 2 && len(fields[0]) == 6 {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

func checkTool(ctx context.Context, log Logger, name, path string) bool {
	resolved, err := exec.LookPath(path)
	if err != nil {
		log.Error("%s not found (%s)", name, path)
		return false
	}
	out, err := exec.CommandContext(ctx, resolved, "-version").Output()
	if err != nil {
		log.Warn("%s found but -version failed: %v", name, err)
		return true
	}
	firstLine, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	log.Success("%s: %s", name, firstLine)
	return true
}

func nvencTestEncoder(available map[string]bool) string {
	if available["hevc_nvenc"] {
		return "hevc_nvenc"
	}
	return "h264_nvenc"
}

// testEncode runs a minimal encode of a synthetic source through encoder.
func testEncode(ctx context.Context, ffmpegPath, encoder string) bool {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-c:v", encoder,
		"-f", "null", "-",
	)
	return cmd.Run() == nil
}
