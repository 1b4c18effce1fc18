package ffmpeg

import (
	"github.com/backmassage/vidoptimizer/internal/profile"
)

// Request describes a single encode.
type Request struct {
	Binary       string // ffmpeg executable; "ffmpeg" if empty.
	Input        string
	Output       string
	Profile      profile.Profile
	AudioCodec   string // e.g. "aac"
	AudioBitrate string // e.g. "128k"
	Format       string // output muxer, e.g. "mp4"
	Overwrite    bool   // -y when set, otherwise -n (never clobber)
}

// Build constructs the complete ffmpeg argument slice for r. args[0] is the
// binary.
//
//	ffmpeg -hide_banner -nostdin -n -i IN -c:v ENC PROFILE... -c:a aac -b:a 128k -f mp4 OUT
func Build(r Request) []string {
	bin := r.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	args := make([]string, 0, 24)

	// --- Preamble ---
	args = append(args, bin, "-hide_banner", "-nostdin")
	if r.Overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}

	// --- Input ---
	args = append(args, "-i", r.Input)

	// --- Video ---
	args = append(args, "-c:v", r.Profile.Encoder)
	args = append(args, r.Profile.Args...)

	// --- Audio ---
	args = append(args, "-c:a", orDefault(r.AudioCodec, "aac"), "-b:a", orDefault(r.AudioBitrate, "128k"))

	// --- Output ---
	args = append(args, "-f", orDefault(r.Format, "mp4"), r.Output)

	return args
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
