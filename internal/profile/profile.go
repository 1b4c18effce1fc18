// Package profile derives the per-file encoding profile from a file's
// geometry, the requested codec and the acceleration backend.
//
// Selection is a fixed rule table keyed on frame height. It performs no I/O
// and never fails: every height maps to exactly one band.
package profile

import (
	"fmt"
	"strings"

	"github.com/backmassage/vidoptimizer/internal/config"
	"github.com/backmassage/vidoptimizer/internal/probe"
)

// Band is a resolution class.
type Band string

const (
	Band8K  Band = "8K"
	Band4K  Band = "4K"
	BandQHD Band = "QHD"
	BandHD  Band = "HD"
	BandLow Band = "low"
)

// VP9Notice is reported when NVIDIA acceleration is requested for VP9.
const VP9Notice = "NVIDIA GPU acceleration doesn't support VP9; using CPU encoding for VP9"

// Profile is the resolved encoding setup for one file.
type Profile struct {
	Band    Band
	Args    []string // Rate-control arguments, e.g. -crf 23 -preset fast.
	Codec   config.Codec
	Encoder string // ffmpeg encoder name passed to -c:v.
	Accel   config.Acceleration
	Notice  string // Non-empty when the request could not be honored as asked.
}

// Summary returns a one-line description for logs and reports.
func (p Profile) Summary() string {
	return fmt.Sprintf("%s %s %s", p.Band, p.Encoder, strings.Join(p.Args, " "))
}

// rateControl holds the quality value for each backend family in a band.
type rateControl struct {
	band   Band
	minH   int
	nvCQ   int
	cpuCRF int
}

// Most specific first; minH is inclusive.
var bands = []rateControl{
	{Band8K, 7680, 18, 20},
	{Band4K, 3840, 19, 22},
	{BandQHD, 2560, 20, 23},
	{BandHD, 1080, 21, 23},
	{BandLow, 0, 23, 28},
}

// BandFor returns the band for a frame height.
func BandFor(height int) Band {
	return lookup(height).band
}

func lookup(height int) rateControl {
	for _, rc := range bands {
		if height >= rc.minH {
			return rc
		}
	}
	return bands[len(bands)-1]
}

// Select returns the profile for geom, codec and accel.
func Select(geom probe.Geometry, codec config.Codec, accel config.Acceleration) Profile {
	rc := lookup(geom.Height)

	p := Profile{
		Band:    rc.band,
		Codec:   codec,
		Encoder: codec.SoftwareEncoder(),
		Accel:   accel,
	}

	// The rate-control row follows the backend tag, even when the encoder
	// itself falls back to software.
	if accel == config.AccelNVIDIA {
		p.Args = []string{"-rc", "vbr", "-cq", fmt.Sprint(rc.nvCQ), "-preset", "slow"}
	} else {
		p.Args = []string{"-crf", fmt.Sprint(rc.cpuCRF), "-preset", "fast"}
	}

	if accel == config.AccelNVIDIA {
		switch codec {
		case config.CodecH265:
			p.Encoder = "hevc_nvenc"
		case config.CodecH264:
			p.Encoder = "h264_nvenc"
		case config.CodecVP9:
			p.Notice = VP9Notice
		}
	}
	return p
}
