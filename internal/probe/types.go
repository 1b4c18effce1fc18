package probe

import (
	"fmt"
	"strconv"
)

// Geometry is the pixel resolution of a video stream.
type Geometry struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (g Geometry) Valid() bool { return g.Width > 0 && g.Height > 0 }

// String returns "WxH", or "unknown" for invalid geometry.
func (g Geometry) String() string {
	if !g.Valid() {
		return "unknown"
	}
	return strconv.Itoa(g.Width) + "x" + strconv.Itoa(g.Height)
}

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	FormatName string
	Duration   float64
	Size       int64
	BitRate    int64
}

// VideoStream holds the parsed properties of a single video stream.
type VideoStream struct {
	Index         int
	Codec         string
	PixFmt        string
	Width         int
	Height        int
	BitRate       int64
	AvgFrameRate  string
	NbFrames      int64
	IsAttachedPic bool
}

// Result is the parsed output of one ffprobe call.
// PrimaryVideo is the first non-attached-pic video stream (nil if none).
type Result struct {
	Format       FormatInfo
	PrimaryVideo *VideoStream
	AudioCount   int
}

// Geometry returns the primary video stream's resolution. It fails when the
// file has no usable video stream.
func (r *Result) Geometry() (Geometry, error) {
	if r.PrimaryVideo == nil {
		return Geometry{}, fmt.Errorf("no video stream")
	}
	g := Geometry{Width: r.PrimaryVideo.Width, Height: r.PrimaryVideo.Height}
	if !g.Valid() {
		return Geometry{}, fmt.Errorf("invalid video dimensions %dx%d", g.Width, g.Height)
	}
	return g, nil
}

// VideoBitRate returns the primary video stream bitrate in bits/sec,
// falling back to the format-level bitrate.
func (r *Result) VideoBitRate() int64 {
	if r.PrimaryVideo != nil && r.PrimaryVideo.BitRate > 0 {
		return r.PrimaryVideo.BitRate
	}
	return r.Format.BitRate
}

// ProbeError reports that a file could not be inspected.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
