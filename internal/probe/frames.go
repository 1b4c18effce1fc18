package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CountFrames returns the number of frames in the first video stream of
// path. It stream-copies that stream to the null muxer and reads the last
// "frame=" counter ffmpeg reports, which is exact even when the container
// carries no nb_frames header.
func (c Client) CountFrames(ctx context.Context, path string) (int64, error) {
	cmd := exec.CommandContext(ctx, orDefault(c.FFmpegPath, "ffmpeg"),
		"-hide_banner", "-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-c", "copy",
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("count frames: %w", err)}
	}
	n, ok := LastFrame(stderr.String())
	if !ok {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("count frames: no frame counter in output")}
	}
	return n, nil
}

// LastFrame returns the final frame counter found in ffmpeg's stderr output.
// Progress updates are separated by '\r', final lines by '\n'.
func LastFrame(output string) (int64, bool) {
	var (
		last  int64
		found bool
	)
	for _, line := range strings.FieldsFunc(output, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if n, ok := FrameFromLine(line); ok {
			last, found = n, true
		}
	}
	return last, found
}

// FrameFromLine extracts N from a progress line such as
// "frame= 1234 fps= 60 q=28.0 size=...". ffmpeg pads the value with spaces.
func FrameFromLine(line string) (int64, bool) {
	i := strings.Index(line, "frame=")
	if i < 0 {
		return 0, false
	}
	rest := strings.TrimLeft(line[i+len("frame="):], " ")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(rest[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
