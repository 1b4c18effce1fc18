package ffmpeg

import (
	"fmt"
	"regexp"
)

// LaunchError reports that the encoder process could not be started.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Failure classes recognized in encoder diagnostics. Checked in order by
// [Classify]; the first match wins.
var failurePatterns = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`already exists\. Exiting|Not overwriting - exiting`), "output already exists"},
	{regexp.MustCompile(`(?i)Unknown encoder|Encoder not found`), "encoder not available"},
	{regexp.MustCompile(`(?i)Cannot load (libcuda|nvcuda|libnvidia-encode)|No NVENC capable devices|OpenEncodeSessionEx failed|No capable devices found`), "NVENC unavailable"},
	{regexp.MustCompile(`(?i)Invalid data found when processing input|moov atom not found`), "unreadable input"},
	{regexp.MustCompile(`(?i)No such file or directory`), "file not found"},
	{regexp.MustCompile(`(?i)Permission denied`), "permission denied"},
	{regexp.MustCompile(`(?i)No space left on device`), "disk full"},
	{regexp.MustCompile(`(?i)Error (initializing output stream|while opening encoder)`), "encoder setup failed"},
}

// Classify returns a short failure reason for a diagnostic line, or "" if
// the line does not indicate a known failure.
func Classify(line string) string {
	for _, p := range failurePatterns {
		if p.re.MatchString(line) {
			return p.reason
		}
	}
	return ""
}
