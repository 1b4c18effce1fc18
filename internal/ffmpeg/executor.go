package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// maxLine bounds a single diagnostic line. ffmpeg's metadata dumps can be
// long but never approach this.
const maxLine = 1 << 20

// ExecResult holds the outcome of a single ffmpeg invocation.
type ExecResult struct {
	ExitCode int    // -1 when the process did not exit normally.
	Reason   string // First classified failure reason, if any.
	LastLine string // Last non-progress diagnostic line.
	Err      error  // nil on exit 0; *LaunchError when the process never started.
}

// Execute runs args (args[0] is the binary) and calls onLine for every
// stderr line, in order, from the calling goroutine. It returns after the
// process exits and its stderr is drained.
func Execute(ctx context.Context, args []string, onLine func(string)) ExecResult {
	if len(args) == 0 {
		return ExecResult{ExitCode: -1, Err: &LaunchError{Err: errors.New("empty command")}}
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ExecResult{ExitCode: -1, Err: &LaunchError{Binary: args[0], Err: err}}
	}
	if err := cmd.Start(); err != nil {
		return ExecResult{ExitCode: -1, Err: &LaunchError{Binary: args[0], Err: err}}
	}

	var res ExecResult
	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	sc.Split(ScanDiagnosticLines)
	for sc.Scan() {
		line := sc.Text()
		if res.Reason == "" {
			res.Reason = Classify(line)
		}
		if !strings.HasPrefix(strings.TrimSpace(line), "frame=") {
			res.LastLine = line
		}
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := sc.Err()
	if scanErr != nil {
		// Keep the pipe empty so the child can exit.
		io.Copy(io.Discard, stderr)
	}

	waitErr := cmd.Wait()
	res.ExitCode = -1
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case waitErr != nil && ctx.Err() != nil:
		res.Err = fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
	case waitErr != nil:
		res.Err = fmt.Errorf("ffmpeg exited with code %d: %w", res.ExitCode, waitErr)
	case scanErr != nil:
		res.Err = fmt.Errorf("read ffmpeg output: %w", scanErr)
	}
	return res
}

// ScanDiagnosticLines is a [bufio.SplitFunc] that splits on '\n' or '\r'
// and drops empty lines, so "\r\n" and in-place progress updates yield one
// token each.
func ScanDiagnosticLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && (data[start] == '\n' || data[start] == '\r') {
		start++
	}
	if start == len(data) {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
