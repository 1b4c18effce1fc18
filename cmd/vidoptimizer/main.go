// Command vidoptimizer batch-transcodes a directory tree of videos with
// ffmpeg, choosing quality settings from each file's resolution.
//
//	vidoptimizer [flags] <input_dir> <output_dir>
//	vidoptimizer check
//	vidoptimizer config init [path]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errBatchFailed) && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "vidoptimizer: %v\n", err)
		}
		return 1
	}
	return 0
}
