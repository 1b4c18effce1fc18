package display

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressBoard renders batch progress as a single bar. Each file
// contributes up to 100 units; the description names the most recently
// updated file. All methods are goroutine-safe.
type ProgressBoard struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	percent map[string]float64
	total   int
	done    int
	failed  int
}

// NewProgressBoard creates a board writing to w. Call SetTotal once the
// number of files is known.
func NewProgressBoard(w io.Writer) *ProgressBoard {
	bar := progressbar.NewOptions64(1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Starting"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
	return &ProgressBoard{bar: bar, percent: make(map[string]float64)}
}

// SetTotal sets the number of files in the batch.
func (b *ProgressBoard) SetTotal(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total = n
	b.bar.ChangeMax64(int64(max(n, 1)) * 100)
	b.render("")
}

// Update records percent complete for path.
func (b *ProgressBoard) Update(path string, percent float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.percent[path] = min(max(percent, 0), 100)
	b.render(path)
}

// Done marks path finished. Failed files still fill their share of the bar.
func (b *ProgressBoard) Done(path string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.percent[path] = 100
	b.done++
	if !ok {
		b.failed++
	}
	b.render(path)
}

// Close finishes the bar.
func (b *ProgressBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bar.Finish()
}

// Counts returns finished and failed file counts.
func (b *ProgressBoard) Counts() (done, failed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done, b.failed
}

// render must be called with b.mu held.
func (b *ProgressBoard) render(path string) {
	var sum float64
	for _, p := range b.percent {
		sum += p
	}
	desc := fmt.Sprintf("[%d/%d]", b.done, b.total)
	if b.failed > 0 {
		desc += fmt.Sprintf(" %d failed", b.failed)
	}
	if path != "" {
		desc += " " + filepath.Base(path)
	}
	b.bar.Describe(desc)
	if b.total == 0 {
		return
	}
	_ = b.bar.Set64(min(int64(sum), int64(b.total)*100))
}
