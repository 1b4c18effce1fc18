package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one file's encode.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// EncodeResult is the outcome of processing one source file.
// InputCodec and OutputCodec stay empty when the encoder never reported a
// stream mapping.
type EncodeResult struct {
	ID          uuid.UUID
	Source      string
	Output      string
	InputCodec  string
	OutputCodec string
	Status      Status
	ExitCode    int
	Err         string
	Profile     string
	StartedAt   time.Time
	Elapsed     time.Duration
	InputBytes  int64
	OutputBytes int64
}

// Ratio returns output size as a percentage of input size, or 0 if unknown.
func (r EncodeResult) Ratio() int64 {
	if r.InputBytes <= 0 || r.OutputBytes <= 0 {
		return 0
	}
	return r.OutputBytes * 100 / r.InputBytes
}

// Results is an append-only, goroutine-safe collection of finalized
// results. The lock is never held across I/O.
type Results struct {
	mu    sync.Mutex
	items []EncodeResult
}

// NewResults returns an empty collection with room for n results.
func NewResults(n int) *Results {
	return &Results{items: make([]EncodeResult, 0, n)}
}

// Append records a finalized result.
func (r *Results) Append(res EncodeResult) {
	r.mu.Lock()
	r.items = append(r.items, res)
	r.mu.Unlock()
}

// Snapshot returns a copy of every result recorded so far, in completion
// order.
func (r *Results) Snapshot() []EncodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EncodeResult, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of recorded results.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
