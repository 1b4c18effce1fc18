// Package pipeline runs transcode batches.
//
// A batch is started with [Orchestrator.Start]: the input tree is discovered
// synchronously, then one task per file is scheduled on a bounded worker
// pool and a [*Batch] handle is returned at once. Each task probes its file,
// selects a profile, resolves the output path and hands a [Job] to the
// [Runner], which launches one encoder process and records one
// [EncodeResult]. Results accumulate in a shared [Results] collection that
// callers can snapshot at any time.
//
// [Run] wraps Start and Wait with batch header and summary logging for the
// CLI. [Plan] computes the same per-file decisions without encoding.
package pipeline
