// Package probe inspects media files before they are encoded.
//
// [Client.Probe] runs a single ffprobe JSON call and returns the container
// format plus the primary video stream, from which [Geometry] is derived.
// [Client.CountFrames] runs a stream-copy pass through ffmpeg to learn the
// total frame count of the first video stream; the job runner uses it as
// the denominator for progress reporting.
//
// Probe results are never cached. Each job probes its own file once.
package probe
