package ffmpeg

import "github.com/backmassage/vidoptimizer/internal/probe"

// ProgressParser converts "frame=" counters into a completion percentage
// against a known total frame count.
type ProgressParser struct {
	Total int64
	last  float64
}

// Feed offers one diagnostic line. It returns the new percentage (0..100)
// and true when the line advanced progress.
func (p *ProgressParser) Feed(line string) (float64, bool) {
	if p.Total <= 0 {
		return 0, false
	}
	frame, ok := probe.FrameFromLine(line)
	if !ok {
		return 0, false
	}
	pct := float64(frame) * 100 / float64(p.Total)
	if pct > 100 {
		pct = 100
	}
	if pct <= p.last {
		return p.last, false
	}
	p.last = pct
	return pct, true
}

// Percent returns the last reported percentage.
func (p *ProgressParser) Percent() float64 { return p.last }
