package pipeline

// RunStats tracks aggregate counters and byte totals across a batch.
type RunStats struct {
	Total            int
	Succeeded        int
	Skipped          int
	Failed           int
	TotalInputBytes  int64
	TotalOutputBytes int64
}

// Summarize folds results into RunStats. Byte totals count only succeeded
// encodes.
func Summarize(results []EncodeResult) RunStats {
	s := RunStats{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSucceeded:
			s.Succeeded++
			s.TotalInputBytes += r.InputBytes
			s.TotalOutputBytes += r.OutputBytes
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller; negative means they grew.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}
