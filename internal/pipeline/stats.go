package pipeline

import "sync"

// Outcome is what happened to a single input file.
type Outcome int

const (
	Converted Outcome = iota
	Copied
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Converted:
		return "converted"
	case Copied:
		return "copied"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// RunStats tracks aggregate counters and byte totals across a run. It is
// safe for concurrent use; read the fields once the run has finished.
type RunStats struct {
	mu sync.Mutex

	Total       int
	Converted   int
	Copied      int
	Skipped     int
	Failed      int
	InputBytes  int64
	OutputBytes int64
}

// record counts one file. Byte totals only grow for files that were written.
func (s *RunStats) record(o Outcome, in, out int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Total++
	switch o {
	case Converted:
		s.Converted++
	case Copied:
		s.Copied++
	case Skipped:
		s.Skipped++
	case Failed:
		s.Failed++
	}
	if o == Converted || o == Copied {
		s.InputBytes += in
		s.OutputBytes += out
	}
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller; negative means they grew.
func (s *RunStats) SpaceSaved() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.InputBytes - s.OutputBytes
}
