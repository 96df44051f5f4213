package stats

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

type Type int

const (
	// Traversed is the number of files enumerated across all projects, regardless of later exclusion.
	Traversed Type = iota
	// Matched is the number of files which survived selection and were handed to the formatting passes.
	Matched
	// Changed is the number of files whose content differs between the original and final snapshot.
	Changed
)

type Stats struct {
	start    time.Time
	counters map[Type]*atomic.Int64
}

func New() Stats {
	counters := make(map[Type]*atomic.Int64)

	counters[Traversed] = &atomic.Int64{}
	counters[Matched] = &atomic.Int64{}
	counters[Changed] = &atomic.Int64{}

	return Stats{
		start:    time.Now(),
		counters: counters,
	}
}

func (s *Stats) Add(t Type, delta int64) int64 {
	return s.counters[t].Add(delta)
}

func (s *Stats) Value(t Type) int64 {
	return s.counters[t].Load()
}

func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.start)
}

func (s *Stats) Print(w io.Writer) {
	_, _ = fmt.Fprintf(
		w,
		"traversed %d files\nselected %d files for formatting\nchanged %d files in %v\n",
		s.Value(Traversed),
		s.Value(Matched),
		s.Value(Changed),
		s.Elapsed().Round(time.Millisecond),
	)
}
