package profile

import (
	"math/rand/v2"

	"github.com/star/impactsim/internal/stats"
)

// Entry is one control point whose y is a random variable.
type Entry struct {
	X            float64
	Distribution stats.Distribution
}

// DistributionSet is an ordered set of x-indexed distributions. It collapses
// to a Table by taking means, offset means or fresh samples.
type DistributionSet struct {
	entries []Entry
}

// AddPoint appends (x, Normal(mean, std)). Ordering is checked when the set
// is collapsed into a Table.
func (s *DistributionSet) AddPoint(x, mean, std float64) error {
	d, err := stats.NewDistribution(mean, std)
	if err != nil {
		return err
	}
	s.entries = append(s.entries, Entry{X: x, Distribution: d})
	return nil
}

// Add appends an already built distribution.
func (s *DistributionSet) Add(x float64, d stats.Distribution) {
	s.entries = append(s.entries, Entry{X: x, Distribution: d})
}

// Clear removes all entries.
func (s *DistributionSet) Clear() { s.entries = s.entries[:0] }

// Len returns the number of entries.
func (s *DistributionSet) Len() int { return len(s.entries) }

// Entries returns a copy of the entries.
func (s *DistributionSet) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Mean returns the table of means.
func (s *DistributionSet) Mean() (*Table, error) {
	return s.collapse(func(d stats.Distribution) float64 { return d.Mean() })
}

// OffsetMean returns the table of mean + k*stddev at every point.
func (s *DistributionSet) OffsetMean(k float64) (*Table, error) {
	return s.collapse(func(d stats.Distribution) float64 { return d.Offset(k) })
}

// Sample returns a table with an independent draw at every point.
func (s *DistributionSet) Sample(src rand.Source) (*Table, error) {
	return s.collapse(func(d stats.Distribution) float64 { return d.Sample(src) })
}

// SampleInto re-samples dst in place when it already has this set's x grid,
// and rebuilds it otherwise.
func (s *DistributionSet) SampleInto(dst *Table, src rand.Source) error {
	if dst.Len() == len(s.entries) {
		same := true
		for i, e := range s.entries {
			if dst.points[i].X != e.X {
				same = false
				break
			}
		}
		if same {
			for i, e := range s.entries {
				dst.points[i].Y = e.Distribution.Sample(src)
			}
			return nil
		}
	}
	dst.Reset()
	for _, e := range s.entries {
		if err := dst.AddPoint(e.X, e.Distribution.Sample(src)); err != nil {
			return err
		}
	}
	return nil
}

func (s *DistributionSet) collapse(f func(stats.Distribution) float64) (*Table, error) {
	t := &Table{points: make([]Point, 0, len(s.entries))}
	for _, e := range s.entries {
		if err := t.AddPoint(e.X, f(e.Distribution)); err != nil {
			return nil, err
		}
	}
	return t, nil
}
