package stats

import (
	"errors"
	"math"
	"testing"
)

func TestNewDistributionValidation(t *testing.T) {
	tests := []struct {
		name    string
		mean    float64
		std     float64
		wantErr error
	}{
		{"valid", 10, 2, nil},
		{"zero spread", 10, 0, nil},
		{"negative spread", 10, -1, ErrNegativeStdDev},
		{"nan mean", math.NaN(), 1, ErrNonFinite},
		{"infinite spread", 0, math.Inf(1), ErrNonFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDistribution(tt.mean, tt.std)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestZeroStdDevAlwaysReturnsMean(t *testing.T) {
	d, err := NewDistribution(42.5, 0)
	if err != nil {
		t.Fatal(err)
	}
	src := NewSource(1, 1)
	for i := 0; i < 1000; i++ {
		if got := d.Sample(src); got != 42.5 {
			t.Fatalf("sample %d = %v, want 42.5", i, got)
		}
		if got := d.Sample(nil); got != 42.5 {
			t.Fatalf("global sample %d = %v, want 42.5", i, got)
		}
	}
}

func TestOffset(t *testing.T) {
	d, _ := NewDistribution(100, 5)
	if got := d.Offset(1); got != 105 {
		t.Errorf("Offset(1) = %v, want 105", got)
	}
	if got := d.Offset(-1); got != 95 {
		t.Errorf("Offset(-1) = %v, want 95", got)
	}
	if got := d.Offset(0); got != d.Mean() {
		t.Errorf("Offset(0) = %v, want mean %v", got, d.Mean())
	}
}

func TestSampleMoments(t *testing.T) {
	d, _ := NewDistribution(10, 3)
	src := NewSource(7, 1)

	const n = 200000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		v := d.Sample(src)
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)

	if math.Abs(mean-10) > 0.05 {
		t.Errorf("sample mean = %.4f, want ~10", mean)
	}
	if math.Abs(std-3) > 0.05 {
		t.Errorf("sample stddev = %.4f, want ~3", std)
	}
}

func TestSameSeedSameSequence(t *testing.T) {
	d, _ := NewDistribution(0, 1)
	a := NewSource(99, 3)
	b := NewSource(99, 3)
	for i := 0; i < 100; i++ {
		if x, y := d.Sample(a), d.Sample(b); x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestWorkerSourcesIndependent(t *testing.T) {
	srcs := WorkerSources(5, 4)
	if len(srcs) != 4 {
		t.Fatalf("got %d sources, want 4", len(srcs))
	}
	seen := make(map[uint64]bool)
	for _, s := range srcs {
		seen[s.Uint64()] = true
	}
	if len(seen) != 4 {
		t.Errorf("first draws not distinct across workers: %v", seen)
	}
}
