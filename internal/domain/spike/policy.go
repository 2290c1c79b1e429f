package spike

import (
	"fmt"
	"math"
)

// Policy decides whether bucket i of counts is hot. Implementations only
// look at counts[:i+1] so detection stays causal.
type Policy interface {
	Hot(counts []int, i int) bool
	Validate() error
	String() string
}

// Absolute marks a bucket hot when it holds at least MinCount events.
type Absolute struct {
	MinCount int
}

// Hot implements Policy.
func (a Absolute) Hot(counts []int, i int) bool {
	return counts[i] >= a.MinCount
}

// Validate implements Policy.
func (a Absolute) Validate() error {
	if a.MinCount < 1 {
		return fmt.Errorf("absolute threshold must be >= 1, got %d", a.MinCount)
	}
	return nil
}

func (a Absolute) String() string { return fmt.Sprintf("absolute(min=%d)", a.MinCount) }

// Statistical marks a bucket hot when its count exceeds mean + K*stddev of
// the trailing Window buckets (excluding itself) and is at least MinCount.
// With no history the baseline is zero.
type Statistical struct {
	K        float64
	Window   int
	MinCount int
}

// Hot implements Policy.
func (s Statistical) Hot(counts []int, i int) bool {
	c := counts[i]
	if c < max(s.MinCount, 1) {
		return false
	}
	mean, std := trailingStats(counts, i, s.Window)
	return float64(c) > mean+s.K*std
}

// Validate implements Policy.
func (s Statistical) Validate() error {
	switch {
	case math.IsNaN(s.K) || s.K < 0:
		return fmt.Errorf("statistical k must be >= 0, got %v", s.K)
	case s.Window < 1:
		return fmt.Errorf("statistical window must be >= 1, got %d", s.Window)
	case s.MinCount < 0:
		return fmt.Errorf("statistical min count must be >= 0, got %d", s.MinCount)
	}
	return nil
}

func (s Statistical) String() string {
	return fmt.Sprintf("statistical(k=%g,window=%d,min=%d)", s.K, s.Window, s.MinCount)
}

// trailingStats returns the population mean and stddev of counts[i-window:i].
func trailingStats(counts []int, i, window int) (float64, float64) {
	lo := max(0, i-window)
	n := i - lo
	if n <= 0 {
		return 0, 0
	}
	var sum float64
	for _, c := range counts[lo:i] {
		sum += float64(c)
	}
	mean := sum / float64(n)
	var sq float64
	for _, c := range counts[lo:i] {
		d := float64(c) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n))
}
