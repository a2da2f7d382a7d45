package stats

import (
	"math/big"

	"github.com/ddirect/container/fifo"
	"golang.org/x/exp/constraints"
)

// Rolling keeps mean and sample standard deviation over the most recent
// maxSamples values. Sums are kept exactly so that nanosecond durations can
// be squared without overflow.
type Rolling[T constraints.Signed] struct {
	sum        big.Int
	sum2       big.Int
	t1         big.Int
	t2         big.Int
	t3         big.Int
	samples    fifo.Fifo[T]
	maxSamples int
	min        T
	max        T
	seen       uint64
}

func NewRolling[T constraints.Signed](maxSamples int) *Rolling[T] {
	return &Rolling[T]{
		maxSamples: max(maxSamples, 1),
	}
}

func (s *Rolling[T]) Add(x T) {
	if s.samples.Len() >= s.maxSamples {
		s.evict()
	}
	t := s.t1.SetInt64(int64(x))
	s.sum.Add(&s.sum, t)
	s.sum2.Add(&s.sum2, t.Mul(t, t))
	s.samples.Enqueue(x)

	if s.seen == 0 || x < s.min {
		s.min = x
	}
	if s.seen == 0 || x > s.max {
		s.max = x
	}
	s.seen++
}

func (s *Rolling[T]) evict() {
	if x, ok := s.samples.Dequeue(); ok {
		t := s.t1.SetInt64(int64(x))
		s.sum.Sub(&s.sum, t)
		s.sum2.Sub(&s.sum2, t.Mul(t, t))
	}
}

// Len is the number of samples currently in the window.
func (s *Rolling[T]) Len() int {
	return s.samples.Len()
}

// Seen counts every sample ever added, evicted or not.
func (s *Rolling[T]) Seen() uint64 {
	return s.seen
}

func (s *Rolling[T]) Mean() T {
	n := s.Len()
	if n < 1 {
		return 0
	}
	return T(s.t2.Div(&s.sum, s.t1.SetUint64(uint64(n))).Int64())
}

func (s *Rolling[T]) StdDev() T {
	n := uint64(s.Len())
	if n < 2 {
		return 0
	}
	// Sqrt((n*sum2 - sum*sum) / (n*(n-1)))
	t1 := &s.t1
	t2 := &s.t2
	t3 := &s.t3

	t1.SetUint64(n)
	t2.Sub(t2.Mul(t1, &s.sum2), t3.Mul(&s.sum, &s.sum))
	t3.Mul(t1, t3.SetUint64(n-1))

	return T(t2.Div(t2, t3).Sqrt(t2).Uint64())
}

// Min and Max span every sample seen, including evicted ones.
func (s *Rolling[T]) Min() T {
	return s.min
}

func (s *Rolling[T]) Max() T {
	return s.max
}
