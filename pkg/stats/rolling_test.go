package stats_test

import (
	"encoding/binary"
	"math/big"
	"math/rand/v2"
	"testing"
	"time"

	"l2perf/pkg/stats"

	"github.com/stretchr/testify/assert"
)

// reference computes mean and sample standard deviation exactly over the
// values the rolling window should still hold.
func reference(values []int64) (mean, stdDev int64) {
	n := int64(len(values))
	tr := new(big.Rat)
	ti := new(big.Int)

	sum := new(big.Int)
	for _, v := range values {
		sum.Add(sum, ti.SetInt64(v))
	}
	avg := new(big.Rat).SetFrac(sum, ti.SetInt64(n))

	sumSqDev := new(big.Rat)
	for _, v := range values {
		sumSqDev.Add(sumSqDev, tr.SetInt64(v).Sub(tr, avg).Mul(tr, tr))
	}
	tr.Quo(sumSqDev, tr.SetInt64(n-1))
	stdDev = ti.Div(tr.Num(), tr.Denom()).Sqrt(ti).Int64()
	mean = ti.Div(avg.Num(), avg.Denom()).Int64()
	return
}

func core(t *testing.T, offset int64, window uint8, samples []byte) {
	if len(samples) < 2 || window < 2 {
		return
	}
	s := stats.NewRolling[int64](int(window))

	values := make([]int64, 0, len(samples))
	for _, b := range samples {
		v := int64(b) + offset
		s.Add(v)
		values = append(values, v)
	}
	if len(values) > int(window) {
		values = values[len(values)-int(window):]
	}

	mean, stdDev := reference(values)
	assert.Equal(t, len(values), s.Len())
	assert.Equal(t, uint64(len(samples)), s.Seen())
	assert.Equal(t, mean, s.Mean())
	assert.Equal(t, stdDev, s.StdDev())
}

func Fuzz_Rolling(f *testing.F) {
	for _, i := range []int64{-255, -127, 0, 127} {
		buf := make([]byte, 8)
		binary.NativeEndian.PutUint64(buf, rand.Uint64())
		f.Add(i, uint8(4), buf)
	}
	f.Fuzz(core)
}

func TestRollingEviction(t *testing.T) {
	s := stats.NewRolling[time.Duration](3)
	for _, d := range []time.Duration{100, 200, 300, 400, 500} {
		s.Add(d * time.Microsecond)
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 400*time.Microsecond, s.Mean())
	assert.Equal(t, 100*time.Microsecond, s.StdDev())
	assert.Equal(t, 100*time.Microsecond, s.Min())
	assert.Equal(t, 500*time.Microsecond, s.Max())
}

func TestRollingLargeDurations(t *testing.T) {
	s := stats.NewRolling[time.Duration](1000)
	for i := 0; i < 1000; i++ {
		if i%2 == 0 {
			s.Add(9 * time.Second)
		} else {
			s.Add(11 * time.Second)
		}
	}
	assert.Equal(t, 10*time.Second, s.Mean())
	assert.InDelta(t, float64(time.Second), float64(s.StdDev()), float64(time.Millisecond))
}

func TestRollingEmpty(t *testing.T) {
	s := stats.NewRolling[int32](0)
	assert.Zero(t, s.Mean())
	assert.Zero(t, s.StdDev())
	s.Add(-5)
	assert.Equal(t, int32(-5), s.Mean())
	assert.Zero(t, s.StdDev())
	assert.Equal(t, int32(-5), s.Min())
	assert.Equal(t, int32(-5), s.Max())
}
