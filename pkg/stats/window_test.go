package stats_test

import (
	"testing"
	"time"

	"l2perf/pkg/stats"

	"github.com/stretchr/testify/assert"
)

func TestRate(t *testing.T) {
	assert.InDelta(t, 8.0, stats.Rate(1_000_000, time.Second), 1e-9)
	assert.InDelta(t, 16.0, stats.Rate(1_000_000, 500*time.Millisecond), 1e-9)
	assert.Zero(t, stats.Rate(1000, 0))
	assert.Zero(t, stats.Rate(1000, -time.Second))
}

func TestPercent(t *testing.T) {
	assert.InDelta(t, 28.571, stats.Percent(2, 7), 1e-3)
	assert.Zero(t, stats.Percent(0, 0))
}

func TestLines(t *testing.T) {
	r := stats.Report{
		Start:    time.Second,
		End:      2 * time.Second,
		Counters: stats.Counters{Packets: 5, Bytes: 125_000, Dropped: 2},
	}
	assert.Equal(t, "Sec: 1.00-2.00, Sent: 5 pkts, Rate: 1.00 Mbps", r.TxLine())
	assert.Equal(t, "Sec: 1.00-2.00, Recv: 5/7 pkts, Dropped: 28.57%, Rate: 1.00 Mbps", r.RxLine())

	s := stats.Report{End: 2500 * time.Millisecond, Counters: stats.Counters{Packets: 10, Bytes: 250_000}}
	assert.Equal(t, "Summary:\nSec: 0.00-2.50, Sent: 10 pkts, Rate: 0.80 Mbps", s.TxSummary())
	assert.Equal(t, "Summary:\nSec: 0.00-2.50, Recv: 10/10 pkts, Dropped: 0.00%, Rate: 0.80 Mbps", s.RxSummary())
}

func TestAggregatorWindows(t *testing.T) {
	origin := time.Unix(1000, 0)
	a := stats.NewAggregator(origin, time.Second)

	// 9.3 intervals worth of traffic, 1000 bytes every 10ms
	var lines []stats.Report
	end := origin.Add(9300 * time.Millisecond)
	for now := origin; now.Before(end); now = now.Add(10 * time.Millisecond) {
		if a.Due(now) {
			r, ok := a.Flush(a.NextFlush())
			assert.True(t, ok)
			lines = append(lines, r)
		}
		a.Count(stats.Counters{Packets: 1, Bytes: 1000})
	}
	r, ok := a.Flush(end)
	assert.True(t, ok)
	lines = append(lines, r)

	assert.Len(t, lines, 10)
	for _, l := range lines[:9] {
		assert.Equal(t, time.Second, l.Elapsed())
		assert.Equal(t, uint64(100), l.Packets)
		assert.InDelta(t, 0.8, l.Rate(), 1e-9)
	}
	last := lines[9]
	assert.Equal(t, 9*time.Second, last.Start)
	assert.Equal(t, 9300*time.Millisecond, last.End)
	assert.Equal(t, uint64(30), last.Packets)
	// 30000 bytes over 0.3s, not over the nominal second
	assert.InDelta(t, 0.8, last.Rate(), 1e-9)
	assert.Equal(t, "Sec: 9.00-9.30, Sent: 30 pkts, Rate: 0.80 Mbps", last.TxLine())

	sum := a.Summary(end)
	assert.Equal(t, uint64(930), sum.Packets)
	assert.Equal(t, "Summary:\nSec: 0.00-9.30, Sent: 930 pkts, Rate: 0.80 Mbps", sum.TxSummary())
}

func TestAggregatorEmptyWindow(t *testing.T) {
	origin := time.Unix(0, 0)
	a := stats.NewAggregator(origin, time.Second)
	_, ok := a.Flush(origin.Add(time.Second))
	assert.False(t, ok)
	assert.Equal(t, origin.Add(2*time.Second), a.NextFlush())

	a.Count(stats.Counters{Dropped: 3})
	r, ok := a.Flush(origin.Add(2 * time.Second))
	assert.True(t, ok)
	assert.Equal(t, time.Second, r.Start)
	assert.Equal(t, "Sec: 1.00-2.00, Recv: 0/3 pkts, Dropped: 100.00%, Rate: 0.00 Mbps", r.RxLine())
	assert.True(t, a.Window().IsZero())
	assert.Equal(t, uint64(3), a.Total().Dropped)
}

func TestAggregatorDuplicatesAloneAreNoWindow(t *testing.T) {
	origin := time.Unix(0, 0)
	a := stats.NewAggregator(origin, time.Second)
	a.Count(stats.Counters{Duplicates: 2})
	_, ok := a.Flush(origin.Add(time.Second))
	assert.False(t, ok)
	assert.Equal(t, origin.Add(time.Second), a.WindowStart())
	assert.Equal(t, uint64(2), a.Total().Duplicates)
}
