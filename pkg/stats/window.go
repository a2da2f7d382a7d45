package stats

import (
	"fmt"
	"time"
)

// Rate returns the throughput in megabits per second.
func Rate(bytes uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) * 8 / (elapsed.Seconds() * 1_000_000)
}

func Percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

type Counters struct {
	Packets    uint64
	Bytes      uint64
	Dropped    uint64
	Duplicates uint64
}

func (c *Counters) Add(o Counters) {
	c.Packets += o.Packets
	c.Bytes += o.Bytes
	c.Dropped += o.Dropped
	c.Duplicates += o.Duplicates
}

// Expected is the number of frames the sequence numbers imply were sent.
func (c Counters) Expected() uint64 {
	return c.Packets + c.Dropped
}

func (c Counters) IsZero() bool {
	return c == Counters{}
}

// Report covers [Start, End) relative to the session origin.
type Report struct {
	Start time.Duration
	End   time.Duration
	Counters
}

func (r Report) Elapsed() time.Duration {
	return r.End - r.Start
}

func (r Report) Rate() float64 {
	return Rate(r.Bytes, r.Elapsed())
}

func (r Report) DropPercent() float64 {
	return Percent(r.Dropped, r.Expected())
}

func (r Report) TxLine() string {
	return fmt.Sprintf("Sec: %.2f-%.2f, Sent: %d pkts, Rate: %.2f Mbps",
		r.Start.Seconds(), r.End.Seconds(), r.Packets, r.Rate())
}

func (r Report) RxLine() string {
	return fmt.Sprintf("Sec: %.2f-%.2f, Recv: %d/%d pkts, Dropped: %.2f%%, Rate: %.2f Mbps",
		r.Start.Seconds(), r.End.Seconds(), r.Packets, r.Expected(), r.DropPercent(), r.Rate())
}

func (r Report) TxSummary() string {
	return "Summary:\n" + r.TxLine()
}

func (r Report) RxSummary() string {
	return "Summary:\n" + r.RxLine()
}

// Aggregator accumulates counters into fixed nominal windows and into
// session totals. All times are absolute; reports are relative to origin.
type Aggregator struct {
	origin   time.Time
	interval time.Duration
	winStart time.Time
	window   Counters
	total    Counters
}

func NewAggregator(origin time.Time, interval time.Duration) *Aggregator {
	return &Aggregator{
		origin:   origin,
		interval: interval,
		winStart: origin,
	}
}

func (a *Aggregator) Origin() time.Time {
	return a.origin
}

func (a *Aggregator) Count(c Counters) {
	a.window.Add(c)
	a.total.Add(c)
}

func (a *Aggregator) Window() Counters {
	return a.window
}

func (a *Aggregator) Total() Counters {
	return a.total
}

func (a *Aggregator) WindowStart() time.Time {
	return a.winStart
}

func (a *Aggregator) NextFlush() time.Time {
	return a.winStart.Add(a.interval)
}

func (a *Aggregator) Due(now time.Time) bool {
	return !now.Before(a.NextFlush())
}

// Flush closes the current window at end and starts the next one there.
// ok is false when the window saw neither a packet nor a drop; duplicates
// alone do not make a line.
func (a *Aggregator) Flush(end time.Time) (r Report, ok bool) {
	r = Report{
		Start:    a.winStart.Sub(a.origin),
		End:      end.Sub(a.origin),
		Counters: a.window,
	}
	a.winStart = end
	a.window = Counters{}
	return r, r.Packets > 0 || r.Dropped > 0
}

// Summary covers the whole session from origin to end.
func (a *Aggregator) Summary(end time.Time) Report {
	return Report{
		End:      end.Sub(a.origin),
		Counters: a.total,
	}
}
