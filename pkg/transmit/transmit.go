package transmit

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"l2perf/pkg/frame"
	"l2perf/pkg/stats"

	"github.com/sirupsen/logrus"
)

type State int

const (
	Idle State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Sender interface {
	Send([]byte) error
}

type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

type Config struct {
	Bandwidth float64       // bits per second
	Duration  time.Duration // always bounded
	Interval  time.Duration // reporting window
	Out       io.Writer
	Log       *logrus.Entry
	Clock     Clock
}

type Transmitter struct {
	conf  Config
	enc   *frame.Encoder
	link  Sender
	state State
}

func New(conf Config, enc *frame.Encoder, link Sender) (*Transmitter, error) {
	if conf.Bandwidth <= 0 {
		return nil, fmt.Errorf("bandwidth must be positive, got %v", conf.Bandwidth)
	}
	if conf.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %v", conf.Duration)
	}
	if conf.Interval <= 0 {
		conf.Interval = time.Second
	}
	if conf.Out == nil {
		conf.Out = os.Stdout
	}
	if conf.Log == nil {
		conf.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if conf.Clock == nil {
		conf.Clock = SystemClock{}
	}
	return &Transmitter{conf: conf, enc: enc, link: link}, nil
}

func (t *Transmitter) State() State {
	return t.state
}

// FrameInterval is the nominal spacing between frames of size bytes at bandwidth bits/s.
func FrameInterval(size int, bandwidth float64) time.Duration {
	return time.Duration(frameIntervalNs(size, bandwidth))
}

// frameIntervalNs keeps the fractional nanoseconds so deadlines far from
// the origin do not drift.
func frameIntervalNs(size int, bandwidth float64) float64 {
	return float64(size) * 8 * float64(time.Second) / bandwidth
}

// Run sends frames until the duration elapses or ctx is cancelled. Frame k
// is due at origin + k*interval; the loop sleeps only when it is ahead of
// that deadline, so scheduling overhead never accumulates into rate drift.
// A send failure ends the run immediately.
func (t *Transmitter) Run(ctx context.Context) (stats.Report, error) {
	clock := t.conf.Clock
	size := t.enc.Len()
	intervalNs := frameIntervalNs(size, t.conf.Bandwidth)

	origin := clock.Now()
	end := origin.Add(t.conf.Duration)
	agg := stats.NewAggregator(origin, t.conf.Interval)
	t.state = Running

	t.conf.Log.WithFields(logrus.Fields{
		"frame_size": size,
		"interval":   time.Duration(intervalNs),
		"duration":   t.conf.Duration,
	}).Debug("pacing started")

	done := ctx.Done()
	var seq uint64
	var now time.Time
loop:
	for {
		select {
		case <-done:
			t.conf.Log.Debug("cancelled")
			now = minTime(clock.Now(), end)
			break loop
		default:
		}

		now = clock.Now()
		if !now.Before(end) {
			now = end
			break loop
		}
		if agg.Due(now) {
			t.flush(agg, agg.NextFlush())
			continue
		}

		wake := minTime(agg.NextFlush(), end)
		deadline := origin.Add(time.Duration(float64(seq) * intervalNs))
		if now.Before(deadline) {
			clock.Sleep(minTime(wake, deadline).Sub(now))
			continue
		}

		if err := t.link.Send(t.enc.Encode(seq, frame.Timestamp(now.UnixNano()))); err != nil {
			t.state = Finished
			return agg.Summary(now), fmt.Errorf("frame %d: %w", seq, err)
		}
		seq++
		agg.Count(stats.Counters{Packets: 1, Bytes: uint64(size)})
	}

	if now.After(agg.NextFlush().Add(-t.conf.Interval)) {
		t.flush(agg, now)
	}
	summary := agg.Summary(now)
	fmt.Fprintln(t.conf.Out, summary.TxSummary())
	t.state = Finished

	t.conf.Log.WithFields(logrus.Fields{
		"sent":  summary.Packets,
		"bytes": summary.Bytes,
	}).Debug("pacing finished")
	return summary, nil
}

// Transmit windows are printed even when nothing was sent in them.
func (t *Transmitter) flush(agg *stats.Aggregator, end time.Time) {
	r, _ := agg.Flush(end)
	fmt.Fprintln(t.conf.Out, r.TxLine())
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
