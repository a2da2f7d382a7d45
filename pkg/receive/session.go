package receive

import (
	"fmt"
	"time"

	"l2perf/pkg/frame"
	"l2perf/pkg/stats"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

type session struct {
	id      xid.ID
	src     string
	tracker *Tracker
	agg     *stats.Aggregator
	last    time.Time
	delay   *stats.Rolling[time.Duration]
	log     *logrus.Entry
}

func (r *Receiver) newSession(src string, now time.Time) *session {
	id := xid.New()
	fmt.Fprintln(r.conf.Out, "\nNew incoming traffic:")
	s := &session{
		id:      id,
		src:     src,
		tracker: NewTracker(r.conf.ReorderWindow),
		agg:     stats.NewAggregator(now, r.conf.Interval),
		last:    now,
		delay:   stats.NewRolling[time.Duration](r.conf.DelaySamples),
		log:     r.conf.Log.WithFields(logrus.Fields{"session": id.String(), "src": src}),
	}
	s.log.Info("session started")
	return s
}

// tick prints every window that ended by now; empty ones are skipped.
func (s *session) tick(r *Receiver, now time.Time) {
	for s.agg.Due(now) {
		if w, ok := s.agg.Flush(s.agg.NextFlush()); ok {
			fmt.Fprintln(r.conf.Out, w.RxLine())
		}
	}
}

// observe accounts one accepted frame. It reports false when the frame
// showed the sender restarted; the caller then closes this session and
// opens a new one with the frame.
func (s *session) observe(r *Receiver, f *frame.Frame, arrival frame.Timestamp, now time.Time) bool {
	s.tick(r, now)

	v, dropped := s.tracker.Observe(f.Seq)
	switch v {
	case Restart:
		return false
	case Duplicate:
		s.log.WithField("seq", f.Seq).Debug("out of order frame")
		s.agg.Count(stats.Counters{Duplicates: 1})
		return true
	}

	s.agg.Count(stats.Counters{Packets: 1, Bytes: uint64(f.Len()), Dropped: dropped})
	s.delay.Add(time.Duration(arrival - f.Timestamp))
	s.last = now
	return true
}

// close prints the last partial window and the summary. Time after the last
// accepted frame is not part of either.
func (s *session) close(r *Receiver, reason string) {
	s.tick(r, s.last)
	// a late duplicate may have moved the window past the last accepted frame
	if !s.last.Before(s.agg.WindowStart()) {
		if w, ok := s.agg.Flush(s.last); ok {
			fmt.Fprintln(r.conf.Out, w.RxLine())
		}
	}
	sum := s.agg.Summary(s.last)
	fmt.Fprintln(r.conf.Out, sum.RxSummary())

	s.log.WithFields(logrus.Fields{
		"reason":       reason,
		"received":     sum.Packets,
		"dropped":      sum.Dropped,
		"duplicates":   sum.Duplicates,
		"delay_mean":   s.delay.Mean(),
		"delay_stddev": s.delay.StdDev(),
		"delay_min":    s.delay.Min(),
		"delay_max":    s.delay.Max(),
	}).Info("session closed")
}
