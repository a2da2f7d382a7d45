package receive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"
	"os"
	"slices"
	"time"

	"l2perf/pkg/frame"
	"l2perf/pkg/link"

	"github.com/ddirect/container/ttlmap"
	"github.com/sirupsen/logrus"
)

type State int

const (
	Idle State = iota
	Listening
	Receiving
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Receiving:
		return "receiving"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Config struct {
	EtherType     uint16
	Duration      time.Duration // zero runs until ctx is cancelled
	Interval      time.Duration // reporting window
	IdleTimeout   time.Duration // a sender silent this long has its session closed
	ReorderWindow uint64
	DelaySamples  int
	Out           io.Writer
	Log           *logrus.Entry
}

type Receiver struct {
	conf  Config
	state State
	live  map[string]*session
}

func New(conf Config) *Receiver {
	if conf.Interval <= 0 {
		conf.Interval = time.Second
	}
	if conf.IdleTimeout <= 0 {
		conf.IdleTimeout = 2 * time.Second
	}
	if conf.ReorderWindow == 0 {
		conf.ReorderWindow = DefaultReorderWindow
	}
	if conf.DelaySamples <= 0 {
		conf.DelaySamples = 1000
	}
	if conf.Out == nil {
		conf.Out = os.Stdout
	}
	if conf.Log == nil {
		conf.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Receiver{
		conf: conf,
		live: make(map[string]*session),
	}
}

func (r *Receiver) State() State {
	return r.state
}

// Run consumes frames until the duration elapses, ctx is cancelled or the
// channel is closed; every open session is then closed with its final
// window and summary. A link error ends the run immediately.
func (r *Receiver) Run(ctx context.Context, frames <-chan link.RecvPacket[frame.Frame]) error {
	fmt.Fprintf(r.conf.Out, "Accepting Ether Type %x...\n", r.conf.EtherType)
	r.state = Listening

	check := time.NewTicker(max(r.conf.Interval/10, time.Millisecond))
	defer check.Stop()

	var deadline <-chan time.Time
	if r.conf.Duration > 0 {
		timer := time.NewTimer(r.conf.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	// expiry callbacks still pending when Run returns must not block forever
	done := make(chan struct{})
	defer close(done)
	expired := make(chan iter.Seq[ttlmap.Item[string, *session]])
	idle := ttlmap.NewAsync[string, *session](r.conf.IdleTimeout, max(r.conf.IdleTimeout/10, time.Millisecond),
		func(items iter.Seq[ttlmap.Item[string, *session]]) {
			select {
			case expired <- items:
			case <-done:
			}
		})

	for {
		select {
		case <-ctx.Done():
			r.finish("cancelled")
			return nil

		case <-deadline:
			r.finish("duration elapsed")
			return nil

		case items := <-expired:
			now := time.Now()
			var alive []*session
			for it := range items {
				s := it.Value
				if r.live[s.src] != s {
					continue
				}
				if now.Sub(s.last) < r.conf.IdleTimeout {
					alive = append(alive, s)
					continue
				}
				r.closeSession(s, "idle")
			}
			// the map is not touched while its expired entries are walked
			for _, s := range alive {
				idle.Set(s.src, s)
			}

		case now := <-check.C:
			for _, s := range r.live {
				s.tick(r, now)
			}

		case pkt, ok := <-frames:
			if !ok {
				r.finish("link closed")
				return nil
			}
			if pkt.Error != nil {
				var linkErr *link.Error
				if errors.As(pkt.Error, &linkErr) {
					r.state = Finished
					return pkt.Error
				}
				// undecodable frames are left out of every count
				continue
			}
			if s := r.accept(&pkt.Data, pkt.Ts, time.Now()); s != nil {
				idle.Set(s.src, s)
			}
		}
	}
}

// accept returns the session that took the frame, nil if it was filtered.
func (r *Receiver) accept(f *frame.Frame, arrival frame.Timestamp, now time.Time) *session {
	if f.EtherType != r.conf.EtherType {
		return nil
	}
	src := f.Src.String()
	s := r.live[src]
	if s != nil && !s.observe(r, f, arrival, now) {
		r.closeSession(s, "sender restarted")
		s = nil
	}
	if s == nil {
		s = r.newSession(src, now)
		r.live[src] = s
		r.state = Receiving
		s.observe(r, f, arrival, now)
	}
	return s
}

func (r *Receiver) closeSession(s *session, reason string) {
	s.close(r, reason)
	delete(r.live, s.src)
	if len(r.live) == 0 {
		r.state = Listening
	}
}

func (r *Receiver) finish(reason string) {
	for _, src := range slices.Sorted(maps.Keys(r.live)) {
		r.closeSession(r.live[src], reason)
	}
	r.state = Finished
}
