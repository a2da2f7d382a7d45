package receive

import "fmt"

type Verdict int

const (
	InSequence Verdict = iota
	Gap
	Duplicate
	Restart
)

func (v Verdict) String() string {
	switch v {
	case InSequence:
		return "in-sequence"
	case Gap:
		return "gap"
	case Duplicate:
		return "duplicate"
	case Restart:
		return "restart"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

const DefaultReorderWindow = 64

// Tracker infers loss from the continuity of sequence numbers of one sender.
//
// A frame behind the expected sequence is a duplicate or a late arrival; it
// neither counts as received nor gives back a frame already counted as
// dropped. The exception is a jump back of more than reorderWindow to a
// sequence closer to zero than to the expected one, which is taken as the
// sender having restarted.
type Tracker struct {
	expected      uint64
	started       bool
	reorderWindow uint64
}

func NewTracker(reorderWindow uint64) *Tracker {
	return &Tracker{reorderWindow: reorderWindow}
}

func (t *Tracker) Expected() uint64 {
	return t.expected
}

// Observe classifies seq; dropped is non-zero only for Gap. After Restart the
// tracker has already taken seq as its new baseline.
func (t *Tracker) Observe(seq uint64) (v Verdict, dropped uint64) {
	switch {
	case !t.started:
		t.started = true
		t.expected = seq + 1
		return InSequence, 0
	case seq == t.expected:
		t.expected++
		return InSequence, 0
	case seq > t.expected:
		dropped = seq - t.expected
		t.expected = seq + 1
		return Gap, dropped
	}

	if back := t.expected - seq; back > t.reorderWindow && seq < back {
		t.expected = seq + 1
		return Restart, 0
	}
	return Duplicate, 0
}
