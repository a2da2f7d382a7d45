package link

import (
	"context"
	"errors"

	"l2perf/pkg/frame"

	"golang.org/x/sys/unix"
)

// Recv reads one frame into buf. Frames sent by this host are skipped.
// When the socket has a receive timeout and nothing arrives, ErrTimeout is
// returned.
func (c *Conn) Recv(buf []byte) (int, frame.Timestamp, error) {
	for {
		n, ctlN, _, from, err := unix.Recvmsg(c.fd, buf, c.ctlBuf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return 0, 0, ErrTimeout
			}
			return 0, 0, &Error{"recvmsg", err}
		}

		if sa, ok := from.(*unix.SockaddrLinklayer); ok && sa.Pkttype == unix.PACKET_OUTGOING {
			continue
		}

		if c.timestamps {
			if ts, err := decodeTimestamp(c.ctlBuf[:ctlN]); err == nil {
				return n, ts, nil
			}
		}
		return n, frame.Now(), nil
	}
}

type Receiver interface {
	Recv(buf []byte) (int, frame.Timestamp, error)
}

type RecvPacket[T any] struct {
	Data  T
	Ts    frame.Timestamp
	Error error
}

// NewAsyncReceiver decodes frames on its own goroutine. Decode failures are
// delivered and the goroutine keeps going; a receive failure is delivered as
// a *Error and ends it. The channel is closed when the goroutine exits.
func NewAsyncReceiver[T any](ctx context.Context, r Receiver, decode func([]byte) (T, error), bufSize, chDepth int) <-chan RecvPacket[T] {
	ch := make(chan RecvPacket[T], chDepth)
	go func() {
		defer close(ch)
		buf := make([]byte, bufSize)
		for ctx.Err() == nil {
			n, ts, err := r.Recv(buf)
			if errors.Is(err, ErrTimeout) {
				continue
			}

			var pkt RecvPacket[T]
			if err != nil {
				var linkErr *Error
				if !errors.As(err, &linkErr) {
					err = &Error{"recv", err}
				}
				pkt.Error = err
			} else {
				pkt.Data, pkt.Error = decode(buf[:n])
				pkt.Ts = ts
			}

			select {
			case ch <- pkt:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}
