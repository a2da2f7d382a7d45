package link

import (
	"errors"
	"fmt"
	"unsafe"

	"l2perf/pkg/frame"

	"golang.org/x/sys/unix"
)

var (
	ErrTimeout                      = errors.New("receive timed out")
	ErrTimestampNotFound            = errors.New("no timestamp found in control data")
	ErrScmTimestampingNotEnoughData = errors.New("not enough data received for ScmTimestamping")
)

const (
	ctlBufSize = 256 // 64 bytes are enough for a single ScmTimestamping structure plus Cmsghdr (on x86_64)
)

// Error reports a failure of the underlying socket. These are never
// retried: the condition they signal does not fix itself.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func enableTimestamping(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPING,
		unix.SOF_TIMESTAMPING_RX_SOFTWARE|
			unix.SOF_TIMESTAMPING_SOFTWARE,
	); err != nil {
		return fmt.Errorf("setsockopt SO_TIMESTAMPING: %w", err)
	}
	return nil
}

func decodeTimestamp(buf []byte) (frame.Timestamp, error) {
	for len(buf) > 0 {
		hdr, data, remainder, err := unix.ParseOneSocketControlMessage(buf)
		if err != nil {
			return 0, fmt.Errorf("unix.ParseOneSocketControlMessage: %w", err)
		}

		if hdr.Level == unix.SOL_SOCKET && hdr.Type == unix.SCM_TIMESTAMPING {
			if uintptr(len(data)) < unsafe.Sizeof(unix.ScmTimestamping{}) {
				return 0, ErrScmTimestampingNotEnoughData
			}
			scmTs := (*unix.ScmTimestamping)(unsafe.Pointer(unsafe.SliceData(data)))
			return frame.Timestamp(scmTs.Ts[0].Nano()), nil
		}

		buf = remainder
	}
	return 0, ErrTimestampNotFound
}
