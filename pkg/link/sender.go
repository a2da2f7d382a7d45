package link

import (
	"golang.org/x/sys/unix"
)

// Send writes one whole frame, ethernet header included.
func (c *Conn) Send(b []byte) error {
	for {
		err := unix.Sendto(c.fd, b, 0, c.sa)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return &Error{"sendto", err}
		}
		return nil
	}
}
