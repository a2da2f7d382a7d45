package link

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Conn is a raw AF_PACKET socket bound to one interface and one ethertype.
type Conn struct {
	fd         int
	iface      *net.Interface
	sa         *unix.SockaddrLinklayer
	ctlBuf     []byte
	timestamps bool
}

// OpenSender opens a socket that only transmits: it is bound with protocol
// zero so the kernel never queues inbound frames on it.
func OpenSender(ifname string, etherType uint16) (*Conn, error) {
	return open(ifname, 0, htons(etherType), 0)
}

// OpenReceiver opens a socket that is delivered only frames of etherType.
// A zero recvTimeout leaves Recv blocking.
func OpenReceiver(ifname string, etherType uint16, recvTimeout time.Duration) (*Conn, error) {
	proto := htons(etherType)
	return open(ifname, proto, proto, recvTimeout)
}

// open needs CAP_NET_RAW. Protocols are in network order.
func open(ifname string, bindProto, sendProto uint16, recvTimeout time.Duration) (*Conn, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, &Error{"interface", err}
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(bindProto))
	if err != nil {
		return nil, &Error{"socket", err}
	}

	c := &Conn{
		fd:    fd,
		iface: iface,
		sa: &unix.SockaddrLinklayer{
			Protocol: sendProto,
			Ifindex:  iface.Index,
		},
		ctlBuf: make([]byte, ctlBufSize),
	}

	if err = unix.Bind(fd, &unix.SockaddrLinklayer{Protocol: bindProto, Ifindex: iface.Index}); err != nil {
		unix.Close(fd)
		return nil, &Error{"bind", err}
	}

	if recvTimeout > 0 {
		tv := unix.NsecToTimeval(recvTimeout.Nanoseconds())
		if err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			unix.Close(fd)
			return nil, &Error{"setsockopt SO_RCVTIMEO", err}
		}
	}

	if bindProto != 0 {
		// without kernel timestamps Recv falls back to the clock
		c.timestamps = enableTimestamping(fd) == nil
	}

	return c, nil
}

func (c *Conn) HardwareAddr() net.HardwareAddr {
	return c.iface.HardwareAddr
}

func (c *Conn) MTU() int {
	return c.iface.MTU
}

func (c *Conn) String() string {
	return AddrToString(c.sa, c.iface.Name)
}

func (c *Conn) Close() error {
	if err := unix.Close(c.fd); err != nil {
		return &Error{"close", err}
	}
	return nil
}

// AddrToString formats a link-layer address as "ifname/0xPROTO" when it has
// no hardware address, "ifname/MAC" otherwise.
func AddrToString(sa unix.Sockaddr, ifname string) string {
	switch v := sa.(type) {
	case *unix.SockaddrLinklayer:
		if v.Halen == 0 {
			return fmt.Sprintf("%s/0x%04x", ifname, htons(v.Protocol))
		}
		return fmt.Sprintf("%s/%s", ifname, net.HardwareAddr(v.Addr[:v.Halen]))
	default:
		panic(fmt.Errorf("unsupported address type %T", v))
	}
}

// htons converts between host and network order; it is its own inverse.
func htons(v uint16) uint16 {
	return binary.NativeEndian.Uint16(binary.BigEndian.AppendUint16(nil, v))
}
