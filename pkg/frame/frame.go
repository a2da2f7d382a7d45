package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

type (
	Timestamp int64 // unix time in nanoseconds - differences can be cast directly to time.Duration
)

func Now() Timestamp {
	return Timestamp(time.Now().UnixNano())
}

const (
	EthHeaderLen = 14                   // dst(6) + src(6) + ethertype(2)
	HeaderLen    = EthHeaderLen + 8 + 8 // ethernet header + sequence + timestamp
	seqOffset    = EthHeaderLen
	tsOffset     = seqOffset + 8
)

var (
	ErrTooShort = errors.New("frame shorter than test header")
)

type Frame struct {
	Dst        net.HardwareAddr
	Src        net.HardwareAddr
	EtherType  uint16
	Seq        uint64
	Timestamp  Timestamp
	PayloadLen int // everything after the header, including any link padding up to 60 bytes
}

// Len is the number of bytes the frame occupied on the wire.
func (f *Frame) Len() int {
	return HeaderLen + f.PayloadLen
}

type Encoder struct {
	buf []byte
}

// NewEncoder prepares a buffer of exactly HeaderLen+payloadSize bytes whose
// ethernet header and payload never change; Encode only rewrites the
// sequence and timestamp fields.
func NewEncoder(dst, src net.HardwareAddr, etherType uint16, payloadSize int) (*Encoder, error) {
	if payloadSize < 0 {
		return nil, fmt.Errorf("negative payload size %d", payloadSize)
	}
	eth := &layers.Ethernet{
		DstMAC:       dst,
		SrcMAC:       src,
		EthernetType: layers.EthernetType(etherType),
	}
	sb := gopacket.NewSerializeBuffer()
	body := make([]byte, HeaderLen-EthHeaderLen+payloadSize)
	if err := gopacket.SerializeLayers(sb, gopacket.SerializeOptions{}, eth, gopacket.Payload(body)); err != nil {
		return nil, fmt.Errorf("serialize ethernet header: %w", err)
	}
	// SerializeTo pads short frames to 60 bytes; the padding is zeros so
	// cutting it off leaves the exact layout.
	return &Encoder{buf: sb.Bytes()[:HeaderLen+payloadSize]}, nil
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

// Encode returns the shared buffer; it is only valid until the next call.
func (e *Encoder) Encode(seq uint64, ts Timestamp) []byte {
	binary.BigEndian.PutUint64(e.buf[seqOffset:], seq)
	binary.BigEndian.PutUint64(e.buf[tsOffset:], uint64(ts))
	return e.buf
}

// Decode does not retain b.
func Decode(b []byte) (Frame, error) {
	if len(b) < HeaderLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(b))
	}
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(b, gopacket.NilDecodeFeedback); err != nil {
		return Frame{}, fmt.Errorf("decode ethernet header: %w", err)
	}
	return Frame{
		Dst:        append(net.HardwareAddr(nil), eth.DstMAC...),
		Src:        append(net.HardwareAddr(nil), eth.SrcMAC...),
		EtherType:  binary.BigEndian.Uint16(b[12:EthHeaderLen]),
		Seq:        binary.BigEndian.Uint64(b[seqOffset:]),
		Timestamp:  Timestamp(binary.BigEndian.Uint64(b[tsOffset:])),
		PayloadLen: len(b) - HeaderLen,
	}, nil
}
