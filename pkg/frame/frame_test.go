package frame_test

import (
	"net"
	"testing"

	"l2perf/pkg/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dst = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	src = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func TestRoundTrip(t *testing.T) {
	enc, err := frame.NewEncoder(dst, src, 0x7380, 64)
	require.NoError(t, err)

	for _, ts := range []frame.Timestamp{0, 1, frame.Now(), -1} {
		f, err := frame.Decode(enc.Encode(42, ts))
		require.NoError(t, err)
		assert.Equal(t, uint64(42), f.Seq)
		assert.Equal(t, 64, f.PayloadLen)
		assert.Equal(t, ts, f.Timestamp)
		assert.Equal(t, uint16(0x7380), f.EtherType)
		assert.Equal(t, dst, f.Dst)
		assert.Equal(t, src, f.Src)
	}
}

func TestEncodedLength(t *testing.T) {
	for _, n := range []int{0, 1, 29, 30, 64, 1484} {
		enc, err := frame.NewEncoder(dst, src, 0x7380, n)
		require.NoError(t, err)
		b := enc.Encode(uint64(n), 7)
		assert.Len(t, b, frame.HeaderLen+n)
		assert.Equal(t, frame.HeaderLen+n, enc.Len())

		f, err := frame.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, n, f.PayloadLen)
		assert.Equal(t, len(b), f.Len())
		for _, c := range b[frame.HeaderLen:] {
			assert.Zero(t, c)
		}
	}
}

func TestDecodeCountsLinkPadding(t *testing.T) {
	enc, err := frame.NewEncoder(dst, src, 0x7380, 10)
	require.NoError(t, err)
	// a NIC pads the 40 byte frame to the 60 byte Ethernet minimum
	b := append(enc.Encode(3, 7), make([]byte, 20)...)

	f, err := frame.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, 30, f.PayloadLen)
	assert.Equal(t, 60, f.Len())
}

func TestEncodeDeterministic(t *testing.T) {
	enc, err := frame.NewEncoder(dst, src, 0x88b5, 16)
	require.NoError(t, err)
	a := append([]byte(nil), enc.Encode(9, 100)...)
	b := append([]byte(nil), enc.Encode(9, 100)...)
	assert.Equal(t, a, b)

	c := enc.Encode(9, 101)
	assert.Equal(t, a[:frame.HeaderLen-8], c[:frame.HeaderLen-8])
	assert.NotEqual(t, a, c)
}

func TestSequenceIsBigEndian(t *testing.T) {
	enc, err := frame.NewEncoder(dst, src, 0x7380, 0)
	require.NoError(t, err)
	b := enc.Encode(0x0102030405060708, 0)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b[frame.EthHeaderLen:frame.EthHeaderLen+8])
	assert.Equal(t, []byte{0x73, 0x80}, b[12:14])
}

func TestDecodeTooShort(t *testing.T) {
	for _, n := range []int{0, 13, frame.HeaderLen - 1} {
		_, err := frame.Decode(make([]byte, n))
		assert.ErrorIs(t, err, frame.ErrTooShort)
	}
}

func TestDecodeDoesNotAlias(t *testing.T) {
	enc, err := frame.NewEncoder(dst, src, 0x7380, 4)
	require.NoError(t, err)
	b := append([]byte(nil), enc.Encode(1, 1)...)
	f, err := frame.Decode(b)
	require.NoError(t, err)
	for i := range b {
		b[i] = 0xff
	}
	assert.Equal(t, src, f.Src)
}

func TestNewEncoderErrors(t *testing.T) {
	_, err := frame.NewEncoder(dst, src, 0x7380, -1)
	assert.Error(t, err)
	_, err = frame.NewEncoder(net.HardwareAddr{1, 2, 3}, src, 0x7380, 10)
	assert.Error(t, err)
}
