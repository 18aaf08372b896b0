package card

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnmarshalHeaderRejectsShortBuffer(t *testing.T) {
	_, err := UnmarshalHeader(make([]byte, 100))
	require.Error(t, err)
}

func TestHeaderMarshalUnmarshalRoundTrip(t *testing.T) {
	h := &Header{
		Time:         0x0102030405060708,
		Bias:         1,
		Lang:         2,
		Unk:          3,
		DeviceID:     4,
		SizeMegabits: 0x40,
		Encoding:     0,
	}
	copy(h.Serial[:], []byte("abcdefghijkl"))
	require.NoError(t, h.UpdateChecksum())

	buf, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)

	got, err := UnmarshalHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)

	ok, err := got.VerifyChecksum()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHeaderVerifyChecksumDetectsCorruption(t *testing.T) {
	h := &Header{Time: 42}
	require.NoError(t, h.UpdateChecksum())
	h.Bias = 0xdeadbeef // mutate after the checksum was computed

	ok, err := h.VerifyChecksum()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHeaderSerialObfuscationRoundTrip(t *testing.T) {
	h := &Header{}
	var serial [12]byte
	copy(serial[:], []byte("123456789012"))

	h.SetEncodedSerial(serial, 0xcafef00dd00dfeed)
	require.NotEqual(t, serial, h.Serial, "encoding should actually transform the serial")
	require.Equal(t, serial, h.DecodedSerial())
}
