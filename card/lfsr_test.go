package card

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReverseBits32Involution(t *testing.T) {
	for _, v := range []uint32{0, 1, 0xffffffff, 0x7fec8000, 0x12345678, 0x80000001} {
		require.Equal(t, v, reverseBits32(reverseBits32(v)), "bit reversal must be its own inverse for %#x", v)
	}
}

func TestLFSRSeedTransformScenario(t *testing.T) {
	// the handshake's own seed value, reversed bitwise.
	require.Equal(t, uint32(0x000137fe), reverseBits32(0x7fec8000))
}

func TestLFSRXORRoundTrip(t *testing.T) {
	plain := []byte("the quick brown fox jumped")
	enc := make([]byte, len(plain))
	NewLFSR(0x7fec8000).XOR(enc, plain)

	dec := make([]byte, len(plain))
	NewLFSR(0x7fec8000).XOR(dec, enc)

	require.Equal(t, plain, dec)
}

func TestLFSRAdvanceChangesKeystream(t *testing.T) {
	plain := make([]byte, 4)

	without := make([]byte, 4)
	NewLFSR(1).XOR(without, plain)

	withAdvance := make([]byte, 4)
	c := NewLFSR(1)
	c.Advance()
	c.XOR(withAdvance, plain)

	require.NotEqual(t, without, withAdvance)
}
