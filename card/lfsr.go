package card

import "math/bits"

// lfsrTapMask selects the LFSR's four feedback taps: bits 8, 16, 24
// and 31.
const lfsrTapMask uint32 = 0x81010100

// LFSR is the 32-bit linear-feedback shift register used for the
// card's unlock handshake keystream. Its polynomial is fixed; the
// only input is the seed. An LFSR is single-use: once consumed for a
// handshake it is discarded, never reused or rewound.
type LFSR struct {
	state uint32
}

// NewLFSR seeds a cipher from a 32-bit value by running it through the
// standard five-stage bit-reversal (swap halves by 16, 8, 4, 2, then
// 1 bit). The transform is its own inverse.
func NewLFSR(seed uint32) *LFSR {
	return &LFSR{state: reverseBits32(seed)}
}

func reverseBits32(v uint32) uint32 {
	v = (v >> 16) | (v << 16)
	v = ((v & 0xff00ff00) >> 8) | ((v & 0x00ff00ff) << 8)
	v = ((v & 0xf0f0f0f0) >> 4) | ((v & 0x0f0f0f0f) << 4)
	v = ((v & 0xcccccccc) >> 2) | ((v & 0x33333333) << 2)
	v = ((v & 0xaaaaaaaa) >> 1) | ((v & 0x55555555) << 1)
	return v
}

// step produces one keystream bit: the current top bit is the
// output, bit 0 is set whenever the tapped bits have even parity, and
// the register then shifts left by one.
func (c *LFSR) step() uint32 {
	out := c.state >> 31 & 1
	if bits.OnesCount32(c.state&lfsrTapMask)%2 == 0 {
		c.state |= 1
	}
	c.state = (c.state & 0x7fffffff) << 1
	return out
}

// Advance runs the LFSR forward by one bit without consuming it into a
// keystream byte. The unlock handshake calls this between commands to
// match the card's own side-channel consumption of the stream.
func (c *LFSR) Advance() {
	c.step()
}

// XOR writes len(src) bytes into dst, each XORed with one keystream
// byte. Keystream bits are assembled MSB-first per byte, which is
// equivalent to treating the whole run as one big-endian integer XORed
// against src, just produced incrementally instead of as one big
// integer.
func (c *LFSR) XOR(dst, src []byte) {
	for i, b := range src {
		var kb byte
		for j := 0; j < 8; j++ {
			kb = kb<<1 | byte(c.step())
		}
		dst[i] = b ^ kb
	}
}

// XORInPlace is a convenience wrapper around XOR for callers that want
// to XOR a buffer against itself.
func (c *LFSR) XORInPlace(buf []byte) {
	c.XOR(buf, buf)
}
