package card

// EncodeAddress packs a 24-bit card address into the 4 address bytes
// the command layer puts on the wire.
func EncodeAddress(addr uint32) [4]byte {
	return [4]byte{
		byte((addr >> 17) & 0x7f),
		byte((addr >> 9) & 0xff),
		byte((addr >> 7) & 0x03),
		byte(addr & 0x7f),
	}
}

// DecodeAddress is the inverse of EncodeAddress.
func DecodeAddress(b [4]byte) uint32 {
	return uint32(b[0]&0x7f)<<17 |
		uint32(b[1])<<9 |
		uint32(b[2]&0x03)<<7 |
		uint32(b[3]&0x7f)
}
