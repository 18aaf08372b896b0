package card

import "encoding/binary"

// HeaderSize is the fixed length of the card's header block (block 0).
const HeaderSize = 512

// headerChecksumRegion is the number of leading bytes the dual
// checksum is computed over; the trailing 4 bytes are the checksums
// themselves.
const headerChecksumRegion = 508

const headerPaddingSize = 0x1d6

// Header is the on-card header block, laid out big-endian with no
// implicit struct packing: every field is read and written
// explicitly so host byte order never leaks in.
type Header struct {
	Serial       [12]byte
	Time         uint64
	Bias         uint32
	Lang         uint32
	Unk          uint32
	DeviceID     uint16
	SizeMegabits uint16
	Encoding     uint16
	Checksum1    uint16
	Checksum2    uint16
}

// UnmarshalHeader parses a 512-byte header block.
func UnmarshalHeader(buf []byte) (*Header, error) {
	if len(buf) != HeaderSize {
		return nil, newErr(KindInvalidArgument, "header block must be 512 bytes")
	}
	h := &Header{}
	copy(h.Serial[:], buf[0:12])
	h.Time = binary.BigEndian.Uint64(buf[12:20])
	h.Bias = binary.BigEndian.Uint32(buf[20:24])
	h.Lang = binary.BigEndian.Uint32(buf[24:28])
	h.Unk = binary.BigEndian.Uint32(buf[28:32])
	h.DeviceID = binary.BigEndian.Uint16(buf[32:34])
	h.SizeMegabits = binary.BigEndian.Uint16(buf[34:36])
	h.Encoding = binary.BigEndian.Uint16(buf[36:38])
	h.Checksum1 = binary.BigEndian.Uint16(buf[508:510])
	h.Checksum2 = binary.BigEndian.Uint16(buf[510:512])
	return h, nil
}

// MarshalBinary serializes the header back to its 512-byte wire form.
// The padding region is always written as 0xff.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	copy(buf[0:12], h.Serial[:])
	binary.BigEndian.PutUint64(buf[12:20], h.Time)
	binary.BigEndian.PutUint32(buf[20:24], h.Bias)
	binary.BigEndian.PutUint32(buf[24:28], h.Lang)
	binary.BigEndian.PutUint32(buf[28:32], h.Unk)
	binary.BigEndian.PutUint16(buf[32:34], h.DeviceID)
	binary.BigEndian.PutUint16(buf[34:36], h.SizeMegabits)
	binary.BigEndian.PutUint16(buf[36:38], h.Encoding)
	for i := 38; i < 38+headerPaddingSize; i++ {
		buf[i] = 0xff
	}
	binary.BigEndian.PutUint16(buf[508:510], h.Checksum1)
	binary.BigEndian.PutUint16(buf[510:512], h.Checksum2)
	return buf, nil
}

// VerifyChecksum recomputes the header's checksum over its first 508
// bytes and reports whether it matches the stored Checksum1/Checksum2.
func (h *Header) VerifyChecksum() (bool, error) {
	buf, err := h.MarshalBinary()
	if err != nil {
		return false, err
	}
	c1, c2, err := Checksum(buf[:headerChecksumRegion])
	if err != nil {
		return false, err
	}
	return c1 == h.Checksum1 && c2 == h.Checksum2, nil
}

// UpdateChecksum recomputes Checksum1/Checksum2 from the header's
// current field values.
func (h *Header) UpdateChecksum() error {
	buf, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	c1, c2, err := Checksum(buf[:headerChecksumRegion])
	if err != nil {
		return err
	}
	h.Checksum1, h.Checksum2 = c1, c2
	return nil
}

// serialKeyGen reproduces the header serial's obfuscation keystream: a
// 32-bit linear congruential generator seeded from the low half of the
// header's time field, stepped twice per byte. The first step yields
// the key value for the current byte; the second (masked to 15 bits)
// primes the state for the next one. All arithmetic wraps at 32 bits.
type serialKeyGen struct {
	state uint32
}

func newSerialKeyGen(timeField uint64) *serialKeyGen {
	return &serialKeyGen{state: uint32(timeField)}
}

func (g *serialKeyGen) next() uint32 {
	g.state = g.state*0x41c64e6d + 0x3039
	g.state >>= 16
	keyValue := g.state
	g.state = g.state*0x41c64e6d + 0x3039
	g.state = (g.state >> 16) & 0x7fff
	return keyValue
}

// DecodedSerial returns the header's serial number with the
// time-keyed obfuscation removed. A well-formed card's decoded serial
// equals the card id returned by the unlock handshake.
func (h *Header) DecodedSerial() [12]byte {
	g := newSerialKeyGen(h.Time)
	var out [12]byte
	for i, b := range h.Serial {
		out[i] = byte(uint32(b) - g.next())
	}
	return out
}

// SetEncodedSerial obfuscates serial with the keystream keyed by time
// and stores both the encoded serial and the time field itself.
func (h *Header) SetEncodedSerial(serial [12]byte, timeField uint64) {
	g := newSerialKeyGen(timeField)
	var enc [12]byte
	for i, b := range serial {
		enc[i] = byte(uint32(b) + g.next())
	}
	h.Serial = enc
	h.Time = timeField
}
