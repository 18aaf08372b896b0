package card

import "math/bits"

const unlockArrayAddr = 0x7fec8000

// unlock runs the card's cryptographic unlock handshake and
// returns the 12-byte card id. It is called once, from session
// construction, when the card reports itself locked.
func (s *Session) unlock() ([]byte, error) {
	cipher := NewLFSR(unlockArrayAddr)

	addr := EncodeAddress((unlockArrayAddr >> 12) & 0x7ffff)
	raw4, err := s.rawReadPage(addr, 4)
	if err != nil {
		return nil, err
	}
	cipher.XORInPlace(raw4) // output discarded; consumes 32 cipher bits
	cipher.Advance()

	raw24, err := s.rawReadPage(EncodeAddress(0), 24)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 24)
	cipher.XOR(data, raw24)
	cipher.Advance()

	cardID := append([]byte(nil), data[0:12]...)
	challenge := data[12:20]

	response := challengeHash(challenge)

	if err := s.unlockRead(cipher, response[0:2]); err != nil {
		return nil, err
	}
	cipher.Advance()
	if err := s.unlockRead(cipher, response[2:4]); err != nil {
		return nil, err
	}

	status, err := s.GetStatus()
	if err != nil {
		return nil, err
	}
	if status&StatusUnlocked == 0 {
		return nil, ErrUnlockFailed
	}
	return cardID, nil
}

// rawReadPage issues a read command at an arbitrary pre-encoded
// 4-byte address, bypassing the page-alignment checks ReadPage
// enforces; the unlock handshake's addresses are not page-aligned.
func (s *Session) rawReadPage(addr [4]byte, length int) ([]byte, error) {
	rx := make([]byte, length)
	cmd := append([]byte{opReadPage}, addr[:]...)
	segs := []Segment{
		{Tx: cmd},
		{Tx: make([]byte, s.geometry.TurnaroundBytes)},
		{Rx: rx},
	}
	if err := s.bus.Submit(segs); err != nil {
		return nil, wrapErr(KindOther, "bus transfer", err)
	}
	return rx, nil
}

// unlockRead issues one "unlock read" command: a single MOSI-only
// segment of the read opcode followed by the cipher-XORed payload
// built from a 2-byte fragment of the challenge response.
func (s *Session) unlockRead(cipher *LFSR, addr2 []byte) error {
	payload := make([]byte, 0, 12)
	payload = append(payload, addr2...)
	payload = append(payload, 0x00, 0x00)
	payload = append(payload, make([]byte, s.geometry.TurnaroundBytes)...)
	payload = append(payload, 0x00, 0x00, 0x00, 0x00)

	enc := make([]byte, len(payload))
	cipher.XOR(enc, payload)

	cmd := append([]byte{opReadPage}, enc...)
	return s.txOnly(cmd)
}

// challengeHash computes the card's challenge/response hash: a
// nibble-indexed mixing loop accumulating into a running sum, a hash
// word, and two key words, with a 32-bit right rotation by the swap
// offset at each step.
func challengeHash(challenge []byte) [4]byte {
	var sum uint32
	for _, b := range challenge {
		sum += uint32(b)
	}
	running := sum + 0x170a7489
	hash := uint32(0x05efe0aa)
	key0 := uint32(0xdaf4b157)
	key1 := uint32(0x6bbec3b6)

	nibbles := make([]byte, 0, len(challenge)*2)
	for _, b := range challenge {
		nibbles = append(nibbles, b>>4, b&0xf)
	}

	n0, n1 := uint32(nibbles[0]), uint32(nibbles[1])
	idx := 2
	for swapOffset := sum + 9; swapOffset < sum+16; swapOffset++ {
		n2, n3 := uint32(nibbles[idx]), uint32(nibbles[idx+1])
		idx += 2

		t := ((n3 & 8) * 0x1fe0) | (n3 << 4) | n1 // (n3&8 ? 0xff00 : 0) folded into one multiply
		t ^= (n0 << 8) ^ (n2 << 12)
		running = (running + t) & 0xffffffff

		hash = (hash + rotateRight32((key0^key1)+running, swapOffset&0x1f)) & 0xffffffff

		key0 = ((^running & hash) | (key1 >> 16) | (running & key1 & 0xffff0000)) & 0xffffffff
		key1 = running ^ hash ^ key0

		n0, n1 = n2, n3
	}

	var out [4]byte
	out[0] = byte(hash >> 24)
	out[1] = byte(hash >> 16)
	out[2] = byte(hash >> 8)
	out[3] = byte(hash)
	return out
}

func rotateRight32(v, shift uint32) uint32 {
	return bits.RotateLeft32(v, -int(shift&0x1f))
}
