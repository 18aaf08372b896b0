package card

import (
	"encoding/binary"
	"time"
)

// fakeBus is a deterministic in-memory stand-in for a real memory
// card, used across this package's tests. It tracks just enough
// state (status, a flat memory image, and, when exercising the
// unlock handshake, a mirrored LFSR) to answer every command this
// driver issues.
type fakeBus struct {
	id     uint32
	mem    []byte
	status Status

	cipher        *LFSR
	cardID        [12]byte
	challenge     [8]byte
	expectedResp  [4]byte
	unlockReadNum int

	alwaysBusy  bool
	submitCount int
}

func newFakeBus(id uint32, memSize int) *fakeBus {
	return &fakeBus{id: id, mem: make([]byte, memSize), status: StatusReady | StatusUnlocked}
}

// newLockedFakeBus returns a fakeBus that starts locked, with a fixed
// card id and challenge the unlock handshake must recover.
func newLockedFakeBus(id uint32, memSize int, cardID [12]byte, challenge [8]byte) *fakeBus {
	f := newFakeBus(id, memSize)
	f.status = StatusReady
	f.cardID = cardID
	f.challenge = challenge
	resp := challengeHash(challenge[:])
	f.expectedResp = resp
	return f
}

func decodeAddrBytes(b []byte) [4]byte {
	return [4]byte{b[0], b[1], b[2], b[3]}
}

func (f *fakeBus) Submit(segs []Segment) error {
	f.submitCount++
	if len(segs) == 0 {
		return nil
	}
	if len(segs[0].Tx) == 0 {
		return nil
	}
	op := segs[0].Tx[0]

	switch op {
	case opEXIID:
		binary.BigEndian.PutUint32(segs[1].Rx, f.id)
	case opGetStatus:
		status := f.status
		if f.alwaysBusy {
			status |= StatusBusy
		}
		segs[1].Rx[0] = byte(status)
	case opGetID:
		copy(segs[1].Rx, []byte{0xaa, 0xbb})
	case opClearStatus:
		f.status &^= StatusProgramError | StatusEraseError
	case opSetInterrupt:
		if segs[0].Tx[1] == 1 {
			f.status |= StatusIntEnabled
		} else {
			f.status &^= StatusIntEnabled
		}
	case opWake:
		f.status &^= StatusSleep
	case opSleep:
		f.status |= StatusSleep
	case opWriteBuffer:
		// flushes nothing observable in this fake.
	case opReadPage:
		if len(segs) == 1 {
			f.handleUnlockRead(segs[0].Tx[1:])
			return nil
		}
		rx := segs[len(segs)-1].Rx
		addrBytes := decodeAddrBytes(segs[0].Tx[1:5])
		addr := DecodeAddress(addrBytes)
		f.handleRead(addr, rx)
	case opEraseSector:
		addrBytes := [4]byte{segs[0].Tx[1], segs[0].Tx[2], 0, 0}
		addr := DecodeAddress(addrBytes)
		for i := uint32(0); i < sectorSizeForTest(f); i++ {
			if int(addr+i) < len(f.mem) {
				f.mem[addr+i] = 0xff
			}
		}
	case opEraseCard:
		for i := range f.mem {
			f.mem[i] = 0xff
		}
	case opWritePage:
		addrBytes := decodeAddrBytes(segs[0].Tx[1:5])
		addr := DecodeAddress(addrBytes)
		data := segs[0].Tx[5:]
		for i, b := range data {
			f.mem[int(addr)+i] &= b
		}
	}
	return nil
}

// sectorSizeForTest lets erase_sector fill a full sector without the
// fake needing its own copy of deriveGeometry.
func sectorSizeForTest(f *fakeBus) uint32 {
	geom, err := deriveGeometry(f.id)
	if err != nil {
		return 0x2000
	}
	return geom.SectorSize
}

func (f *fakeBus) handleRead(addr uint32, rx []byte) {
	switch len(rx) {
	case 4:
		// the unlock handshake's first raw read: output is
		// discarded by the caller, so content does not matter, but
		// the cipher must still be primed and advanced in lockstep.
		if f.cipher == nil {
			f.cipher = NewLFSR(unlockArrayAddr)
		}
		var discard [4]byte
		f.cipher.XOR(discard[:], discard[:])
		f.cipher.Advance()
	case 24:
		plain := make([]byte, 24)
		copy(plain[0:12], f.cardID[:])
		copy(plain[12:20], f.challenge[:])
		f.cipher.XOR(rx, plain)
		f.cipher.Advance()
	default:
		end := int(addr) + len(rx)
		if end > len(f.mem) {
			end = len(f.mem)
		}
		copy(rx, f.mem[addr:end])
	}
}

func (f *fakeBus) handleUnlockRead(ciphertext []byte) {
	plain := make([]byte, len(ciphertext))
	f.cipher.XOR(plain, ciphertext)
	f.cipher.Advance()

	var want [2]byte
	if f.unlockReadNum == 0 {
		want = [2]byte{f.expectedResp[0], f.expectedResp[1]}
	} else {
		want = [2]byte{f.expectedResp[2], f.expectedResp[3]}
	}
	f.unlockReadNum++
	if plain[0] == want[0] && plain[1] == want[1] {
		if f.unlockReadNum == 2 {
			f.status |= StatusUnlocked
		}
	}
}

// fakeSignal is a test Signal driven entirely by a channel: trigger()
// arms the next wait to succeed; an untriggered wait blocks for the
// full timeout and fails.
type fakeSignal struct {
	edge   chan struct{}
	closed bool
}

func newFakeSignal() *fakeSignal {
	return &fakeSignal{edge: make(chan struct{}, 1)}
}

func (f *fakeSignal) trigger() {
	select {
	case f.edge <- struct{}{}:
	default:
	}
}

func (f *fakeSignal) WaitFallingEdge(timeout time.Duration) error {
	select {
	case <-f.edge:
		return nil
	case <-time.After(timeout):
		return newErr(KindTimeout, "no falling edge observed")
	}
}

func (f *fakeSignal) Close() error {
	f.closed = true
	return nil
}
