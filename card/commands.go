package card

const (
	opGetID        = 0x85
	opGetStatus    = 0x83
	opClearStatus  = 0x89
	opSetInterrupt = 0x81
	opWake         = 0x87
	opSleep        = 0x88
	opWriteBuffer  = 0x82
	opReadPage     = 0x52
	opEraseSector  = 0xf1
	opEraseCard    = 0xf4
	opWritePage    = 0xf2
	opEXIID        = 0x00

	readPageSize  = 0x200
	writePageSize = 0x80
)

// duplexCommand transmits cmd and returns rxLen bytes clocked back in
// the same transaction, at speedHz (0 meaning the bus's default).
func (s *Session) duplexCommand(cmd []byte, rxLen int, speedHz uint32) ([]byte, error) {
	rx := make([]byte, rxLen)
	segs := []Segment{
		{Tx: cmd, SpeedHz: speedHz},
		{Rx: rx, SpeedHz: speedHz},
	}
	if err := s.bus.Submit(segs); err != nil {
		return nil, wrapErr(KindOther, "bus transfer", err)
	}
	return rx, nil
}

func (s *Session) txOnly(cmd []byte) error {
	if err := s.bus.Submit([]Segment{{Tx: cmd}}); err != nil {
		return wrapErr(KindOther, "bus transfer", err)
	}
	return nil
}

// exiID reads the card's identification word, at the reduced clock
// rate used only at session construction.
func (s *Session) exiID(speedHz uint32) (uint32, error) {
	rx, err := s.duplexCommand([]byte{opEXIID, 0x00}, 4, speedHz)
	if err != nil {
		return 0, err
	}
	return uint32(rx[0])<<24 | uint32(rx[1])<<16 | uint32(rx[2])<<8 | uint32(rx[3]), nil
}

// GetID returns the card's maker/model identifier (2 bytes).
func (s *Session) GetID() ([]byte, error) {
	return s.duplexCommand([]byte{opGetID, 0x00}, 2, 0)
}

// GetStatus retrieves the card's current status bitfield.
func (s *Session) GetStatus() (Status, error) {
	rx, err := s.duplexCommand([]byte{opGetStatus, 0x00}, 1, 0)
	if err != nil {
		return 0, err
	}
	return Status(rx[0]), nil
}

// ClearStatus clears the PROGRAM_ERROR and ERASE_ERROR status bits.
func (s *Session) ClearStatus() error {
	return s.txOnly([]byte{opClearStatus})
}

// SetInterrupt enables or disables the card's INT pulse on command
// completion.
func (s *Session) SetInterrupt(enable bool) error {
	if enable {
		return s.txOnly([]byte{opSetInterrupt, 0x01, 0x00, 0x00})
	}
	return s.txOnly([]byte{opSetInterrupt, 0x00, 0x00, 0x00})
}

// Wake brings a sleeping card back to its ready state.
func (s *Session) Wake() error {
	return s.txOnly([]byte{opWake})
}

// Sleep puts the card into its low-power sleep mode.
func (s *Session) Sleep() error {
	return s.txOnly([]byte{opSleep})
}

// WriteBuffer flushes the card's internal write buffer. Its exact
// purpose is undocumented (see DESIGN.md); this driver never calls it
// except on explicit caller request.
func (s *Session) WriteBuffer() error {
	if err := s.txOnly([]byte{opWriteBuffer}); err != nil {
		return err
	}
	return s.waitIdle()
}

// ReadPage reads up to one read page (0x200 bytes) starting at
// address, which must be a multiple of the read page size.
func (s *Session) ReadPage(address uint32, length int) ([]byte, error) {
	if address%readPageSize != 0 {
		return nil, newErr(KindInvalidArgument, "read address must be page-aligned")
	}
	if length <= 0 || length > readPageSize {
		return nil, newErr(KindInvalidArgument, "read length out of range")
	}
	addr := EncodeAddress(address)
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

// EraseSector erases one erase sector, which must start at an address
// that is a multiple of the card's sector size.
func (s *Session) EraseSector(address uint32) error {
	if address%s.geometry.SectorSize != 0 {
		return newErr(KindInvalidArgument, "erase address must be sector-aligned")
	}
	if err := s.ClearStatus(); err != nil {
		return err
	}
	addr := EncodeAddress(address)
	if err := s.txOnly([]byte{opEraseSector, addr[0], addr[1]}); err != nil {
		return err
	}
	if err := s.waitIdle(); err != nil {
		return err
	}
	status, err := s.GetStatus()
	if err != nil {
		return err
	}
	if status&StatusEraseError != 0 {
		return newErr(KindEraseFailed, "erase_sector reported ERASE_ERROR")
	}
	return nil
}

// EraseCard erases the entire card.
func (s *Session) EraseCard() error {
	if err := s.ClearStatus(); err != nil {
		return err
	}
	if err := s.txOnly([]byte{opEraseCard, 0x00, 0x00}); err != nil {
		return err
	}
	if err := s.waitIdle(); err != nil {
		return err
	}
	status, err := s.GetStatus()
	if err != nil {
		return err
	}
	if status&StatusEraseError != 0 {
		return newErr(KindEraseFailed, "erase_card reported ERASE_ERROR")
	}
	return nil
}

// WritePage programs up to one write page (0x80 bytes) at address,
// which must be a multiple of the write page size. Programming only
// lowers bits, so the target page is normally erased first.
func (s *Session) WritePage(address uint32, data []byte) error {
	if len(data) > writePageSize {
		return newErr(KindInvalidArgument, "write data exceeds write page size")
	}
	if address%writePageSize != 0 {
		return newErr(KindInvalidArgument, "write address must be page-aligned")
	}
	if err := s.ClearStatus(); err != nil {
		return err
	}
	addr := EncodeAddress(address)
	cmd := append([]byte{opWritePage}, addr[:]...)
	cmd = append(cmd, data...)
	if err := s.txOnly(cmd); err != nil {
		return err
	}
	if err := s.waitIdle(); err != nil {
		return err
	}
	status, err := s.GetStatus()
	if err != nil {
		return err
	}
	if status&StatusProgramError != 0 {
		return newErr(KindProgramFailed, "write_page reported PROGRAM_ERROR")
	}
	return nil
}
