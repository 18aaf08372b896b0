package card

import "bytes"

// DifferentialWrite compares old and new (two images of identical
// length equal to the card's size) sector by sector, erasing and
// rewriting only the sectors that differ. It returns the number of
// sectors that were written. progress, if non-nil, is called after
// each sector is examined with the number of sectors scanned so far
// and the total sector count.
func (s *Session) DifferentialWrite(old, new []byte, progress func(scanned, total int)) (int, error) {
	size := s.CardSize()
	if uint32(len(old)) != size || uint32(len(new)) != size {
		return 0, newErr(KindSizeMismatch, "image length must equal card size")
	}

	sectorSize := s.SectorSize()
	total := int(size / sectorSize)
	written := 0
	scanned := 0
	for pos := uint32(0); pos < size; pos += sectorSize {
		oldSector := old[pos : pos+sectorSize]
		newSector := new[pos : pos+sectorSize]
		if !bytes.Equal(oldSector, newSector) {
			if err := s.EraseSector(pos); err != nil {
				return written, err
			}
			for off := uint32(0); off < sectorSize; off += writePageSize {
				page := newSector[off : off+writePageSize]
				if err := s.WritePage(pos+off, page); err != nil {
					return written, err
				}
			}
			written++
		}
		scanned++
		if progress != nil {
			progress(scanned, total)
		}
	}
	return written, nil
}
