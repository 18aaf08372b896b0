package card

// Geometry describes the physical layout of an attached memory card,
// derived once at session construction from its identification word.
type Geometry struct {
	// SizeBytes is the total addressable size of the card.
	SizeBytes uint32
	// TurnaroundBytes is the number of filler bytes transmitted
	// between a read command's address phase and the first valid
	// data byte returned by the card.
	TurnaroundBytes int
	// SectorSize is the card's erase-sector granularity.
	SectorSize uint32
}

const (
	idReservedMask    = 0xffffc003
	idCardSizeShift   = 2
	idCardSizeMask    = 0x3f
	idLatencyShift    = 8
	idLatencyMask     = 0x7
	idSectorSizeShift = 11
	idSectorSizeMask  = 0x7
)

var turnaroundBytesTable = [8]int{4, 8, 16, 32, 64, 128, 256, 512}

var sectorSizeTable = [8]uint32{
	0x2000, 0x4000, 0x8000, 0x10000, 0x20000, 0x40000,
	// indices 6 and 7 are not assigned by any known card; reject them.
	0, 0,
}

// deriveGeometry interprets a 4-byte big-endian identification word
// (as returned by the exi_id command) into a card's Geometry.
func deriveGeometry(id uint32) (Geometry, error) {
	if id == 0 {
		return Geometry{}, newErr(KindNothingAttached, "exi_id returned all zero")
	}
	if id&idReservedMask != 0 {
		return Geometry{}, newErr(KindNotAMemoryCard, "reserved bits set in identification word")
	}
	sectorIdx := (id >> idSectorSizeShift) & idSectorSizeMask
	sectorSize := sectorSizeTable[sectorIdx]
	if sectorSize == 0 {
		return Geometry{}, newErr(KindNotAMemoryCard, "unsupported erase sector size index")
	}
	return Geometry{
		SizeBytes:       ((id >> idCardSizeShift) & idCardSizeMask) << 19,
		TurnaroundBytes: turnaroundBytesTable[(id>>idLatencyShift)&idLatencyMask],
		SectorSize:      sectorSize,
	}, nil
}
