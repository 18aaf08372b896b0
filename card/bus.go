package card

// Segment is one leg of a full-duplex bus transaction. At least one of
// Tx/Rx is required: a transmit-only segment sets Tx and leaves Rx
// nil; a receive-only segment sets Rx and leaves Tx nil; a duplex
// segment (both clocked simultaneously) sets both to buffers of equal
// length. SpeedHz overrides the bus's configured clock for this
// segment only; zero means "use the default".
type Segment struct {
	Tx      []byte
	Rx      []byte
	SpeedHz uint32
}

// Bus is the full-duplex byte transport the command layer drives. A
// real implementation (package spi) submits every segment of one
// Submit call as a single logical transaction; the chip select is
// held asserted across all of them.
type Bus interface {
	// Submit issues an ordered list of segments as one transaction.
	// Any Rx buffer is filled in place.
	Submit(segments []Segment) error
}
