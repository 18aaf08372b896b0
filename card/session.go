package card

import (
	"sync/atomic"
	"time"
)

// DefaultTimeout is the default bound on any wait-idle operation.
const DefaultTimeout = time.Second

// exiIDProbeSpeedHz is the reduced clock used only for the initial
// identification read, before the session has learned anything about
// the attached card.
const exiIDProbeSpeedHz = 1_000_000

// Options configures a Session at construction time.
type Options struct {
	Timeout time.Duration
}

// NewOptions returns the default Session options.
func NewOptions() *Options {
	return &Options{Timeout: DefaultTimeout}
}

// SetTimeout overrides the wait-idle bound.
func (o *Options) SetTimeout(d time.Duration) *Options {
	o.Timeout = d
	return o
}

// Session binds to a bus transport and an optional completion signal
// line. Construction performs identification, wakes a sleeping card,
// configures interrupts, and unlocks the card if it is not already
// unlocked.
type Session struct {
	bus    Bus
	signal Signal

	geometry     Geometry
	hasInterrupt bool
	timeout      time.Duration

	cardID []byte // nil if the card was found already unlocked

	closed atomic.Bool
}

// NewSession constructs a Session over bus, optionally bound to a
// completion signal line. If signal is nil, the card is driven by
// status polling instead of interrupts.
func NewSession(bus Bus, signal Signal, opts *Options) (*Session, error) {
	if opts == nil {
		opts = NewOptions()
	}
	s := &Session{
		bus:     bus,
		signal:  signal,
		timeout: opts.Timeout,
	}

	id, err := s.exiID(exiIDProbeSpeedHz)
	if err != nil {
		return nil, err
	}
	geom, err := deriveGeometry(id)
	if err != nil {
		return nil, err
	}
	s.geometry = geom

	status, err := s.GetStatus()
	if err != nil {
		return nil, err
	}
	if status&StatusSleep != 0 {
		if err := s.Wake(); err != nil {
			return nil, err
		}
		status, err = s.GetStatus()
		if err != nil {
			return nil, err
		}
	}

	if signal == nil {
		if status&StatusIntEnabled != 0 {
			if err := s.SetInterrupt(false); err != nil {
				return nil, err
			}
		}
		s.hasInterrupt = false
	} else {
		s.hasInterrupt = status&StatusIntEnabled != 0
		if !s.hasInterrupt {
			if err := s.SetInterrupt(true); err != nil {
				return nil, err
			}
			status, err = s.GetStatus()
			if err != nil {
				return nil, err
			}
			s.hasInterrupt = status&StatusIntEnabled != 0
		}
	}

	if status&StatusUnlocked == 0 {
		cardID, err := s.unlock()
		if err != nil {
			return nil, err
		}
		s.cardID = cardID
	}

	return s, nil
}

// CardSize returns the card's total addressable size in bytes.
func (s *Session) CardSize() uint32 { return s.geometry.SizeBytes }

// TurnaroundBytes returns the number of filler bytes inserted between
// a read command and its returned data.
func (s *Session) TurnaroundBytes() int { return s.geometry.TurnaroundBytes }

// SectorSize returns the card's erase-sector granularity.
func (s *Session) SectorSize() uint32 { return s.geometry.SectorSize }

// HasInterrupt reports whether this session is driven by the
// completion signal line rather than status polling.
func (s *Session) HasInterrupt() bool { return s.hasInterrupt }

// FlashID returns the card id learned during the unlock handshake, or
// nil if the card was found already unlocked at construction (in
// which case it cannot be retrieved later; see DESIGN.md).
func (s *Session) FlashID() []byte { return s.cardID }

// GetHeader reads and parses the card's header block (block 0).
func (s *Session) GetHeader() (*Header, error) {
	buf, err := s.ReadPage(0, HeaderSize)
	if err != nil {
		return nil, err
	}
	return UnmarshalHeader(buf)
}

// Close puts the card to sleep and releases the signal line, if any.
// A second call sends nothing to the card, releases nothing, and
// returns an error.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return newErr(KindOther, "session already closed")
	}
	err := s.Sleep()
	if closer, ok := s.signal.(interface{ Close() error }); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
