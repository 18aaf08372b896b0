package card

import "strings"

// Status is the memory card's one-byte status bitfield.
type Status uint8

const (
	// StatusReady indicates the card is ready to accept commands.
	StatusReady Status = 1 << 0
	// StatusIntEnabled indicates the card will pulse its INT line
	// when a long-running command completes.
	StatusIntEnabled Status = 1 << 1
	// bit 2 is reserved.
	// StatusProgramError is set when the last write_page failed.
	StatusProgramError Status = 1 << 3
	// StatusEraseError is set when the last erase_sector or
	// erase_card failed.
	StatusEraseError Status = 1 << 4
	// StatusSleep indicates the card is in its low-power sleep mode.
	StatusSleep Status = 1 << 5
	// StatusUnlocked indicates the unlock handshake has succeeded.
	StatusUnlocked Status = 1 << 6
	// StatusBusy indicates a long-running command is in progress.
	StatusBusy Status = 1 << 7
)

var statusNames = []struct {
	bit  Status
	name string
}{
	{StatusReady, "READY"},
	{StatusIntEnabled, "INT_ENABLED"},
	{StatusProgramError, "PROGRAM_ERROR"},
	{StatusEraseError, "ERASE_ERROR"},
	{StatusSleep, "SLEEP"},
	{StatusUnlocked, "UNLOCKED"},
	{StatusBusy, "BUSY"},
}

func (s Status) String() string {
	var names []string
	for _, e := range statusNames {
		if s&e.bit != 0 {
			names = append(names, e.name)
		}
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, "|")
}
