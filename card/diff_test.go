package card

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDifferentialWriteSkipsIdenticalSectors(t *testing.T) {
	bus := newFakeBus(4, 512*1024)
	sess, err := NewSession(bus, nil, nil)
	require.NoError(t, err)

	image := make([]byte, sess.CardSize())
	for i := range image {
		image[i] = 0xff
	}

	submitsBefore := bus.submitCount
	written, err := sess.DifferentialWrite(image, image, nil)
	require.NoError(t, err)
	require.Equal(t, 0, written)
	require.Equal(t, submitsBefore, bus.submitCount, "identical images must issue no bus traffic")
}

func TestDifferentialWriteOnlyTouchesChangedSectors(t *testing.T) {
	bus := newFakeBus(4, 512*1024)
	sess, err := NewSession(bus, nil, nil)
	require.NoError(t, err)

	size := sess.CardSize()
	old := make([]byte, size)
	for i := range old {
		old[i] = 0xff
	}
	newImage := make([]byte, size)
	copy(newImage, old)

	sectorSize := sess.SectorSize()
	// change exactly one byte inside the second sector.
	newImage[sectorSize+10] = 0x42

	var lastScanned, lastTotal int
	written, err := sess.DifferentialWrite(old, newImage, func(scanned, total int) {
		lastScanned, lastTotal = scanned, total
	})
	require.NoError(t, err)
	require.Equal(t, 1, written)
	require.Equal(t, int(size/sectorSize), lastTotal)
	require.Equal(t, lastTotal, lastScanned)

	readBack, err := sess.ReadPage(sectorSize, readPageSize)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), readBack[10])
	require.Equal(t, byte(0xff), readBack[0])
}

func TestDifferentialWriteRejectsSizeMismatch(t *testing.T) {
	bus := newFakeBus(4, 512*1024)
	sess, err := NewSession(bus, nil, nil)
	require.NoError(t, err)

	_, err = sess.DifferentialWrite(make([]byte, 10), make([]byte, 20), nil)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, KindSizeMismatch, cerr.Kind())
}
