// Package spi adapts a Linux spidev character device into a card.Bus,
// issuing every Submit call as a single SPI_IOC_MESSAGE ioctl so the
// chip-select line stays asserted across every segment.
package spi

import (
	"reflect"
	"runtime"
	"syscall"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"

	"github.com/basepi/gcmemcard/card"
)

const spiIOCMagic = 'k'

// transfer mirrors Linux's struct spi_ioc_transfer field for field; no
// struct packing is relied on, the layout matches the kernel ABI byte
// for byte.
type transfer struct {
	txBuf uint64
	rxBuf uint64

	length  uint32
	speedHz uint32

	delayUsecs     uint16
	bitsPerWord    uint8
	csChange       uint8
	txNbits        uint8
	rxNbits        uint8
	wordDelayUsecs uint8
	pad            uint8
}

var (
	iocWrMaxSpeedHz  = ioctl.IOW(spiIOCMagic, 4, 4)
	iocWrBitsPerWord = ioctl.IOW(spiIOCMagic, 3, 1)
	iocWrMode32      = ioctl.IOW(spiIOCMagic, 5, 4)
)

// Config configures the default transfer parameters for a Bus. A
// Segment's own SpeedHz, when non-zero, overrides DefaultSpeedHz for
// that one segment.
type Config struct {
	Mode           uint32
	Bits           uint8
	DefaultSpeedHz uint32
	DelayUsec      uint16
}

// Bus is a spidev-backed card.Bus.
type Bus struct {
	fd  int
	cfg Config
}

var _ card.Bus = (*Bus)(nil)

// Open opens path (typically /dev/spidevB.C) and configures it per cfg.
func Open(path string, cfg Config) (*Bus, error) {
	fd, err := syscall.Open(path, syscall.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := ioctl.Ioctl(uintptr(fd), iocWrMaxSpeedHz, uintptr(unsafe.Pointer(&cfg.DefaultSpeedHz))); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	if err := ioctl.Ioctl(uintptr(fd), iocWrBitsPerWord, uintptr(unsafe.Pointer(&cfg.Bits))); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	if err := ioctl.Ioctl(uintptr(fd), iocWrMode32, uintptr(unsafe.Pointer(&cfg.Mode))); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	return &Bus{fd: fd, cfg: cfg}, nil
}

// Submit implements card.Bus: every element of segs becomes one
// spi_ioc_transfer in a single array, submitted as one
// SPI_IOC_MESSAGE(N) ioctl, so chip select is held across the whole
// exchange. Rx buffers that were nil on entry are allocated here and
// written back into segs.
func (b *Bus) Submit(segs []card.Segment) error {
	if len(segs) == 0 {
		return nil
	}

	xfers := make([]transfer, len(segs))
	for i := range segs {
		tx := segs[i].Tx
		rx := segs[i].Rx
		n := len(tx)
		if len(rx) > n {
			n = len(rx)
		}
		if tx == nil {
			tx = make([]byte, n)
		}
		if rx == nil {
			rx = make([]byte, n)
			segs[i].Rx = rx
		}

		txHeader := (*reflect.SliceHeader)(unsafe.Pointer(&tx))
		rxHeader := (*reflect.SliceHeader)(unsafe.Pointer(&rx))

		speed := segs[i].SpeedHz
		if speed == 0 {
			speed = b.cfg.DefaultSpeedHz
		}

		xfers[i] = transfer{
			txBuf:       uint64(txHeader.Data),
			rxBuf:       uint64(rxHeader.Data),
			length:      uint32(n),
			speedHz:     speed,
			delayUsecs:  b.cfg.DelayUsec,
			bitsPerWord: b.cfg.Bits,
		}
	}

	msg := ioctl.IOW(spiIOCMagic, 0, uintptr(len(xfers))*unsafe.Sizeof(transfer{}))
	err := ioctl.Ioctl(uintptr(b.fd), msg, uintptr(unsafe.Pointer(&xfers[0])))
	runtime.KeepAlive(xfers)
	runtime.KeepAlive(segs)
	return err
}

// Close releases the underlying device file.
func (b *Bus) Close() error {
	return syscall.Close(b.fd)
}
