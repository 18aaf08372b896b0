// Command gcmc reads, writes, and inspects a GameCube memory card over
// a Linux SPI bus.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/basepi/gcmemcard/card"
	"github.com/basepi/gcmemcard/gpioint"
	"github.com/basepi/gcmemcard/spi"
)

// defaultSpeedHz is the session clock; the slower identification
// probe clock is chosen inside card.NewSession per segment.
const defaultSpeedHz = 16_000_000

func main() {
	spiPath := pflag.String("spi", "", "SPI device the memory card is connected to.")
	gpioChip := pflag.String("gpiochip", "", "GPIO chardev the card INT line is connected to. If not provided, status-polling is used instead.")
	gpioLine := pflag.Int("gpio-int-line", -1, "GPIO line number the card INT line is connected to.")
	readPath := pflag.StringP("read", "r", "", "Read the entire card and save it to the given file.")
	writeFlag := pflag.BoolP("write", "w", false, "Write the sectors of NEW that differ from OLD. Takes two arguments: OLD NEW.")
	pflag.Parse()

	logger := log.New(os.Stderr)

	if *spiPath == "" {
		logger.Fatal("--spi is required")
	}

	var write []string
	if *writeFlag {
		if *readPath != "" {
			logger.Fatal("--read and --write are mutually exclusive")
		}
		write = pflag.Args()
		if len(write) != 2 {
			logger.Fatal("--write takes exactly two paths: OLD NEW")
		}
	}

	if err := run(logger, *spiPath, *gpioChip, *gpioLine, *readPath, write); err != nil {
		logger.Fatal("gcmc failed", "err", err)
	}
}

func run(logger *log.Logger, spiPath, gpioChip string, gpioLine int, readPath string, write []string) error {
	bus, err := spi.Open(spiPath, spi.Config{
		// Mode 0: CS active low, MSb first, no 3-wire or loopback.
		Mode:           0,
		Bits:           8,
		DefaultSpeedHz: defaultSpeedHz,
	})
	if err != nil {
		return fmt.Errorf("open spi device: %w", err)
	}
	defer bus.Close()

	var sig card.Signal
	if gpioChip != "" && gpioLine >= 0 {
		line, err := gpioint.Open(gpioChip, gpioLine)
		if err != nil {
			return fmt.Errorf("open gpio int line: %w", err)
		}
		defer line.Close()
		sig = line
	} else {
		logger.Info("no gpio interrupt line configured, falling back to status polling")
	}

	sess, err := card.NewSession(bus, sig, nil)
	if err != nil {
		return fmt.Errorf("identify card: %w", err)
	}
	defer sess.Close()

	if err := printCardInfo(logger, sess); err != nil {
		return err
	}

	switch {
	case readPath != "":
		return readCard(logger, sess, readPath)
	case len(write) == 2:
		return writeCard(logger, sess, write[0], write[1])
	}
	return nil
}

func printCardInfo(logger *log.Logger, sess *card.Session) error {
	size := sess.CardSize()
	logger.Info("card identified",
		"size_bytes", size,
		"turnaround_bytes", sess.TurnaroundBytes(),
		"sector_size", sess.SectorSize(),
		"sector_count", size/sess.SectorSize(),
		"interrupt_driven", sess.HasInterrupt(),
	)
	if id := sess.FlashID(); id != nil {
		logger.Info("flash id", "id", hex.EncodeToString(id))
	} else {
		logger.Info("flash id unknown, card was already unlocked")
	}

	id, err := sess.GetID()
	if err != nil {
		return fmt.Errorf("get id: %w", err)
	}
	logger.Info("id", "id", hex.EncodeToString(id))

	status, err := sess.GetStatus()
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	logger.Info("status", "bits", status.String())

	header, err := sess.GetHeader()
	if err != nil {
		return fmt.Errorf("get header: %w", err)
	}
	decoded := header.DecodedSerial()
	logger.Info("header",
		"serial", hex.EncodeToString(header.Serial[:]),
		"decoded_serial", hex.EncodeToString(decoded[:]),
		"time", header.Time,
		"bias", header.Bias,
		"lang", header.Lang,
		"device_id", header.DeviceID,
		"size_megabits", header.SizeMegabits,
		"encoding", header.Encoding,
	)

	if id := sess.FlashID(); id != nil {
		var cardID [12]byte
		copy(cardID[:], id)
		logger.Info("header serial consistency", "consistent", decoded == cardID)
	} else {
		logger.Info("cannot check serial consistency without flash id")
	}

	ok, err := header.VerifyChecksum()
	if err != nil {
		return fmt.Errorf("verify header checksum: %w", err)
	}
	logger.Info("header checksum", "consistent", ok)
	return nil
}

func readCard(logger *log.Logger, sess *card.Session, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	size := sess.CardSize()
	bar := newProgress("reading", int(size))
	var pos uint32
	for pos < size {
		length := readChunk
		if size-pos < uint32(length) {
			length = int(size - pos)
		}
		data, err := sess.ReadPage(pos, length)
		if err != nil {
			return fmt.Errorf("read page at %#x: %w", pos, err)
		}
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		pos += uint32(length)
		bar.add(length)
	}
	logger.Info("read complete", "bytes", size)
	return nil
}

const readChunk = 0x200

func writeCard(logger *log.Logger, sess *card.Session, oldPath, newPath string) error {
	size := int(sess.CardSize())

	oldImage, err := readExact(oldPath, size)
	if err != nil {
		return fmt.Errorf("read old image: %w", err)
	}
	newImage, err := readExact(newPath, size)
	if err != nil {
		return fmt.Errorf("read new image: %w", err)
	}

	bar := newProgress("writing", int(sess.CardSize()/sess.SectorSize()))
	written, err := sess.DifferentialWrite(oldImage, newImage, func(scanned, total int) {
		bar.set(scanned)
	})
	if err != nil {
		return fmt.Errorf("differential write: %w", err)
	}
	logger.Info("write complete", "sectors_written", written)
	return nil
}

func readExact(path string, size int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("expected exactly %d bytes: %w", size, err)
	}
	var extra [1]byte
	if n, _ := f.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("image is larger than card size (%d bytes)", size)
	}
	return buf, nil
}
