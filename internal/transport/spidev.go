package transport

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/warthog618/gpiod"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/blazemesh/coordinatord/internal/command"
	"github.com/blazemesh/coordinatord/internal/radioerr"
)

// Linux spidev ioctl numbers and the transfer struct layout, from
// <linux/spi/spidev.h>. golang.org/x/sys/unix does not carry spidev bindings, so these
// are reproduced here, matching the field order and widths of struct spi_ioc_transfer.
const (
	spiIOCWrMode        = 0x40016B01
	spiIOCWrBitsPerWord = 0x40016B03
	spiIOCWrMaxSpeedHz  = 0x40046B04

	spiModeBits = 3
)

func spiIOCMessage(n int) uintptr {
	const transferSize = 32 // sizeof(struct spi_ioc_transfer) on 64-bit
	size := uintptr(n * transferSize)
	return uintptr(0x40006B00) | (size << 16) | (1 << 30)
}

type spiIOCTransfer struct {
	txBuf uint64
	rxBuf uint64

	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	pad         uint16
}

var gpioDescRe = regexp.MustCompile(`^(\w+):(\d+)$`)

// ParseGpio parses a "chip:pin" line descriptor, e.g. "gpiochip0:17".
func ParseGpio(desc string) (chip string, pin int, err error) {
	m := gpioDescRe.FindStringSubmatch(desc)
	if m == nil {
		return "", 0, radioerr.Config(fmt.Errorf("invalid gpio descriptor %q", desc))
	}
	pin, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, radioerr.Config(errors.Wrapf(err, "invalid gpio pin in %q", desc))
	}
	return m[1], pin, nil
}

// Spidev is the production Transport: a Linux spidev character device for the command
// bus, plus an interrupt line (required) and an optional open-drain reset line,
// acquired via gpiod. It is the sole implementation used outside of tests.
type Spidev struct {
	log *zap.Logger

	fd int

	irqLine     *gpiod.Line
	resetLine   *gpiod.Line
	irqWatcher  *gpiod.Line
	irqHandlers []func()
	handlersMu  sync.Mutex

	closeOnce sync.Once
}

// SpidevConfig holds the fields read from the `radio.transport` config table.
type SpidevConfig struct {
	File string
	Freq uint32
	Mode uint8
	IRQ  string
	// Reset is optional; an empty string means no reset line is configured.
	Reset string
}

// OpenSpidev opens the spidev character device, applies its mode/speed/word-size, and
// acquires the IRQ (and, if configured, reset) GPIO lines.
func OpenSpidev(cfg SpidevConfig, log *zap.Logger) (*Spidev, error) {
	if cfg.Mode > 3 {
		return nil, radioerr.Config(fmt.Errorf("invalid spi mode %d (must be 0-3)", cfg.Mode))
	}

	f, err := os.OpenFile(cfg.File, os.O_RDWR, 0)
	if err != nil {
		return nil, radioerr.IO(errors.Wrap(err, "open spidev"))
	}
	fd := int(f.Fd())

	mode := uint8(cfg.Mode)
	if err := ioctl(fd, spiIOCWrMode, unsafe.Pointer(&mode)); err != nil {
		f.Close()
		return nil, radioerr.IO(errors.Wrap(err, "set spidev mode"))
	}

	bits := uint8(8)
	if err := ioctl(fd, spiIOCWrBitsPerWord, unsafe.Pointer(&bits)); err != nil {
		f.Close()
		return nil, radioerr.IO(errors.Wrap(err, "set spidev bits per word"))
	}

	freq := cfg.Freq
	if err := ioctl(fd, spiIOCWrMaxSpeedHz, unsafe.Pointer(&freq)); err != nil {
		f.Close()
		return nil, radioerr.IO(errors.Wrap(err, "set spidev frequency"))
	}

	s := &Spidev{log: log, fd: fd}

	if cfg.IRQ == "" {
		f.Close()
		return nil, radioerr.Config(fmt.Errorf("missing radio.transport.irq"))
	}
	if err := s.initIRQ(cfg.IRQ); err != nil {
		f.Close()
		return nil, err
	}

	if cfg.Reset != "" {
		if err := s.initReset(cfg.Reset); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

func (s *Spidev) initIRQ(desc string) error {
	chip, pin, err := ParseGpio(desc)
	if err != nil {
		return err
	}

	s.log.Debug("acquiring irq line", zap.String("chip", chip), zap.Int("pin", pin))

	line, err := gpiod.RequestLine(chip, pin,
		gpiod.WithFallingEdge,
		gpiod.WithEventHandler(s.handleEdge),
		gpiod.WithConsumer("coordinatord-spidev-irq"))
	if err != nil {
		return radioerr.IO(errors.Wrapf(err, "request irq line %q", desc))
	}
	s.irqLine = line
	return nil
}

func (s *Spidev) initReset(desc string) error {
	chip, pin, err := ParseGpio(desc)
	if err != nil {
		return err
	}

	s.log.Debug("acquiring reset line", zap.String("chip", chip), zap.Int("pin", pin))

	line, err := gpiod.RequestLine(chip, pin,
		gpiod.AsOutput(0),
		gpiod.WithPullUp,
		gpiod.AsActiveLow,
		gpiod.AsOpenDrain,
		gpiod.WithConsumer("coordinatord-spidev-reset"))
	if err != nil {
		return radioerr.IO(errors.Wrapf(err, "request reset line %q", desc))
	}
	s.resetLine = line
	return nil
}

// handleEdge is invoked by gpiod's watcher goroutine on every falling edge. It fans the
// event out to every handler registered via OnIRQ; handlers are responsible for
// posting their own work to the run loop rather than blocking this callback.
func (s *Spidev) handleEdge(evt gpiod.LineEvent) {
	if evt.Type != gpiod.LineEventFallingEdge {
		return
	}

	s.handlersMu.Lock()
	handlers := append([]func(){}, s.irqHandlers...)
	s.handlersMu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// OnIRQ registers fn to run on every observed falling edge of the IRQ line.
func (s *Spidev) OnIRQ(fn func()) {
	s.handlersMu.Lock()
	s.irqHandlers = append(s.irqHandlers, fn)
	s.handlersMu.Unlock()
}

// Reset asserts the reset line for ResetAssertTime, deasserts it, then waits
// ResetWaitTime for the coprocessor to complete its boot sequence. A no-op if no reset
// line was configured.
func (s *Spidev) Reset() error {
	if s.resetLine == nil {
		return nil
	}

	if err := s.resetLine.SetValue(1); err != nil {
		return radioerr.IO(errors.Wrap(err, "assert reset line"))
	}
	time.Sleep(ResetAssertTime)

	if err := s.resetLine.SetValue(0); err != nil {
		return radioerr.IO(errors.Wrap(err, "deassert reset line"))
	}
	time.Sleep(ResetWaitTime)

	return nil
}

// SendRead performs a single two-phase SPI transaction: write a two-byte command
// header with the read bit set and len(out) as the length, delay, then clock in
// len(out) response bytes.
func (s *Spidev) SendRead(cmd command.ID, out []byte) error {
	if len(out) == 0 {
		return radioerr.InvalidArgument(fmt.Errorf("read buffer empty"))
	}
	if len(out) > 0xFF {
		return radioerr.InvalidArgument(fmt.Errorf("read buffer too long"))
	}
	if uint8(cmd) > 0x7F {
		return radioerr.InvalidArgument(fmt.Errorf("invalid command id %#x", cmd))
	}

	hdr := [2]byte{uint8(cmd) | command.ReadBit, uint8(len(out))}

	xfers := [2]spiIOCTransfer{
		{
			txBuf:      uint64(uintptr(unsafe.Pointer(&hdr[0]))),
			length:     uint32(len(hdr)),
			delayUsecs: uint16(ReadCmdDelay.Microseconds()),
		},
		{
			rxBuf:  uint64(uintptr(unsafe.Pointer(&out[0]))),
			length: uint32(len(out)),
		},
	}

	if err := ioctl(s.fd, spiIOCMessage(2), unsafe.Pointer(&xfers[0])); err != nil {
		return radioerr.IO(errors.Wrapf(err, "spi read %s", cmd))
	}
	return nil
}

// SendWrite performs a single transaction: write a two-byte command header (read bit
// clear), delay, then write the payload bytes, if any.
func (s *Spidev) SendWrite(cmd command.ID, payload []byte) error {
	if len(payload) > 0xFF {
		return radioerr.InvalidArgument(fmt.Errorf("payload too long"))
	}
	if uint8(cmd) > 0x7F {
		return radioerr.InvalidArgument(fmt.Errorf("invalid command id %#x", cmd))
	}

	hdr := [2]byte{uint8(cmd), uint8(len(payload))}

	xfers := [2]spiIOCTransfer{
		{
			txBuf:      uint64(uintptr(unsafe.Pointer(&hdr[0]))),
			length:     uint32(len(hdr)),
			delayUsecs: uint16(WriteCmdDelay.Microseconds()),
		},
	}

	n := 1
	if len(payload) > 0 {
		xfers[1] = spiIOCTransfer{
			txBuf:  uint64(uintptr(unsafe.Pointer(&payload[0]))),
			length: uint32(len(payload)),
		}
		n = 2
	}

	if err := ioctl(s.fd, spiIOCMessage(n), unsafe.Pointer(&xfers[0])); err != nil {
		return radioerr.IO(errors.Wrapf(err, "spi write %s", cmd))
	}
	return nil
}

// Close releases the GPIO lines and the spidev file descriptor. Safe to call more than
// once.
func (s *Spidev) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.irqLine != nil {
			err = s.irqLine.Close()
		}
		if s.resetLine != nil {
			if rerr := s.resetLine.Close(); err == nil {
				err = rerr
			}
		}
		if cerr := unix.Close(s.fd); err == nil {
			err = cerr
		}
	})
	return err
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
