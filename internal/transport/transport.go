// Package transport provides reliable framed command exchange with the radio
// coprocessor and delivers interrupt edges as callbacks, per spec.md §4.1. The
// production implementation (Spidev) drives a character-device SPI bus plus two GPIO
// lines (IRQ, and optionally reset); a Harness implementation backs unit tests.
package transport

import (
	"time"

	"github.com/blazemesh/coordinatord/internal/command"
)

// ReadCmdDelay is the inter-phase delay between writing a read command header and
// reading the response payload, within a single SPI transaction.
const ReadCmdDelay = 30 * time.Microsecond

// WriteCmdDelay is the inter-phase delay between writing a write command header and
// writing the payload, within a single SPI transaction.
const WriteCmdDelay = 30 * time.Microsecond

// ResetAssertTime is how long the reset line is held asserted.
const ResetAssertTime = 20 * time.Millisecond

// ResetWaitTime is how long to wait after releasing reset for the coprocessor to boot.
const ResetWaitTime = 750 * time.Millisecond

// Transport is the capability set a radio transport must provide: reset, a framed
// read/write command exchange, and interrupt edge delivery. There is currently one
// production implementation (Spidev) and one test harness.
type Transport interface {
	// Reset asserts and releases the reset line, if present, waiting for the
	// coprocessor to boot. A no-op if there is no reset line configured.
	Reset() error

	// SendRead writes [cmd|0x80, len(out)], delays, then reads len(out) bytes into
	// out, as a single bus transaction.
	SendRead(cmd command.ID, out []byte) error

	// SendWrite writes [cmd, len(payload)], delays, then writes payload, as a
	// single bus transaction. cmd must be <= 0x7F; len(payload) must fit a byte.
	SendWrite(cmd command.ID, payload []byte) error

	// OnIRQ registers a handler invoked once per observed interrupt edge. Multiple
	// handlers may be registered; all are invoked for every edge.
	OnIRQ(handler func())

	// Close releases all transport resources (SPI fd, GPIO lines, watcher
	// goroutines).
	Close() error
}
