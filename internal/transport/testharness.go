package transport

import (
	"errors"
	"sync"

	"github.com/blazemesh/coordinatord/internal/command"
	"github.com/blazemesh/coordinatord/internal/radioerr"
)

var errNoResponder = errors.New("transport: no responder installed")

// Harness is an in-memory Transport for unit tests. It has no bus of its own: the test
// installs a Responder to answer SendRead/SendWrite calls and fires synthetic IRQ
// edges via FireIRQ, exercising the same radio-engine code path a real interrupt
// would.
type Harness struct {
	mu        sync.Mutex
	responder Responder
	handlers  []func()
	resets    int
	closed    bool

	// Log records every call made against the harness, in order, for assertions.
	Log []HarnessCall
}

// HarnessCall records a single invocation against a Harness, for test assertions.
type HarnessCall struct {
	Op      string
	Command command.ID
	Payload []byte
}

// Responder answers the SendRead/SendWrite calls a test harness transport receives.
// OnRead fills out and returns an error to fail the transaction; OnWrite inspects
// payload and returns an error to fail it.
type Responder interface {
	OnRead(cmd command.ID, out []byte) error
	OnWrite(cmd command.ID, payload []byte) error
}

// NewHarness creates an idle harness transport with no responder installed; calls to
// SendRead/SendWrite fail until SetResponder is called.
func NewHarness() *Harness {
	return &Harness{}
}

// SetResponder installs r as the handler for subsequent SendRead/SendWrite calls.
func (h *Harness) SetResponder(r Responder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responder = r
}

// Resets reports how many times Reset has been called.
func (h *Harness) Resets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resets
}

// Reset records the reset call; the harness has no real reset line to drive.
func (h *Harness) Reset() error {
	h.mu.Lock()
	h.resets++
	h.Log = append(h.Log, HarnessCall{Op: "reset"})
	h.mu.Unlock()
	return nil
}

// SendRead dispatches to the installed Responder.
func (h *Harness) SendRead(cmd command.ID, out []byte) error {
	h.mu.Lock()
	h.Log = append(h.Log, HarnessCall{Op: "read", Command: cmd})
	r := h.responder
	h.mu.Unlock()

	if r == nil {
		return radioerr.IO(errNoResponder)
	}
	return r.OnRead(cmd, out)
}

// SendWrite dispatches to the installed Responder.
func (h *Harness) SendWrite(cmd command.ID, payload []byte) error {
	cp := append([]byte{}, payload...)

	h.mu.Lock()
	h.Log = append(h.Log, HarnessCall{Op: "write", Command: cmd, Payload: cp})
	r := h.responder
	h.mu.Unlock()

	if r == nil {
		return radioerr.IO(errNoResponder)
	}
	return r.OnWrite(cmd, cp)
}

// OnIRQ registers fn for delivery by FireIRQ.
func (h *Harness) OnIRQ(fn func()) {
	h.mu.Lock()
	h.handlers = append(h.handlers, fn)
	h.mu.Unlock()
}

// FireIRQ synchronously invokes every handler registered via OnIRQ, simulating an
// observed falling edge on the interrupt line.
func (h *Harness) FireIRQ() {
	h.mu.Lock()
	handlers := append([]func(){}, h.handlers...)
	h.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

// Close marks the harness closed; idempotent.
func (h *Harness) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}
