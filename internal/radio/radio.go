// Package radio implements the stateful command sequencing on top of
// internal/transport: construction-time handshake, configuration upload, the
// priority-queued transmit path, interrupt/poll-driven receive path, and performance
// counter accounting, per spec.md §4.2-§4.4.
package radio

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/blazemesh/coordinatord/internal/command"
	"github.com/blazemesh/coordinatord/internal/radioerr"
	"github.com/blazemesh/coordinatord/internal/runloop"
	"github.com/blazemesh/coordinatord/internal/transport"
)

// ProtocolVersion is the only command-set version this engine understands; a radio
// reporting a different version fails construction.
const ProtocolVersion = 0x01

// MinBeaconInterval is the smallest interval SetBeaconConfig accepts.
const MinBeaconInterval = 1000 * time.Millisecond

// PerfCounterReadInterval is how often the performance counters are read out and
// folded into the running totals.
const PerfCounterReadInterval = 30 * time.Second

// DefaultIrqWatchdogInterval is how often the watchdog timer checks for a stalled
// interrupt line.
const DefaultIrqWatchdogInterval = 50 * time.Millisecond

// IrqWatchdogThreshold is how long without an observed interrupt before the watchdog
// manually polls the interrupt status; if any interrupt bit is then pending, it is
// counted as a lost interrupt.
const IrqWatchdogThreshold = 250 * time.Millisecond

// Priority is a transmit packet's queue class. Numerically higher values drain first.
type Priority uint8

const (
	PriorityBackground     Priority = 0x00
	PriorityNormal         Priority = 0x01
	PriorityRealTime       Priority = 0x02
	PriorityNetworkControl Priority = 0x03

	numPriorityLevels = 4
)

// TxCounters accumulates transmit-side performance counters across reads, per
// spec.md §4.4; the radio resets its own copy on every GetCounters read.
type TxCounters struct {
	BufferDiscards uint64
	AllocDiscards  uint64
	QueueDiscards  uint64
	FifoDrops      uint64
	CCAFails       uint64
	GoodFrames     uint64
}

func (c *TxCounters) reset() { *c = TxCounters{} }

// RxCounters accumulates receive-side performance counters across reads.
type RxCounters struct {
	BufferDiscards uint64
	AllocDiscards  uint64
	QueueDiscards  uint64
	FifoOverflows  uint64
	FrameErrors    uint64
	GoodFrames     uint64
}

func (c *RxCounters) reset() { *c = RxCounters{} }

// Info is the radio's static identity, captured once at construction.
type Info struct {
	Serial     string
	EUI64      [8]byte
	FWBuild    string
	Major      uint8
	Minor      uint8
	MaxTxPower uint16
}

type txPacket struct {
	priority Priority
	payload  []byte
}

// PacketHandler receives packets as they are read off the radio's receive queue.
type PacketHandler func(rssi int8, lqi uint8, payload []byte)

// Radio owns a transport and the command sequencing layered on top of it: the
// transmit queues, the interrupt/poll/watchdog timers, and the cached identity and
// configuration state.
type Radio struct {
	log       *zap.Logger
	transport transport.Transport
	loop      *runloop.Loop

	transportLock runloop.NonReentrantMutex
	txQueueLock   runloop.NonReentrantMutex

	txQueues [numPriorityLevels][]*txPacket

	info Info

	isConfigDirty     bool
	currentChannel    uint16
	currentShortAddr  uint16
	maxTxPower        uint16
	currentTxPower    uint16

	irqCounter  uint64
	numLostIrqs uint64
	lastIrq     time.Time

	txCounters TxCounters
	rxCounters RxCounters

	onPacket PacketHandler

	irqWatchdog  *runloop.Timer
	counterTimer *runloop.Timer
	pollTimer    *runloop.Timer
}

// Options configures construction-time behavior not read from the radio itself.
type Options struct {
	// PollInterval enables the status-polling fallback timer when nonzero.
	PollInterval time.Duration
	// IrqWatchdogInterval overrides DefaultIrqWatchdogInterval when nonzero.
	IrqWatchdogInterval time.Duration
	// OnPacket, if set, is invoked for every packet drained from the receive queue.
	OnPacket PacketHandler
}

// New resets the radio, performs the identity handshake, configures interrupts, and
// starts the background timers. It does not read or apply a channel, transmit power
// or short address: the channel starts at 0xFFFF, the power at the radio's maximum
// and the address at 0, until SetChannel/SetTxPowerDeciDbm/SetShortAddress and
// UploadConfig change them.
func New(t transport.Transport, loop *runloop.Loop, log *zap.Logger, opts Options) (*Radio, error) {
	r := &Radio{
		log:            log,
		transport:      t,
		loop:           loop,
		isConfigDirty:  true,
		currentChannel: 0xFFFF,
		onPacket:       opts.OnPacket,
	}

	if err := r.transport.Reset(); err != nil {
		return nil, errors.Wrap(err, "reset radio")
	}

	r.transport.OnIRQ(func() {
		loop.Post(r.handleIRQ)
	})

	watchdogInterval := opts.IrqWatchdogInterval
	if watchdogInterval == 0 {
		watchdogInterval = DefaultIrqWatchdogInterval
	}
	r.irqWatchdog = loop.NewTimer(watchdogInterval, r.irqWatchdogFired)

	if opts.PollInterval > 0 {
		r.pollTimer = loop.NewTimer(opts.PollInterval, r.pollTimerFired)
	}

	info, err := r.queryRadioInfo()
	if err != nil {
		r.stopTimers()
		return nil, err
	}
	if info.FWVersionMismatch {
		r.stopTimers()
		return nil, radioerr.ProtocolViolation(
			fmt.Errorf("incompatible radio protocol version %#02x", info.ProtocolVersion))
	}

	r.info = Info{
		Serial:     info.Serial,
		EUI64:      info.EUI64,
		FWBuild:    info.Build,
		Major:      info.Major,
		Minor:      info.Minor,
		MaxTxPower: uint16(info.MaxTxPower),
	}
	r.maxTxPower = uint16(info.MaxTxPower)
	r.currentTxPower = r.maxTxPower

	log.Info("radio identified",
		zap.String("serial", info.Serial),
		zap.String("eui64", fmt.Sprintf("%x", info.EUI64)))

	if err := r.setIrqConfig(command.IrqBits{RxQueueNotEmpty: true, TxQueueEmpty: true}); err != nil {
		r.stopTimers()
		return nil, err
	}

	r.counterTimer = loop.NewTimer(PerfCounterReadInterval, r.counterReaderFired)

	return r, nil
}

func (r *Radio) stopTimers() {
	if r.irqWatchdog != nil {
		r.irqWatchdog.Stop()
	}
	if r.pollTimer != nil {
		r.pollTimer.Stop()
	}
	if r.counterTimer != nil {
		r.counterTimer.Stop()
	}
}

// Close stops all timers, deregisters nothing from the transport (the transport owns
// its own IRQ fd and is closed by the caller), and leaves the radio unusable.
func (r *Radio) Close() error {
	r.stopTimers()
	return nil
}

// Info returns the radio's cached identity, captured during construction.
func (r *Radio) Info() Info {
	return r.info
}

// Channel returns the currently configured channel; call SetChannel followed by
// UploadConfig to change it.
func (r *Radio) Channel() uint16 {
	return r.currentChannel
}

// SetChannel stages a new channel for the next UploadConfig call.
func (r *Radio) SetChannel(channel uint16) {
	r.currentChannel = channel
	r.isConfigDirty = true
}

// TxPowerDeciDbm returns the current transmit power, in tenths of a dBm.
func (r *Radio) TxPowerDeciDbm() uint16 {
	return r.currentTxPower
}

// SetTxPowerDeciDbm stages a new transmit power, in tenths of a dBm, for the next
// UploadConfig call.
func (r *Radio) SetTxPowerDeciDbm(power uint16) {
	r.currentTxPower = power
	r.isConfigDirty = true
}

// ShortAddress returns the coordinator's current MAC short address.
func (r *Radio) ShortAddress() uint16 {
	return r.currentShortAddr
}

// SetShortAddress stages a new short address for the next UploadConfig call.
func (r *Radio) SetShortAddress(addr uint16) {
	r.currentShortAddr = addr
	r.isConfigDirty = true
}

// LostIrqs reports how many interrupts the watchdog declared lost.
func (r *Radio) LostIrqs() uint64 {
	return r.numLostIrqs
}

// RxCounters returns the accumulated receive-side performance counters.
func (r *Radio) RxCounters() RxCounters {
	return r.rxCounters
}

// TxCounters returns the accumulated transmit-side performance counters.
func (r *Radio) TxCounters() TxCounters {
	return r.txCounters
}

// UploadConfig pushes the staged channel/power/address to the radio.
func (r *Radio) UploadConfig() error {
	r.transportLock.Lock()
	defer r.transportLock.Unlock()

	req := command.RadioConfigRequest{
		Channel:   r.currentChannel,
		TxPower:   r.currentTxPower,
		MyAddress: r.currentShortAddr,
	}

	if err := r.transport.SendWrite(command.RadioConfig, req.Marshal()); err != nil {
		return radioerr.IO(err)
	}
	if err := r.ensureCmdSuccessLocked("RadioConfig"); err != nil {
		return err
	}

	r.isConfigDirty = false
	return nil
}

// QueueTransmit submits payload (already including its PHY and MAC headers) for
// transmission at the given priority. If all four queues are empty, it is written to
// the radio immediately; otherwise it is appended to its priority's queue and
// delivered the next time that queue drains.
func (r *Radio) QueueTransmit(priority Priority, payload []byte) error {
	r.txQueueLock.Lock()

	empty := true
	for _, q := range r.txQueues {
		if len(q) > 0 {
			empty = false
			break
		}
	}

	if empty {
		err := r.transmitPacket(priority, payload)
		r.txQueueLock.Unlock()
		if err == nil {
			return nil
		}
		r.log.Warn("direct transmit failed, queuing", zap.Error(err))

		r.txQueueLock.Lock()
	}

	cp := append([]byte{}, payload...)
	r.txQueues[priority] = append(r.txQueues[priority], &txPacket{priority: priority, payload: cp})
	r.txQueueLock.Unlock()
	return nil
}

func (r *Radio) transmitPacket(priority Priority, payload []byte) error {
	r.transportLock.Lock()
	defer r.transportLock.Unlock()

	req := command.TransmitPacketRequest{Priority: uint8(priority)}
	if err := r.transport.SendWrite(command.TransmitPacket, req.Marshal(payload)); err != nil {
		return radioerr.IO(err)
	}
	return r.ensureCmdSuccessLocked("TransmitPacket")
}

// drainTxQueue attempts to transmit every packet buffered across all four queues,
// strictly priority-descending, stopping at the first failure within a queue.
func (r *Radio) drainTxQueue() {
	r.txQueueLock.Lock()
	defer r.txQueueLock.Unlock()

	for p := numPriorityLevels - 1; p >= 0; p-- {
		queue := r.txQueues[p]
		for len(queue) > 0 {
			pkt := queue[0]
			if err := r.transmitPacket(Priority(p), pkt.payload); err != nil {
				r.log.Warn("tx queue drain stalled", zap.Int("priority", p), zap.Error(err))
				break
			}
			queue = queue[1:]
		}
		r.txQueues[p] = queue
	}
}

// SetBeaconConfig updates the beacon enable flag and interval (if updateConfig is
// true) and/or the beacon frame payload (if non-nil), per spec.md §4.3.
func (r *Radio) SetBeaconConfig(updateConfig, enabled bool, interval time.Duration, payload []byte) error {
	if updateConfig {
		if interval < MinBeaconInterval {
			return radioerr.InvalidArgument(fmt.Errorf("beacon interval too small (min %s)", MinBeaconInterval))
		}
		if interval.Milliseconds() > 0xFFFF {
			return radioerr.InvalidArgument(fmt.Errorf("beacon interval too large (max 65535 ms)"))
		}
	}

	req := command.BeaconConfigRequest{UpdateConfig: updateConfig, Enabled: enabled}
	if updateConfig {
		req.Interval = uint16(interval.Milliseconds())
	}

	r.transportLock.Lock()
	defer r.transportLock.Unlock()

	if err := r.transport.SendWrite(command.BeaconConfig, req.Marshal(payload)); err != nil {
		return radioerr.IO(err)
	}
	return r.ensureCmdSuccessLocked("BeaconConfig")
}

// ResetCounters zeroes the locally accumulated counters; if remote is true, also
// performs a dummy GetCounters read to clear the radio's own copy first.
func (r *Radio) ResetCounters(remote bool) error {
	if remote {
		r.transportLock.Lock()
		err := r.queryCountersLocked()
		r.transportLock.Unlock()
		if err != nil {
			return err
		}
	}

	r.rxCounters.reset()
	r.txCounters.reset()
	return nil
}

func (r *Radio) counterReaderFired() {
	r.transportLock.Lock()
	err := r.queryCountersLocked()
	r.transportLock.Unlock()

	if err != nil {
		r.log.Warn("periodic counter read failed", zap.Error(err))
	}
}

func (r *Radio) queryCountersLocked() error {
	buf := make([]byte, command.GetCountersResponseSize)
	if err := r.transport.SendRead(command.GetCounters, buf); err != nil {
		return radioerr.IO(err)
	}
	if err := r.ensureCmdSuccessLocked("GetCounters"); err != nil {
		return err
	}

	var resp command.GetCountersResponse
	resp.Unmarshal(buf)

	r.txCounters.BufferDiscards += uint64(resp.TxQueueBufferDiscards)
	r.txCounters.AllocDiscards += uint64(resp.TxQueueAllocFails)
	r.txCounters.QueueDiscards += uint64(resp.TxQueueQueueDiscards)
	r.txCounters.FifoDrops += uint64(resp.TxRadioFifoDrops)
	r.txCounters.CCAFails += uint64(resp.TxRadioCCAFails)
	r.txCounters.GoodFrames += uint64(resp.TxRadioGoodFrames)

	r.rxCounters.BufferDiscards += uint64(resp.RxQueueBufferDiscards)
	r.rxCounters.AllocDiscards += uint64(resp.RxQueueAllocFails)
	r.rxCounters.QueueDiscards += uint64(resp.RxQueueQueueDiscards)
	r.rxCounters.FifoOverflows += uint64(resp.RxRadioFifoOverflows)
	r.rxCounters.FrameErrors += uint64(resp.RxRadioFrameErrors)
	r.rxCounters.GoodFrames += uint64(resp.RxRadioGoodFrames)

	return nil
}

func (r *Radio) pollTimerFired() {
	r.transportLock.Lock()
	irq, err := r.getPendingInterruptsLocked()
	r.transportLock.Unlock()

	if err != nil {
		r.log.Warn("poll timer irq status read failed", zap.Error(err))
		return
	}
	r.handleIrqBits(irq)
}

func (r *Radio) irqWatchdogFired() {
	if r.irqCounter == 0 {
		return
	}

	if time.Since(r.lastIrq) <= IrqWatchdogThreshold {
		return
	}

	r.transportLock.Lock()
	irq, err := r.getPendingInterruptsLocked()
	r.transportLock.Unlock()

	if err != nil {
		r.log.Warn("irq watchdog status read failed", zap.Error(err))
		return
	}

	if irq.Any() {
		r.numLostIrqs++
		r.log.Warn("lost irq detected by watchdog", zap.Uint64("total", r.numLostIrqs))
	}

	r.handleIrqBits(irq)
}

func (r *Radio) handleIRQ() {
	r.irqCounter++

	r.transportLock.Lock()
	irq, err := r.getPendingInterruptsLocked()
	r.transportLock.Unlock()

	if err != nil {
		r.log.Error("irq handler status read failed", zap.Error(err))
		return
	}

	r.handleIrqBits(irq)
}

func (r *Radio) handleIrqBits(irq command.IrqBits) {
	if irq.RxQueueNotEmpty {
		for {
			read, err := r.readOnePacket()
			if err != nil {
				r.log.Error("read packet failed", zap.Error(err))
				break
			}
			if !read {
				break
			}
		}
	}

	if irq.TxQueueEmpty {
		r.drainTxQueue()
	}

	r.lastIrq = time.Now()
}

func (r *Radio) readOnePacket() (bool, error) {
	r.transportLock.Lock()
	defer r.transportLock.Unlock()

	var status command.GetPacketQueueStatusResponse
	buf := make([]byte, command.GetPacketQueueStatusResponseSize)
	if err := r.transport.SendRead(command.GetPacketQueueStatus, buf); err != nil {
		return false, radioerr.IO(err)
	}
	status.Unmarshal(buf)

	if !status.RxPacketPending {
		return false, nil
	}

	total := command.ReadPacketHeaderSize + int(status.RxPacketSize)
	rxBuf := make([]byte, total)
	if err := r.transport.SendRead(command.ReadPacket, rxBuf); err != nil {
		return false, radioerr.IO(err)
	}
	if err := r.ensureCmdSuccessLocked("ReadPacket"); err != nil {
		return false, err
	}

	var hdr command.ReadPacketHeader
	hdr.Unmarshal(rxBuf[:command.ReadPacketHeaderSize])
	payload := rxBuf[command.ReadPacketHeaderSize:]

	if r.onPacket != nil {
		r.onPacket(hdr.RSSI, hdr.LQI, payload)
	}
	return true, nil
}

func (r *Radio) setIrqConfig(bits command.IrqBits) error {
	r.transportLock.Lock()
	defer r.transportLock.Unlock()

	if err := r.transport.SendWrite(command.IrqConfig, []byte{bits.Marshal()}); err != nil {
		return radioerr.IO(err)
	}
	return r.ensureCmdSuccessLocked("IrqConfig")
}

func (r *Radio) getPendingInterruptsLocked() (command.IrqBits, error) {
	var irq command.IrqBits
	buf := make([]byte, command.IrqBitsSize)
	if err := r.transport.SendRead(command.IrqStatus, buf); err != nil {
		return irq, radioerr.IO(err)
	}
	if err := r.ensureCmdSuccessLocked("Read IrqStatus"); err != nil {
		return irq, err
	}
	irq.Unmarshal(buf)
	return irq, nil
}

// AcknowledgeInterrupts clears the given interrupt bits on the radio.
func (r *Radio) AcknowledgeInterrupts(bits command.IrqBits) error {
	r.transportLock.Lock()
	defer r.transportLock.Unlock()

	if err := r.transport.SendWrite(command.IrqStatus, []byte{bits.Marshal()}); err != nil {
		return radioerr.IO(err)
	}
	return r.ensureCmdSuccessLocked("Write IrqStatus")
}

type infoResult struct {
	command.GetInfoResponse
	Serial            string
	Build             string
	FWVersionMismatch bool
}

func (r *Radio) queryRadioInfo() (infoResult, error) {
	r.transportLock.Lock()
	defer r.transportLock.Unlock()

	buf := make([]byte, command.GetInfoResponseSize)
	if err := r.transport.SendRead(command.GetInfo, buf); err != nil {
		return infoResult{}, radioerr.IO(err)
	}

	var resp command.GetInfoResponse
	resp.Unmarshal(buf)

	if resp.Status != 1 {
		return infoResult{}, radioerr.NewRadioCommandFailed("GetInfo")
	}

	res := infoResult{
		GetInfoResponse:   resp,
		Serial:            nullTerminated(resp.Serial[:]),
		Build:             nullTerminated(resp.Build[:]),
		FWVersionMismatch: resp.ProtocolVersion != ProtocolVersion,
	}
	return res, nil
}

func (r *Radio) queryStatusLocked() (command.GetStatusResponse, error) {
	var status command.GetStatusResponse
	buf := make([]byte, command.GetStatusResponseSize)
	if err := r.transport.SendRead(command.GetStatus, buf); err != nil {
		return status, radioerr.IO(err)
	}
	status.Unmarshal(buf)
	return status, nil
}

// ensureCmdSuccessLocked reads the status register and fails if the last command did
// not complete successfully. Callers must already hold transportLock.
func (r *Radio) ensureCmdSuccessLocked(commandName string) error {
	status, err := r.queryStatusLocked()
	if err != nil {
		return err
	}
	if !status.CmdSuccess {
		return radioerr.NewRadioCommandFailed(commandName)
	}
	return nil
}

func nullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
