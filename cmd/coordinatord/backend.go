package main

import (
	"github.com/blazemesh/coordinatord/internal/protocol"
	"github.com/blazemesh/coordinatord/internal/rpc"
)

// rpcBackend adapts the running protocol.Handler, plus the version strings baked in
// at build time, to the rpc.Backend interface the RPC server dispatches against.
type rpcBackend struct {
	handler *protocol.Handler
}

func (b rpcBackend) RadioChannel() uint16      { return b.handler.Radio.Channel() }
func (b rpcBackend) RadioTxPowerDbm() float64  { return float64(b.handler.Radio.TxPowerDeciDbm()) / 10 }
func (b rpcBackend) RadioShortAddress() uint16 { return b.handler.Radio.ShortAddress() }
func (b rpcBackend) RadioSerial() string       { return b.handler.Radio.Info().Serial }
func (b rpcBackend) RadioFWBuild() string      { return b.handler.Radio.Info().FWBuild }

func (b rpcBackend) Version() string   { return version }
func (b rpcBackend) BuildHash() string { return buildHash }

func (b rpcBackend) RxCounters() rpc.CounterSet {
	c := b.handler.Radio.RxCounters()
	return rpc.CounterSet{
		Good:          c.GoodFrames,
		PrimaryError:  c.FrameErrors,
		FIFOCounter:   c.FifoOverflows,
		QueueDiscards: c.BufferDiscards + c.AllocDiscards + c.QueueDiscards,
	}
}

func (b rpcBackend) TxCounters() rpc.CounterSet {
	c := b.handler.Radio.TxCounters()
	return rpc.CounterSet{
		Good:          c.GoodFrames,
		PrimaryError:  c.CCAFails,
		FIFOCounter:   c.FifoDrops,
		QueueDiscards: c.BufferDiscards + c.AllocDiscards + c.QueueDiscards,
	}
}

var _ rpc.Backend = rpcBackend{}
