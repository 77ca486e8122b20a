package rpc

import (
	"fmt"
	"math"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/blazemesh/coordinatord/internal/radioerr"
)

// Backend is the subset of the running daemon's state the RPC endpoints read from.
// It is implemented by an adapter in cmd/coordinatord over *protocol.Handler plus the
// version strings baked in at build time; see cmd/coordinatord for the concrete wiring.
type Backend interface {
	RadioChannel() uint16
	RadioTxPowerDbm() float64
	RadioShortAddress() uint16
	RadioSerial() string
	RadioFWBuild() string

	Version() string
	BuildHash() string

	RxCounters() CounterSet
	TxCounters() CounterSet
}

// CounterSet is the endpoint-facing shape of a radio.RxCounters/TxCounters value.
type CounterSet struct {
	Good           uint64
	PrimaryError   uint64 // frame errors (rx) or CCA failures (tx)
	FIFOCounter    uint64 // fifo overflows (rx) or fifo underruns/drops (tx)
	QueueDiscards  uint64 // sum of buffer/alloc/queue discard counters
}

type getRequest struct {
	Get string `cbor:"get"`
}

func decodeGetKey(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", radioerr.ProtocolViolation(fmt.Errorf("missing request payload"))
	}

	var req getRequest
	if err := cbor.Unmarshal(payload, &req); err != nil {
		return "", radioerr.ProtocolViolation(fmt.Errorf("decode request: %w", err))
	}
	if req.Get == "" {
		return "", radioerr.ProtocolViolation(fmt.Errorf("missing `get` key"))
	}
	return strings.ToLower(req.Get), nil
}

// HandleConfig implements the Config endpoint (0x01), per spec.md §4.5.1.
func HandleConfig(b Backend, payload []byte) ([]byte, error) {
	key, err := decodeGetKey(payload)
	if err != nil {
		return nil, err
	}

	switch key {
	case "radio":
		return cbor.Marshal(map[string]interface{}{
			"txPower":      b.RadioTxPowerDbm(),
			"channel":      uint32(b.RadioChannel()),
			"shortAddress": b.RadioShortAddress(),
			"sn":           b.RadioSerial(),
		})
	case "version":
		return cbor.Marshal(map[string]interface{}{
			"version":      b.Version(),
			"build":        b.BuildHash(),
			"radioVersion": b.RadioFWBuild(),
		})
	default:
		return nil, radioerr.ProtocolViolation(fmt.Errorf("unknown config key %q", key))
	}
}

// HandleStatus implements the Status endpoint (0x02), per spec.md §4.5.1.
func HandleStatus(b Backend, payload []byte) ([]byte, error) {
	key, err := decodeGetKey(payload)
	if err != nil {
		return nil, err
	}

	switch key {
	case "radio.counters":
		rx := b.RxCounters()
		tx := b.TxCounters()

		return cbor.Marshal(map[string]interface{}{
			"rx": map[string]interface{}{
				"good":          rx.Good,
				"errors":        rx.PrimaryError,
				"fifoOverflows": rx.FIFOCounter,
				"queueDiscards": rx.QueueDiscards,
			},
			"tx": map[string]interface{}{
				"good":           tx.Good,
				"ccaFails":       tx.PrimaryError,
				"fifoUnderruns":  tx.FIFOCounter,
				"queueDiscards":  tx.QueueDiscards,
			},
			"readAt": uint64(math.MaxUint64),
		})
	default:
		return nil, radioerr.ProtocolViolation(fmt.Errorf("unknown status key %q", key))
	}
}
