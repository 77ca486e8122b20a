// Package command defines the closed set of radio command IDs and the fixed-layout
// request/response records exchanged with the radio coprocessor over the transport.
// All multibyte fields are little-endian; bitfield records pack into a single byte in
// the order they are declared. This package performs no I/O — see internal/transport
// for the SPI framing and internal/radio for the stateful command sequencing.
package command

import "encoding/binary"

// ID identifies a radio command. It is a 7-bit value; the high bit of the wire byte
// is reserved to indicate a read transaction.
type ID uint8

// The closed set of supported commands.
const (
	NoOp                  ID = 0x00
	GetInfo               ID = 0x01
	RadioConfig           ID = 0x02
	GetStatus             ID = 0x03
	IrqConfig             ID = 0x04
	GetPacketQueueStatus  ID = 0x05
	ReadPacket            ID = 0x06
	TransmitPacket        ID = 0x07
	BeaconConfig          ID = 0x08
	GetCounters           ID = 0x09
	IrqStatus             ID = 0x0A
)

// ReadBit, when ORed into the wire command byte, indicates a read transaction.
const ReadBit uint8 = 0x80

// String returns a human-readable command name, for logging.
func (c ID) String() string {
	switch c {
	case NoOp:
		return "NoOp"
	case GetInfo:
		return "GetInfo"
	case RadioConfig:
		return "RadioConfig"
	case GetStatus:
		return "GetStatus"
	case IrqConfig:
		return "IrqConfig"
	case GetPacketQueueStatus:
		return "GetPacketQueueStatus"
	case ReadPacket:
		return "ReadPacket"
	case TransmitPacket:
		return "TransmitPacket"
	case BeaconConfig:
		return "BeaconConfig"
	case GetCounters:
		return "GetCounters"
	case IrqStatus:
		return "IrqStatus"
	default:
		return "Unknown"
	}
}

// HwFeatures is a bitmask of hardware capability flags reported by GetInfo.
type HwFeatures uint8

// PrivateStorage indicates the controller has dedicated, private storage.
const PrivateStorage HwFeatures = 1 << 0

// GetInfoResponseSize is the fixed wire size of GetInfoResponse.
const GetInfoResponseSize = 1 + 3 + 8 + 2 + 16 + 8 + 1

// GetInfoResponse is the "Get Info" command response.
type GetInfoResponse struct {
	Status uint8

	ProtocolVersion uint8
	Major           uint8
	Minor           uint8
	Build           [8]byte

	HwRev      uint8
	HwFeatures HwFeatures
	Serial     [16]byte
	EUI64      [8]byte

	MaxTxPower uint8
}

// Unmarshal decodes a GetInfoResponse from its fixed-layout wire representation.
func (r *GetInfoResponse) Unmarshal(buf []byte) {
	r.Status = buf[0]
	r.ProtocolVersion = buf[1]
	r.Major = buf[2]
	r.Minor = buf[3]
	copy(r.Build[:], buf[4:12])
	r.HwRev = buf[12]
	r.HwFeatures = HwFeatures(buf[13])
	copy(r.Serial[:], buf[14:30])
	copy(r.EUI64[:], buf[30:38])
	r.MaxTxPower = buf[38]
}

// GetStatusResponseSize is the fixed wire size of GetStatusResponse.
const GetStatusResponseSize = 1

// GetStatusResponse is the status/IRQ register bitfield defined in spec §3.
type GetStatusResponse struct {
	CmdSuccess     bool
	RadioActive    bool
	RxQueueNotEmpty bool
	RxQueueFull     bool
	RxQueueOverflow bool
	TxQueueEmpty    bool
	TxQueueFull     bool
	TxQueueOverflow bool
}

// Unmarshal decodes a GetStatusResponse from a single packed byte.
func (r *GetStatusResponse) Unmarshal(buf []byte) {
	b := buf[0]
	r.CmdSuccess = b&(1<<0) != 0
	r.RadioActive = b&(1<<1) != 0
	r.RxQueueNotEmpty = b&(1<<2) != 0
	r.RxQueueFull = b&(1<<3) != 0
	r.RxQueueOverflow = b&(1<<4) != 0
	r.TxQueueEmpty = b&(1<<5) != 0
	r.TxQueueFull = b&(1<<6) != 0
	r.TxQueueOverflow = b&(1<<7) != 0
}

// IrqBitsSize is the fixed wire size of the four-bit IRQ config/status subset.
const IrqBitsSize = 1

// IrqBits is the shared four-bit subset used by both IrqConfig and IrqStatus.
type IrqBits struct {
	CommandError    bool
	RxQueueNotEmpty bool
	TxPacket        bool
	TxQueueEmpty    bool
}

// Marshal encodes the bits into a single packed byte.
func (b IrqBits) Marshal() byte {
	var v byte
	if b.CommandError {
		v |= 1 << 0
	}
	if b.RxQueueNotEmpty {
		v |= 1 << 1
	}
	if b.TxPacket {
		v |= 1 << 2
	}
	if b.TxQueueEmpty {
		v |= 1 << 3
	}
	return v
}

// Unmarshal decodes the bits from a single packed byte.
func (b *IrqBits) Unmarshal(buf []byte) {
	v := buf[0]
	b.CommandError = v&(1<<0) != 0
	b.RxQueueNotEmpty = v&(1<<1) != 0
	b.TxPacket = v&(1<<2) != 0
	b.TxQueueEmpty = v&(1<<3) != 0
}

// Any reports whether any bit is set.
func (b IrqBits) Any() bool {
	return b.CommandError || b.RxQueueNotEmpty || b.TxPacket || b.TxQueueEmpty
}

// GetPacketQueueStatusResponseSize is the fixed wire size of the response.
const GetPacketQueueStatusResponseSize = 2

// GetPacketQueueStatusResponse reports the head-of-queue state for RX and TX.
type GetPacketQueueStatusResponse struct {
	RxPacketPending bool
	TxPacketPending bool
	RxPacketSize    uint8
}

// Unmarshal decodes a GetPacketQueueStatusResponse.
func (r *GetPacketQueueStatusResponse) Unmarshal(buf []byte) {
	v := buf[0]
	r.RxPacketPending = v&(1<<0) != 0
	r.TxPacketPending = v&(1<<1) != 0
	r.RxPacketSize = buf[1]
}

// ReadPacketHeaderSize is the fixed wire size of the ReadPacket response prefix,
// before the variable-length payload.
const ReadPacketHeaderSize = 2

// ReadPacketHeader is the fixed prefix of a ReadPacket response.
type ReadPacketHeader struct {
	RSSI int8
	LQI  uint8
}

// Unmarshal decodes the fixed prefix from buf[0:2].
func (r *ReadPacketHeader) Unmarshal(buf []byte) {
	r.RSSI = int8(buf[0])
	r.LQI = buf[1]
}

// GetCountersResponseSize is the fixed wire size of GetCountersResponse.
const GetCountersResponseSize = 4 + (4*5 + 4*3) + (4*5 + 4*3)

// GetCountersResponse is the performance-counter snapshot returned (and cleared) by
// GetCounters.
type GetCountersResponse struct {
	CurrentTicks uint32

	TxQueuePacketsPending  uint32
	TxQueueBufferSize      uint32
	TxQueueBufferDiscards  uint32
	TxQueueAllocFails      uint32
	TxQueueQueueDiscards   uint32

	TxRadioFifoDrops  uint32
	TxRadioCCAFails   uint32
	TxRadioGoodFrames uint32

	RxQueuePacketsPending uint32
	RxQueueBufferSize     uint32
	RxQueueBufferDiscards uint32
	RxQueueAllocFails     uint32
	RxQueueQueueDiscards  uint32

	RxRadioFifoOverflows uint32
	RxRadioFrameErrors   uint32
	RxRadioGoodFrames    uint32
}

// Unmarshal decodes a GetCountersResponse from its fixed little-endian layout.
func (r *GetCountersResponse) Unmarshal(buf []byte) {
	le := binary.LittleEndian
	r.CurrentTicks = le.Uint32(buf[0:4])

	r.TxQueuePacketsPending = le.Uint32(buf[4:8])
	r.TxQueueBufferSize = le.Uint32(buf[8:12])
	r.TxQueueBufferDiscards = le.Uint32(buf[12:16])
	r.TxQueueAllocFails = le.Uint32(buf[16:20])
	r.TxQueueQueueDiscards = le.Uint32(buf[20:24])

	r.TxRadioFifoDrops = le.Uint32(buf[24:28])
	r.TxRadioCCAFails = le.Uint32(buf[28:32])
	r.TxRadioGoodFrames = le.Uint32(buf[32:36])

	r.RxQueuePacketsPending = le.Uint32(buf[36:40])
	r.RxQueueBufferSize = le.Uint32(buf[40:44])
	r.RxQueueBufferDiscards = le.Uint32(buf[44:48])
	r.RxQueueAllocFails = le.Uint32(buf[48:52])
	r.RxQueueQueueDiscards = le.Uint32(buf[52:56])

	r.RxRadioFifoOverflows = le.Uint32(buf[56:60])
	r.RxRadioFrameErrors = le.Uint32(buf[60:64])
	r.RxRadioGoodFrames = le.Uint32(buf[64:68])
}

// RadioConfigRequestSize is the fixed wire size of RadioConfigRequest.
const RadioConfigRequestSize = 6

// RadioConfigRequest configures the radio PHY: channel, transmit power (in ⅒ dBm),
// and the coordinator's short address.
type RadioConfigRequest struct {
	Channel   uint16
	TxPower   uint16
	MyAddress uint16
}

// Marshal encodes the request in little-endian, packed layout.
func (r RadioConfigRequest) Marshal() []byte {
	buf := make([]byte, RadioConfigRequestSize)
	le := binary.LittleEndian
	le.PutUint16(buf[0:2], r.Channel)
	le.PutUint16(buf[2:4], r.TxPower)
	le.PutUint16(buf[4:6], r.MyAddress)
	return buf
}

// Unmarshal decodes a RadioConfigRequest, used by tests to verify the round trip.
func (r *RadioConfigRequest) Unmarshal(buf []byte) {
	le := binary.LittleEndian
	r.Channel = le.Uint16(buf[0:2])
	r.TxPower = le.Uint16(buf[2:4])
	r.MyAddress = le.Uint16(buf[4:6])
}

// TransmitPacketHeaderSize is the fixed wire size of the TransmitPacketRequest header
// that precedes the packet payload.
const TransmitPacketHeaderSize = 1

// TransmitPacketRequest is the fixed header prepended to a TransmitPacket payload.
// Priority occupies the low 2 bits of the header byte; numerically low values are low
// priorities (0 = lowest).
type TransmitPacketRequest struct {
	Priority uint8
}

// Marshal returns the full wire payload: the one-byte header followed by data.
func (r TransmitPacketRequest) Marshal(data []byte) []byte {
	buf := make([]byte, TransmitPacketHeaderSize+len(data))
	buf[0] = r.Priority & 0x03
	copy(buf[1:], data)
	return buf
}

// BeaconConfigRequestHeaderSize is the fixed wire size of the BeaconConfigRequest
// header that precedes the variable-length beacon frame payload.
const BeaconConfigRequestHeaderSize = 3

// BeaconConfigRequest configures automatic beacon transmission. If UpdateConfig is
// false, Enabled and Interval are not applied to the radio — only the payload (beacon
// frame bytes), if any, is updated.
type BeaconConfigRequest struct {
	UpdateConfig bool
	Enabled      bool
	Interval     uint16
}

// Marshal returns the full wire payload: the three-byte header followed by the
// beacon frame payload, if any.
func (r BeaconConfigRequest) Marshal(payload []byte) []byte {
	buf := make([]byte, BeaconConfigRequestHeaderSize+len(payload))

	var hdr byte
	if r.UpdateConfig {
		hdr |= 1 << 0
	}
	if r.Enabled {
		hdr |= 1 << 1
	}
	buf[0] = hdr

	binary.LittleEndian.PutUint16(buf[1:3], r.Interval)
	copy(buf[3:], payload)
	return buf
}
